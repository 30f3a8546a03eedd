package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/phishfinder/backend/internal/adapters/storage"
	"github.com/phishfinder/backend/internal/domain"
	"github.com/phishfinder/backend/internal/ports"
)

type fakeDNS struct {
	mu      sync.Mutex
	records map[string][]string
	errs    map[string]error
	calls   map[string]int
}

func newFakeDNS() *fakeDNS {
	return &fakeDNS{
		records: make(map[string][]string),
		errs:    make(map[string]error),
		calls:   make(map[string]int),
	}
}

func (f *fakeDNS) LookupTXT(_ context.Context, name string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[name]++
	if err := f.errs[name]; err != nil {
		return nil, err
	}
	return f.records[name], nil
}

func (f *fakeDNS) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeDNS) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

type fakeThreats struct {
	threats map[string]string
	failed  bool
	err     error
	calls   int
}

func (f *fakeThreats) Check(_ context.Context, urls []string) (ports.ThreatCheck, error) {
	f.calls++
	if f.err != nil {
		return ports.ThreatCheck{}, f.err
	}
	check := ports.ThreatCheck{Failed: f.failed, Verdicts: make([]ports.ThreatVerdict, 0, len(urls))}
	for _, u := range urls {
		v := ports.ThreatVerdict{URL: u}
		if threat, ok := f.threats[u]; ok && !f.failed {
			v.Suspicious = true
			v.ThreatType = threat
		}
		check.Verdicts = append(check.Verdicts, v)
	}
	return check, nil
}

type fakeFetcher struct {
	mu    sync.Mutex
	data  map[string]string
	calls int
}

func (f *fakeFetcher) Fetch(_ context.Context, rootDomain string) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	payload, ok := f.data[rootDomain]
	if !ok {
		return nil, fmt.Errorf("%w: status 404", domain.ErrWhoisUnavailable)
	}
	return json.RawMessage(payload), nil
}

// profileFailingStore rejects every sender profile write
type profileFailingStore struct {
	*storage.MemoryStore
}

func (s profileFailingStore) UpsertSenderProfile(context.Context, *domain.EmailRecord, domain.EmailEntry, domain.SecurityMetrics) error {
	return errors.New("profile store unavailable")
}

// senderFailingStore rejects profile writes for one sender address
type senderFailingStore struct {
	*storage.MemoryStore
	sender string
}

func (s senderFailingStore) UpsertSenderProfile(ctx context.Context, record *domain.EmailRecord, entry domain.EmailEntry, delta domain.SecurityMetrics) error {
	if record.Sender.Address == s.sender {
		return errors.New("profile store unavailable")
	}
	return s.MemoryStore.UpsertSenderProfile(ctx, record, entry, delta)
}

// backfillOnInsertStore runs a backfill pass right after every stored email,
// before the analysis request has applied the sender profile itself
type backfillOnInsertStore struct {
	*storage.MemoryStore
	backfill *BackfillService
	reports  []BackfillReport
}

func (s *backfillOnInsertStore) InsertEmail(ctx context.Context, record *domain.EmailRecord) (uuid.UUID, bool, error) {
	id, created, err := s.MemoryStore.InsertEmail(ctx, record)
	if err != nil {
		return id, created, err
	}
	report, err := s.backfill.RunOnce(ctx)
	s.reports = append(s.reports, report)
	return id, created, err
}
