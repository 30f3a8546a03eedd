package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/phishfinder/backend/internal/domain"
	"github.com/phishfinder/backend/internal/ports"
)

// MemoryStore implements ports.Storage in process memory.
// Used for offline analysis and tests; contents are lost on exit.
type MemoryStore struct {
	mu       sync.RWMutex
	emails   map[string]*domain.EmailRecord
	order    []string
	profiles map[string]*domain.SenderProfile
	whois    map[string]domain.WhoisRecord
	auth     map[string][]domain.DomainAuthentication
	claims   map[string]profileClaim
}

// profileClaim is the backfill bookkeeping of one pending email
type profileClaim struct {
	attempts int
	next     time.Time
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		emails:   make(map[string]*domain.EmailRecord),
		profiles: make(map[string]*domain.SenderProfile),
		whois:    make(map[string]domain.WhoisRecord),
		auth:     make(map[string][]domain.DomainAuthentication),
		claims:   make(map[string]profileClaim),
	}
}

// Close is a no-op
func (s *MemoryStore) Close() error {
	return nil
}

// InsertEmail stores a copy of the record unless its id is already present
func (s *MemoryStore) InsertEmail(ctx context.Context, record *domain.EmailRecord) (uuid.UUID, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.emails[record.ID]; ok {
		return existing.RecordID, false, nil
	}

	if record.RecordID == uuid.Nil {
		record.RecordID = uuid.New()
	}
	stored := *record
	stored.SenderProfileProcessed = false
	s.emails[record.ID] = &stored
	s.order = append(s.order, record.ID)

	return stored.RecordID, true, nil
}

// GetEmail returns a copy of the record, or nil if absent
func (s *MemoryStore) GetEmail(ctx context.Context, id string) (*domain.EmailRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.emails[id]
	if !ok {
		return nil, nil
	}
	out := *record
	return &out, nil
}

// UpdateRiskAssessment stores a computed risk assessment
func (s *MemoryStore) UpdateRiskAssessment(ctx context.Context, id string, risk domain.RiskAssessment) error {
	return s.updateEmail(id, func(r *domain.EmailRecord) {
		r.Risk = &risk
	})
}

// MarkSenderProfileProcessed flags that an email has been folded into its sender profile
func (s *MemoryStore) MarkSenderProfileProcessed(ctx context.Context, id string) error {
	return s.updateEmail(id, func(r *domain.EmailRecord) {
		r.SenderProfileProcessed = true
	})
}

// SetSenderWhois attaches WHOIS data to a stored email
func (s *MemoryStore) SetSenderWhois(ctx context.Context, id string, data json.RawMessage, at time.Time) error {
	return s.updateEmail(id, func(r *domain.EmailRecord) {
		r.Sender.WhoisData = append(json.RawMessage(nil), data...)
		r.WhoisLastUpdated = &at
	})
}

func (s *MemoryStore) updateEmail(id string, fn func(*domain.EmailRecord)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.emails[id]
	if !ok {
		return fmt.Errorf("email %q: %w", id, domain.ErrNotFound)
	}
	fn(record)
	return nil
}

// GetEmailsMissingRisk returns up to limit emails without a risk assessment, oldest first
func (s *MemoryStore) GetEmailsMissingRisk(ctx context.Context, limit int) ([]domain.EmailRecord, error) {
	return s.filterEmails(limit, func(r *domain.EmailRecord) bool { return r.Risk == nil }), nil
}

// ClaimEmailsPendingProfile leases up to claim.Limit emails not yet folded into a profile,
// least recently due first
func (s *MemoryStore) ClaimEmailsPendingProfile(ctx context.Context, claim ports.ProfileClaim) ([]domain.EmailRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := claim.Now.Add(-claim.Grace)
	due := make([]*domain.EmailRecord, 0)
	for _, id := range s.order {
		r := s.emails[id]
		if r.SenderProfileProcessed || r.ProcessedAt.After(cutoff) {
			continue
		}
		if c, ok := s.claims[id]; ok && c.next.After(claim.Now) {
			continue
		}
		due = append(due, r)
	}
	sort.SliceStable(due, func(i, j int) bool {
		return s.dueAt(due[i]).Before(s.dueAt(due[j]))
	})
	if claim.Limit > 0 && len(due) > claim.Limit {
		due = due[:claim.Limit]
	}

	out := make([]domain.EmailRecord, 0, len(due))
	for _, r := range due {
		c := s.claims[r.ID]
		c.next = claim.Now.Add(claim.RetryDelay(c.attempts))
		c.attempts++
		s.claims[r.ID] = c
		out = append(out, *r)
	}
	return out, nil
}

// ProfileAttempts reports how many times an email has been claimed for a profile update
func (s *MemoryStore) ProfileAttempts(id string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.claims[id].attempts
}

func (s *MemoryStore) dueAt(r *domain.EmailRecord) time.Time {
	if c, ok := s.claims[r.ID]; ok {
		return c.next
	}
	return r.ProcessedAt
}

func (s *MemoryStore) filterEmails(limit int, keep func(*domain.EmailRecord) bool) []domain.EmailRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.EmailRecord, 0)
	for _, id := range s.order {
		if limit > 0 && len(out) >= limit {
			break
		}
		if r := s.emails[id]; keep(r) {
			out = append(out, *r)
		}
	}
	return out
}

// UpsertSenderProfile creates or extends the profile of the record's sender
func (s *MemoryStore) UpsertSenderProfile(ctx context.Context, record *domain.EmailRecord, entry domain.EmailEntry, delta domain.SecurityMetrics) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	profile, ok := s.profiles[record.Sender.Address]
	if !ok {
		profile = &domain.SenderProfile{
			ID:        uuid.New(),
			Emails:    make([]domain.EmailEntry, 0, 1),
			CreatedAt: now,
		}
		s.profiles[record.Sender.Address] = profile
	}

	profile.Sender = record.Sender
	profile.Emails = append(profile.Emails, entry)
	profile.SecurityMetrics = profile.SecurityMetrics.Add(delta)
	profile.LastAuthentication = record.Authentication
	profile.LastUpdated = now
	return nil
}

// GetSenderProfile returns a copy of a sender profile, or nil if absent
func (s *MemoryStore) GetSenderProfile(ctx context.Context, address string) (*domain.SenderProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	profile, ok := s.profiles[address]
	if !ok {
		return nil, nil
	}
	out := *profile
	out.Emails = append([]domain.EmailEntry(nil), profile.Emails...)
	return &out, nil
}

// GetWhois returns cached WHOIS data, or nil if absent
func (s *MemoryStore) GetWhois(ctx context.Context, rootDomain string) (*domain.WhoisRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.whois[rootDomain]
	if !ok {
		return nil, nil
	}
	return &record, nil
}

// UpsertWhois stores WHOIS data, replacing any previous entry for the domain
func (s *MemoryStore) UpsertWhois(ctx context.Context, record *domain.WhoisRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.whois[record.Domain] = *record
	return nil
}

// GetDomainAuthentication returns the newest resolution for a domain, or nil if absent
func (s *MemoryStore) GetDomainAuthentication(ctx context.Context, name string) (*domain.DomainAuthentication, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.auth[name]
	if len(history) == 0 {
		return nil, nil
	}
	latest := history[0]
	for _, a := range history[1:] {
		if a.CreatedAt.After(latest.CreatedAt) {
			latest = a
		}
	}
	return &latest, nil
}

// SaveDomainAuthentication appends a resolution for a domain
func (s *MemoryStore) SaveDomainAuthentication(ctx context.Context, auth *domain.DomainAuthentication) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.auth[auth.Domain] = append(s.auth[auth.Domain], *auth)
	return nil
}

// GetEmailStats aggregates emails whose timestamp is in [from, to)
func (s *MemoryStore) GetEmailStats(ctx context.Context, from, to time.Time) (domain.EmailStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stats domain.EmailStats
	scored, scoreSum := 0, 0
	for _, r := range s.emails {
		if !inWindow(r.Timestamp, from, to) {
			continue
		}
		stats.TotalEmails++
		if r.Flags.SafeBrowsingFlag {
			stats.FlaggedEmails++
		}
		stats.URLCount += suspiciousURLCount(r)
		if r.Risk != nil {
			scored++
			scoreSum += r.Risk.Score
		}
	}
	if scored > 0 {
		stats.AverageRiskScore = float64(scoreSum) / float64(scored)
	}
	return stats, nil
}

// GetDailyStats buckets emails in [from, to) by UTC day, oldest first
func (s *MemoryStore) GetDailyStats(ctx context.Context, from, to time.Time) ([]domain.DailyStat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byDay := make(map[string]*domain.DailyStat)
	for _, r := range s.emails {
		if !inWindow(r.Timestamp, from, to) {
			continue
		}
		day := r.Timestamp.UTC().Format("2006-01-02")
		stat, ok := byDay[day]
		if !ok {
			stat = &domain.DailyStat{Date: day}
			byDay[day] = stat
		}
		stat.TotalEmails++
		if r.Flags.SafeBrowsingFlag {
			stat.FlaggedEmails++
		}
	}

	stats := make([]domain.DailyStat, 0, len(byDay))
	for _, stat := range byDay {
		stats = append(stats, *stat)
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Date < stats[j].Date })
	return stats, nil
}

func inWindow(t, from, to time.Time) bool {
	return !t.Before(from) && t.Before(to)
}
