package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/phishfinder/backend/internal/domain"
	"github.com/phishfinder/backend/internal/domain/detection"
	"github.com/phishfinder/backend/internal/ports"
	"github.com/phishfinder/backend/internal/telemetry"
)

// WhoisResult is the outcome of a WHOIS lookup
type WhoisResult struct {
	Record *domain.WhoisRecord
	Cached bool
	// EmailUpdated is set when an email id was given and the email was enriched
	EmailUpdated bool
}

// WhoisService serves registration data keyed by registrable domain,
// caching fetched payloads in storage for ttl.
type WhoisService struct {
	fetcher ports.WhoisFetcher
	store   ports.Storage
	ttl     time.Duration
	metrics *telemetry.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

// NewWhoisService creates a new WHOIS service
func NewWhoisService(fetcher ports.WhoisFetcher, store ports.Storage, ttl time.Duration, metrics *telemetry.Metrics, logger *zap.Logger) *WhoisService {
	return &WhoisService{
		fetcher: fetcher,
		store:   store,
		ttl:     ttl,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// Lookup returns WHOIS data for a domain, from storage when fresh.
// When emailID is not empty the email's sender WHOIS fields are updated;
// an unknown email id is logged, not an error.
func (s *WhoisService) Lookup(ctx context.Context, rawDomain, emailID string) (*WhoisResult, error) {
	root, err := whoisRoot(rawDomain)
	if err != nil {
		return nil, err
	}

	result := &WhoisResult{}
	cached, err := s.store.GetWhois(ctx, root)
	if err != nil {
		s.logger.Warn("Failed to read cached WHOIS data", zap.String("domain", root), zap.Error(err))
	}
	if cached != nil && s.now().Sub(cached.CreatedAt) < s.ttl {
		s.metrics.WhoisLookup(telemetry.WhoisCached)
		result.Record = cached
		result.Cached = true
	} else {
		record, err := s.fetch(ctx, root)
		if err != nil {
			return nil, err
		}
		result.Record = record
	}

	if emailID != "" {
		result.EmailUpdated = s.enrichEmail(ctx, emailID, result.Record)
	}
	return result, nil
}

// Refresh fetches WHOIS data for a domain regardless of the cache and stores it
func (s *WhoisService) Refresh(ctx context.Context, rawDomain string) (*domain.WhoisRecord, error) {
	root, err := whoisRoot(rawDomain)
	if err != nil {
		return nil, err
	}
	return s.fetch(ctx, root)
}

func (s *WhoisService) fetch(ctx context.Context, root string) (*domain.WhoisRecord, error) {
	data, err := s.fetcher.Fetch(ctx, root)
	if err != nil {
		s.metrics.WhoisLookup(telemetry.WhoisError)
		s.logger.Warn("WHOIS lookup failed", zap.String("domain", root), zap.Error(err))
		return nil, err
	}
	s.metrics.WhoisLookup(telemetry.WhoisFetched)

	record := &domain.WhoisRecord{Domain: root, Data: data, CreatedAt: s.now().UTC()}
	if err := s.store.UpsertWhois(ctx, record); err != nil {
		// The fetched data is still served
		s.logger.Warn("Failed to cache WHOIS data", zap.String("domain", root), zap.Error(err))
	}
	return record, nil
}

func (s *WhoisService) enrichEmail(ctx context.Context, emailID string, record *domain.WhoisRecord) bool {
	err := s.store.SetSenderWhois(ctx, emailID, record.Data, s.now().UTC())
	switch {
	case err == nil:
		s.logger.Info("Updated WHOIS data for email", zap.String("emailId", emailID))
		return true
	case errors.Is(err, domain.ErrNotFound):
		s.logger.Info("No email found for WHOIS update", zap.String("emailId", emailID))
	default:
		s.logger.Warn("Failed to update email WHOIS data", zap.String("emailId", emailID), zap.Error(err))
	}
	return false
}

func whoisRoot(rawDomain string) (string, error) {
	name, err := detection.ValidateDomain(rawDomain)
	if err != nil {
		return "", err
	}
	root := detection.RootDomain(name)
	if root == "" {
		return "", fmt.Errorf("%w: %q", domain.ErrInvalidDomain, rawDomain)
	}
	return root, nil
}
