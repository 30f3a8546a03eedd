package ports

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/phishfinder/backend/internal/domain"
)

// EmailRepository persists analyzed emails
type EmailRepository interface {
	// InsertEmail stores a record keyed by its external ID.
	// created is false when a record with that ID already exists; the existing identity is returned.
	InsertEmail(ctx context.Context, record *domain.EmailRecord) (recordID uuid.UUID, created bool, err error)

	// GetEmail returns nil, nil when no record has that external ID
	GetEmail(ctx context.Context, id string) (*domain.EmailRecord, error)

	UpdateRiskAssessment(ctx context.Context, id string, risk domain.RiskAssessment) error
	GetEmailsMissingRisk(ctx context.Context, limit int) ([]domain.EmailRecord, error)

	// ClaimEmailsPendingProfile leases records whose sender profile update has not succeeded yet.
	// Each claimed record counts one attempt and is not offered again before its retry delay.
	ClaimEmailsPendingProfile(ctx context.Context, claim ProfileClaim) ([]domain.EmailRecord, error)
	MarkSenderProfileProcessed(ctx context.Context, id string) error

	// SetSenderWhois attaches WHOIS data to a stored email. Returns domain.ErrNotFound for an unknown ID.
	SetSenderWhois(ctx context.Context, id string, data json.RawMessage, at time.Time) error
}

// ProfileClaim selects pending sender profile work for one backfill pass
type ProfileClaim struct {
	Now   time.Time
	Limit int
	// Grace leaves records processed after Now-Grace to the request that stored them
	Grace time.Duration
	// RetryBase doubles with every earlier attempt, up to RetryMax.
	// A RetryMax below RetryBase keeps the delay at RetryBase.
	RetryBase time.Duration
	RetryMax  time.Duration
}

// RetryDelay is how long a record stays hidden after a claim, given its earlier attempts
func (c ProfileClaim) RetryDelay(attempts int) time.Duration {
	limit := c.MaxRetryDelay()
	d := c.RetryBase
	for i := 0; i < attempts && d < limit; i++ {
		d *= 2
	}
	return min(d, limit)
}

// MaxRetryDelay is the effective cap of RetryDelay
func (c ProfileClaim) MaxRetryDelay() time.Duration {
	return max(c.RetryMax, c.RetryBase)
}

// SenderProfileRepository maintains per-sender aggregates
type SenderProfileRepository interface {
	// UpsertSenderProfile creates the profile on first use and otherwise appends the entry.
	// Counters are incremented in place by delta, never read-modify-written.
	UpsertSenderProfile(ctx context.Context, record *domain.EmailRecord, entry domain.EmailEntry, delta domain.SecurityMetrics) error

	// GetSenderProfile returns nil, nil for an unknown address
	GetSenderProfile(ctx context.Context, address string) (*domain.SenderProfile, error)
}

// WhoisRepository caches WHOIS data by registrable domain
type WhoisRepository interface {
	GetWhois(ctx context.Context, rootDomain string) (*domain.WhoisRecord, error)
	UpsertWhois(ctx context.Context, record *domain.WhoisRecord) error
}

// DomainAuthRepository keeps resolved SPF/DKIM/DMARC tuples
type DomainAuthRepository interface {
	// GetDomainAuthentication returns the most recent resolution for a domain, or nil, nil
	GetDomainAuthentication(ctx context.Context, name string) (*domain.DomainAuthentication, error)
	SaveDomainAuthentication(ctx context.Context, auth *domain.DomainAuthentication) error
}

// MetricsRepository aggregates stored emails for dashboards
type MetricsRepository interface {
	// GetEmailStats counts emails whose timestamp falls in [from, to)
	GetEmailStats(ctx context.Context, from, to time.Time) (domain.EmailStats, error)

	// GetDailyStats returns one entry per UTC day that has emails in [from, to), oldest first
	GetDailyStats(ctx context.Context, from, to time.Time) ([]domain.DailyStat, error)
}

// Storage defines the contract for persisting and querying domain entities
type Storage interface {
	EmailRepository
	SenderProfileRepository
	WhoisRepository
	DomainAuthRepository
	MetricsRepository

	// Lifecycle
	Close() error
}
