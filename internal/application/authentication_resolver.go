package application

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/phishfinder/backend/internal/domain"
	"github.com/phishfinder/backend/internal/domain/detection"
	"github.com/phishfinder/backend/internal/ports"
	"github.com/phishfinder/backend/internal/telemetry"
)

// AuthenticationLookup resolves the SPF/DKIM/DMARC records of a domain
type AuthenticationLookup interface {
	Resolve(ctx context.Context, name string) domain.DomainAuthentication
}

// AuthResolverConfig tunes the resolver caches and DKIM probing
type AuthResolverConfig struct {
	// CacheTTL bounds the per-record memory tier
	CacheTTL time.Duration
	// StoreTTL bounds the freshness of a stored tuple
	StoreTTL time.Duration
	// Selectors are tried in order under _domainkey
	Selectors []string
}

// AuthenticationResolver resolves domain authentication records through
// two cache tiers: a per-record Cache, then the newest stored tuple.
// Lookup errors are never cached at either tier.
type AuthenticationResolver struct {
	dns     ports.TXTResolver
	cache   ports.Cache
	store   ports.DomainAuthRepository
	cfg     AuthResolverConfig
	metrics *telemetry.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

// NewAuthenticationResolver creates a resolver. cache and store may be nil.
func NewAuthenticationResolver(
	dns ports.TXTResolver,
	cache ports.Cache,
	store ports.DomainAuthRepository,
	cfg AuthResolverConfig,
	metrics *telemetry.Metrics,
	logger *zap.Logger,
) *AuthenticationResolver {
	return &AuthenticationResolver{
		dns:     dns,
		cache:   cache,
		store:   store,
		cfg:     cfg,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

type mechanism struct {
	name     string
	sentinel string
	failure  string
	lookup   func(ctx context.Context, name string) (string, error)
}

func (r *AuthenticationResolver) mechanisms() [3]mechanism {
	return [3]mechanism{
		{"spf", domain.NoSPFRecord, domain.SPFLookupError, r.lookupSPF},
		{"dkim", domain.NoDKIMRecord, domain.DKIMLookupError, r.lookupDKIM},
		{"dmarc", domain.NoDMARCRecord, domain.DMARCLookupError, r.lookupDMARC},
	}
}

// ResolveDomain validates a user-supplied domain before resolving it
func (r *AuthenticationResolver) ResolveDomain(ctx context.Context, raw string) (domain.DomainAuthentication, error) {
	name, err := detection.ValidateDomain(raw)
	if err != nil {
		return domain.DomainAuthentication{}, err
	}
	return r.Resolve(ctx, name), nil
}

// Resolve returns the authentication tuple of a domain. It never fails:
// a sub-lookup that errors yields its error sentinel and the others proceed.
func (r *AuthenticationResolver) Resolve(ctx context.Context, name string) domain.DomainAuthentication {
	mechs := r.mechanisms()
	var records [3]domain.DNSRecord
	var cached [3]bool

	allCached := true
	for i, m := range mechs {
		records[i], cached[i] = r.fromCache(ctx, m, name)
		allCached = allCached && cached[i]
	}
	if allCached {
		return r.compose(name, records, r.now())
	}

	if stored := r.fromStore(ctx, name); stored != nil {
		r.remember(ctx, name, [3]domain.DNSRecord{stored.SPF, stored.DKIM, stored.DMARC})
		return *stored
	}

	var wg sync.WaitGroup
	for i, m := range mechs {
		if cached[i] {
			continue
		}
		wg.Add(1)
		go func(i int, m mechanism) {
			defer wg.Done()
			records[i] = r.resolveOne(ctx, m, name)
		}(i, m)
	}
	wg.Wait()

	auth := r.compose(name, records, r.now())
	r.remember(ctx, name, records)
	r.persist(ctx, auth)
	return auth
}

func (r *AuthenticationResolver) resolveOne(ctx context.Context, m mechanism, name string) domain.DNSRecord {
	value, err := m.lookup(ctx, name)
	if err != nil {
		r.logger.Warn("DNS lookup failed",
			zap.String("mechanism", m.name),
			zap.String("domain", name),
			zap.Error(err))
		return domain.DNSRecord{Value: m.failure, Lookup: domain.LookupError}
	}
	if value == "" {
		return domain.DNSRecord{Value: m.sentinel, Lookup: domain.LookupMissing}
	}
	return domain.DNSRecord{Value: value, Lookup: domain.LookupFound}
}

func (r *AuthenticationResolver) lookupSPF(ctx context.Context, name string) (string, error) {
	records, err := r.dns.LookupTXT(ctx, name)
	if err != nil {
		return "", err
	}
	return firstWithPrefix(records, "v=spf1"), nil
}

// Real selectors are chosen by the sender; only the configured common ones are tried
func (r *AuthenticationResolver) lookupDKIM(ctx context.Context, name string) (string, error) {
	for _, selector := range r.cfg.Selectors {
		records, err := r.dns.LookupTXT(ctx, selector+"._domainkey."+name)
		if err != nil {
			return "", fmt.Errorf("selector %s: %w", selector, err)
		}
		if joined := strings.Join(records, ""); joined != "" {
			return joined, nil
		}
	}
	return "", nil
}

func (r *AuthenticationResolver) lookupDMARC(ctx context.Context, name string) (string, error) {
	records, err := r.dns.LookupTXT(ctx, "_dmarc."+name)
	if err != nil {
		return "", err
	}
	return firstWithPrefix(records, "v=dmarc1"), nil
}

func (r *AuthenticationResolver) fromCache(ctx context.Context, m mechanism, name string) (domain.DNSRecord, bool) {
	if r.cache == nil {
		return domain.DNSRecord{}, false
	}
	value, ok := r.cache.Get(ctx, m.name+":"+name)
	r.metrics.DNSCacheLookup(telemetry.TierMemory, ok)
	if !ok {
		return domain.DNSRecord{}, false
	}
	r.logger.Debug("Cache hit for DNS record", zap.String("mechanism", m.name), zap.String("domain", name))
	if value == m.sentinel {
		return domain.DNSRecord{Value: value, Lookup: domain.LookupMissing}, true
	}
	return domain.DNSRecord{Value: value, Lookup: domain.LookupFound}, true
}

func (r *AuthenticationResolver) fromStore(ctx context.Context, name string) *domain.DomainAuthentication {
	if r.store == nil {
		return nil
	}
	stored, err := r.store.GetDomainAuthentication(ctx, name)
	if err != nil {
		r.logger.Warn("Failed to read stored domain authentication", zap.String("domain", name), zap.Error(err))
		return nil
	}
	hit := stored != nil && !stored.HasErrors() && r.now().Sub(stored.CreatedAt) < r.cfg.StoreTTL
	r.metrics.DNSCacheLookup(telemetry.TierDatabase, hit)
	if !hit {
		return nil
	}
	return stored
}

func (r *AuthenticationResolver) remember(ctx context.Context, name string, records [3]domain.DNSRecord) {
	if r.cache == nil {
		return
	}
	for i, m := range r.mechanisms() {
		if records[i].Lookup == domain.LookupError {
			continue
		}
		r.cache.Set(ctx, m.name+":"+name, records[i].Value, r.cfg.CacheTTL)
	}
}

func (r *AuthenticationResolver) persist(ctx context.Context, auth domain.DomainAuthentication) {
	if r.store == nil || auth.HasErrors() {
		return
	}
	if err := r.store.SaveDomainAuthentication(ctx, &auth); err != nil {
		r.logger.Warn("Failed to store domain authentication", zap.String("domain", auth.Domain), zap.Error(err))
	}
}

func (r *AuthenticationResolver) compose(name string, records [3]domain.DNSRecord, at time.Time) domain.DomainAuthentication {
	return domain.DomainAuthentication{
		Domain:    name,
		SPF:       records[0],
		DKIM:      records[1],
		DMARC:     records[2],
		Summary:   Summary(records[0], records[1], records[2]),
		CreatedAt: at,
	}
}

// Summary renders the legacy one-line view, where Pass means a record was found
// rather than that the policy evaluated to pass.
func Summary(spf, dkim, dmarc domain.DNSRecord) string {
	word := func(r domain.DNSRecord) string {
		switch r.Lookup {
		case domain.LookupFound:
			return "Pass"
		case domain.LookupError:
			return "Error"
		default:
			return "Fail"
		}
	}
	return fmt.Sprintf("SPF: %s, DKIM: %s, DMARC: %s", word(spf), word(dkim), word(dmarc))
}

func firstWithPrefix(records []string, prefix string) string {
	for _, rec := range records {
		if strings.HasPrefix(strings.ToLower(strings.TrimSpace(rec)), prefix) {
			return strings.TrimSpace(rec)
		}
	}
	return ""
}
