package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/phishfinder/backend/internal/adapters/cache"
	"github.com/phishfinder/backend/internal/adapters/storage"
	"github.com/phishfinder/backend/internal/domain"
	"github.com/phishfinder/backend/internal/telemetry"
)

var testSelectors = []string{"default", "selector1", "selector2"}

func newTestResolver(dns *fakeDNS, store *storage.MemoryStore) *AuthenticationResolver {
	return NewAuthenticationResolver(
		dns,
		cache.NewMemoryCache(zap.NewNop(), 0, 100),
		store,
		AuthResolverConfig{CacheTTL: time.Hour, StoreTTL: 24 * time.Hour, Selectors: testSelectors},
		telemetry.New(),
		zap.NewNop(),
	)
}

func publishedDNS() *fakeDNS {
	dns := newFakeDNS()
	dns.records["example.com"] = []string{"google-site-verification=abc", "v=spf1 include:_spf.example.com -all"}
	dns.records["selector1._domainkey.example.com"] = []string{"v=DKIM1; k=rsa; p=AB"}
	dns.records["_dmarc.example.com"] = []string{"v=DMARC1; p=reject"}
	return dns
}

func TestAuthenticationResolver_Found(t *testing.T) {
	dns := publishedDNS()
	auth := newTestResolver(dns, storage.NewMemoryStore()).Resolve(context.Background(), "example.com")

	assert.Equal(t, "example.com", auth.Domain)
	assert.Equal(t, domain.DNSRecord{Value: "v=spf1 include:_spf.example.com -all", Lookup: domain.LookupFound}, auth.SPF)
	assert.Equal(t, domain.DNSRecord{Value: "v=DKIM1; k=rsa; p=AB", Lookup: domain.LookupFound}, auth.DKIM)
	assert.Equal(t, domain.DNSRecord{Value: "v=DMARC1; p=reject", Lookup: domain.LookupFound}, auth.DMARC)
	assert.Equal(t, "SPF: Pass, DKIM: Pass, DMARC: Pass", auth.Summary)

	// Probing stops at the first selector with a record
	assert.Equal(t, 1, dns.count("default._domainkey.example.com"))
	assert.Equal(t, 1, dns.count("selector1._domainkey.example.com"))
	assert.Equal(t, 0, dns.count("selector2._domainkey.example.com"))
}

func TestAuthenticationResolver_MemoryTier(t *testing.T) {
	ctx := context.Background()
	dns := publishedDNS()
	r := newTestResolver(dns, storage.NewMemoryStore())

	first := r.Resolve(ctx, "example.com")
	calls := dns.total()
	second := r.Resolve(ctx, "example.com")

	assert.Equal(t, calls, dns.total())
	assert.Equal(t, first.SPF, second.SPF)
	assert.Equal(t, first.Summary, second.Summary)
}

func TestAuthenticationResolver_StoreTier(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	dns := publishedDNS()

	newTestResolver(dns, store).Resolve(ctx, "example.com")
	calls := dns.total()

	// A fresh resolver has an empty memory tier but shares the store
	auth := newTestResolver(dns, store).Resolve(ctx, "example.com")
	assert.Equal(t, calls, dns.total())
	assert.Equal(t, domain.LookupFound, auth.DKIM.Lookup)
}

func TestAuthenticationResolver_StaleStoreIsIgnored(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	require.NoError(t, store.SaveDomainAuthentication(ctx, &domain.DomainAuthentication{
		Domain:    "example.com",
		SPF:       domain.DNSRecord{Value: "v=spf1 +all", Lookup: domain.LookupFound},
		DKIM:      domain.DNSRecord{Value: domain.NoDKIMRecord, Lookup: domain.LookupMissing},
		DMARC:     domain.DNSRecord{Value: domain.NoDMARCRecord, Lookup: domain.LookupMissing},
		CreatedAt: time.Now().Add(-25 * time.Hour),
	}))

	dns := publishedDNS()
	auth := newTestResolver(dns, store).Resolve(ctx, "example.com")

	assert.Equal(t, 1, dns.count("example.com"))
	assert.Equal(t, "v=spf1 include:_spf.example.com -all", auth.SPF.Value)
}

func TestAuthenticationResolver_MissingRecordsAreCached(t *testing.T) {
	ctx := context.Background()
	dns := newFakeDNS()
	r := newTestResolver(dns, storage.NewMemoryStore())

	auth := r.Resolve(ctx, "empty.test")
	assert.Equal(t, domain.DNSRecord{Value: domain.NoSPFRecord, Lookup: domain.LookupMissing}, auth.SPF)
	assert.Equal(t, domain.DNSRecord{Value: domain.NoDKIMRecord, Lookup: domain.LookupMissing}, auth.DKIM)
	assert.Equal(t, domain.DNSRecord{Value: domain.NoDMARCRecord, Lookup: domain.LookupMissing}, auth.DMARC)
	assert.Equal(t, "SPF: Fail, DKIM: Fail, DMARC: Fail", auth.Summary)
	assert.Equal(t, 3, dns.count("default._domainkey.empty.test")+dns.count("selector1._domainkey.empty.test")+dns.count("selector2._domainkey.empty.test"))

	calls := dns.total()
	again := r.Resolve(ctx, "empty.test")
	assert.Equal(t, calls, dns.total())
	assert.Equal(t, domain.LookupMissing, again.SPF.Lookup)
}

func TestAuthenticationResolver_ErrorsFailOpen(t *testing.T) {
	ctx := context.Background()
	servfail := errors.New("SERVFAIL")
	dns := newFakeDNS()
	dns.errs["down.test"] = servfail
	dns.errs["default._domainkey.down.test"] = servfail
	dns.errs["_dmarc.down.test"] = servfail

	store := storage.NewMemoryStore()
	r := newTestResolver(dns, store)

	auth := r.Resolve(ctx, "down.test")
	assert.Equal(t, domain.DNSRecord{Value: domain.SPFLookupError, Lookup: domain.LookupError}, auth.SPF)
	assert.Equal(t, domain.DNSRecord{Value: domain.DKIMLookupError, Lookup: domain.LookupError}, auth.DKIM)
	assert.Equal(t, domain.DNSRecord{Value: domain.DMARCLookupError, Lookup: domain.LookupError}, auth.DMARC)
	assert.Equal(t, "SPF: Error, DKIM: Error, DMARC: Error", auth.Summary)

	// A failed selector ends the selector scan
	assert.Equal(t, 0, dns.count("selector1._domainkey.down.test"))

	// Errors are not cached at either tier
	stored, err := store.GetDomainAuthentication(ctx, "down.test")
	require.NoError(t, err)
	assert.Nil(t, stored)

	r.Resolve(ctx, "down.test")
	assert.Equal(t, 2, dns.count("down.test"))
}

func TestAuthenticationResolver_PartialFailure(t *testing.T) {
	dns := publishedDNS()
	dns.errs["_dmarc.example.com"] = errors.New("timeout")

	auth := newTestResolver(dns, storage.NewMemoryStore()).Resolve(context.Background(), "example.com")
	assert.Equal(t, domain.LookupFound, auth.SPF.Lookup)
	assert.Equal(t, domain.LookupFound, auth.DKIM.Lookup)
	assert.Equal(t, domain.LookupError, auth.DMARC.Lookup)
	assert.Equal(t, "SPF: Pass, DKIM: Pass, DMARC: Error", auth.Summary)
}

func TestAuthenticationResolver_ResolveDomain(t *testing.T) {
	r := newTestResolver(publishedDNS(), storage.NewMemoryStore())

	tests := []struct {
		name      string
		input     string
		expectErr bool
	}{
		{"Valid", "Example.COM", false},
		{"Trailing dot", "example.com.", false},
		{"Injection", "example.com; rm -rf /", true},
		{"Empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auth, err := r.ResolveDomain(context.Background(), tt.input)
			if tt.expectErr {
				assert.True(t, errors.Is(err, domain.ErrInvalidDomain))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "example.com", auth.Domain)
		})
	}
}
