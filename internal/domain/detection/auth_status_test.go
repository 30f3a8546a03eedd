package detection

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/phishfinder/backend/internal/domain"
)

func TestExtractSPFStatus(t *testing.T) {
	tests := []struct {
		record   string
		expected string
	}{
		{"v=spf1 include:_spf.google.com -all", SPFHardfail},
		{"v=spf1 ip4:192.0.2.0/24 ~all", SPFSoftfail},
		{"v=spf1 +all", SPFPass},
		{"v=spf1 ?all", SPFNeutral},
		{"v=spf1 a mx", SPFNeutral},
		{"V=SPF1 -ALL", SPFHardfail},
		{domain.NoSPFRecord, SPFMissing},
		{domain.SPFLookupError, SPFMissing},
		{"", SPFMissing},
		{"v=spf2 -all", SPFMissing},
	}

	for _, tt := range tests {
		t.Run(tt.record, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExtractSPFStatus(tt.record))
		})
	}
}

func TestExtractDMARCPolicy(t *testing.T) {
	tests := []struct {
		record   string
		expected string
	}{
		{"v=DMARC1; p=reject; rua=mailto:dmarc@example.com", DMARCReject},
		{"v=DMARC1; p=quarantine", DMARCQuarantine},
		{"v=DMARC1; p=none", DMARCNone},
		{"v=DMARC1;p=REJECT", DMARCReject},
		{"v=DMARC1; rua=mailto:dmarc@example.com", DMARCUnknown},
		{"v=DMARC1; p=bogus", DMARCUnknown},
		{"garbage", DMARCUnknown},
		{domain.NoDMARCRecord, DMARCNone},
		{"", DMARCNone},
	}

	for _, tt := range tests {
		t.Run(tt.record, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExtractDMARCPolicy(tt.record))
		})
	}
}

func TestHeaderResults(t *testing.T) {
	t.Run("Authentication-Results wins over Received-SPF", func(t *testing.T) {
		headers := []domain.Header{
			{Name: "Authentication-Results", Value: "mx.example.net; spf=pass smtp.mailfrom=example.com; dkim=fail header.d=example.com; dmarc=none"},
			{Name: "Received-SPF", Value: "softfail (domain of transitioning sender)"},
		}

		assert.Equal(t, map[string]string{
			"spf":   "pass",
			"dkim":  "fail",
			"dmarc": "none",
		}, HeaderResults(headers))
	})

	t.Run("Received-SPF alone", func(t *testing.T) {
		headers := []domain.Header{{Name: "received-spf", Value: "Pass (example.net: domain designates 192.0.2.1)"}}
		assert.Equal(t, map[string]string{"spf": "pass"}, HeaderResults(headers))
	})

	t.Run("No authentication headers", func(t *testing.T) {
		assert.Empty(t, HeaderResults([]domain.Header{{Name: "Subject", Value: "spf=fail"}}))
	})
}

func TestBuildAuthentication(t *testing.T) {
	found := func(v string) domain.DNSRecord { return domain.DNSRecord{Value: v, Lookup: domain.LookupFound} }

	tests := []struct {
		name        string
		auth        domain.DomainAuthentication
		headers     []domain.Header
		spfStatus   string
		dkimStatus  string
		dmarcStatus string
		spfFailed   bool
		dkimFailed  bool
		dmarcNone   bool
	}{
		{
			name: "Hardfail SPF with DKIM and a p=none DMARC",
			auth: domain.DomainAuthentication{
				SPF:   found("v=spf1 include:_spf.example.com -all"),
				DKIM:  found("v=DKIM1; k=rsa; p=MIGf"),
				DMARC: found("v=DMARC1; p=none"),
			},
			spfStatus:   SPFHardfail,
			dkimStatus:  DKIMPresent,
			dmarcStatus: DMARCNone,
			dmarcNone:   true,
		},
		{
			name: "Nothing published",
			auth: domain.DomainAuthentication{
				SPF:   domain.DNSRecord{Value: domain.NoSPFRecord, Lookup: domain.LookupMissing},
				DKIM:  domain.DNSRecord{Value: domain.NoDKIMRecord, Lookup: domain.LookupMissing},
				DMARC: domain.DNSRecord{Value: domain.NoDMARCRecord, Lookup: domain.LookupMissing},
			},
			spfStatus:   SPFMissing,
			dkimStatus:  DKIMMissing,
			dmarcStatus: DMARCNone,
			spfFailed:   true,
			dkimFailed:  true,
			dmarcNone:   true,
		},
		{
			name: "Lookup errors do not count as failures",
			auth: domain.DomainAuthentication{
				SPF:   domain.DNSRecord{Value: domain.SPFLookupError, Lookup: domain.LookupError},
				DKIM:  domain.DNSRecord{Value: domain.DKIMLookupError, Lookup: domain.LookupError},
				DMARC: domain.DNSRecord{Value: domain.DMARCLookupError, Lookup: domain.LookupError},
			},
			spfStatus:   StatusUnknown,
			dkimStatus:  StatusUnknown,
			dmarcStatus: StatusUnknown,
		},
		{
			name: "Receiver verdict overrides published records",
			auth: domain.DomainAuthentication{
				SPF:   found("v=spf1 -all"),
				DKIM:  domain.DNSRecord{Value: domain.NoDKIMRecord, Lookup: domain.LookupMissing},
				DMARC: found("v=DMARC1; p=reject"),
			},
			headers: []domain.Header{
				{Name: "Authentication-Results", Value: "mx.example.net; spf=fail; dkim=pass"},
			},
			spfStatus:   SPFHardfail,
			dkimStatus:  DKIMMissing,
			dmarcStatus: DMARCReject,
			spfFailed:   true,
		},
		{
			name: "Permissive SPF counts as failed",
			auth: domain.DomainAuthentication{
				SPF:   found("v=spf1 +all"),
				DKIM:  found("v=DKIM1; p=abc"),
				DMARC: found("v=DMARC1; p=quarantine"),
			},
			spfStatus:   SPFPass,
			dkimStatus:  DKIMPresent,
			dmarcStatus: DMARCQuarantine,
			spfFailed:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := BuildAuthentication(tt.auth, tt.headers)

			assert.Equal(t, tt.spfStatus, a.SPF.Status)
			assert.Equal(t, tt.dkimStatus, a.DKIM.Status)
			assert.Equal(t, tt.dmarcStatus, a.DMARC.Status)
			assert.Equal(t, tt.auth.SPF.Value, a.SPF.Record)
			assert.Equal(t, tt.spfFailed, SPFFailed(a))
			assert.Equal(t, tt.dkimFailed, DKIMFailed(a))
			assert.Equal(t, tt.dmarcNone, DMARCPolicyNone(a))
		})
	}
}

func TestZeroAuthenticationDoesNotScore(t *testing.T) {
	var a domain.Authentication
	assert.False(t, SPFFailed(a))
	assert.False(t, DKIMFailed(a))
	assert.False(t, DMARCPolicyNone(a))
}
