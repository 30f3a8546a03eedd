package detection

import (
	"regexp"
	"strings"

	"github.com/phishfinder/backend/internal/domain"
)

// SPF policy states derived from the "all" mechanism qualifier
const (
	SPFMissing  = "missing"
	SPFSoftfail = "softfail"
	SPFHardfail = "hardfail"
	SPFPass     = "pass"
	SPFNeutral  = "neutral"
)

// DMARC policies from the p= tag
const (
	DMARCNone       = "none"
	DMARCQuarantine = "quarantine"
	DMARCReject     = "reject"
	DMARCUnknown    = "unknown"
)

// DKIM presence states
const (
	DKIMPresent = "present"
	DKIMMissing = "missing"
)

// StatusUnknown is used when a lookup error leaves the policy undetermined
const StatusUnknown = "unknown"

var authResultRegex = regexp.MustCompile(`(?i)\b(spf|dkim|dmarc)\s*=\s*([a-z]+)`)

// ExtractSPFStatus reads the qualifier of the "all" mechanism of an SPF record.
// Anything that is not a v=spf1 record, including the sentinels, is "missing".
// A record without an "all" mechanism is "neutral".
func ExtractSPFStatus(record string) string {
	fields := strings.Fields(strings.ToLower(record))
	if len(fields) == 0 || fields[0] != "v=spf1" {
		return SPFMissing
	}

	for _, f := range fields[1:] {
		switch f {
		case "-all":
			return SPFHardfail
		case "~all":
			return SPFSoftfail
		case "+all", "all":
			return SPFPass
		case "?all":
			return SPFNeutral
		}
	}
	return SPFNeutral
}

// ExtractDMARCPolicy returns the p= policy of a DMARC record.
// A missing record means no policy, so "none". A record without a
// recognizable p= tag is "unknown".
func ExtractDMARCPolicy(record string) string {
	record = strings.TrimSpace(record)
	if record == "" || record == domain.NoDMARCRecord {
		return DMARCNone
	}
	if !strings.HasPrefix(strings.ToLower(record), "v=dmarc1") {
		return DMARCUnknown
	}

	for _, tag := range strings.Split(record, ";") {
		key, value, ok := strings.Cut(strings.TrimSpace(tag), "=")
		if !ok || !strings.EqualFold(strings.TrimSpace(key), "p") {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(value)) {
		case DMARCNone:
			return DMARCNone
		case DMARCQuarantine:
			return DMARCQuarantine
		case DMARCReject:
			return DMARCReject
		}
		return DMARCUnknown
	}
	return DMARCUnknown
}

// HeaderResults reads spf/dkim/dmarc verdicts from Authentication-Results
// and Received-SPF headers. Missing verdicts are absent from the map.
func HeaderResults(headers []domain.Header) map[string]string {
	results := make(map[string]string)
	for _, h := range headers {
		switch strings.ToLower(h.Name) {
		case "authentication-results", "arc-authentication-results":
			for _, m := range authResultRegex.FindAllStringSubmatch(h.Value, -1) {
				mech := strings.ToLower(m[1])
				if _, ok := results[mech]; !ok {
					results[mech] = strings.ToLower(m[2])
				}
			}
		case "received-spf":
			if _, ok := results["spf"]; ok {
				continue
			}
			if fields := strings.Fields(strings.ToLower(h.Value)); len(fields) > 0 {
				results["spf"] = fields[0]
			}
		}
	}
	return results
}

// BuildAuthentication combines resolved DNS records with header verdicts
// into the per-email authentication block.
func BuildAuthentication(auth domain.DomainAuthentication, headers []domain.Header) domain.Authentication {
	results := HeaderResults(headers)

	spf := domain.AuthRecord{Record: auth.SPF.Value, Lookup: auth.SPF.Lookup, Result: results["spf"]}
	switch auth.SPF.Lookup {
	case domain.LookupError:
		spf.Status = StatusUnknown
	default:
		spf.Status = ExtractSPFStatus(auth.SPF.Value)
	}

	dkim := domain.AuthRecord{Record: auth.DKIM.Value, Lookup: auth.DKIM.Lookup, Result: results["dkim"]}
	switch auth.DKIM.Lookup {
	case domain.LookupFound:
		dkim.Status = DKIMPresent
	case domain.LookupError:
		dkim.Status = StatusUnknown
	default:
		dkim.Status = DKIMMissing
	}

	dmarc := domain.AuthRecord{Record: auth.DMARC.Value, Lookup: auth.DMARC.Lookup, Result: results["dmarc"]}
	switch auth.DMARC.Lookup {
	case domain.LookupError:
		dmarc.Status = StatusUnknown
	case domain.LookupMissing:
		dmarc.Status = DMARCNone
	default:
		dmarc.Status = ExtractDMARCPolicy(auth.DMARC.Value)
	}

	return domain.Authentication{
		SPF:     spf,
		DKIM:    dkim,
		DMARC:   dmarc,
		Summary: auth.Summary,
	}
}

// SPFFailed reports whether SPF counts as failed for scoring.
// A receiver verdict wins over the published record. Without one, a missing
// record or a "+all" policy that authorizes any host is a failure.
func SPFFailed(a domain.Authentication) bool {
	switch a.SPF.Result {
	case "fail", "softfail", "permerror":
		return true
	case "pass":
		return false
	}
	return a.SPF.Status == SPFMissing || a.SPF.Status == SPFPass
}

// DKIMFailed reports whether DKIM counts as failed for scoring
func DKIMFailed(a domain.Authentication) bool {
	switch a.DKIM.Result {
	case "fail", "permerror":
		return true
	case "pass":
		return false
	}
	return a.DKIM.Status == DKIMMissing
}

// DMARCPolicyNone reports whether the sender domain publishes no enforcing DMARC policy
func DMARCPolicyNone(a domain.Authentication) bool {
	return a.DMARC.Status == DMARCNone
}
