package domain

// Threat categories returned by the threat-intelligence API
const (
	ThreatMalware                       = "MALWARE"
	ThreatSocialEngineering             = "SOCIAL_ENGINEERING"
	ThreatUnwantedSoftware              = "UNWANTED_SOFTWARE"
	ThreatPotentiallyHarmfulApplication = "POTENTIALLY_HARMFUL_APPLICATION"
)

// NewEmailEntry summarizes a record for a sender profile.
// Bodies longer than maxBody runes are truncated; maxBody <= 0 keeps the full body.
func NewEmailEntry(record *EmailRecord, maxBody int) EmailEntry {
	body := record.Body
	if maxBody > 0 {
		if runes := []rune(body); len(runes) > maxBody {
			body = string(runes[:maxBody])
		}
	}

	return EmailEntry{
		ID:             record.ID,
		Subject:        record.Subject,
		Timestamp:      record.Timestamp,
		Body:           body,
		ExtractedURLs:  record.ExtractedURLs,
		IsFlagged:      record.Flags.Flagged(),
		Flags:          record.Flags,
		Authentication: record.Authentication,
		Labels:         record.Labels,
	}
}

// MetricsDelta is the contribution of one email to its sender's counters
func MetricsDelta(record *EmailRecord) SecurityMetrics {
	delta := SecurityMetrics{
		TotalEmails:         1,
		SuspiciousLinkCount: len(record.URLMismatches),
	}
	if record.Flags.Flagged() {
		delta.SuspiciousEmails = 1
	}
	if record.Flags.HasSuspiciousPatterns {
		delta.SuspiciousKeywordCount = 1
	}
	for _, u := range record.ExtractedURLs {
		switch u.ThreatType {
		case ThreatSocialEngineering:
			delta.PhishingLinkCount++
		case ThreatUnwantedSoftware:
			delta.UnwantedSoftwareCount++
		}
	}
	return delta
}

// Add returns the element-wise sum of two counter sets
func (m SecurityMetrics) Add(other SecurityMetrics) SecurityMetrics {
	return SecurityMetrics{
		TotalEmails:            m.TotalEmails + other.TotalEmails,
		SuspiciousEmails:       m.SuspiciousEmails + other.SuspiciousEmails,
		SuspiciousLinkCount:    m.SuspiciousLinkCount + other.SuspiciousLinkCount,
		PhishingLinkCount:      m.PhishingLinkCount + other.PhishingLinkCount,
		UnwantedSoftwareCount:  m.UnwantedSoftwareCount + other.UnwantedSoftwareCount,
		SuspiciousKeywordCount: m.SuspiciousKeywordCount + other.SuspiciousKeywordCount,
	}
}
