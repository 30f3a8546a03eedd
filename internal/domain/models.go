package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Risk levels produced by the scorer
const (
	RiskLow    = "low"
	RiskMedium = "medium"
	RiskHigh   = "high"
)

// Sentinel values stored in place of a DNS record.
// "No ... record found" means the lookup completed and nothing was published,
// "Error fetching ..." means the lookup itself failed and the answer is unknown.
const (
	NoSPFRecord   = "No SPF record found"
	NoDKIMRecord  = "No DKIM record found"
	NoDMARCRecord = "No DMARC record found"

	SPFLookupError   = "Error fetching SPF record"
	DKIMLookupError  = "Error fetching DKIM record"
	DMARCLookupError = "Error fetching DMARC record"
)

// LookupState tells whether a DNS record was found, confirmed absent, or could not be resolved
type LookupState string

const (
	LookupFound   LookupState = "found"
	LookupMissing LookupState = "missing"
	LookupError   LookupState = "error"
)

// Sender identifies who sent an email
type Sender struct {
	Address      string          `json:"address"`
	Domain       string          `json:"domain"`
	DisplayName  string          `json:"displayName"`
	Organization string          `json:"organization,omitempty"`
	WhoisData    json.RawMessage `json:"whoisData,omitempty"`
}

// Recipient is one parsed entry of an address list
type Recipient struct {
	Address     string `json:"address"`
	DisplayName string `json:"displayName,omitempty"`
	Domain      string `json:"domain,omitempty"`
}

// Receiver groups the primary recipient and the copied address lists
type Receiver struct {
	Address string      `json:"address"`
	Domain  string      `json:"domain"`
	To      []Recipient `json:"to,omitempty"`
	CC      []Recipient `json:"cc,omitempty"`
	BCC     []Recipient `json:"bcc,omitempty"`
}

// Count returns the number of distinct recipients across to, cc and bcc
func (r Receiver) Count() int {
	seen := make(map[string]struct{})
	add := func(addr string) {
		if addr != "" {
			seen[addr] = struct{}{}
		}
	}
	add(r.Address)
	for _, list := range [][]Recipient{r.To, r.CC, r.BCC} {
		for _, rcpt := range list {
			add(rcpt.Address)
		}
	}
	return len(seen)
}

// Header is a single raw message header as supplied by the mail client
type Header struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// ExtractedURL is one deduplicated URL found in an email body
type ExtractedURL struct {
	URL        string `json:"url"`
	Suspicious bool   `json:"suspicious"`
	ThreatType string `json:"threatType,omitempty"`
}

// URLMismatch is a link whose visible label points somewhere other than its target
type URLMismatch struct {
	DisplayedURL  string `json:"displayedUrl"`
	ActualURL     string `json:"actualUrl"`
	DisplayDomain string `json:"displayDomain"`
	ActualDomain  string `json:"actualDomain"`
}

// SuspiciousPattern is one pattern category matched in one location (subject or body)
type SuspiciousPattern struct {
	Type     string   `json:"type"`
	Location string   `json:"location"`
	Matches  []string `json:"matches"`
}

// DNSRecord is a raw TXT answer, or one of the sentinels, plus the lookup outcome
type DNSRecord struct {
	Value  string      `json:"value"`
	Lookup LookupState `json:"lookup"`
}

// DomainAuthentication is the resolved SPF/DKIM/DMARC tuple for one domain
type DomainAuthentication struct {
	Domain    string    `json:"domain"`
	SPF       DNSRecord `json:"spf"`
	DKIM      DNSRecord `json:"dkim"`
	DMARC     DNSRecord `json:"dmarc"`
	Summary   string    `json:"summary"`
	CreatedAt time.Time `json:"createdAt"`
}

// HasErrors reports whether any sub-lookup failed
func (a DomainAuthentication) HasErrors() bool {
	return a.SPF.Lookup == LookupError || a.DKIM.Lookup == LookupError || a.DMARC.Lookup == LookupError
}

// AuthRecord keeps presence (Lookup), the policy read from the record (Status)
// and the verdict reported by the receiving server's headers (Result) apart.
type AuthRecord struct {
	Record string      `json:"record"`
	Lookup LookupState `json:"lookup"`
	Status string      `json:"status"`
	Result string      `json:"result,omitempty"`
}

// Authentication is the per-email authentication verdict
type Authentication struct {
	SPF     AuthRecord `json:"spf"`
	DKIM    AuthRecord `json:"dkim"`
	DMARC   AuthRecord `json:"dmarc"`
	Summary string     `json:"summary"`
}

// Flags are the boolean signals fed into the risk score
type Flags struct {
	SafeBrowsingFlag      bool `json:"safebrowsingFlag"`
	ThreatCheckFailed     bool `json:"threatCheckFailed"`
	HasExternalURLs       bool `json:"hasExternalUrls"`
	HasMultipleRecipients bool `json:"hasMultipleRecipients"`
	HasSuspiciousPatterns bool `json:"hasSuspiciousPatterns"`
	HasURLMismatches      bool `json:"hasUrlMismatches"`
}

// Flagged reports whether the email should count as suspicious in sender aggregates
func (f Flags) Flagged() bool {
	return f.SafeBrowsingFlag || f.HasSuspiciousPatterns || f.HasURLMismatches
}

// RiskAssessment is the output of the risk scorer
type RiskAssessment struct {
	Score        int       `json:"score"`
	Reasons      []string  `json:"reasons"`
	RiskLevel    string    `json:"riskLevel"`
	CalculatedAt time.Time `json:"calculatedAt"`
}

// TextMetrics describes the body before and after cleaning
type TextMetrics struct {
	OriginalLength int `json:"originalLength"`
	CleanedLength  int `json:"cleanedLength"`
	WordCount      int `json:"wordCount"`
	Sentences      int `json:"sentences"`
}

// EmailRecord is one analyzed email.
//
// ID is supplied by the caller and is unique across the store. RecordID is
// the identity assigned by storage on first insert.
type EmailRecord struct {
	RecordID           uuid.UUID           `json:"recordId"`
	ID                 string              `json:"id"`
	Sender             Sender              `json:"sender"`
	Receiver           Receiver            `json:"receiver"`
	Subject            string              `json:"subject"`
	Body               string              `json:"body"`
	Labels             []string            `json:"labels,omitempty"`
	ExtractedURLs      []ExtractedURL      `json:"extractedUrls"`
	URLMismatches      []URLMismatch       `json:"urlMismatches"`
	SuspiciousPatterns []SuspiciousPattern `json:"suspiciousPatterns"`
	Authentication     Authentication      `json:"authentication"`
	Flags              Flags               `json:"flags"`
	RequiresResponse   bool                `json:"requiresResponse"`
	Risk               *RiskAssessment     `json:"riskScore,omitempty"`
	TextMetrics        TextMetrics         `json:"textMetrics"`
	Timestamp          time.Time           `json:"timestamp"`
	ProcessedAt        time.Time           `json:"processedAt"`

	SenderProfileProcessed bool       `json:"senderProfileProcessed"`
	WhoisLastUpdated       *time.Time `json:"whoisLastUpdated,omitempty"`
}

// EmailEntry is the summary of one email kept on a sender profile
type EmailEntry struct {
	ID             string         `json:"id"`
	Subject        string         `json:"subject"`
	Timestamp      time.Time      `json:"timestamp"`
	Body           string         `json:"body"`
	ExtractedURLs  []ExtractedURL `json:"extractedUrls"`
	IsFlagged      bool           `json:"isFlagged"`
	Flags          Flags          `json:"flags"`
	Authentication Authentication `json:"authentication"`
	Labels         []string       `json:"labels,omitempty"`
}

// SecurityMetrics are the running counters on a sender profile
type SecurityMetrics struct {
	TotalEmails            int `json:"totalEmails"`
	SuspiciousEmails       int `json:"suspiciousEmails"`
	SuspiciousLinkCount    int `json:"suspiciousLinkCount"`
	PhishingLinkCount      int `json:"phishingLinkCount"`
	UnwantedSoftwareCount  int `json:"unwantedSoftwareCount"`
	SuspiciousKeywordCount int `json:"suspiciousKeywordCount"`
}

// SenderProfile aggregates every email seen from one sender address
type SenderProfile struct {
	ID                 uuid.UUID       `json:"id"`
	Sender             Sender          `json:"sender"`
	Emails             []EmailEntry    `json:"emails"`
	SecurityMetrics    SecurityMetrics `json:"securityMetrics"`
	LastAuthentication Authentication  `json:"lastAuthenticationStatus"`
	CreatedAt          time.Time       `json:"created"`
	LastUpdated        time.Time       `json:"lastUpdated"`
}

// WhoisRecord is cached registration data for a registrable domain
type WhoisRecord struct {
	Domain    string          `json:"domain"`
	Data      json.RawMessage `json:"whoisData"`
	CreatedAt time.Time       `json:"createdAt"`
}

// Submission is an email handed to the analysis pipeline
type Submission struct {
	ID        string    `json:"id"`
	Sender    Sender    `json:"sender"`
	To        string    `json:"to,omitempty"`
	CC        string    `json:"cc,omitempty"`
	BCC       string    `json:"bcc,omitempty"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	HTMLBody  string    `json:"htmlBody,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Headers   []Header  `json:"headers,omitempty"`
	Labels    []string  `json:"labels,omitempty"`
}

// Content returns the richest body available, preferring the HTML part
func (s Submission) Content() string {
	if s.HTMLBody != "" {
		return s.HTMLBody
	}
	return s.Body
}

// ProfileUpdate reports the outcome of the sender profile side effect
type ProfileUpdate struct {
	Updated bool   `json:"updated"`
	Error   string `json:"error,omitempty"`
}

// AnalysisResult is returned to the caller of the analysis pipeline
type AnalysisResult struct {
	RecordID  uuid.UUID     `json:"recordId"`
	ID        string        `json:"id"`
	Duplicate bool          `json:"duplicate"`
	Analysis  *EmailRecord  `json:"analysis"`
	Profile   ProfileUpdate `json:"profile"`
}

// DailyStat is one day of the metrics dashboard
type DailyStat struct {
	Date          string `json:"date"`
	TotalEmails   int    `json:"totalEmails"`
	FlaggedEmails int    `json:"flaggedEmails"`
}

// EmailStats are the aggregate counts over a time window
type EmailStats struct {
	TotalEmails      int     `json:"totalEmails"`
	FlaggedEmails    int     `json:"flaggedEmails"`
	URLCount         int     `json:"suspiciousUrls"`
	AverageRiskScore float64 `json:"averageRiskScore"`
}

// MetricsSummary is the dashboard payload for one time range
type MetricsSummary struct {
	TimeRange              string      `json:"timeRange"`
	TotalEmails            int         `json:"totalEmails"`
	PreviousTotalEmails    int         `json:"previousTotalEmails"`
	FlaggedEmails          int         `json:"flaggedEmails"`
	AverageRiskScore       float64     `json:"averageRiskScore"`
	SuspiciousURLs         int         `json:"suspiciousUrls"`
	PreviousSuspiciousURLs int         `json:"previousSuspiciousUrls"`
	DailyStats             []DailyStat `json:"dailyStats"`
}

// RiskLevel converts a 0-100 risk score to a categorical level
func RiskLevel(score int) string {
	switch {
	case score < 30:
		return RiskLow
	case score < 60:
		return RiskMedium
	default:
		return RiskHigh
	}
}
