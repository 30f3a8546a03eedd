package ports

import "context"

// ThreatVerdict is the threat-intelligence outcome for one URL
type ThreatVerdict struct {
	URL        string
	Suspicious bool
	ThreatType string
}

// ThreatCheck is the outcome of one batched lookup
type ThreatCheck struct {
	Verdicts []ThreatVerdict
	// Failed is set when the upstream call failed and every verdict is a fail-open default
	Failed bool
}

// ThreatChecker classifies URLs against a threat-intelligence service
type ThreatChecker interface {
	// Check returns one verdict per distinct input URL, in first-seen order.
	// The only error is domain.ErrThreatAPINotConfigured; upstream failures
	// are reported through ThreatCheck.Failed.
	Check(ctx context.Context, urls []string) (ThreatCheck, error)
}
