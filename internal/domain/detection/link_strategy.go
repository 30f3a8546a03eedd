package detection

import (
	"github.com/phishfinder/backend/internal/domain"
)

// LinkStrategy scores flagged, mismatched and external links
type LinkStrategy struct{}

// NewLinkStrategy creates a new link scoring strategy
func NewLinkStrategy() *LinkStrategy {
	return &LinkStrategy{}
}

// Name returns the strategy name
func (s *LinkStrategy) Name() string {
	return "Link Analysis"
}

// Cap returns the maximum link contribution
func (s *LinkStrategy) Cap() int {
	return 30
}

// Evaluate adds 15 for a threat-intelligence hit, 10 for a label/target mismatch and 5 for external links
func (s *LinkStrategy) Evaluate(email *domain.EmailRecord) Contribution {
	var c Contribution
	flags := email.Flags

	if flags.SafeBrowsingFlag {
		c.add(15, "Unsafe URLs detected")
	}
	if flags.HasURLMismatches {
		c.add(10, "URL mismatches found")
	}
	if flags.HasExternalURLs {
		c.add(5, "External URLs present")
	}

	return c
}
