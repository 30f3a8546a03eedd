package detection

import (
	"fmt"

	"github.com/phishfinder/backend/internal/domain"
)

const (
	pointsPerPattern = 5
	maxPatternPoints = 20
)

// ContentStrategy scores suspicious language and social-engineering cues
type ContentStrategy struct{}

// NewContentStrategy creates a new content scoring strategy
func NewContentStrategy() *ContentStrategy {
	return &ContentStrategy{}
}

// Name returns the strategy name
func (s *ContentStrategy) Name() string {
	return "Content Analysis"
}

// Cap returns the maximum content contribution
func (s *ContentStrategy) Cap() int {
	return 40
}

// Evaluate adds 5 per matched pattern category (at most 20), 10 for multiple
// recipients and 10 when the email asks for a reply.
func (s *ContentStrategy) Evaluate(email *domain.EmailRecord) Contribution {
	var c Contribution

	if n := PatternCategories(email.SuspiciousPatterns); n > 0 {
		c.add(min(n*pointsPerPattern, maxPatternPoints), fmt.Sprintf("%d suspicious patterns detected", n))
	}
	if email.Flags.HasMultipleRecipients {
		c.add(10, "Multiple recipients")
	}
	if email.RequiresResponse {
		c.add(10, "Response required")
	}

	return c
}
