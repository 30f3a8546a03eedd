package detection

import (
	"github.com/phishfinder/backend/internal/domain"
)

// DetectionStrategy is one independently capped component of the risk score
//
// Strategies are evaluated in registration order, and their reasons are
// concatenated in that order, so the order is part of the score's contract.
type DetectionStrategy interface {
	// Evaluate scores an analyzed email and explains each contributing factor
	Evaluate(email *domain.EmailRecord) Contribution

	// Cap is the maximum number of points this strategy may contribute
	Cap() int

	// Name returns the human-readable name of this strategy
	Name() string
}

// Contribution is the uncapped output of one strategy
type Contribution struct {
	Points  int
	Reasons []string
}

func (c *Contribution) add(points int, reason string) {
	c.Points += points
	c.Reasons = append(c.Reasons, reason)
}
