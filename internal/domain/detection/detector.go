package detection

import (
	"time"

	"github.com/phishfinder/backend/internal/domain"
)

// MaxRiskScore bounds the total score regardless of strategy sub-totals
const MaxRiskScore = 100

// Detector combines the scoring strategies into one bounded risk assessment
//
// Each strategy covers one family of signals (authentication, links,
// content) and is capped before summation, so no single family can
// dominate the verdict.
type Detector struct {
	strategies []DetectionStrategy
	now        func() time.Time
}

// NewDetector creates a detector with the standard strategies in evaluation order:
// authentication, then links, then content.
func NewDetector() *Detector {
	return &Detector{
		strategies: []DetectionStrategy{
			NewAuthFailuresStrategy(),
			NewLinkStrategy(),
			NewContentStrategy(),
		},
		now: time.Now,
	}
}

// Score computes the risk assessment of an analyzed email
func (d *Detector) Score(email *domain.EmailRecord) domain.RiskAssessment {
	total := 0
	reasons := make([]string, 0)

	for _, strategy := range d.strategies {
		c := strategy.Evaluate(email)
		total += min(c.Points, strategy.Cap())
		reasons = append(reasons, c.Reasons...)
	}

	total = max(0, min(total, MaxRiskScore))

	return domain.RiskAssessment{
		Score:        total,
		Reasons:      reasons,
		RiskLevel:    domain.RiskLevel(total),
		CalculatedAt: d.now(),
	}
}
