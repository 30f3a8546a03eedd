package detection

import (
	"github.com/phishfinder/backend/internal/domain"
)

// AuthFailuresStrategy scores weak or failed sender authentication
//
// SPF, DKIM and DMARC let a domain owner declare who may send on its behalf.
// A domain that publishes none of them, or whose mail failed the receiver's
// checks, is easy to spoof.
type AuthFailuresStrategy struct{}

// NewAuthFailuresStrategy creates a new authentication scoring strategy
func NewAuthFailuresStrategy() *AuthFailuresStrategy {
	return &AuthFailuresStrategy{}
}

// Name returns the strategy name
func (s *AuthFailuresStrategy) Name() string {
	return "Authentication Failures"
}

// Cap returns the maximum authentication contribution
func (s *AuthFailuresStrategy) Cap() int {
	return 30
}

// Evaluate adds 10 points each for a failed SPF, a failed DKIM and a missing DMARC policy
func (s *AuthFailuresStrategy) Evaluate(email *domain.EmailRecord) Contribution {
	var c Contribution
	auth := email.Authentication

	if SPFFailed(auth) {
		c.add(10, "SPF authentication failed")
	}
	if DKIMFailed(auth) {
		c.add(10, "DKIM authentication failed")
	}
	if DMARCPolicyNone(auth) {
		c.add(10, "No DMARC policy")
	}

	return c
}
