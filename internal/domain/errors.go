package domain

import "errors"

var (
	// ErrInvalidInput is returned when a submission is missing or malformed
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidDomain is returned when a domain fails syntax validation
	ErrInvalidDomain = errors.New("invalid domain format")

	// ErrNotFound is returned when a requested record does not exist
	ErrNotFound = errors.New("not found")

	// ErrThreatAPINotConfigured is returned when no threat-intelligence API key is set
	ErrThreatAPINotConfigured = errors.New("threat intelligence API key is not configured")

	// ErrWhoisUnavailable is returned when the WHOIS service fails or answers non-2xx
	ErrWhoisUnavailable = errors.New("whois service unavailable")
)
