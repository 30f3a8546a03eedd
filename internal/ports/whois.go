package ports

import (
	"context"
	"encoding/json"
)

// WhoisFetcher retrieves registration data for a domain from an external service
type WhoisFetcher interface {
	// Fetch returns the raw JSON payload. Any failure wraps domain.ErrWhoisUnavailable.
	Fetch(ctx context.Context, rootDomain string) (json.RawMessage, error)
}
