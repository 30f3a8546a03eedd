package ports

import (
	"context"
	"time"
)

// Cache is a string key/value store with per-entry expiry.
// Implementations log their own backend failures and report them as misses.
type Cache interface {
	// Get returns the value and true if the key is present and unexpired
	Get(ctx context.Context, key string) (string, bool)

	// Set stores a value that expires after ttl
	Set(ctx context.Context, key, value string, ttl time.Duration)

	// Stop releases background tasks and connections
	Stop()
}
