package ports

import "context"

// TXTResolver queries DNS TXT records
type TXTResolver interface {
	// LookupTXT returns the TXT strings published at name, each record's
	// character strings concatenated. A name that does not exist or has no
	// TXT records returns nil, nil; only resolution failures are errors.
	LookupTXT(ctx context.Context, name string) ([]string, error)
}
