package ports

import (
	"context"
	"io"

	"github.com/phishfinder/backend/internal/domain"
)

// EmailSource defines the contract for reading submissions from an external format
type EmailSource interface {
	// Load decodes every submission contained in r
	Load(ctx context.Context, r io.Reader) ([]domain.Submission, error)
}
