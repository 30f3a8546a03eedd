package providers

import (
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/phishfinder/backend/internal/ports"
)

// Supported submission formats
const (
	FormatJSON = "json"
	FormatEML  = "eml"
)

// Registry maps a submission format to its reader
type Registry struct {
	sources map[string]ports.EmailSource
}

// NewRegistry creates a registry with every supported format
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		sources: map[string]ports.EmailSource{
			FormatJSON: NewJSONSource(),
			FormatEML:  NewEMLSource(logger),
		},
	}
}

// Source returns the reader for a format
func (r *Registry) Source(format string) (ports.EmailSource, error) {
	source, ok := r.sources[strings.ToLower(format)]
	if !ok {
		return nil, fmt.Errorf("unsupported submission format: %q", format)
	}
	return source, nil
}

// ForPath picks a reader by file extension
func (r *Registry) ForPath(path string) (ports.EmailSource, error) {
	return r.Source(strings.TrimPrefix(filepath.Ext(path), "."))
}
