package whois

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/phishfinder/backend/internal/domain"
	"github.com/phishfinder/backend/internal/ports"
)

var _ ports.WhoisFetcher = (*Client)(nil)

func TestClient_Fetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/example.com":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"registrar":"Example Registrar","created":"1995-08-14"}`))
		case "/broken.test":
			w.WriteHeader(http.StatusBadGateway)
		case "/text.test":
			_, _ = w.Write([]byte("not json"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	c := NewClient(server.URL+"/", time.Second, zap.NewNop())

	tests := []struct {
		name     string
		domain   string
		expected string
		wantErr  bool
	}{
		{"Registration payload", "example.com", `{"registrar":"Example Registrar","created":"1995-08-14"}`, false},
		{"Upstream error", "broken.test", "", true},
		{"Unknown domain", "missing.test", "", true},
		{"Non-JSON payload", "text.test", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := c.Fetch(context.Background(), tt.domain)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, domain.ErrWhoisUnavailable)
				return
			}
			require.NoError(t, err)
			assert.JSONEq(t, tt.expected, string(data))
		})
	}
}

func TestClient_Fetch_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	addr := server.URL
	server.Close()

	_, err := NewClient(addr, time.Second, zap.NewNop()).Fetch(context.Background(), "example.com")
	assert.ErrorIs(t, err, domain.ErrWhoisUnavailable)
}
