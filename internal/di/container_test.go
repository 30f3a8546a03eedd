package di

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/phishfinder/backend/internal/adapters/httpapi"
	"github.com/phishfinder/backend/internal/application"
	"github.com/phishfinder/backend/internal/config"
	"github.com/phishfinder/backend/internal/ports"
)

func testConfig(overrides map[string]interface{}) *config.Config {
	cfg := config.NewFromViper(config.NewEmptyViper())
	cfg.Set("storage.type", "memory")
	cfg.Set("dns.server", "127.0.0.1:53")
	for k, v := range overrides {
		cfg.Set(k, v)
	}
	return cfg
}

func TestBuildContainer_ResolvesEverything(t *testing.T) {
	container, err := BuildContainer(testConfig(nil))
	require.NoError(t, err)

	err = container.Invoke(func(
		server *httpapi.Server,
		backfill *application.BackfillService,
		store ports.Storage,
		c ports.Cache,
	) {
		assert.NotNil(t, server.Router())
		assert.NotNil(t, backfill)
		assert.NoError(t, store.Close())
		c.Stop()
	})
	assert.NoError(t, err)
}

func TestNewStorage(t *testing.T) {
	tests := []struct {
		name        string
		storageType string
		expectError bool
	}{
		{"Memory", "memory", false},
		{"Unknown", "cassandra", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := NewStorage(testConfig(map[string]interface{}{"storage.type": tt.storageType}), zap.NewNop())
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NoError(t, store.Close())
		})
	}
}

func TestBuildContainer_InvalidDuration(t *testing.T) {
	container, err := BuildContainer(testConfig(map[string]interface{}{"whois.timeout": "soon"}))
	require.NoError(t, err)

	err = container.Invoke(func(*application.WhoisService) {})
	assert.Error(t, err)
}
