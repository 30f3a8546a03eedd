package cache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/phishfinder/backend/internal/config"
	"github.com/phishfinder/backend/internal/ports"
)

var (
	_ ports.Cache = (*MemoryCache)(nil)
	_ ports.Cache = (*SQLiteCache)(nil)
	_ ports.Cache = (*MySQLCache)(nil)
	_ ports.Cache = (*RedisCache)(nil)
)

func TestMemoryCache_Expiry(t *testing.T) {
	c := NewMemoryCache(zap.NewNop(), 0, 0)
	defer c.Stop()

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	c.Set(ctx, "spf:example.com", "v=spf1 -all", time.Hour)

	val, ok := c.Get(ctx, "spf:example.com")
	require.True(t, ok)
	assert.Equal(t, "v=spf1 -all", val)

	now = now.Add(59 * time.Minute)
	_, ok = c.Get(ctx, "spf:example.com")
	assert.True(t, ok)

	now = now.Add(time.Minute)
	_, ok = c.Get(ctx, "spf:example.com")
	assert.False(t, ok, "entry must expire exactly at its TTL")

	require.NoError(t, c.Cleanup(ctx))
	assert.Equal(t, 0, c.Len())
}

func TestMemoryCache_Overwrite(t *testing.T) {
	c := NewMemoryCache(zap.NewNop(), 0, 0)
	defer c.Stop()
	ctx := context.Background()

	c.Set(ctx, "k", "one", time.Minute)
	c.Set(ctx, "k", "two", time.Minute)

	val, ok := c.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, "two", val)
}

func TestMemoryCache_MaxEntries(t *testing.T) {
	c := NewMemoryCache(zap.NewNop(), 0, 2)
	defer c.Stop()
	ctx := context.Background()

	c.Set(ctx, "short", "1", time.Minute)
	c.Set(ctx, "long", "2", time.Hour)
	c.Set(ctx, "new", "3", time.Hour)

	assert.Equal(t, 2, c.Len())
	_, ok := c.Get(ctx, "short")
	assert.False(t, ok, "entry closest to expiry is evicted")
	_, ok = c.Get(ctx, "long")
	assert.True(t, ok)
	_, ok = c.Get(ctx, "new")
	assert.True(t, ok)
}

func TestMemoryCache_StopIsIdempotent(t *testing.T) {
	c := NewMemoryCache(zap.NewNop(), time.Millisecond, 0)
	c.Stop()
	assert.NotPanics(t, c.Stop)
}

func TestSQLiteCache(t *testing.T) {
	c, err := NewSQLiteCache(filepath.Join(t.TempDir(), "cache.db"), zap.NewNop(), 0)
	require.NoError(t, err)
	defer c.Stop()
	ctx := context.Background()

	_, ok := c.Get(ctx, "missing")
	assert.False(t, ok)

	c.Set(ctx, "dmarc:example.com", "v=DMARC1; p=reject", time.Hour)
	c.Set(ctx, "dmarc:example.com", "v=DMARC1; p=none", time.Hour)
	val, ok := c.Get(ctx, "dmarc:example.com")
	require.True(t, ok)
	assert.Equal(t, "v=DMARC1; p=none", val)

	c.Set(ctx, "stale", "x", -time.Second)
	_, ok = c.Get(ctx, "stale")
	assert.False(t, ok)
	assert.NoError(t, c.Cleanup(ctx))
}

func TestCacheFactory(t *testing.T) {
	tests := []struct {
		name      string
		cacheType string
		wantErr   bool
	}{
		{"Memory", "memory", false},
		{"SQLite", "sqlite", false},
		{"Unknown", "memcached", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.NewFromViper(config.NewEmptyViper())
			cfg.Set("cache.type", tt.cacheType)
			cfg.Set("cache.sqlite_path", filepath.Join(t.TempDir(), "sub", "cache.db"))

			c, err := NewCacheFactory(cfg, zap.NewNop()).CreateCache()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			c.Stop()
		})
	}
}
