package cache

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/phishfinder/backend/internal/config"
	"github.com/phishfinder/backend/internal/ports"
)

const redisKeyPrefix = "phishfinder:"

// CacheFactory creates cache implementations based on configuration
type CacheFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewCacheFactory creates a new cache factory
func NewCacheFactory(cfg *config.Config, logger *zap.Logger) *CacheFactory {
	return &CacheFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateCache creates the cache selected by cache.type
func (f *CacheFactory) CreateCache() (ports.Cache, error) {
	cacheCfg, err := f.cfg.GetCache()
	if err != nil {
		return nil, fmt.Errorf("invalid cache configuration: %w", err)
	}

	switch cacheCfg.Type {
	case "memory":
		return NewMemoryCache(f.logger, cacheCfg.CleanupFrequency, cacheCfg.MaxEntries), nil
	case "sqlite":
		// Ensure directory exists
		if err := os.MkdirAll(filepath.Dir(cacheCfg.SQLitePath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create SQLite directory: %w", err)
		}
		return NewSQLiteCache(cacheCfg.SQLitePath, f.logger, cacheCfg.CleanupFrequency)
	case "mysql":
		return NewMySQLCache(cacheCfg.MySQLDSN, f.logger, cacheCfg.CleanupFrequency)
	case "redis":
		return NewRedisCache(cacheCfg.RedisAddr, redisKeyPrefix, f.logger)
	default:
		return nil, fmt.Errorf("unsupported cache type: %s", cacheCfg.Type)
	}
}
