package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// RedisCache is a Redis implementation of ports.Cache.
// Expiry is delegated to Redis key TTLs, so no cleanup task runs.
type RedisCache struct {
	rdb      *redis.Client
	logger   *zap.Logger
	prefix   string
	stopOnce sync.Once
}

// NewRedisCache connects to addr and verifies the connection
func NewRedisCache(addr, prefix string, logger *zap.Logger) (*RedisCache, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisCache{rdb: rdb, logger: logger, prefix: prefix}, nil
}

// Get retrieves an unexpired value
func (c *RedisCache) Get(ctx context.Context, key string) (string, bool) {
	val, err := c.rdb.Get(ctx, c.prefix+key).Result()
	if err != nil {
		if err != redis.Nil {
			c.logger.Error("Failed to query cache", zap.Error(err), zap.String("key", key))
		}
		return "", false
	}
	return val, true
}

// Set stores a value with a Redis TTL
func (c *RedisCache) Set(ctx context.Context, key, value string, ttl time.Duration) {
	if err := c.rdb.Set(ctx, c.prefix+key, value, ttl).Err(); err != nil {
		c.logger.Error("Failed to insert cache entry", zap.Error(err), zap.String("key", key))
	}
}

// Stop closes the Redis client
func (c *RedisCache) Stop() {
	c.stopOnce.Do(func() {
		if err := c.rdb.Close(); err != nil {
			c.logger.Error("Failed to close Redis client", zap.Error(err))
		}
	})
}
