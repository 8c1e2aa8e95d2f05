// Package cache provides a small redis-backed read cache for the
// reporting surface. Cache trouble is never an error for callers; a
// failed read is a miss and a failed write is dropped.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var ErrCacheUnavailable = errors.New("cache unavailable")

type StatsCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewStatsCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *StatsCache {
	return &StatsCache{client: client, ttl: ttl, logger: logger}
}

// Get unmarshals the cached value into dest and reports whether it hit.
func (c *StatsCache) Get(ctx context.Context, key string, dest any) bool {
	if c == nil || c.client == nil {
		return false
	}
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("cache read failed", zap.String("key", key), zap.Error(err))
		}
		return false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		c.logger.Warn("cache entry corrupt", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

// Set stores the value under key for the configured TTL.
func (c *StatsCache) Set(ctx context.Context, key string, value any) {
	if c == nil || c.client == nil {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn("cache marshal failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// Ping verifies connectivity at startup.
func (c *StatsCache) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return ErrCacheUnavailable
	}
	return c.client.Ping(ctx).Err()
}
