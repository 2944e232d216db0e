// Package cache is a best-effort JSON cache on top of the key-value store.
// Every failure is logged and reported as a miss; callers fall back to the database.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/coursedesk/offerd/internal/db"
)

// store is the consumer interface for the cache (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	IncrBy(ctx context.Context, key string, val int64) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration, nx bool) error
	Del(ctx context.Context, keys ...string) error
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// Cache stores JSON documents under prefixed keys.
type Cache struct {
	store    store
	prefix   string
	requests *prometheus.CounterVec
	logger   *zap.Logger
}

// New creates a cache.
// requests is a counter vec with labels "cache" (first key segment) and "result" ("hit"/"miss"); may be nil.
func New(s store, prefix string, requests *prometheus.CounterVec, logger *zap.Logger) *Cache {
	return &Cache{store: s, prefix: prefix, requests: requests, logger: logger}
}

// Disabled returns a cache that always misses and never writes.
func Disabled() *Cache {
	return &Cache{logger: zap.NewNop()}
}

// Enabled reports whether a backing store is configured.
func (c *Cache) Enabled() bool { return c != nil && c.store != nil }

// Get decodes the value at key into dst and reports a hit.
func (c *Cache) Get(ctx context.Context, key string, dst any) bool {
	if !c.Enabled() {
		return false
	}
	data, err := c.store.Get(ctx, c.prefix+key)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			c.logger.Warn("Failed to read cache", zap.String("key", key), zap.Error(err))
		}
		c.inc(key, "miss")
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		c.logger.Warn("Failed to decode cached value", zap.String("key", key), zap.Error(err))
		c.inc(key, "miss")
		return false
	}
	c.inc(key, "hit")
	return true
}

// Set encodes v as JSON and stores it for ttl.
func (c *Cache) Set(ctx context.Context, key string, v any, ttl time.Duration) {
	if !c.Enabled() {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		c.logger.Warn("Failed to encode cache value", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.store.SetWithTTL(ctx, c.prefix+key, data, ttl); err != nil {
		c.logger.Warn("Failed to write cache", zap.String("key", key), zap.Error(err))
	}
}

// Delete removes keys.
func (c *Cache) Delete(ctx context.Context, keys ...string) {
	if !c.Enabled() || len(keys) == 0 {
		return
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = c.prefix + k
	}
	if err := c.store.Del(ctx, full...); err != nil {
		c.logger.Warn("Failed to delete cache keys", zap.Strings("keys", keys), zap.Error(err))
	}
}

// DeletePattern removes every key matching a glob pattern.
func (c *Cache) DeletePattern(ctx context.Context, pattern string) {
	if !c.Enabled() {
		return
	}
	keys, err := c.store.Scan(ctx, c.prefix+pattern)
	if err != nil {
		c.logger.Warn("Failed to scan cache keys", zap.String("pattern", pattern), zap.Error(err))
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := c.store.Del(ctx, keys...); err != nil {
		c.logger.Warn("Failed to delete cache keys", zap.String("pattern", pattern), zap.Error(err))
	}
}

// Incr increments a counter and sets ttl only when the key has no expiry yet.
func (c *Cache) Incr(ctx context.Context, key string, ttl time.Duration) {
	if !c.Enabled() {
		return
	}
	if _, err := c.store.IncrBy(ctx, c.prefix+key, 1); err != nil {
		c.logger.Warn("Failed to increment counter", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.store.Expire(ctx, c.prefix+key, ttl, true); err != nil {
		c.logger.Warn("Failed to set counter ttl", zap.String("key", key), zap.Error(err))
	}
}

// Count returns a counter value, 0 when missing or unavailable.
func (c *Cache) Count(ctx context.Context, key string) int64 {
	if !c.Enabled() {
		return 0
	}
	data, err := c.store.Get(ctx, c.prefix+key)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			c.logger.Warn("Failed to read counter", zap.String("key", key), zap.Error(err))
		}
		return 0
	}
	n, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		c.logger.Warn("Failed to parse counter", zap.String("key", key), zap.Error(err))
		return 0
	}
	return n
}

func (c *Cache) inc(key, result string) {
	if c.requests == nil {
		return
	}
	name, _, _ := strings.Cut(key, ":")
	c.requests.WithLabelValues(name, result).Inc()
}
