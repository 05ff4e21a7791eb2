package store

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/gbfs-cli/internal/fetcher"
)

const cacheOpTimeout = 5 * time.Second

// ResponseCache adapts a Store to fetcher.Cache with a fixed TTL. Store
// failures are logged and treated as misses.
type ResponseCache struct {
	store Store
	ttl   time.Duration
}

var _ fetcher.Cache = (*ResponseCache)(nil)

// NewResponseCache wraps s. Entries expire after ttl.
func NewResponseCache(s Store, ttl time.Duration) *ResponseCache {
	return &ResponseCache{store: s, ttl: ttl}
}

// Get returns the cached body for key.
func (c *ResponseCache) Get(key string) ([]byte, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), cacheOpTimeout)
	defer cancel()

	data, err := c.store.GetCachedResponse(ctx, key)
	if err != nil {
		zap.L().Warn("store: response cache read failed", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return data, data != nil
}

// Set stores body under key.
func (c *ResponseCache) Set(key string, data []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), cacheOpTimeout)
	defer cancel()

	if err := c.store.SetCachedResponse(ctx, key, data, c.ttl); err != nil {
		zap.L().Warn("store: response cache write failed", zap.String("key", key), zap.Error(err))
	}
}
