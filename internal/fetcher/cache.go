package fetcher

import (
	"sync"
	"sync/atomic"
)

// MemoryCache is a concurrent-safe in-process Cache with no expiry.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string][]byte
	hits    atomic.Int64
	misses  atomic.Int64
}

// NewMemoryCache creates an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string][]byte)}
}

// Get returns the cached body for key.
func (c *MemoryCache) Get(key string) ([]byte, bool) {
	c.mu.RLock()
	data, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return data, true
}

// Set stores data under key, replacing any previous entry.
func (c *MemoryCache) Set(key string, data []byte) {
	buf := make([]byte, len(data))
	copy(buf, data)

	c.mu.Lock()
	c.entries[key] = buf
	c.mu.Unlock()
}

// Len returns the number of cached entries.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats returns hit and miss counters.
func (c *MemoryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}
