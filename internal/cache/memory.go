package cache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value   []byte
	expires time.Time
}

// MemoryCache is a concurrency-safe in-memory Cache with lazy expiry: stale
// entries are dropped when read, no background sweep runs.
type MemoryCache struct {
	mu   sync.RWMutex
	data map[string]memoryEntry

	// now is injectable for TTL tests.
	now func() time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		data: make(map[string]memoryEntry),
		now:  time.Now,
	}
}

func (c *MemoryCache) Get(ctx context.Context, key string) ([]byte, bool) {
	c.mu.RLock()
	entry, ok := c.data[key]
	c.mu.RUnlock()

	if !ok {
		return nil, false
	}
	if !entry.expires.IsZero() && !c.now().Before(entry.expires) {
		c.mu.Lock()
		delete(c.data, key)
		c.mu.Unlock()
		return nil, false
	}
	return entry.value, true
}

func (c *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	entry := memoryEntry{value: value}
	if ttl > 0 {
		entry.expires = c.now().Add(ttl)
	}

	c.mu.Lock()
	c.data[key] = entry
	c.mu.Unlock()
}

func (c *MemoryCache) Delete(ctx context.Context, key string) {
	c.mu.Lock()
	delete(c.data, key)
	c.mu.Unlock()
}

func (c *MemoryCache) Close() error {
	return nil
}
