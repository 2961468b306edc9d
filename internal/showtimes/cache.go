package showtimes

import (
	"context"
	"sync"
	"time"
)

// DefaultCacheTTL is how long an aggregated date stays servable.
const DefaultCacheTTL = 15 * time.Minute

// ResponseCache stores aggregated results by date key. Misses and backend
// failures both report ok=false.
type ResponseCache interface {
	Get(ctx context.Context, date string) (Result, bool)
	Set(ctx context.Context, date string, result Result)
}

type memoryEntry struct {
	storedAt time.Time
	result   Result
}

// MemoryCache is the in-process ResponseCache.
type MemoryCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]memoryEntry
}

// NewMemoryCache returns an empty cache. now may be nil.
func NewMemoryCache(ttl time.Duration, now func() time.Time) *MemoryCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if now == nil {
		now = time.Now
	}
	return &MemoryCache{ttl: ttl, now: now, entries: make(map[string]memoryEntry)}
}

// Get returns the entry for date when younger than the TTL.
func (c *MemoryCache) Get(_ context.Context, date string) (Result, bool) {
	c.mu.RLock()
	entry, ok := c.entries[date]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if c.now().Sub(entry.storedAt) >= c.ttl {
		c.mu.Lock()
		if current, still := c.entries[date]; still && current.storedAt.Equal(entry.storedAt) {
			delete(c.entries, date)
		}
		c.mu.Unlock()
		return nil, false
	}
	return entry.result, true
}

// Set stores result for date, replacing any previous entry.
func (c *MemoryCache) Set(_ context.Context, date string, result Result) {
	c.mu.Lock()
	c.entries[date] = memoryEntry{storedAt: c.now(), result: result}
	c.mu.Unlock()
}
