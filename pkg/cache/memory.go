package cache

import (
	"context"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/platinummonkey/warden/pkg/observability"
	"github.com/platinummonkey/warden/pkg/permission"
)

// Defaults for the in-process cache
const (
	DefaultMaxEntries = 10000
	DefaultTTL        = 5 * time.Minute
)

type memoryEntry struct {
	orgID    string
	decision permission.Decision
}

// MemoryCache is an in-process LRU cache with per-entry TTL
type MemoryCache struct {
	cache   *lru.LRU[string, memoryEntry]
	metrics *observability.Metrics
	hits    atomic.Int64
	misses  atomic.Int64
}

// NewMemoryCache creates a memory cache. Non-positive arguments fall back to
// the defaults. metrics may be nil.
func NewMemoryCache(maxEntries int, ttl time.Duration, metrics *observability.Metrics) *MemoryCache {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryCache{
		cache:   lru.NewLRU[string, memoryEntry](maxEntries, nil, ttl),
		metrics: metrics,
	}
}

// Get retrieves a cached decision
func (c *MemoryCache) Get(ctx context.Context, key Key) (permission.Decision, bool) {
	entry, ok := c.cache.Get(key.String())
	if !ok {
		c.misses.Add(1)
		c.metrics.ObserveCacheLookup(BackendMemory, false)
		return permission.Decision{}, false
	}
	c.hits.Add(1)
	c.metrics.ObserveCacheLookup(BackendMemory, true)
	return entry.decision, true
}

// Put stores a decision
func (c *MemoryCache) Put(ctx context.Context, key Key, decision permission.Decision) {
	c.cache.Add(key.String(), memoryEntry{orgID: key.OrganizationID, decision: decision})
}

// InvalidateAll purges the cache
func (c *MemoryCache) InvalidateAll(ctx context.Context) error {
	c.cache.Purge()
	c.metrics.ObserveCacheInvalidation(BackendMemory, "all")
	return nil
}

// InvalidateOrganization removes every entry bound to orgID
func (c *MemoryCache) InvalidateOrganization(ctx context.Context, orgID string) error {
	for _, k := range c.cache.Keys() {
		if entry, ok := c.cache.Peek(k); ok && entry.orgID == orgID {
			c.cache.Remove(k)
		}
	}
	c.metrics.ObserveCacheInvalidation(BackendMemory, "organization")
	return nil
}

// Stats returns cache statistics
func (c *MemoryCache) Stats() Stats {
	return newStats(BackendMemory, c.hits.Load(), c.misses.Load(), int64(c.cache.Len()))
}
