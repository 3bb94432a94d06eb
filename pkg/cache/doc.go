// Package cache provides the decision cache used by the permission evaluator.
//
// # Overview
//
// Decisions are cached by the inputs shared across users of one role: catalog
// version, role, resource, action, scope and (for organization scope only) the
// organization. Thousands of users holding the same role reuse one entry. The cache
// stores evaluator output only; a miss, an outage or a disabled cache never changes
// an outcome.
//
// # Backends
//
//	MemoryCache  - expirable LRU from hashicorp/golang-lru, per process
//	RedisCache   - go-redis, shared between replicas, JSON values with TTL
//	Noop         - caching disabled
//
// # Usage Example
//
//	c := cache.NewMemoryCache(10000, 5*time.Minute, metrics)
//	key := cache.NewKey(snapshot.Fingerprint, role.ID, req, user.OrgID())
//	if d, ok := c.Get(ctx, key); ok {
//		return d
//	}
//	c.Put(ctx, key, decision)
//
// # Invalidation
//
// InvalidateAll runs after a catalog reload. InvalidateOrganization runs when an
// organization is suspended or reactivated. Redis invalidation uses SCAN MATCH on
// the organization prefix of the key followed by DEL.
//
// # Related Packages
//
//   - pkg/rbac: The evaluator consults the cache
//   - pkg/observability: Hit, miss and error metrics
package cache
