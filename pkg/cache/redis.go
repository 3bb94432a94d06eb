package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/platinummonkey/warden/pkg/observability"
	"github.com/platinummonkey/warden/pkg/permission"
)

// RedisCache shares decisions between warden replicas. Every Redis failure
// is logged, counted and treated as a miss.
type RedisCache struct {
	client  *redis.Client
	ttl     time.Duration
	logger  *observability.Logger
	metrics *observability.Metrics
	hits    atomic.Int64
	misses  atomic.Int64
}

// NewRedisClient parses a redis:// URL and verifies the connection
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 500 * time.Millisecond
	opts.WriteTimeout = 500 * time.Millisecond
	opts.PoolTimeout = time.Second

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

// NewRedisCache wraps an existing client. logger and metrics may be nil.
func NewRedisCache(client *redis.Client, ttl time.Duration, logger *observability.Logger, metrics *observability.Metrics) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	return &RedisCache{
		client:  client,
		ttl:     ttl,
		logger:  logger.WithField("component", "redis_cache"),
		metrics: metrics,
	}
}

// Get retrieves a cached decision
func (c *RedisCache) Get(ctx context.Context, key Key) (permission.Decision, bool) {
	k := key.String()
	data, err := c.client.Get(ctx, k).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.fail("get", err)
		}
		c.miss()
		return permission.Decision{}, false
	}

	var decision permission.Decision
	if err := json.Unmarshal(data, &decision); err != nil {
		// corrupt entry
		c.client.Del(ctx, k)
		c.fail("decode", err)
		c.miss()
		return permission.Decision{}, false
	}

	c.hits.Add(1)
	c.metrics.ObserveCacheLookup(BackendRedis, true)
	return decision, true
}

// Put stores a decision with the configured TTL
func (c *RedisCache) Put(ctx context.Context, key Key, decision permission.Decision) {
	data, err := json.Marshal(decision)
	if err != nil {
		c.fail("encode", err)
		return
	}
	if err := c.client.Set(ctx, key.String(), data, c.ttl).Err(); err != nil {
		c.fail("set", err)
	}
}

// InvalidateAll deletes every decision key
func (c *RedisCache) InvalidateAll(ctx context.Context) error {
	if err := c.deleteMatching(ctx, keyPrefix+":*"); err != nil {
		return err
	}
	c.metrics.ObserveCacheInvalidation(BackendRedis, "all")
	return nil
}

// InvalidateOrganization deletes the decision keys of one organization
func (c *RedisCache) InvalidateOrganization(ctx context.Context, orgID string) error {
	if err := c.deleteMatching(ctx, keyPrefix+":"+orgID+":*"); err != nil {
		return err
	}
	c.metrics.ObserveCacheInvalidation(BackendRedis, "organization")
	return nil
}

func (c *RedisCache) deleteMatching(ctx context.Context, pattern string) error {
	iter := c.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			c.fail("invalidate", err)
			return fmt.Errorf("failed to delete %s: %w", iter.Val(), err)
		}
	}
	if err := iter.Err(); err != nil {
		c.fail("invalidate", err)
		return fmt.Errorf("failed to scan %s: %w", pattern, err)
	}
	return nil
}

// Stats returns hit and miss counters. ItemCount is not tracked for Redis.
func (c *RedisCache) Stats() Stats {
	return newStats(BackendRedis, c.hits.Load(), c.misses.Load(), 0)
}

func (c *RedisCache) miss() {
	c.misses.Add(1)
	c.metrics.ObserveCacheLookup(BackendRedis, false)
}

func (c *RedisCache) fail(op string, err error) {
	c.metrics.ObserveCacheError(BackendRedis, op)
	c.logger.WithError(err).Warnf("decision cache %s failed", op)
}
