package policy

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	id "solace/pkg/domain"
)

// RedisCache caches resolved policies with a short TTL. Staleness within the
// TTL window is acceptable because EnsureCurrent re-checks the store before
// any decision is persisted.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	log    *log.Logger
}

func NewRedisCache(client *redis.Client, ttl time.Duration, logger *log.Logger) *RedisCache {
	return &RedisCache{client: client, ttl: ttl, log: logger}
}

func cacheKey(scope id.HomeID, domain Domain) string {
	return fmt.Sprintf("solace:policy:%s:%s", scope, domain)
}

func (c *RedisCache) Get(ctx context.Context, scope id.HomeID, domain Domain) (Policy, bool) {
	raw, err := c.client.Get(ctx, cacheKey(scope, domain)).Bytes()
	if err != nil {
		if err != redis.Nil && c.log != nil {
			c.log.Printf("policy cache get failed: %v", err)
		}
		return Policy{}, false
	}
	var p Policy
	if err := json.Unmarshal(raw, &p); err != nil {
		if c.log != nil {
			c.log.Printf("policy cache entry corrupt, dropping: %v", err)
		}
		c.client.Del(ctx, cacheKey(scope, domain))
		return Policy{}, false
	}
	return p, true
}

func (c *RedisCache) Set(ctx context.Context, scope id.HomeID, domain Domain, p Policy) {
	raw, err := json.Marshal(p)
	if err != nil {
		if c.log != nil {
			c.log.Printf("policy cache marshal failed: %v", err)
		}
		return
	}
	if err := c.client.Set(ctx, cacheKey(scope, domain), raw, c.ttl).Err(); err != nil && c.log != nil {
		c.log.Printf("policy cache set failed: %v", err)
	}
}

func (c *RedisCache) Invalidate(ctx context.Context, scope id.HomeID, domain Domain) {
	if err := c.client.Del(ctx, cacheKey(scope, domain)).Err(); err != nil && c.log != nil {
		c.log.Printf("policy cache invalidate failed: %v", err)
	}
}
