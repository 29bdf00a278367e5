package cache

import (
	"context"
	"time"

	portsrepo "github.com/finflow/loan_engine_app/internal/core/ports/repositories"
	"github.com/redis/go-redis/v9"
)

// RedisCalculationCache caches calculation previews in Redis. Entries expire
// so a schema or rounding change in a new release cannot serve stale results
// forever.
type RedisCalculationCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCalculationCache connects a calculation cache to the Redis instance
// at addr. A non-positive ttl disables expiry.
func NewRedisCalculationCache(addr string, ttl time.Duration) *RedisCalculationCache {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
	})
	return &RedisCalculationCache{
		client: rdb,
		ttl:    ttl,
	}
}

// Ensure RedisCalculationCache implements portsrepo.CalculationCache
var _ portsrepo.CalculationCache = (*RedisCalculationCache)(nil)

func (r *RedisCalculationCache) Get(ctx context.Context, key string) (string, bool) {
	val, err := r.client.Get(ctx, key).Result()
	if err != nil {
		return "", false
	}
	return val, true
}

func (r *RedisCalculationCache) Set(ctx context.Context, key string, value string) error {
	return r.client.Set(ctx, key, value, r.ttl).Err()
}

// Ping verifies connectivity at startup.
func (r *RedisCalculationCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close releases the underlying client.
func (r *RedisCalculationCache) Close() error {
	return r.client.Close()
}
