package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iho/stockledger/internal/usecase"
)

// Cache implements usecase.Cache using Redis.
type Cache struct {
	client   *redis.Client
	prefix   string
	onLookup func(hit bool)
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithKeyPrefix namespaces every key, so several deployments can share one
// Redis.
func WithKeyPrefix(prefix string) CacheOption {
	return func(c *Cache) {
		c.prefix = prefix + c.prefix
	}
}

// WithLookupObserver reports every Get as a hit or a miss.
func WithLookupObserver(fn func(hit bool)) CacheOption {
	return func(c *Cache) {
		c.onLookup = fn
	}
}

// NewCache creates a new Cache.
func NewCache(client *redis.Client, opts ...CacheOption) *Cache {
	c := &Cache{
		client:   client,
		prefix:   "cache:",
		onLookup: func(bool) {},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get retrieves a value by key. A missing key yields usecase.ErrCacheMiss.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		c.onLookup(false)
		return nil, usecase.ErrCacheMiss
	}
	if err != nil {
		return nil, err
	}

	c.onLookup(true)
	return val, nil
}

// Set stores a value with TTL.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.client.Set(ctx, c.prefix+key, value, ttl).Err()
}

// Delete removes keys in one round trip.
func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	full := make([]string, len(keys))
	for i, key := range keys {
		full[i] = c.prefix + key
	}

	return c.client.Del(ctx, full...).Err()
}
