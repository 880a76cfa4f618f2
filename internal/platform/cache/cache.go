// internal/platform/cache/cache.go
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrMiss signals that a key is absent. Callers fall back to the source of
// truth on a miss.
var ErrMiss = errors.New("cache miss")

// Cache is a thin JSON cache over redis. A nil Cache is valid and behaves as
// always-miss, so services work without redis deployed.
type Cache struct {
	rdb *redis.Client
}

// New connects to redis at addr. An empty addr disables caching.
func New(addr string) *Cache {
	if addr == "" {
		return nil
	}
	return &Cache{rdb: redis.NewClient(&redis.Options{Addr: addr})}
}

// GetJSON loads a key into v, returning ErrMiss when absent or disabled.
func (c *Cache) GetJSON(ctx context.Context, key string, v any) error {
	if c == nil {
		return ErrMiss
	}
	data, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrMiss
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// SetJSON stores v under key with a TTL. Errors are returned so callers can
// decide whether to log or ignore them; caching is never load-bearing.
func (c *Cache) SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	if c == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, key, data, ttl).Err()
}

// Delete removes a key, used for invalidation on writes.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if c == nil {
		return nil
	}
	return c.rdb.Del(ctx, key).Err()
}

// SetNX stores a value only if the key is absent; reports whether the write
// happened. Used for idempotency keys.
func (c *Cache) SetNX(ctx context.Context, key string, value string, ttl time.Duration) (bool, error) {
	if c == nil {
		return true, nil
	}
	return c.rdb.SetNX(ctx, key, value, ttl).Result()
}
