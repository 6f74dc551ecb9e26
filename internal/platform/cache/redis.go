package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// New creates a new Redis client and verifies the connection.
func New(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("platform/cache: ping: %w", err)
	}

	return client, nil
}

// JSON stores values under a single key as JSON with a fixed TTL.
type JSON[T any] struct {
	rdb redis.Cmdable
	key string
	ttl time.Duration
}

// NewJSON binds a typed JSON slot to key.
func NewJSON[T any](rdb redis.Cmdable, key string, ttl time.Duration) *JSON[T] {
	return &JSON[T]{rdb: rdb, key: key, ttl: ttl}
}

// Get returns the cached value and whether it was present.
func (c *JSON[T]) Get(ctx context.Context) (T, bool, error) {
	var zero T
	if c == nil || c.rdb == nil {
		return zero, false, nil
	}
	raw, err := c.rdb.Get(ctx, c.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, fmt.Errorf("platform/cache: get %s: %w", c.key, err)
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return zero, false, fmt.Errorf("platform/cache: decode %s: %w", c.key, err)
	}
	return out, true, nil
}

func (c *JSON[T]) Set(ctx context.Context, v T) error {
	if c == nil || c.rdb == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, c.key, raw, c.ttl).Err()
}

// Invalidate drops the cached value.
func (c *JSON[T]) Invalidate(ctx context.Context) error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Del(ctx, c.key).Err()
}
