package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheKey = "analytics:dashboard:v1"

// Cache stores the assembled analytics object.
type Cache interface {
	Get(ctx context.Context) (*Analytics, error)
	Set(ctx context.Context, a *Analytics) error
}

type RedisCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewRedisCache(client redis.Cmdable, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

// Get returns nil, nil on a miss.
func (c *RedisCache) Get(ctx context.Context) (*Analytics, error) {
	raw, err := c.client.Get(ctx, cacheKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("get %s: %w", cacheKey, err)
	}

	var a Analytics
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, fmt.Errorf("decoding cached analytics: %w", err)
	}
	return &a, nil
}

func (c *RedisCache) Set(ctx context.Context, a *Analytics) error {
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshaling analytics: %w", err)
	}
	if err := c.client.Set(ctx, cacheKey, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("set %s: %w", cacheKey, err)
	}
	return nil
}
