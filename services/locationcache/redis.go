package locationcache

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

const keyPrefix = "pickup:resolved:"

// RedisCache stores resolutions in Redis so they survive restarts and are
// shared between server processes.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, phrase string) (string, bool, error) {
	location, err := c.client.Get(ctx, keyPrefix+Key(phrase)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return location, true, nil
}

func (c *RedisCache) Set(ctx context.Context, phrase, location string) error {
	return c.client.Set(ctx, keyPrefix+Key(phrase), location, c.ttl).Err()
}
