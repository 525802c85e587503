package utils

import (
	"context"
	"fmt"
	"time"

	"cabbooking/config"

	"github.com/go-redis/redis/v8"
)

// NewRedisClient connects to the configured Redis on db. It returns nil, nil
// when no Redis address is configured.
func NewRedisClient(ctx context.Context, db int) (*redis.Client, error) {
	if config.AppConfig.RedisAddr == "" {
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       db,
	})
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis db %d: %w", db, err)
	}
	return client, nil
}
