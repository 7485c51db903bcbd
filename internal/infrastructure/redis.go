package infrastructure

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/architeacher/svc-msg-queue/internal/config"
)

// RedisClient wraps the go-redis client configured from the cache settings.
type RedisClient struct {
	*redis.Client

	logger Logger
}

func NewRedisClient(cfg config.CacheConfig, logger Logger) *RedisClient {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolTimeout:  cfg.PoolTimeout,
		MaxRetries:   cfg.MaxRetries,
	})

	return &RedisClient{
		Client: client,
		logger: logger.Component("redis"),
	}
}

func (c *RedisClient) Ping(ctx context.Context) error {
	if err := c.Client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to ping redis: %w", err)
	}

	return nil
}

func (c *RedisClient) Close() error {
	c.logger.Debug().Msg("closing redis client")

	return c.Client.Close()
}
