// Package redis wraps the go-redis client used for cross-instance event
// fan-out.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const pingTimeout = 5 * time.Second

type Config struct {
	Host     string
	Port     uint16
	Password string
	DB       int
}

type Redis interface {
	Client() *redis.Client
	Close() error
}

type client struct {
	rdb *redis.Client
}

func New(cfg *Config) (Redis, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &client{rdb: rdb}, nil
}

func (c *client) Client() *redis.Client {
	return c.rdb
}

func (c *client) Close() error {
	return c.rdb.Close()
}
