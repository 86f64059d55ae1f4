package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"crop-claim-service/internal/config"

	"github.com/redis/go-redis/v9"
)

const pingTimeout = 5 * time.Second

// Client wraps the Redis client that backs session snapshots.
type Client struct {
	client *redis.Client
}

// newOptions keeps snapshot reads and writes short so a slow Redis never stalls
// a session request for long; snapshots are a cache over live state.
func newOptions(cfg config.RedisConfig) *redis.Options {
	return &redis.Options{
		Addr:         fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		ClientName:   "crop-claim-service",
		DialTimeout:  pingTimeout,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		MaxRetries:   2,
	}
}

func NewRedisClient(cfg config.RedisConfig) (*Client, error) {
	c := &Client{client: redis.NewClient(newOptions(cfg))}

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if err := c.Ping(ctx); err != nil {
		c.client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	slog.Info("Connected to Redis", "addr", c.client.Options().Addr, "db", cfg.DB)
	return c, nil
}

// Ping reports whether the snapshot store is reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *Client) GetClient() *redis.Client {
	return c.client
}

func (c *Client) Close() error {
	return c.client.Close()
}
