package redisstore

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrKeyNotFound = redis.Nil
)

type Client struct {
	rdb    *redis.Client
	prefix string
}

func New(redisURL, prefix string) (*Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	// Timeouts
	opt.DialTimeout = 5 * time.Second
	opt.ReadTimeout = 3 * time.Second
	opt.WriteTimeout = 3 * time.Second

	// Pool tuning
	opt.PoolSize = 10
	opt.MinIdleConns = 2

	// Connection lifecycle
	opt.ConnMaxLifetime = 2 * time.Minute
	opt.ConnMaxIdleTime = 30 * time.Second

	rdb := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}

	return NewWithClient(rdb, prefix), nil
}

// NewWithClient wraps an existing client. Keys are namespaced by prefix.
func NewWithClient(rdb *redis.Client, prefix string) *Client {
	if prefix == "" {
		prefix = "healthmon"
	}
	return &Client{rdb: rdb, prefix: prefix}
}

func (c *Client) Close() error {
	return c.rdb.Close()
}
