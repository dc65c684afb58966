package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache stores entries in Redis. Keys are namespaced with a prefix so one
// Redis instance can serve several deployments.
type RedisCache struct {
	client *redis.Client
	prefix string
}

// NewRedisCache connects to the Redis server at url (redis://host:port/db)
// and verifies the connection with PING.
func NewRedisCache(ctx context.Context, url, prefix string) (*RedisCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return &RedisCache{client: client, prefix: prefix}, nil
}

// Get retrieves a value. Network errors are retried with backoff.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var data []byte
	err := RetryWithBackoff(ctx, func() error {
		b, err := c.client.Get(ctx, c.prefix+key).Bytes()
		if err != nil {
			return classify(err)
		}
		data = b
		return nil
	})
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// Set stores a value. A zero ttl stores the key without expiry.
func (c *RedisCache) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	return RetryWithBackoff(ctx, func() error {
		return classify(c.client.Set(ctx, c.prefix+key, data, ttl).Err())
	})
}

// Delete removes a key.
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	return classify(c.client.Del(ctx, c.prefix+key).Err())
}

// Clear deletes every key under the cache's prefix.
func (c *RedisCache) Clear(ctx context.Context) (int, error) {
	count := 0
	iter := c.client.Scan(ctx, 0, c.prefix+"*", 500).Iterator()
	for iter.Next(ctx) {
		n, err := c.client.Del(ctx, iter.Val()).Result()
		if err != nil {
			return count, err
		}
		count += int(n)
	}
	return count, iter.Err()
}

// Close closes the underlying connection pool.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

var (
	_ Cache   = (*RedisCache)(nil)
	_ Clearer = (*RedisCache)(nil)
)
