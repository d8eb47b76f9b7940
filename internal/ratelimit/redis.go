package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter shares counters between instances through Redis.
type RedisLimiter struct {
	client *redis.Client
}

// NewRedisLimiter connects to the Redis server named by a redis:// URL.
func NewRedisLimiter(redisURL string) (*RedisLimiter, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	return &RedisLimiter{client: redis.NewClient(opt)}, nil
}

// NewRedisLimiterFromClient wraps an existing client.
func NewRedisLimiterFromClient(c *redis.Client) *RedisLimiter {
	return &RedisLimiter{client: c}
}

// Ping checks connectivity.
func (l *RedisLimiter) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

// Close releases the client.
func (l *RedisLimiter) Close() error { return l.client.Close() }

// Allow increments the key and arms its expiry in one round trip.
func (l *RedisLimiter) Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, error) {
	pipe := l.client.Pipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}
	return incr.Val() <= limit, nil
}
