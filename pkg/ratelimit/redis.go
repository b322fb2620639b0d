package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisStore is the shared counter store for multi-instance
// deployments. INCR is atomic on the server, so concurrent increments
// for the same key from different instances never lose updates.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a Redis-backed counter store
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "ratelimit"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(key string) string {
	return fmt.Sprintf("%s:%s", s.prefix, key)
}

// Increment advances the counter for key. The window TTL is set only
// when the key is created, so the window does not slide on every hit.
func (s *RedisStore) Increment(ctx context.Context, key string, windowLen time.Duration) (int, time.Time, error) {
	redisKey := s.key(key)

	pipe := s.client.Pipeline()
	incr := pipe.Incr(ctx, redisKey)
	ttl := pipe.TTL(ctx, redisKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, time.Time{}, fmt.Errorf("redis increment: %w", err)
	}

	count := int(incr.Val())
	remaining := ttl.Val()
	if remaining < 0 {
		// Fresh key, or one that lost its TTL: start the window now.
		if err := s.client.Expire(ctx, redisKey, windowLen).Err(); err != nil {
			return 0, time.Time{}, fmt.Errorf("redis expire: %w", err)
		}
		remaining = windowLen
	}

	return count, time.Now().Add(remaining), nil
}

// Decrement undoes one increment within the current window
func (s *RedisStore) Decrement(ctx context.Context, key string) error {
	redisKey := s.key(key)
	count, err := s.client.Decr(ctx, redisKey).Result()
	if err != nil {
		return fmt.Errorf("redis decrement: %w", err)
	}
	if count < 0 {
		// Never let uncounting drive the counter negative.
		return s.client.Set(ctx, redisKey, 0, redis.KeepTTL).Err()
	}
	return nil
}

// Reset clears the counter for key
func (s *RedisStore) Reset(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.key(key)).Err()
}

// Ping verifies connectivity to the shared store
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
