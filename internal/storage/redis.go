package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps one hash per session. With a TTL the whole hash expires
// after that much inactivity; writes push the deadline out.
type RedisStore struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{redis: rdb, ttl: ttl}
}

func (s *RedisStore) key(sessionID string) string {
	return fmt.Sprintf("astraconsole:session:%s", sessionID)
}

func (s *RedisStore) Get(ctx context.Context, sessionID, key string) (string, bool, error) {
	v, err := s.redis.HGet(ctx, s.key(sessionID), key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis hget: %w", err)
	}
	return v, true, nil
}

func (s *RedisStore) Set(ctx context.Context, sessionID, key, value string) error {
	k := s.key(sessionID)
	pipe := s.redis.TxPipeline()
	pipe.HSet(ctx, k, key, value)
	if s.ttl > 0 {
		pipe.Expire(ctx, k, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis hset: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, sessionID, key string) error {
	if err := s.redis.HDel(ctx, s.key(sessionID), key).Err(); err != nil {
		return fmt.Errorf("redis hdel: %w", err)
	}
	return nil
}

// Close leaves the shared client open; its owner closes it.
func (s *RedisStore) Close() error { return nil }
