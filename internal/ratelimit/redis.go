package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const redisKeyPrefix = "ratelimit:"

// RedisStore keeps one list per identity per day so counts survive restarts
// and are shared by every replica. Lists expire shortly after their day ends.
type RedisStore struct {
	client *redis.Client
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore connects to redisURL and verifies the connection.
func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisStore{client: client}, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Count returns the size of the list for since's day. Callers always pass
// the start of the current day.
func (s *RedisStore) Count(ctx context.Context, identity string, since time.Time) (int, error) {
	n, err := s.client.LLen(ctx, dayKey(identity, since)).Result()
	if err != nil {
		return 0, fmt.Errorf("redis llen failed: %w", err)
	}
	return int(n), nil
}

func (s *RedisStore) Add(ctx context.Context, identity string, at time.Time) error {
	key := dayKey(identity, at)
	expireAt := startOfDay(at).AddDate(0, 0, 1).Add(time.Hour)

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, at.Format(time.RFC3339Nano))
		pipe.ExpireAt(ctx, key, expireAt)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis record failed: %w", err)
	}
	return nil
}

func dayKey(identity string, t time.Time) string {
	return redisKeyPrefix + identity + ":" + t.Format("2006-01-02")
}
