package invoice

import (
	"context"

	redis "github.com/redis/go-redis/v9"
)

const defaultSequenceKey = "autoparts:invoice:seq"

// RedisSequence keeps the counter in Redis so numbers survive restarts and
// stay unique across replicas.
type RedisSequence struct {
	client *redis.Client
	key    string
}

func NewRedisSequence(addr string, password string, db int) *RedisSequence {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisSequence{client: client, key: defaultSequenceKey}
}

// WithKey returns a copy that increments a different key.
func (s *RedisSequence) WithKey(key string) *RedisSequence {
	return &RedisSequence{client: s.client, key: key}
}

func (s *RedisSequence) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisSequence) Close() error {
	return s.client.Close()
}

func (s *RedisSequence) Next(ctx context.Context) (int64, error) {
	return s.client.Incr(ctx, s.key).Result()
}
