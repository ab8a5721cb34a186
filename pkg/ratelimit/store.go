// Package ratelimit enforces per-organization sliding-window quotas for LLM
// calls, backed by a sorted-set counter store. The limiter fails open when
// the store is unreachable so an outage never blocks traffic.
package ratelimit

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Member is one entry of a sorted set: a unique request marker with its
// timestamp as score.
type Member struct {
	Member string
	Score  float64
}

// Store is the counter store behind the limiter. RedisStore is the
// production implementation; MemoryStore serves tests and local dev.
type Store interface {
	ZRemRangeByScore(ctx context.Context, key string, min, max float64) error
	ZCard(ctx context.Context, key string) (int64, error)
	ZRangeWithScores(ctx context.Context, key string, start, stop int64) ([]Member, error)
	ZAdd(ctx context.Context, key string, score float64, member string) error
	ZCount(ctx context.Context, key string, min, max float64) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
	HIncrBy(ctx context.Context, key, field string, incr int64) error
	HIncrByFloat(ctx context.Context, key, field string, incr float64) error
	HGet(ctx context.Context, key, field string) (string, bool, error)
	Del(ctx context.Context, keys ...string) error
}

// RedisStore implements Store on a Redis connection.
type RedisStore struct {
	client redis.Cmdable
}

// NewRedisStore wraps an existing Redis client.
func NewRedisStore(client redis.Cmdable) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) ZRemRangeByScore(ctx context.Context, key string, min, max float64) error {
	return s.client.ZRemRangeByScore(ctx, key, floatArg(min), floatArg(max)).Err()
}

func (s *RedisStore) ZCard(ctx context.Context, key string) (int64, error) {
	return s.client.ZCard(ctx, key).Result()
}

func (s *RedisStore) ZRangeWithScores(ctx context.Context, key string, start, stop int64) ([]Member, error) {
	zs, err := s.client.ZRangeWithScores(ctx, key, start, stop).Result()
	if err != nil {
		return nil, err
	}
	members := make([]Member, 0, len(zs))
	for _, z := range zs {
		name, _ := z.Member.(string)
		members = append(members, Member{Member: name, Score: z.Score})
	}
	return members, nil
}

func (s *RedisStore) ZAdd(ctx context.Context, key string, score float64, member string) error {
	return s.client.ZAdd(ctx, key, redis.Z{Score: score, Member: member}).Err()
}

func (s *RedisStore) ZCount(ctx context.Context, key string, min, max float64) (int64, error) {
	return s.client.ZCount(ctx, key, floatArg(min), floatArg(max)).Result()
}

func (s *RedisStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return s.client.Expire(ctx, key, ttl).Err()
}

func (s *RedisStore) HIncrBy(ctx context.Context, key, field string, incr int64) error {
	return s.client.HIncrBy(ctx, key, field, incr).Err()
}

func (s *RedisStore) HIncrByFloat(ctx context.Context, key, field string, incr float64) error {
	return s.client.HIncrByFloat(ctx, key, field, incr).Err()
}

func (s *RedisStore) HGet(ctx context.Context, key, field string) (string, bool, error) {
	val, err := s.client.HGet(ctx, key, field).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (s *RedisStore) Del(ctx context.Context, keys ...string) error {
	return s.client.Del(ctx, keys...).Err()
}

// floatArg formats a score bound as the string Redis range commands expect.
func floatArg(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
