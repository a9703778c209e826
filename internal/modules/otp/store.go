// README: OTP store backed by a Redis hash per (order, leg) with TTL.
package otp

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"spoke/internal/types"
)

const codeTTL = 10 * time.Minute

type RedisStore struct {
	redis *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{redis: client}
}

func otpKey(orderID types.ID, leg string) string {
	return fmt.Sprintf("otp:%s:%s", string(orderID), leg)
}

// Save replaces any prior code for the leg and resets its attempt counter.
func (s *RedisStore) Save(ctx context.Context, orderID types.ID, leg, hash string) error {
	key := otpKey(orderID, leg)
	pipe := s.redis.Pipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key, "hash", hash, "attempts", 0)
	pipe.Expire(ctx, key, codeTTL)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisStore) Load(ctx context.Context, orderID types.ID, leg string) (string, int, error) {
	fields, err := s.redis.HGetAll(ctx, otpKey(orderID, leg)).Result()
	if err != nil {
		return "", 0, err
	}
	hash, ok := fields["hash"]
	if !ok {
		return "", 0, ErrExpired
	}
	attempts, _ := strconv.Atoi(fields["attempts"])
	return hash, attempts, nil
}

// BumpAttempts atomically increments the failure counter and returns it.
func (s *RedisStore) BumpAttempts(ctx context.Context, orderID types.ID, leg string) (int, error) {
	n, err := s.redis.HIncrBy(ctx, otpKey(orderID, leg), "attempts", 1).Result()
	return int(n), err
}

func (s *RedisStore) Delete(ctx context.Context, orderID types.ID, leg string) error {
	return s.redis.Del(ctx, otpKey(orderID, leg)).Err()
}
