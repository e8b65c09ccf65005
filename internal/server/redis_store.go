package server

import (
	"context"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const defaultRedisTimeout = 2 * time.Second

// redisCounterStore keeps fixed-window counters in redis so multiple
// instances share limits. Windows expire server-side via EXPIRE NX.
type redisCounterStore struct {
	client  redis.UniversalClient
	timeout time.Duration
}

func newRedisCounterStore(cfg RateLimitConfig) *redisCounterStore {
	timeout := cfg.RedisTimeout
	if timeout <= 0 {
		timeout = defaultRedisTimeout
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:        []string{cfg.RedisAddr},
		Username:     cfg.RedisUsername,
		Password:     cfg.RedisPassword,
		DialTimeout:  timeout,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	})
	return &redisCounterStore{client: client, timeout: timeout}
}

func (s *redisCounterStore) Incr(key string, window time.Duration) (int64, time.Duration, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, window)
	ttl := pipe.TTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, 0, err
	}

	remaining := ttl.Val()
	if remaining < 0 {
		remaining = window
	}
	return incr.Val(), remaining, nil
}

func (s *redisCounterStore) Close() error {
	return s.client.Close()
}
