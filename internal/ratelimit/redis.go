package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/creditmeter-backend/pkg/redis"
)

// RedisStore shares counters across instances through redis.
type RedisStore struct {
	counter redis.WindowCounter
}

func NewRedisStore(counter redis.WindowCounter) (*RedisStore, error) {
	if counter == nil {
		return nil, fmt.Errorf("redis counter required")
	}
	return &RedisStore{counter: counter}, nil
}

func (s *RedisStore) Take(ctx context.Context, limiter, client string, maxAttempts int, window time.Duration) (Decision, error) {
	count, ttl, err := s.counter.IncrWindow(ctx, s.counter.RateLimitKey(limiter, client), window)
	if err != nil {
		return Decision{}, fmt.Errorf("incr rate limit window: %w", err)
	}
	if count <= int64(maxAttempts) {
		return Decision{Allowed: true, Count: count}, nil
	}
	return Decision{Allowed: false, Count: count, RetryAfter: ttl}, nil
}
