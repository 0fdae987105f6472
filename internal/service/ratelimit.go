package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func CheckAndSetRateLimit(ctx context.Context, rdb *redis.Client, userID uuid.UUID, action string, limit time.Duration) (bool, error) {
	if rdb == nil {
		return true, nil
	}

	key := fmt.Sprintf("rate_limit:user:%s:%s", userID.String(), action)

	wasSet, err := rdb.SetNX(ctx, key, "locked", limit).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check rate limit in redis: %w", err)
	}

	return wasSet, nil
}

func GetRateLimitTTL(ctx context.Context, rdb *redis.Client, userID uuid.UUID, action string) (time.Duration, error) {
	if rdb == nil {
		return 0, nil
	}
	key := fmt.Sprintf("rate_limit:user:%s:%s", userID.String(), action)
	return rdb.TTL(ctx, key).Result()
}

// SignalRateLimiter throttles notification-bearing socket signals per
// user and action. Satisfies the relay's RateLimiter interface; a nil
// redis client disables limiting.
type SignalRateLimiter struct {
	rdb    *redis.Client
	window time.Duration
}

func NewSignalRateLimiter(rdb *redis.Client, window time.Duration) *SignalRateLimiter {
	if window <= 0 {
		window = 5 * time.Second
	}
	return &SignalRateLimiter{rdb: rdb, window: window}
}

func (l *SignalRateLimiter) Allow(ctx context.Context, userID uuid.UUID, action string) (bool, error) {
	return CheckAndSetRateLimit(ctx, l.rdb, userID, action, l.window)
}
