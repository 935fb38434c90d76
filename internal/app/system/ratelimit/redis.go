package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisLimiter is a fixed-window counter shared by every replica through
// Redis. Errors talking to Redis fail open: the request is allowed and the
// error is logged.
type RedisLimiter struct {
	client *redis.Client
	prefix string
	limit  int64
	window time.Duration
	log    *zap.Logger
}

// NewRedis builds a limiter that allows limit requests per window for each
// key, storing counters under prefix.
func NewRedis(client *redis.Client, prefix string, limit int, window time.Duration, logger *zap.Logger) *RedisLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisLimiter{
		client: client,
		prefix: prefix,
		limit:  int64(limit),
		window: window,
		log:    logger,
	}
}

// AllowKey implements KeyLimiter.
func (l *RedisLimiter) AllowKey(ctx context.Context, key string) bool {
	k := l.prefix + key

	n, err := l.client.Incr(ctx, k).Result()
	if err != nil {
		l.log.Warn("rate limit counter unavailable; allowing request",
			zap.String("key", k), zap.Error(err))
		return true
	}
	if n == 1 {
		if err := l.client.Expire(ctx, k, l.window).Err(); err != nil {
			l.log.Warn("rate limit expiry not set", zap.String("key", k), zap.Error(err))
		}
	}
	return n <= l.limit
}

// Reset clears the counter for key.
func (l *RedisLimiter) Reset(ctx context.Context, key string) error {
	return l.client.Del(ctx, l.prefix+key).Err()
}
