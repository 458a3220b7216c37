// Package ratelimit throttles login attempts with a fixed window counter
// in Redis, keyed by client IP.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Limiter counts login attempts per client. When Redis is unreachable the
// limiter fails closed: an attacker able to take the counter store down
// must not gain an unthrottled login endpoint.
type Limiter struct {
	client *redis.Client
	log    *zap.Logger

	maxAttempts int
	window      time.Duration
}

// New builds a limiter allowing maxAttempts per window for each key.
func New(client *redis.Client, maxAttempts int, window time.Duration, log *zap.Logger) *Limiter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Limiter{
		client:      client,
		log:         log.Named("ratelimit"),
		maxAttempts: maxAttempts,
		window:      window,
	}
}

// Allow records one attempt for key and reports whether it is within the
// limit. The count is incremented before the check, so denied attempts
// still extend pressure on the window.
func (l *Limiter) Allow(ctx context.Context, key string) (bool, error) {
	redisKey := fmt.Sprintf("ratelimit:login:%s", key)

	count, err := l.client.Incr(ctx, redisKey).Result()
	if err != nil {
		l.log.Error("rate limit backend unavailable, denying request",
			zap.String("key", key), zap.Error(err))
		return false, fmt.Errorf("rate limit backend: %w", err)
	}

	if count == 1 {
		if err := l.client.Expire(ctx, redisKey, l.window).Err(); err != nil {
			// The key now exists without a TTL; deleting it is safer
			// than letting it throttle forever.
			l.client.Del(ctx, redisKey)
			l.log.Error("rate limit expiry not set, denying request",
				zap.String("key", key), zap.Error(err))
			return false, fmt.Errorf("rate limit backend: %w", err)
		}
	}

	if count > int64(l.maxAttempts) {
		l.log.Warn("login rate limit exceeded",
			zap.String("key", key), zap.Int64("count", count))
		return false, nil
	}
	return true, nil
}

// Reset clears the counter for key, used after a successful login so a
// user who finally typed the right password is not locked out by their
// own earlier attempts.
func (l *Limiter) Reset(ctx context.Context, key string) {
	if err := l.client.Del(ctx, fmt.Sprintf("ratelimit:login:%s", key)).Err(); err != nil {
		l.log.Warn("rate limit reset failed", zap.String("key", key), zap.Error(err))
	}
}
