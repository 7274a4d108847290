package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/allisson/tierguard/internal/clock"
	entitlementDomain "github.com/allisson/tierguard/internal/entitlement/domain"
	"github.com/allisson/tierguard/internal/errors"
)

// RedisLimiter is a fixed-window limiter shared by every instance pointing
// at the same Redis. Each window gets its own key that expires with it.
type RedisLimiter struct {
	client redis.UniversalClient
	prefix string
	window time.Duration
	clock  clock.Clock
}

// NewRedisLimiter creates a RedisLimiter. An empty prefix defaults to "rl:".
func NewRedisLimiter(client redis.UniversalClient, prefix string, window time.Duration, clk clock.Clock) *RedisLimiter {
	if prefix == "" {
		prefix = "rl:"
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &RedisLimiter{
		client: client,
		prefix: prefix,
		window: window,
		clock:  clk,
	}
}

// LimitFor returns the per-window limit for tier.
func (l *RedisLimiter) LimitFor(tier entitlementDomain.Tier) int {
	return LimitFor(tier)
}

// Allow increments the window counter and refreshes its expiry in one transaction.
func (l *RedisLimiter) Allow(ctx context.Context, key string, tier entitlementDomain.Tier) (Result, error) {
	limit := LimitFor(tier)
	windowStart := l.clock.Now().Truncate(l.window)
	redisKey := fmt.Sprintf(
		"%s%s:%d",
		l.prefix,
		strings.ReplaceAll(bucketKey(key, tier), " ", "_"),
		windowStart.Unix(),
	)

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.Expire(ctx, redisKey, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return Result{}, fmt.Errorf("%w: rate limit store: %w", errors.ErrUnavailable, err)
	}

	return newResult(incr.Val(), limit, windowStart, l.window), nil
}
