// Package ratelimit enforces tier-keyed request budgets over fixed windows.
package ratelimit

import (
	"context"
	"math"
	"time"

	entitlementDomain "github.com/allisson/tierguard/internal/entitlement/domain"
	"github.com/allisson/tierguard/internal/errors"
)

// DefaultWindow is the bucket length used when none is configured.
const DefaultWindow = time.Minute

// defaultLimit applies to tiers missing from the limit table.
const defaultLimit = 60

// ErrRateLimited indicates the caller exhausted the budget of its tier.
var ErrRateLimited = errors.Wrap(errors.ErrTooManyRequests, "rate limit exceeded")

var tierLimits = map[entitlementDomain.Tier]int{
	entitlementDomain.TierObserver:  30,
	entitlementDomain.TierNavigator: 60,
	entitlementDomain.TierOperator:  120,
	entitlementDomain.TierSovereign: 240,
}

// LimitFor returns the number of requests per window granted to tier.
func LimitFor(tier entitlementDomain.Tier) int {
	if limit, ok := tierLimits[tier]; ok {
		return limit
	}
	return defaultLimit
}

// Result is the verdict for a single request.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter returns how long a denied caller should wait, rounded up to whole seconds.
func (r Result) RetryAfter(now time.Time) time.Duration {
	wait := r.ResetAt.Sub(now)
	if wait <= 0 {
		return time.Second
	}
	return time.Duration(math.Ceil(wait.Seconds())) * time.Second
}

// Limiter counts requests per (key, tier) over fixed windows.
type Limiter interface {
	// Allow records one request for key and reports whether it fits the tier budget.
	Allow(ctx context.Context, key string, tier entitlementDomain.Tier) (Result, error)

	// LimitFor returns the per-window limit for tier.
	LimitFor(tier entitlementDomain.Tier) int
}

func newResult(count int64, limit int, windowStart time.Time, window time.Duration) Result {
	remaining := int64(limit) - count
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:   count <= int64(limit),
		Limit:     limit,
		Remaining: int(remaining),
		ResetAt:   windowStart.Add(window),
	}
}

func bucketKey(key string, tier entitlementDomain.Tier) string {
	return string(tier) + ":" + key
}

// NoopLimiter allows every request. It backs deployments with tier rate
// limiting disabled and still reports the tier limit for headers.
type NoopLimiter struct{}

// Allow always allows.
func (NoopLimiter) Allow(_ context.Context, _ string, tier entitlementDomain.Tier) (Result, error) {
	limit := LimitFor(tier)
	return Result{Allowed: true, Limit: limit, Remaining: limit}, nil
}

// LimitFor returns the per-window limit for tier.
func (NoopLimiter) LimitFor(tier entitlementDomain.Tier) int {
	return LimitFor(tier)
}
