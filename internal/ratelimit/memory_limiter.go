package ratelimit

import (
	"context"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"github.com/allisson/tierguard/internal/clock"
	entitlementDomain "github.com/allisson/tierguard/internal/entitlement/domain"
)

const shardCount = 64

type bucket struct {
	mu          sync.Mutex
	windowStart time.Time
	count       int64
	// evicted is set by Sweep before the bucket leaves its shard. A caller
	// holding a stale pointer must look the key up again.
	evicted bool
}

type shard struct {
	mu      sync.RWMutex
	buckets map[string]*bucket
}

// MemoryLimiter is an in-process fixed-window limiter.
//
// Buckets live in a sharded map and each bucket has its own lock, so unrelated
// keys never contend on the same mutex. Buckets are lost on restart.
type MemoryLimiter struct {
	shards [shardCount]*shard
	window time.Duration
	clock  clock.Clock
	logger *slog.Logger
}

// NewMemoryLimiter creates a MemoryLimiter with the given window length.
func NewMemoryLimiter(window time.Duration, clk clock.Clock, logger *slog.Logger) *MemoryLimiter {
	if window <= 0 {
		window = DefaultWindow
	}
	l := &MemoryLimiter{
		window: window,
		clock:  clk,
		logger: logger.With(slog.String("component", "memory_limiter")),
	}
	for i := range l.shards {
		l.shards[i] = &shard{buckets: make(map[string]*bucket)}
	}
	return l
}

// LimitFor returns the per-window limit for tier.
func (l *MemoryLimiter) LimitFor(tier entitlementDomain.Tier) int {
	return LimitFor(tier)
}

// Allow counts one request. It never blocks on I/O and never fails.
func (l *MemoryLimiter) Allow(_ context.Context, key string, tier entitlementDomain.Tier) (Result, error) {
	limit := LimitFor(tier)
	windowStart := l.clock.Now().Truncate(l.window)

	bk := bucketKey(key, tier)

	b := l.bucket(bk)
	b.mu.Lock()
	for b.evicted {
		b.mu.Unlock()
		b = l.bucket(bk)
		b.mu.Lock()
	}
	if !b.windowStart.Equal(windowStart) {
		b.windowStart = windowStart
		b.count = 0
	}
	b.count++
	count := b.count
	b.mu.Unlock()

	return newResult(count, limit, windowStart, l.window), nil
}

func (l *MemoryLimiter) bucket(key string) *bucket {
	s := l.shardFor(key)

	s.mu.RLock()
	b, ok := s.buckets[key]
	s.mu.RUnlock()
	if ok {
		return b
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok = s.buckets[key]; !ok {
		b = &bucket{}
		s.buckets[key] = b
	}
	return b
}

func (l *MemoryLimiter) shardFor(key string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return l.shards[h.Sum32()%shardCount]
}

// Sweep drops buckets whose window has closed and returns how many were removed.
func (l *MemoryLimiter) Sweep() int {
	current := l.clock.Now().Truncate(l.window)
	removed := 0

	for _, s := range l.shards {
		s.mu.Lock()
		for key, b := range s.buckets {
			b.mu.Lock()
			stale := b.windowStart.Before(current)
			if stale {
				b.evicted = true
			}
			b.mu.Unlock()
			if stale {
				delete(s.buckets, key)
				removed++
			}
		}
		s.mu.Unlock()
	}
	return removed
}

// Len returns the number of live buckets.
func (l *MemoryLimiter) Len() int {
	n := 0
	for _, s := range l.shards {
		s.mu.RLock()
		n += len(s.buckets)
		s.mu.RUnlock()
	}
	return n
}

// Run sweeps stale buckets once per window until ctx is cancelled.
func (l *MemoryLimiter) Run(ctx context.Context) {
	ticker := time.NewTicker(l.window)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := l.Sweep(); removed > 0 {
				l.logger.Debug("rate limit buckets swept", slog.Int("removed", removed))
			}
		}
	}
}
