package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/allisson/tierguard/internal/clock"
	"github.com/allisson/tierguard/internal/config"
	"github.com/allisson/tierguard/internal/database"
	entitlementDomain "github.com/allisson/tierguard/internal/entitlement/domain"
)

// stateReadAttempts is one call plus a single transient retry.
const stateReadAttempts = 2

// entitlementUseCase implements EntitlementUseCase.
//
// Tier states read on the request path are cached for at most the configured
// refresh interval and dropped on every local write.
type entitlementUseCase struct {
	config    *config.Config
	txManager database.TxManager
	repo      TierStateRepository
	clock     clock.Clock
	cache     *gocache.Cache
	group     singleflight.Group
	timeout   time.Duration
	capacity  int
	logger    *slog.Logger
}

// RecordBillingFailure moves an active subscription into its grace period.
//
// A conditional update keeps the first lapse timestamp when failures arrive
// concurrently or repeat. The cached state of userID is dropped.
//
// Parameters:
//   - ctx: Context for cancellation and timeouts
//   - userID: The subscriber
//   - at: When billing failed; zero means now
//
// Returns:
//   - The stored state after the update
//   - ErrInvalidUser if userID is not positive
//   - ErrTierStateNotFound if the user has no state
func (e *entitlementUseCase) RecordBillingFailure(
	ctx context.Context,
	userID int64,
	at time.Time,
) (*entitlementDomain.TierState, error) {
	if userID <= 0 {
		return nil, entitlementDomain.ErrInvalidUser
	}
	at = e.at(at)

	changed, err := e.repo.MarkLapsed(ctx, userID, at)
	if err != nil {
		return nil, err
	}
	e.invalidate(userID)

	if changed {
		e.logger.Info("subscription lapsed",
			slog.Int64("user_id", userID),
			slog.Time("lapsed_since", at),
			slog.Time("grace_ends_at", at.Add(e.config.EntitlementGraceDuration)),
		)
	}
	return e.repo.Get(ctx, userID)
}

// RecordBillingSuccess restores from either lapsed state.
func (e *entitlementUseCase) RecordBillingSuccess(
	ctx context.Context,
	userID int64,
	at time.Time,
) (*entitlementDomain.TierState, error) {
	if userID <= 0 {
		return nil, entitlementDomain.ErrInvalidUser
	}
	at = e.at(at)

	changed, err := e.repo.MarkActive(ctx, userID, at)
	if err != nil {
		return nil, err
	}
	e.invalidate(userID)

	if changed {
		e.logger.Info("subscription restored", slog.Int64("user_id", userID))
	}
	return e.repo.Get(ctx, userID)
}

// GrantPreview assigns a temporary uplift ending at expiresAt.
//
// The state row is locked for the read-modify-write, and only the tier columns
// are written back, so a concurrent lapse or restore is never reverted. Users
// without a state start from observer.
//
// Returns:
//   - The stored state after the grant
//   - ErrInvalidTier if tier is unknown
//   - ErrPreviewExpired if expiresAt is not after now
func (e *entitlementUseCase) GrantPreview(
	ctx context.Context,
	userID int64,
	tier entitlementDomain.Tier,
	expiresAt time.Time,
) (*entitlementDomain.TierState, error) {
	return e.mutate(ctx, userID, func(state *entitlementDomain.TierState, now time.Time) error {
		return state.GrantPreview(tier, expiresAt, now)
	})
}

// SetBaseTier changes the subscribed tier inside a transaction.
func (e *entitlementUseCase) SetBaseTier(
	ctx context.Context,
	userID int64,
	tier entitlementDomain.Tier,
) (*entitlementDomain.TierState, error) {
	return e.mutate(ctx, userID, func(state *entitlementDomain.TierState, now time.Time) error {
		return state.SetBaseTier(tier, now)
	})
}

// Resolve loads the (cached) state and evaluates it at the current time.
//
// Cache misses are coalesced per user and read the store with one retry. The
// grace period and preview expiry are evaluated on every call, so a cached
// state still degrades on time.
//
// Returns:
//   - The resolution; users without a state resolve to observer
//   - ErrStoreUnavailable if both store reads fail
func (e *entitlementUseCase) Resolve(ctx context.Context, userID int64) (*entitlementDomain.Resolution, error) {
	state, err := e.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return entitlementDomain.Resolve(userID, state, e.clock.Now(), e.config.EntitlementGraceDuration), nil
}

func (e *entitlementUseCase) mutate(
	ctx context.Context,
	userID int64,
	apply func(state *entitlementDomain.TierState, now time.Time) error,
) (*entitlementDomain.TierState, error) {
	if userID <= 0 {
		return nil, entitlementDomain.ErrInvalidUser
	}

	var state *entitlementDomain.TierState
	err := e.txManager.WithTx(ctx, func(ctx context.Context) error {
		now := e.clock.Now()

		// The row lock makes a concurrent billing signal wait for this
		// transaction instead of being overwritten by it.
		current, err := e.repo.GetForUpdate(ctx, userID)
		if errors.Is(err, entitlementDomain.ErrTierStateNotFound) {
			current = entitlementDomain.NewTierState(userID, entitlementDomain.TierObserver, now)
		} else if err != nil {
			return err
		}

		if err := apply(current, now); err != nil {
			return err
		}
		if err := e.repo.SaveTiers(ctx, current); err != nil {
			return err
		}

		// A row inserted concurrently keeps its own status; report what is stored.
		state, err = e.repo.Get(ctx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}

	e.invalidate(userID)
	return state, nil
}

// load returns nil, nil for users without a stored state.
func (e *entitlementUseCase) load(ctx context.Context, userID int64) (*entitlementDomain.TierState, error) {
	key := strconv.FormatInt(userID, 10)
	if v, ok := e.cache.Get(key); ok {
		return copyState(v.(*entitlementDomain.TierState)), nil
	}

	v, err, _ := e.group.Do(key, func() (any, error) {
		return e.fetch(ctx, userID, key)
	})
	if err != nil {
		return nil, err
	}
	return copyState(v.(*entitlementDomain.TierState)), nil
}

func (e *entitlementUseCase) fetch(ctx context.Context, userID int64, key string) (*entitlementDomain.TierState, error) {
	var lastErr error
	for attempt := 1; attempt <= stateReadAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, e.timeout)
		state, err := e.repo.Get(attemptCtx, userID)
		cancel()

		if errors.Is(err, entitlementDomain.ErrTierStateNotFound) {
			// Absence is cached too; every write invalidates the key.
			e.admit(key, (*entitlementDomain.TierState)(nil))
			return nil, nil
		}
		if err == nil {
			e.admit(key, state)
			return state, nil
		}

		lastErr = err
		e.logger.Warn("tier state read failed",
			slog.Int64("user_id", userID),
			slog.Int("attempt", attempt),
			slog.Any("error", err),
		)
		if ctx.Err() != nil {
			break
		}
	}
	return nil, fmt.Errorf("%w: %w", entitlementDomain.ErrStoreUnavailable, lastErr)
}

func (e *entitlementUseCase) admit(key string, state *entitlementDomain.TierState) {
	if e.cache.ItemCount() >= e.capacity {
		e.cache.DeleteExpired()
		if e.cache.ItemCount() >= e.capacity {
			return
		}
	}
	e.cache.Set(key, copyState(state), gocache.DefaultExpiration)
}

func (e *entitlementUseCase) invalidate(userID int64) {
	e.cache.Delete(strconv.FormatInt(userID, 10))
}

func (e *entitlementUseCase) at(t time.Time) time.Time {
	if t.IsZero() {
		return e.clock.Now()
	}
	return t.UTC()
}

func copyState(s *entitlementDomain.TierState) *entitlementDomain.TierState {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

// NewEntitlementUseCase creates a new EntitlementUseCase.
//
// Configuration:
//   - cfg.EntitlementGraceDuration: How long a lapsed subscription keeps its base tier
//   - cfg.EntitlementCacheRefreshInterval: Tier state cache TTL (default 1s)
//   - cfg.EntitlementCacheMaxEntries: Tier state cache capacity (default 100000)
//   - cfg.StoreTimeout: Per-attempt store read timeout (default 250ms)
func NewEntitlementUseCase(
	cfg *config.Config,
	txManager database.TxManager,
	repo TierStateRepository,
	clk clock.Clock,
	logger *slog.Logger,
) EntitlementUseCase {
	refresh := cfg.EntitlementCacheRefreshInterval
	if refresh <= 0 {
		refresh = time.Second
	}
	timeout := cfg.StoreTimeout
	if timeout <= 0 {
		timeout = 250 * time.Millisecond
	}
	capacity := cfg.EntitlementCacheMaxEntries
	if capacity <= 0 {
		capacity = 100000
	}

	return &entitlementUseCase{
		config:    cfg,
		txManager: txManager,
		repo:      repo,
		clock:     clk,
		cache:     gocache.New(refresh, 0),
		timeout:   timeout,
		capacity:  capacity,
		logger:    logger.With(slog.String("component", "entitlement_usecase")),
	}
}
