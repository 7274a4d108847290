package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/allisson/tierguard/internal/clock"
	credentialDomain "github.com/allisson/tierguard/internal/credential/domain"
)

// RevocationIndexConfig bounds the revocation cache and store reads.
type RevocationIndexConfig struct {
	// RefreshInterval is the longest a cached live token may go unchecked.
	RefreshInterval time.Duration

	// MaxEntries caps the number of cached tokens.
	MaxEntries int

	// StoreTimeout applies to each store read attempt.
	StoreTimeout time.Duration
}

// storeReadAttempts is one call plus a single transient retry.
const storeReadAttempts = 2

// revocationIndex implements RevocationIndex over a TokenStore.
//
// Live tokens are cached for at most RefreshInterval, so a revocation made by
// another process is observed within one interval. Revoked tokens never become
// usable again and are cached until they expire.
type revocationIndex struct {
	store  TokenStore
	clock  clock.Clock
	cache  *gocache.Cache
	group  singleflight.Group
	cfg    RevocationIndexConfig
	logger *slog.Logger
}

// IsRevoked reports true for revoked, expired and unknown tokens.
func (r *revocationIndex) IsRevoked(ctx context.Context, tokenID uuid.UUID) (bool, error) {
	record, err := r.load(ctx, tokenID)
	if err != nil {
		if errors.Is(err, credentialDomain.ErrTokenNotFound) {
			return true, nil
		}
		return false, err
	}
	return !record.Usable(r.clock.Now()), nil
}

// Revoke durably revokes tokenID and caches the revocation until expiresAt.
func (r *revocationIndex) Revoke(ctx context.Context, tokenID uuid.UUID, expiresAt time.Time) error {
	if err := r.store.Revoke(ctx, tokenID); err != nil {
		if errors.Is(err, credentialDomain.ErrTokenNotFound) {
			return err
		}
		return unavailable(err)
	}

	record := &credentialDomain.TokenRecord{ID: tokenID, ExpiresAt: expiresAt, Revoked: true}
	if cached, ok := r.cached(tokenID); ok {
		record = cached
		record.Revoked = true
	}
	r.admit(record)

	r.logger.Info("token revoked", slog.String("token_id", tokenID.String()))
	return nil
}

// IsConsumedOnce reads the link from the store, bypassing the cache, and then
// consumes it with a conditional update.
//
// When the update loses, the link is read again to tell a replay apart from a
// revocation or expiry that landed after the first read.
//
// Returns:
//   - false, nil if this call consumed the link
//   - true, nil if another redemption consumed it first
//   - ErrInvalidCredential for unknown tokens and other kinds
//   - ErrRevokedOrExpired if the link is revoked or expired
//   - ErrStoreUnavailable if the store cannot answer
func (r *revocationIndex) IsConsumedOnce(ctx context.Context, tokenID uuid.UUID) (bool, error) {
	record, err := r.fetch(ctx, tokenID)
	if err != nil {
		if errors.Is(err, credentialDomain.ErrTokenNotFound) {
			return false, credentialDomain.ErrInvalidCredential
		}
		return false, err
	}

	if record.Kind != credentialDomain.KindMagicLink {
		return false, credentialDomain.ErrInvalidCredential
	}
	if !record.Usable(r.clock.Now()) {
		return false, credentialDomain.ErrRevokedOrExpired
	}
	if record.Consumed {
		return true, nil
	}

	now := r.clock.Now()
	consumed, err := r.store.ConsumeMagicLink(ctx, tokenID, now)
	if err != nil {
		return false, unavailable(err)
	}
	if consumed {
		return false, nil
	}

	// The update lost: another redemption won, or the link was revoked or
	// expired after the first read. Only the former is a replay.
	record, err = r.fetch(ctx, tokenID)
	if err != nil {
		if errors.Is(err, credentialDomain.ErrTokenNotFound) {
			return false, credentialDomain.ErrRevokedOrExpired
		}
		return false, err
	}
	if record.Usable(now) && record.Consumed {
		return true, nil
	}
	return false, credentialDomain.ErrRevokedOrExpired
}

// Verify returns the record when it is usable and matches ownerID and kind.
func (r *revocationIndex) Verify(
	ctx context.Context,
	tokenID uuid.UUID,
	ownerID int64,
	kind credentialDomain.Kind,
) (*credentialDomain.TokenRecord, error) {
	record, err := r.load(ctx, tokenID)
	if err != nil {
		if errors.Is(err, credentialDomain.ErrTokenNotFound) {
			return nil, credentialDomain.ErrInvalidCredential
		}
		return nil, err
	}

	if !record.Usable(r.clock.Now()) {
		return nil, credentialDomain.ErrRevokedOrExpired
	}
	if record.OwnerID != ownerID || record.Kind != kind {
		return nil, credentialDomain.ErrInvalidCredential
	}
	return record, nil
}

// Invalidate drops the given tokens from the cache.
func (r *revocationIndex) Invalidate(tokenIDs ...uuid.UUID) {
	for _, id := range tokenIDs {
		r.cache.Delete(id.String())
	}
}

// load serves from the cache and coalesces concurrent misses for one token.
func (r *revocationIndex) load(ctx context.Context, tokenID uuid.UUID) (*credentialDomain.TokenRecord, error) {
	if record, ok := r.cached(tokenID); ok {
		return record, nil
	}

	v, err, _ := r.group.Do(tokenID.String(), func() (any, error) {
		return r.fetch(ctx, tokenID)
	})
	if err != nil {
		return nil, err
	}

	record := *v.(*credentialDomain.TokenRecord)
	return &record, nil
}

// fetch reads the store with a per-attempt timeout and one retry, then caches
// the result.
func (r *revocationIndex) fetch(ctx context.Context, tokenID uuid.UUID) (*credentialDomain.TokenRecord, error) {
	var lastErr error
	for attempt := 1; attempt <= storeReadAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, r.cfg.StoreTimeout)
		record, err := r.store.Get(attemptCtx, tokenID)
		cancel()

		if err == nil {
			r.admit(record)
			return record, nil
		}
		if errors.Is(err, credentialDomain.ErrTokenNotFound) {
			return nil, err
		}

		lastErr = err
		r.logger.Warn("token store read failed",
			slog.String("token_id", tokenID.String()),
			slog.Int("attempt", attempt),
			slog.Any("error", err),
		)
		if ctx.Err() != nil {
			break
		}
	}
	return nil, unavailable(lastErr)
}

func (r *revocationIndex) cached(tokenID uuid.UUID) (*credentialDomain.TokenRecord, bool) {
	v, ok := r.cache.Get(tokenID.String())
	if !ok {
		return nil, false
	}
	record := *v.(*credentialDomain.TokenRecord)
	return &record, true
}

// admit caches a copy of record. Revoked records live until their expiry;
// everything else lives one refresh interval. A full cache admits nothing new.
func (r *revocationIndex) admit(record *credentialDomain.TokenRecord) {
	key := record.ID.String()
	if _, ok := r.cache.Get(key); !ok && r.cache.ItemCount() >= r.cfg.MaxEntries {
		r.cache.DeleteExpired()
		if r.cache.ItemCount() >= r.cfg.MaxEntries {
			return
		}
	}

	ttl := r.cfg.RefreshInterval
	if record.Revoked {
		if untilExpiry := record.ExpiresAt.Sub(r.clock.Now()); untilExpiry > ttl {
			ttl = untilExpiry
		}
	}

	copied := *record
	r.cache.Set(key, &copied, ttl)
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %w", credentialDomain.ErrStoreUnavailable, err)
}

// NewRevocationIndex creates a RevocationIndex backed by store.
//
// Configuration:
//   - cfg.RefreshInterval: Cache TTL for live tokens (default 1s)
//   - cfg.MaxEntries: Cache capacity; new entries are skipped when full (default 100000)
//   - cfg.StoreTimeout: Per-attempt store read timeout (default 250ms)
func NewRevocationIndex(
	store TokenStore,
	clk clock.Clock,
	cfg RevocationIndexConfig,
	logger *slog.Logger,
) RevocationIndex {
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = time.Second
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 100000
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = 250 * time.Millisecond
	}

	return &revocationIndex{
		store: store,
		clock: clk,
		// No janitor goroutine: expired entries are dropped on read and swept
		// when the cache fills.
		cache:  gocache.New(cfg.RefreshInterval, 0),
		cfg:    cfg,
		logger: logger.With(slog.String("component", "revocation_index")),
	}
}
