// Package usecase implements entitlement lifecycle operations: billing
// signals, previews, base tier changes and cached tier resolution.
package usecase

import (
	"context"
	"time"

	entitlementDomain "github.com/allisson/tierguard/internal/entitlement/domain"
)

// TierStateRepository defines persistence operations for tier states.
// Implementations must support transaction-aware operations via context propagation.
type TierStateRepository interface {
	// Get retrieves the state of a user. Returns ErrTierStateNotFound if none exists.
	Get(ctx context.Context, userID int64) (*entitlementDomain.TierState, error)

	// GetForUpdate is Get plus a row lock held until the surrounding
	// transaction ends. Used by read-modify-write paths.
	GetForUpdate(ctx context.Context, userID int64) (*entitlementDomain.TierState, error)

	// SaveTiers inserts a state, or updates only its base and preview tiers.
	// Subscription status columns are never overwritten on an existing row.
	SaveTiers(ctx context.Context, state *entitlementDomain.TierState) error

	// MarkLapsed moves an active subscription to lapsed; false if already lapsed.
	MarkLapsed(ctx context.Context, userID int64, at time.Time) (bool, error)

	// MarkActive restores a lapsed subscription; false if already active.
	MarkActive(ctx context.Context, userID int64, at time.Time) (bool, error)
}

// EntitlementUseCase defines business logic operations for user entitlements.
type EntitlementUseCase interface {
	// RecordBillingFailure lapses an active subscription at the given time,
	// starting the grace window. A failure while already lapsed changes nothing.
	RecordBillingFailure(ctx context.Context, userID int64, at time.Time) (*entitlementDomain.TierState, error)

	// RecordBillingSuccess restores a lapsed subscription, in or past grace.
	RecordBillingSuccess(ctx context.Context, userID int64, at time.Time) (*entitlementDomain.TierState, error)

	// GrantPreview assigns a temporary uplift ending at expiresAt. Users without
	// a state start from observer.
	GrantPreview(
		ctx context.Context,
		userID int64,
		tier entitlementDomain.Tier,
		expiresAt time.Time,
	) (*entitlementDomain.TierState, error)

	// SetBaseTier changes the subscribed tier, creating the state if needed.
	SetBaseTier(ctx context.Context, userID int64, tier entitlementDomain.Tier) (*entitlementDomain.TierState, error)

	// Resolve returns the entitlement of a user now. Users without a state
	// resolve to observer. Returns ErrStoreUnavailable when the store cannot answer.
	Resolve(ctx context.Context, userID int64) (*entitlementDomain.Resolution, error)
}
