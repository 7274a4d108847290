package usecase

import (
	"context"
	"time"

	entitlementDomain "github.com/allisson/tierguard/internal/entitlement/domain"
	"github.com/allisson/tierguard/internal/metrics"
)

// entitlementUseCaseWithMetrics decorates EntitlementUseCase with metrics instrumentation.
type entitlementUseCaseWithMetrics struct {
	next    EntitlementUseCase
	metrics metrics.BusinessMetrics
}

// NewEntitlementUseCaseWithMetrics wraps an EntitlementUseCase with metrics recording.
func NewEntitlementUseCaseWithMetrics(useCase EntitlementUseCase, m metrics.BusinessMetrics) EntitlementUseCase {
	return &entitlementUseCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

func (e *entitlementUseCaseWithMetrics) record(ctx context.Context, operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	e.metrics.RecordOperation(ctx, "entitlement", operation, status)
	e.metrics.RecordDuration(ctx, "entitlement", operation, time.Since(start), status)
}

// RecordBillingFailure records metrics for billing failure signals.
func (e *entitlementUseCaseWithMetrics) RecordBillingFailure(
	ctx context.Context,
	userID int64,
	at time.Time,
) (*entitlementDomain.TierState, error) {
	start := time.Now()
	state, err := e.next.RecordBillingFailure(ctx, userID, at)
	e.record(ctx, "billing_failure", start, err)
	return state, err
}

// RecordBillingSuccess records metrics for billing success signals.
func (e *entitlementUseCaseWithMetrics) RecordBillingSuccess(
	ctx context.Context,
	userID int64,
	at time.Time,
) (*entitlementDomain.TierState, error) {
	start := time.Now()
	state, err := e.next.RecordBillingSuccess(ctx, userID, at)
	e.record(ctx, "billing_success", start, err)
	return state, err
}

// GrantPreview records metrics for preview grants.
func (e *entitlementUseCaseWithMetrics) GrantPreview(
	ctx context.Context,
	userID int64,
	tier entitlementDomain.Tier,
	expiresAt time.Time,
) (*entitlementDomain.TierState, error) {
	start := time.Now()
	state, err := e.next.GrantPreview(ctx, userID, tier, expiresAt)
	e.record(ctx, "preview_grant", start, err)
	return state, err
}

// SetBaseTier records metrics for base tier changes.
func (e *entitlementUseCaseWithMetrics) SetBaseTier(
	ctx context.Context,
	userID int64,
	tier entitlementDomain.Tier,
) (*entitlementDomain.TierState, error) {
	start := time.Now()
	state, err := e.next.SetBaseTier(ctx, userID, tier)
	e.record(ctx, "base_tier_set", start, err)
	return state, err
}

// Resolve records metrics for tier resolution.
func (e *entitlementUseCaseWithMetrics) Resolve(
	ctx context.Context,
	userID int64,
) (*entitlementDomain.Resolution, error) {
	start := time.Now()
	resolution, err := e.next.Resolve(ctx, userID)
	e.record(ctx, "tier_resolve", start, err)
	return resolution, err
}
