// Package mocks provides mock implementations of the entitlement use case interfaces.
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	entitlementDomain "github.com/allisson/tierguard/internal/entitlement/domain"
)

// MockEntitlementUseCase is a mock implementation of EntitlementUseCase for testing.
type MockEntitlementUseCase struct {
	mock.Mock
}

func (m *MockEntitlementUseCase) state(args mock.Arguments) (*entitlementDomain.TierState, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entitlementDomain.TierState), args.Error(1)
}

// RecordBillingFailure mocks the RecordBillingFailure method of EntitlementUseCase.
func (m *MockEntitlementUseCase) RecordBillingFailure(
	ctx context.Context,
	userID int64,
	at time.Time,
) (*entitlementDomain.TierState, error) {
	return m.state(m.Called(ctx, userID, at))
}

// RecordBillingSuccess mocks the RecordBillingSuccess method of EntitlementUseCase.
func (m *MockEntitlementUseCase) RecordBillingSuccess(
	ctx context.Context,
	userID int64,
	at time.Time,
) (*entitlementDomain.TierState, error) {
	return m.state(m.Called(ctx, userID, at))
}

// GrantPreview mocks the GrantPreview method of EntitlementUseCase.
func (m *MockEntitlementUseCase) GrantPreview(
	ctx context.Context,
	userID int64,
	tier entitlementDomain.Tier,
	expiresAt time.Time,
) (*entitlementDomain.TierState, error) {
	return m.state(m.Called(ctx, userID, tier, expiresAt))
}

// SetBaseTier mocks the SetBaseTier method of EntitlementUseCase.
func (m *MockEntitlementUseCase) SetBaseTier(
	ctx context.Context,
	userID int64,
	tier entitlementDomain.Tier,
) (*entitlementDomain.TierState, error) {
	return m.state(m.Called(ctx, userID, tier))
}

// Resolve mocks the Resolve method of EntitlementUseCase.
func (m *MockEntitlementUseCase) Resolve(ctx context.Context, userID int64) (*entitlementDomain.Resolution, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entitlementDomain.Resolution), args.Error(1)
}
