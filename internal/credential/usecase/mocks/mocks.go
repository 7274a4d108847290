// Package mocks provides mock implementations of the credential use case interfaces.
package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	credentialDomain "github.com/allisson/tierguard/internal/credential/domain"
)

// MockCredentialUseCase is a mock implementation of CredentialUseCase for testing.
type MockCredentialUseCase struct {
	mock.Mock
}

// Issue mocks the Issue method of CredentialUseCase.
func (m *MockCredentialUseCase) Issue(
	ctx context.Context,
	input *credentialDomain.IssueTokenInput,
) (*credentialDomain.IssueTokenOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*credentialDomain.IssueTokenOutput), args.Error(1)
}

// Revoke mocks the Revoke method of CredentialUseCase.
func (m *MockCredentialUseCase) Revoke(ctx context.Context, tokenID uuid.UUID) error {
	args := m.Called(ctx, tokenID)
	return args.Error(0)
}

// RevokeAllForOwner mocks the RevokeAllForOwner method of CredentialUseCase.
func (m *MockCredentialUseCase) RevokeAllForOwner(ctx context.Context, ownerID int64) (int, error) {
	args := m.Called(ctx, ownerID)
	return args.Int(0), args.Error(1)
}

// RedeemMagicLink mocks the RedeemMagicLink method of CredentialUseCase.
func (m *MockCredentialUseCase) RedeemMagicLink(
	ctx context.Context,
	rawCredential string,
) (*credentialDomain.IssueTokenOutput, error) {
	args := m.Called(ctx, rawCredential)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*credentialDomain.IssueTokenOutput), args.Error(1)
}

// CleanupExpired mocks the CleanupExpired method of CredentialUseCase.
func (m *MockCredentialUseCase) CleanupExpired(ctx context.Context, days int, dryRun bool) (int64, error) {
	args := m.Called(ctx, days, dryRun)
	return args.Get(0).(int64), args.Error(1)
}
