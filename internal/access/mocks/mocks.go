// Package mocks provides mock implementations of the access interfaces.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/allisson/tierguard/internal/access"
)

// MockEvaluator is a mock implementation of access.Evaluator for testing.
type MockEvaluator struct {
	mock.Mock
}

// Evaluate mocks the Evaluate method of Evaluator.
func (m *MockEvaluator) Evaluate(ctx context.Context, cred access.Credential) (*access.Decision, error) {
	args := m.Called(ctx, cred)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*access.Decision), args.Error(1)
}
