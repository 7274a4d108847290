package commands

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	credentialDomain "github.com/allisson/tierguard/internal/credential/domain"
	credentialMocks "github.com/allisson/tierguard/internal/credential/usecase/mocks"
)

func TestRunIssueToken(t *testing.T) {
	ctx := context.Background()
	logger := slog.Default()
	tokenID := uuid.Must(uuid.NewV7())
	output := &credentialDomain.IssueTokenOutput{
		Token: "header.payload.signature",
		Record: &credentialDomain.TokenRecord{
			ID:        tokenID,
			Kind:      credentialDomain.KindRefresh,
			OwnerID:   42,
			IssuedAt:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
			ExpiresAt: time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC),
		},
	}
	matchInput := mock.MatchedBy(func(in *credentialDomain.IssueTokenInput) bool {
		return in.Kind == credentialDomain.KindRefresh && in.OwnerID == 42
	})

	t.Run("text-output", func(t *testing.T) {
		mockUseCase := &credentialMocks.MockCredentialUseCase{}
		mockUseCase.On("Issue", ctx, matchInput).Return(output, nil)

		var out bytes.Buffer
		err := RunIssueToken(ctx, mockUseCase, logger, &out, "refresh", 42, "text")

		require.NoError(t, err)
		require.Contains(t, out.String(), tokenID.String())
		require.Contains(t, out.String(), "header.payload.signature")
		require.Contains(t, out.String(), "2026-01-31T00:00:00Z")
		mockUseCase.AssertExpectations(t)
	})

	t.Run("json-output", func(t *testing.T) {
		mockUseCase := &credentialMocks.MockCredentialUseCase{}
		mockUseCase.On("Issue", ctx, matchInput).Return(output, nil)

		var out bytes.Buffer
		err := RunIssueToken(ctx, mockUseCase, logger, &out, "refresh", 42, "json")

		require.NoError(t, err)
		require.Contains(t, out.String(), `"token": "header.payload.signature"`)
		require.Contains(t, out.String(), `"kind": "refresh"`)
		require.Contains(t, out.String(), `"owner_id": 42`)
		mockUseCase.AssertExpectations(t)
	})

	t.Run("invalid-kind", func(t *testing.T) {
		mockUseCase := &credentialMocks.MockCredentialUseCase{}

		err := RunIssueToken(ctx, mockUseCase, logger, &bytes.Buffer{}, "api_key", 42, "text")

		require.ErrorIs(t, err, credentialDomain.ErrInvalidKind)
		mockUseCase.AssertNotCalled(t, "Issue")
	})

	t.Run("invalid-format", func(t *testing.T) {
		mockUseCase := &credentialMocks.MockCredentialUseCase{}

		err := RunIssueToken(ctx, mockUseCase, logger, &bytes.Buffer{}, "session", 42, "yaml")

		require.ErrorContains(t, err, "invalid format")
	})

	t.Run("use-case-error", func(t *testing.T) {
		mockUseCase := &credentialMocks.MockCredentialUseCase{}
		mockUseCase.On("Issue", ctx, mock.Anything).Return(nil, credentialDomain.ErrInvalidOwner)

		err := RunIssueToken(ctx, mockUseCase, logger, &bytes.Buffer{}, "session", -1, "text")

		require.ErrorIs(t, err, credentialDomain.ErrInvalidOwner)
	})
}
