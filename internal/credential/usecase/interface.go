// Package usecase defines credential lifecycle operations: issuance,
// revocation, magic link redemption and retention.
package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	credentialDomain "github.com/allisson/tierguard/internal/credential/domain"
)

// TokenRepository defines persistence operations for token records.
// Implementations must support transaction-aware operations via context propagation.
type TokenRepository interface {
	// Create stores a new token record.
	Create(ctx context.Context, token *credentialDomain.TokenRecord) error

	// Get retrieves a token record by ID. Returns ErrTokenNotFound if not found.
	Get(ctx context.Context, tokenID uuid.UUID) (*credentialDomain.TokenRecord, error)

	// Revoke marks a token revoked. Revoking twice succeeds.
	Revoke(ctx context.Context, tokenID uuid.UUID) error

	// RevokeByOwner revokes every live token of ownerID and returns their ids.
	RevokeByOwner(ctx context.Context, ownerID int64) ([]uuid.UUID, error)

	// ConsumeMagicLink flips consumed to true exactly once, while the link is
	// unrevoked and unexpired at now.
	ConsumeMagicLink(ctx context.Context, tokenID uuid.UUID, now time.Time) (bool, error)

	// DeleteExpired removes (or with dryRun, counts) tokens that expired before the given time.
	DeleteExpired(ctx context.Context, before time.Time, dryRun bool) (int64, error)
}

// CredentialUseCase defines business logic operations for issued credentials.
type CredentialUseCase interface {
	// Issue creates and persists a token record and returns its signed credential.
	// The credential is only returned once; only its id is stored.
	Issue(ctx context.Context, input *credentialDomain.IssueTokenInput) (*credentialDomain.IssueTokenOutput, error)

	// Revoke permanently invalidates a token. Returns ErrTokenNotFound for unknown ids.
	Revoke(ctx context.Context, tokenID uuid.UUID) error

	// RevokeAllForOwner revokes every live token of an owner and returns how many were revoked.
	RevokeAllForOwner(ctx context.Context, ownerID int64) (int, error)

	// RedeemMagicLink consumes a magic link and issues a session credential for its owner.
	//
	// Returns ErrInvalidCredential for anything that is not a valid magic link,
	// ErrRevokedOrExpired for revoked or expired links (left unconsumed), and
	// ErrAlreadyConsumed when the link was redeemed before.
	RedeemMagicLink(ctx context.Context, rawCredential string) (*credentialDomain.IssueTokenOutput, error)

	// CleanupExpired deletes tokens that expired more than days ago. With dryRun
	// it only returns the count.
	CleanupExpired(ctx context.Context, days int, dryRun bool) (int64, error)
}
