package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/tierguard/internal/clock"
	"github.com/allisson/tierguard/internal/config"
	credentialDomain "github.com/allisson/tierguard/internal/credential/domain"
	credentialService "github.com/allisson/tierguard/internal/credential/service"
	"github.com/allisson/tierguard/internal/database"
	apperrors "github.com/allisson/tierguard/internal/errors"
)

// credentialUseCase implements CredentialUseCase.
type credentialUseCase struct {
	config    *config.Config
	txManager database.TxManager
	tokenRepo TokenRepository
	index     credentialService.RevocationIndex
	codec     credentialService.CredentialCodec
	clock     clock.Clock
	logger    *slog.Logger
}

// Issue creates a record with the lifetime configured for its kind, persists
// it and signs it.
func (c *credentialUseCase) Issue(
	ctx context.Context,
	input *credentialDomain.IssueTokenInput,
) (*credentialDomain.IssueTokenOutput, error) {
	record, err := credentialDomain.NewTokenRecord(input.Kind, input.OwnerID, c.clock.Now(), c.lifetime(input.Kind))
	if err != nil {
		return nil, err
	}

	if err := c.tokenRepo.Create(ctx, record); err != nil {
		return nil, err
	}

	token, err := c.codec.Sign(record)
	if err != nil {
		return nil, err
	}

	return &credentialDomain.IssueTokenOutput{Token: token, Record: record}, nil
}

// Revoke looks up the token expiry so the revocation can be cached for the
// token's remaining lifetime.
func (c *credentialUseCase) Revoke(ctx context.Context, tokenID uuid.UUID) error {
	record, err := c.tokenRepo.Get(ctx, tokenID)
	if err != nil {
		return err
	}
	return c.index.Revoke(ctx, tokenID, record.ExpiresAt)
}

// RevokeAllForOwner revokes in one transaction and drops the affected cache entries.
func (c *credentialUseCase) RevokeAllForOwner(ctx context.Context, ownerID int64) (int, error) {
	if ownerID <= 0 {
		return 0, credentialDomain.ErrInvalidOwner
	}

	var revoked []uuid.UUID
	err := c.txManager.WithTx(ctx, func(ctx context.Context) error {
		var err error
		revoked, err = c.tokenRepo.RevokeByOwner(ctx, ownerID)
		return err
	})
	if err != nil {
		return 0, err
	}

	c.index.Invalidate(revoked...)
	c.logger.Info("owner tokens revoked",
		slog.Int64("owner_id", ownerID),
		slog.Int("count", len(revoked)),
	)
	return len(revoked), nil
}

// RedeemMagicLink exchanges a magic link for a session credential.
//
// The process:
// 1. Parses the credential and requires the magic link kind
// 2. Consumes the link through the revocation index (store-backed, never cached)
// 3. Issues a session for the link owner
//
// A session is only issued by the call whose conditional update flipped the
// consumed flag. Replays are logged with the owner id.
//
// Parameters:
//   - ctx: Context for cancellation and timeouts
//   - rawCredential: The signed magic link as presented by the client
//
// Returns:
//   - The session credential and its record
//   - ErrInvalidCredential if the signature, issuer or kind does not match
//   - ErrRevokedOrExpired if the link is revoked or expired (it stays unconsumed)
//   - ErrAlreadyConsumed if another redemption consumed the link first
//   - ErrStoreUnavailable if the token store cannot answer
func (c *credentialUseCase) RedeemMagicLink(
	ctx context.Context,
	rawCredential string,
) (*credentialDomain.IssueTokenOutput, error) {
	cred, err := c.codec.Parse(rawCredential)
	if err != nil {
		return nil, err
	}
	if cred.Kind != credentialDomain.KindMagicLink {
		return nil, credentialDomain.ErrInvalidCredential
	}

	alreadyConsumed, err := c.index.IsConsumedOnce(ctx, cred.TokenID)
	if err != nil {
		return nil, err
	}
	if alreadyConsumed {
		c.logger.Warn("magic link replay rejected",
			slog.String("token_id", cred.TokenID.String()),
			slog.Int64("owner_id", cred.OwnerID),
		)
		return nil, credentialDomain.ErrAlreadyConsumed
	}

	return c.Issue(ctx, &credentialDomain.IssueTokenInput{
		Kind:    credentialDomain.KindSession,
		OwnerID: cred.OwnerID,
	})
}

// CleanupExpired removes tokens whose expiry is older than days.
//
// Parameters:
//   - ctx: Context for cancellation and timeouts
//   - days: Retention in days counted back from now; 0 removes everything already expired
//   - dryRun: When true, only counts the matching tokens
//
// Returns:
//   - The number of tokens deleted (or that would be deleted)
//   - ErrInvalidInput if days is negative
func (c *credentialUseCase) CleanupExpired(ctx context.Context, days int, dryRun bool) (int64, error) {
	if days < 0 {
		return 0, apperrors.Wrapf(apperrors.ErrInvalidInput, "days must be non-negative, got %d", days)
	}

	before := c.clock.Now().Add(-time.Duration(days) * 24 * time.Hour)
	count, err := c.tokenRepo.DeleteExpired(ctx, before, dryRun)
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (c *credentialUseCase) lifetime(kind credentialDomain.Kind) time.Duration {
	switch kind {
	case credentialDomain.KindRefresh:
		return c.config.AuthRefreshTTL
	case credentialDomain.KindMagicLink:
		return c.config.AuthMagicLinkTTL
	default:
		return c.config.AuthSessionTTL
	}
}

// NewCredentialUseCase creates a new CredentialUseCase.
//
// Configuration:
//   - cfg.AuthSessionTTL: Lifetime of session tokens
//   - cfg.AuthRefreshTTL: Lifetime of refresh tokens
//   - cfg.AuthMagicLinkTTL: Lifetime of magic links
//
// The index must share tokenRepo's store so revocations and consumption are
// visible to every instance.
func NewCredentialUseCase(
	cfg *config.Config,
	txManager database.TxManager,
	tokenRepo TokenRepository,
	index credentialService.RevocationIndex,
	codec credentialService.CredentialCodec,
	clk clock.Clock,
	logger *slog.Logger,
) CredentialUseCase {
	return &credentialUseCase{
		config:    cfg,
		txManager: txManager,
		tokenRepo: tokenRepo,
		index:     index,
		codec:     codec,
		clock:     clk,
		logger:    logger.With(slog.String("component", "credential_usecase")),
	}
}
