package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	credentialDomain "github.com/allisson/tierguard/internal/credential/domain"
	"github.com/allisson/tierguard/internal/metrics"
)

// credentialUseCaseWithMetrics decorates CredentialUseCase with metrics instrumentation.
type credentialUseCaseWithMetrics struct {
	next    CredentialUseCase
	metrics metrics.BusinessMetrics
}

// NewCredentialUseCaseWithMetrics wraps a CredentialUseCase with metrics recording.
func NewCredentialUseCaseWithMetrics(useCase CredentialUseCase, m metrics.BusinessMetrics) CredentialUseCase {
	return &credentialUseCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

func (c *credentialUseCaseWithMetrics) record(ctx context.Context, operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	c.metrics.RecordOperation(ctx, "credential", operation, status)
	c.metrics.RecordDuration(ctx, "credential", operation, time.Since(start), status)
}

// Issue records metrics for credential issuance.
func (c *credentialUseCaseWithMetrics) Issue(
	ctx context.Context,
	input *credentialDomain.IssueTokenInput,
) (*credentialDomain.IssueTokenOutput, error) {
	start := time.Now()
	output, err := c.next.Issue(ctx, input)
	c.record(ctx, "credential_issue", start, err)
	return output, err
}

// Revoke records metrics for single token revocation.
func (c *credentialUseCaseWithMetrics) Revoke(ctx context.Context, tokenID uuid.UUID) error {
	start := time.Now()
	err := c.next.Revoke(ctx, tokenID)
	c.record(ctx, "credential_revoke", start, err)
	return err
}

// RevokeAllForOwner records metrics for owner-wide revocation.
func (c *credentialUseCaseWithMetrics) RevokeAllForOwner(ctx context.Context, ownerID int64) (int, error) {
	start := time.Now()
	count, err := c.next.RevokeAllForOwner(ctx, ownerID)
	c.record(ctx, "credential_revoke_owner", start, err)
	return count, err
}

// RedeemMagicLink records metrics for magic link redemption.
func (c *credentialUseCaseWithMetrics) RedeemMagicLink(
	ctx context.Context,
	rawCredential string,
) (*credentialDomain.IssueTokenOutput, error) {
	start := time.Now()
	output, err := c.next.RedeemMagicLink(ctx, rawCredential)
	c.record(ctx, "magic_link_redeem", start, err)
	return output, err
}

// CleanupExpired records metrics for expired token cleanup.
func (c *credentialUseCaseWithMetrics) CleanupExpired(ctx context.Context, days int, dryRun bool) (int64, error) {
	start := time.Now()
	count, err := c.next.CleanupExpired(ctx, days, dryRun)
	c.record(ctx, "credential_cleanup", start, err)
	return count, err
}
