// Package access composes credential verification, tier resolution and rate
// limiting into a single per-request decision.
package access

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	credentialDomain "github.com/allisson/tierguard/internal/credential/domain"
	credentialService "github.com/allisson/tierguard/internal/credential/service"
	entitlementDomain "github.com/allisson/tierguard/internal/entitlement/domain"
	"github.com/allisson/tierguard/internal/ratelimit"
)

// Credential is what a request presents: the raw bearer string and an
// optional rate-limit key. An empty Key limits by user id.
type Credential struct {
	Raw string
	Key string
}

// Decision is the per-request answer. A rate-limited request is still
// authenticated; RateLimited is reported alongside it.
type Decision struct {
	Authenticated bool
	UserID        int64
	TokenID       uuid.UUID
	EffectiveTier entitlementDomain.Tier
	RateLimited   bool
	Limit         int
	Remaining     int
	ResetAt       time.Time
}

// TierResolver resolves the effective tier of a user.
type TierResolver interface {
	Resolve(ctx context.Context, userID int64) (*entitlementDomain.Resolution, error)
}

// Evaluator decides whether a request may proceed.
type Evaluator interface {
	// Evaluate runs codec, revocation, tier and rate-limit checks in that
	// order, stopping at the first failure. Rate limiting is not an error.
	Evaluate(ctx context.Context, cred Credential) (*Decision, error)
}

type evaluator struct {
	codec   credentialService.CredentialCodec
	index   credentialService.RevocationIndex
	tiers   TierResolver
	limiter ratelimit.Limiter
	logger  *slog.Logger
}

// NewEvaluator creates a new Evaluator.
//
// Configuration:
//   - codec: Verifies the signature, issuer and expiry of session credentials
//   - index: Revocation state of the token id carried by the credential
//   - tiers: Effective tier of the credential owner
//   - limiter: Fixed-window limiter keyed by Credential.Key or the user id
func NewEvaluator(
	codec credentialService.CredentialCodec,
	index credentialService.RevocationIndex,
	tiers TierResolver,
	limiter ratelimit.Limiter,
	logger *slog.Logger,
) Evaluator {
	return &evaluator{
		codec:   codec,
		index:   index,
		tiers:   tiers,
		limiter: limiter,
		logger:  logger.With(slog.String("component", "access")),
	}
}

// Evaluate authenticates cred and charges one request against the owner's tier.
//
// Returns:
//   - A decision; RateLimited is set when the window is exhausted
//   - ErrInvalidCredential for empty, malformed or non-session credentials
//   - ErrRevokedOrExpired for revoked or expired tokens
//   - ErrStoreUnavailable when the token or tier state cannot be read
func (e *evaluator) Evaluate(ctx context.Context, cred Credential) (*Decision, error) {
	if cred.Raw == "" {
		return nil, credentialDomain.ErrInvalidCredential
	}

	parsed, err := e.codec.Parse(cred.Raw)
	if err != nil {
		return nil, err
	}
	if parsed.Kind != credentialDomain.KindSession {
		return nil, credentialDomain.ErrInvalidCredential
	}

	record, err := e.index.Verify(ctx, parsed.TokenID, parsed.OwnerID, parsed.Kind)
	if err != nil {
		return nil, err
	}

	resolution, err := e.tiers.Resolve(ctx, record.OwnerID)
	if err != nil {
		return nil, err
	}

	key := cred.Key
	if key == "" {
		key = "user:" + strconv.FormatInt(record.OwnerID, 10)
	}

	result, err := e.limiter.Allow(ctx, key, resolution.EffectiveTier)
	if err != nil {
		return nil, err
	}

	decision := &Decision{
		Authenticated: true,
		UserID:        record.OwnerID,
		TokenID:       record.ID,
		EffectiveTier: resolution.EffectiveTier,
		RateLimited:   !result.Allowed,
		Limit:         result.Limit,
		Remaining:     result.Remaining,
		ResetAt:       result.ResetAt,
	}
	if decision.RateLimited {
		e.logger.Debug("request rate limited",
			slog.Int64("user_id", decision.UserID),
			slog.String("tier", string(decision.EffectiveTier)),
			slog.Int("limit", decision.Limit),
		)
	}
	return decision, nil
}
