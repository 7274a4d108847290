package dto

import (
	"time"

	"github.com/allisson/tierguard/internal/access"
	credentialDomain "github.com/allisson/tierguard/internal/credential/domain"
	entitlementDomain "github.com/allisson/tierguard/internal/entitlement/domain"
	"github.com/allisson/tierguard/internal/ratelimit"
)

// IssueTokenResponse returns a freshly issued credential.
type IssueTokenResponse struct {
	Token     string    `json:"token"`
	TokenID   string    `json:"token_id"`
	Kind      string    `json:"kind"`
	ExpiresAt time.Time `json:"expires_at"`
}

// MapIssueTokenOutputToResponse converts use case output to an API response.
func MapIssueTokenOutputToResponse(output *credentialDomain.IssueTokenOutput) IssueTokenResponse {
	return IssueTokenResponse{
		Token:     output.Token,
		TokenID:   output.Record.ID.String(),
		Kind:      string(output.Record.Kind),
		ExpiresAt: output.Record.ExpiresAt,
	}
}

// RateLimitResponse describes the current window of the caller.
type RateLimitResponse struct {
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
}

// EntitlementResponse describes the entitlement of the authenticated caller.
type EntitlementResponse struct {
	UserID        int64             `json:"user_id"`
	BaseTier      string            `json:"base_tier"`
	EffectiveTier string            `json:"effective_tier"`
	GraceState    string            `json:"grace_state"`
	GraceEndsAt   *time.Time        `json:"grace_ends_at,omitempty"`
	PreviewTier   *string           `json:"preview_tier,omitempty"`
	PreviewEndsAt *time.Time        `json:"preview_ends_at,omitempty"`
	RateLimit     RateLimitResponse `json:"rate_limit"`
	TierLimits    map[string]int    `json:"tier_limits"`
}

// MapEntitlementToResponse combines a resolution with the access decision of the request.
// The effective tier comes from the decision so it matches the limit that was applied.
func MapEntitlementToResponse(
	resolution *entitlementDomain.Resolution,
	decision *access.Decision,
) EntitlementResponse {
	response := EntitlementResponse{
		UserID:        resolution.UserID,
		BaseTier:      string(resolution.BaseTier),
		EffectiveTier: string(decision.EffectiveTier),
		GraceState:    string(resolution.Grace),
		GraceEndsAt:   resolution.GraceEndsAt,
		PreviewEndsAt: resolution.PreviewEndsAt,
		RateLimit: RateLimitResponse{
			Limit:     decision.Limit,
			Remaining: decision.Remaining,
			ResetAt:   decision.ResetAt,
		},
		TierLimits: make(map[string]int, len(entitlementDomain.Tiers())),
	}
	if resolution.PreviewTier != nil {
		preview := string(*resolution.PreviewTier)
		response.PreviewTier = &preview
	}
	for _, tier := range entitlementDomain.Tiers() {
		response.TierLimits[string(tier)] = ratelimit.LimitFor(tier)
	}
	return response
}
