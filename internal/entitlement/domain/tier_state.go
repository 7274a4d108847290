package domain

import (
	"time"
)

// DefaultGraceDuration is how long a lapsed subscription keeps its base tier.
const DefaultGraceDuration = 72 * time.Hour

// SubscriptionStatus is the billing status of a user.
type SubscriptionStatus string

const (
	// StatusActive means billing is current.
	StatusActive SubscriptionStatus = "active"

	// StatusLapsed means the last billing attempt failed.
	StatusLapsed SubscriptionStatus = "lapsed"
)

// GraceState is the derived position of a user in the billing lapse lifecycle.
// It is never stored; see TierState.GraceStateAt.
type GraceState string

const (
	GraceActive        GraceState = "active"
	GraceLapsedInGrace GraceState = "lapsed_in_grace"
	GraceLapsedExpired GraceState = "lapsed_expired"
)

// TierState is the entitlement snapshot of one user.
//
// LapsedSince is non-nil exactly when Status is StatusLapsed. PreviewTier and
// PreviewExpiresAt are set together; a preview past its expiry is ignored.
type TierState struct {
	UserID           int64
	BaseTier         Tier
	PreviewTier      *Tier
	PreviewExpiresAt *time.Time
	Status           SubscriptionStatus
	LapsedSince      *time.Time
	UpdatedAt        time.Time
}

// NewTierState returns an active state at the given base tier with no preview.
func NewTierState(userID int64, base Tier, now time.Time) *TierState {
	return &TierState{
		UserID:    userID,
		BaseTier:  base,
		Status:    StatusActive,
		UpdatedAt: now,
	}
}

// EffectiveTier resolves the tier a user is entitled to at now.
//
// An active preview lifts the result to max(base, preview). Otherwise an
// active subscription yields the base tier and a lapsed one keeps the base tier
// until the grace window has fully elapsed, after which it falls to observer.
// The function is total: unknown base tiers resolve to observer.
func EffectiveTier(s *TierState, now time.Time, grace time.Duration) Tier {
	if s == nil {
		return TierObserver
	}

	base := s.BaseTier.Normalize()

	if s.PreviewActive(now) {
		return MaxTier(base, *s.PreviewTier)
	}

	switch s.GraceStateAt(now, grace) {
	case GraceActive, GraceLapsedInGrace:
		return base
	default:
		return TierObserver
	}
}

// PreviewActive reports whether a preview tier applies at now.
func (s *TierState) PreviewActive(now time.Time) bool {
	return s.PreviewTier != nil && s.PreviewExpiresAt != nil && now.Before(*s.PreviewExpiresAt)
}

// GraceStateAt derives the grace state at now. A lapsed state with a missing
// lapse timestamp is treated as expired.
func (s *TierState) GraceStateAt(now time.Time, grace time.Duration) GraceState {
	if s.Status != StatusLapsed {
		return GraceActive
	}
	if s.LapsedSince == nil {
		return GraceLapsedExpired
	}
	if now.Sub(*s.LapsedSince) <= grace {
		return GraceLapsedInGrace
	}
	return GraceLapsedExpired
}

// GraceEndsAt returns when the grace window closes, or nil if not lapsed.
func (s *TierState) GraceEndsAt(grace time.Duration) *time.Time {
	if s.Status != StatusLapsed || s.LapsedSince == nil {
		return nil
	}
	end := s.LapsedSince.Add(grace)
	return &end
}

// Lapse records a billing failure. Only an active subscription transitions;
// a lapse while already lapsed never restarts or resumes the timer.
func (s *TierState) Lapse(now time.Time) bool {
	if s.Status == StatusLapsed {
		return false
	}
	lapsedSince := now
	s.Status = StatusLapsed
	s.LapsedSince = &lapsedSince
	s.UpdatedAt = now
	return true
}

// Restore records a billing success from either lapsed state.
func (s *TierState) Restore(now time.Time) bool {
	if s.Status == StatusActive {
		return false
	}
	s.Status = StatusActive
	s.LapsedSince = nil
	s.UpdatedAt = now
	return true
}

// GrantPreview assigns a temporary tier uplift that ends at expiresAt.
func (s *TierState) GrantPreview(tier Tier, expiresAt, now time.Time) error {
	if !tier.Valid() {
		return ErrInvalidTier
	}
	if !expiresAt.After(now) {
		return ErrPreviewExpiry
	}
	s.PreviewTier = &tier
	s.PreviewExpiresAt = &expiresAt
	s.UpdatedAt = now
	return nil
}

// ClearPreview removes any preview.
func (s *TierState) ClearPreview(now time.Time) {
	s.PreviewTier = nil
	s.PreviewExpiresAt = nil
	s.UpdatedAt = now
}

// SetBaseTier changes the subscribed tier.
func (s *TierState) SetBaseTier(tier Tier, now time.Time) error {
	if !tier.Valid() {
		return ErrInvalidTier
	}
	s.BaseTier = tier
	s.UpdatedAt = now
	return nil
}
