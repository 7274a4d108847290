package domain

import "time"

// Resolution is the entitlement of a user evaluated at one instant.
type Resolution struct {
	UserID        int64
	BaseTier      Tier
	EffectiveTier Tier
	Grace         GraceState
	GraceEndsAt   *time.Time
	PreviewTier   *Tier
	PreviewEndsAt *time.Time
	EvaluatedAt   time.Time
}

// Resolve evaluates s at now. A nil state resolves like a fresh observer.
func Resolve(userID int64, s *TierState, now time.Time, grace time.Duration) *Resolution {
	if s == nil {
		s = NewTierState(userID, TierObserver, now)
	}

	r := &Resolution{
		UserID:        userID,
		BaseTier:      s.BaseTier.Normalize(),
		EffectiveTier: EffectiveTier(s, now, grace),
		Grace:         s.GraceStateAt(now, grace),
		GraceEndsAt:   s.GraceEndsAt(grace),
		EvaluatedAt:   now,
	}
	if s.PreviewActive(now) {
		r.PreviewTier = s.PreviewTier
		r.PreviewEndsAt = s.PreviewExpiresAt
	}
	return r
}
