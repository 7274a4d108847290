// Package repository implements tier state storage for PostgreSQL, MySQL and SQLite.
package repository

import (
	"database/sql"
	"time"

	entitlementDomain "github.com/allisson/tierguard/internal/entitlement/domain"
)

const selectTierStateColumns = `user_id, base_tier, preview_tier, preview_expires_at,
	subscription_status, lapsed_since, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTierState(row rowScanner) (*entitlementDomain.TierState, error) {
	var (
		state            entitlementDomain.TierState
		previewTier      sql.NullString
		previewExpiresAt sql.NullTime
		lapsedSince      sql.NullTime
	)

	err := row.Scan(
		&state.UserID,
		&state.BaseTier,
		&previewTier,
		&previewExpiresAt,
		&state.Status,
		&lapsedSince,
		&state.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if previewTier.Valid && previewExpiresAt.Valid {
		tier := entitlementDomain.Tier(previewTier.String)
		expiresAt := previewExpiresAt.Time.UTC()
		state.PreviewTier = &tier
		state.PreviewExpiresAt = &expiresAt
	}
	if lapsedSince.Valid {
		at := lapsedSince.Time.UTC()
		state.LapsedSince = &at
	}
	state.UpdatedAt = state.UpdatedAt.UTC()

	return &state, nil
}

// nullableArgs flattens the optional columns of a state into driver values.
func nullableArgs(state *entitlementDomain.TierState) (previewTier sql.NullString, previewExpiresAt, lapsedSince sql.NullTime) {
	if state.PreviewTier != nil && state.PreviewExpiresAt != nil {
		previewTier = sql.NullString{String: string(*state.PreviewTier), Valid: true}
		previewExpiresAt = sql.NullTime{Time: state.PreviewExpiresAt.UTC(), Valid: true}
	}
	if state.LapsedSince != nil {
		lapsedSince = sql.NullTime{Time: state.LapsedSince.UTC(), Valid: true}
	}
	return previewTier, previewExpiresAt, lapsedSince
}

func utc(t time.Time) time.Time {
	return t.UTC()
}
