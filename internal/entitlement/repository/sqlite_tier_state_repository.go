package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/allisson/tierguard/internal/database"
	entitlementDomain "github.com/allisson/tierguard/internal/entitlement/domain"
	apperrors "github.com/allisson/tierguard/internal/errors"
)

// SQLiteTierStateRepository implements TierState persistence for SQLite.
type SQLiteTierStateRepository struct {
	db *sql.DB
}

// Get retrieves the state of a user. Returns ErrTierStateNotFound if none exists.
func (s *SQLiteTierStateRepository) Get(ctx context.Context, userID int64) (*entitlementDomain.TierState, error) {
	querier := database.GetTx(ctx, s.db)

	query := `SELECT ` + selectTierStateColumns + ` FROM tier_states WHERE user_id = ?`

	state, err := scanTierState(querier.QueryRowContext(ctx, query, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, entitlementDomain.ErrTierStateNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get tier state")
	}
	return state, nil
}

// GetForUpdate is Get: SQLite runs on a single connection, so writers are
// already serialized.
func (s *SQLiteTierStateRepository) GetForUpdate(ctx context.Context, userID int64) (*entitlementDomain.TierState, error) {
	return s.Get(ctx, userID)
}

// SaveTiers inserts the state of a user, or updates only its base and
// preview tiers when a row exists. Subscription status and lapsed_since are
// written on insert only; MarkLapsed and MarkActive own them afterwards.
func (s *SQLiteTierStateRepository) SaveTiers(ctx context.Context, state *entitlementDomain.TierState) error {
	querier := database.GetTx(ctx, s.db)

	query := `INSERT INTO tier_states (user_id, base_tier, preview_tier, preview_expires_at,
			  subscription_status, lapsed_since, updated_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?)
			  ON CONFLICT (user_id) DO UPDATE SET
			  base_tier = excluded.base_tier,
			  preview_tier = excluded.preview_tier,
			  preview_expires_at = excluded.preview_expires_at,
			  updated_at = excluded.updated_at`

	previewTier, previewExpiresAt, lapsedSince := nullableArgs(state)

	_, err := querier.ExecContext(
		ctx,
		query,
		state.UserID,
		string(state.BaseTier),
		previewTier,
		previewExpiresAt,
		string(state.Status),
		lapsedSince,
		utc(state.UpdatedAt),
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to save tier state")
	}
	return nil
}

// MarkLapsed moves an active subscription to lapsed at the given time. It
// returns false when the subscription was already lapsed, leaving the original
// lapse timestamp in place.
func (s *SQLiteTierStateRepository) MarkLapsed(ctx context.Context, userID int64, at time.Time) (bool, error) {
	querier := database.GetTx(ctx, s.db)

	result, err := querier.ExecContext(
		ctx,
		`UPDATE tier_states SET subscription_status = ?, lapsed_since = ?, updated_at = ?
		 WHERE user_id = ? AND subscription_status = ?`,
		string(entitlementDomain.StatusLapsed),
		utc(at),
		utc(at),
		userID,
		string(entitlementDomain.StatusActive),
	)
	if err != nil {
		return false, apperrors.Wrap(err, "failed to mark tier state lapsed")
	}
	return s.changed(ctx, result, userID)
}

// MarkActive restores a lapsed subscription. It returns false when the
// subscription was already active.
func (s *SQLiteTierStateRepository) MarkActive(ctx context.Context, userID int64, at time.Time) (bool, error) {
	querier := database.GetTx(ctx, s.db)

	result, err := querier.ExecContext(
		ctx,
		`UPDATE tier_states SET subscription_status = ?, lapsed_since = NULL, updated_at = ?
		 WHERE user_id = ? AND subscription_status = ?`,
		string(entitlementDomain.StatusActive),
		utc(at),
		userID,
		string(entitlementDomain.StatusLapsed),
	)
	if err != nil {
		return false, apperrors.Wrap(err, "failed to mark tier state active")
	}
	return s.changed(ctx, result, userID)
}

func (s *SQLiteTierStateRepository) changed(ctx context.Context, result sql.Result, userID int64) (bool, error) {
	affected, err := result.RowsAffected()
	if err != nil {
		return false, apperrors.Wrap(err, "failed to get rows affected")
	}
	if affected > 0 {
		return true, nil
	}

	var exists bool
	err = database.GetTx(ctx, s.db).
		QueryRowContext(ctx, `SELECT COUNT(*) > 0 FROM tier_states WHERE user_id = ?`, userID).
		Scan(&exists)
	if err != nil {
		return false, apperrors.Wrap(err, "failed to check tier state")
	}
	if !exists {
		return false, entitlementDomain.ErrTierStateNotFound
	}
	return false, nil
}

// NewSQLiteTierStateRepository creates a new SQLite tier state repository.
func NewSQLiteTierStateRepository(db *sql.DB) *SQLiteTierStateRepository {
	return &SQLiteTierStateRepository{db: db}
}
