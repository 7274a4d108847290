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

// PostgreSQLTierStateRepository implements TierState persistence for PostgreSQL.
type PostgreSQLTierStateRepository struct {
	db *sql.DB
}

// Get retrieves the state of a user. Returns ErrTierStateNotFound if none exists.
func (p *PostgreSQLTierStateRepository) Get(ctx context.Context, userID int64) (*entitlementDomain.TierState, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + selectTierStateColumns + ` FROM tier_states WHERE user_id = $1`

	state, err := scanTierState(querier.QueryRowContext(ctx, query, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, entitlementDomain.ErrTierStateNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get tier state")
	}
	return state, nil
}

// GetForUpdate reads the state of a user and locks the row until the
// surrounding transaction ends, so billing updates wait for tier changes.
// Must run inside a transaction.
func (p *PostgreSQLTierStateRepository) GetForUpdate(ctx context.Context, userID int64) (*entitlementDomain.TierState, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + selectTierStateColumns + ` FROM tier_states WHERE user_id = $1 FOR UPDATE`

	state, err := scanTierState(querier.QueryRowContext(ctx, query, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, entitlementDomain.ErrTierStateNotFound
		}
		return nil, apperrors.Wrap(err, "failed to lock tier state")
	}
	return state, nil
}

// SaveTiers inserts the state of a user, or updates only its base and
// preview tiers when a row exists. Subscription status and lapsed_since are
// written on insert only; MarkLapsed and MarkActive own them afterwards.
func (p *PostgreSQLTierStateRepository) SaveTiers(ctx context.Context, state *entitlementDomain.TierState) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO tier_states (user_id, base_tier, preview_tier, preview_expires_at,
			  subscription_status, lapsed_since, updated_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7)
			  ON CONFLICT (user_id) DO UPDATE SET
			  base_tier = EXCLUDED.base_tier,
			  preview_tier = EXCLUDED.preview_tier,
			  preview_expires_at = EXCLUDED.preview_expires_at,
			  updated_at = EXCLUDED.updated_at`

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
func (p *PostgreSQLTierStateRepository) MarkLapsed(ctx context.Context, userID int64, at time.Time) (bool, error) {
	querier := database.GetTx(ctx, p.db)

	result, err := querier.ExecContext(
		ctx,
		`UPDATE tier_states SET subscription_status = $1, lapsed_since = $2, updated_at = $2
		 WHERE user_id = $3 AND subscription_status = $4`,
		string(entitlementDomain.StatusLapsed),
		utc(at),
		userID,
		string(entitlementDomain.StatusActive),
	)
	if err != nil {
		return false, apperrors.Wrap(err, "failed to mark tier state lapsed")
	}
	return p.changed(ctx, result, userID)
}

// MarkActive restores a lapsed subscription. It returns false when the
// subscription was already active.
func (p *PostgreSQLTierStateRepository) MarkActive(ctx context.Context, userID int64, at time.Time) (bool, error) {
	querier := database.GetTx(ctx, p.db)

	result, err := querier.ExecContext(
		ctx,
		`UPDATE tier_states SET subscription_status = $1, lapsed_since = NULL, updated_at = $2
		 WHERE user_id = $3 AND subscription_status = $4`,
		string(entitlementDomain.StatusActive),
		utc(at),
		userID,
		string(entitlementDomain.StatusLapsed),
	)
	if err != nil {
		return false, apperrors.Wrap(err, "failed to mark tier state active")
	}
	return p.changed(ctx, result, userID)
}

func (p *PostgreSQLTierStateRepository) changed(ctx context.Context, result sql.Result, userID int64) (bool, error) {
	affected, err := result.RowsAffected()
	if err != nil {
		return false, apperrors.Wrap(err, "failed to get rows affected")
	}
	if affected > 0 {
		return true, nil
	}

	var exists bool
	err = database.GetTx(ctx, p.db).
		QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM tier_states WHERE user_id = $1)`, userID).
		Scan(&exists)
	if err != nil {
		return false, apperrors.Wrap(err, "failed to check tier state")
	}
	if !exists {
		return false, entitlementDomain.ErrTierStateNotFound
	}
	return false, nil
}

// NewPostgreSQLTierStateRepository creates a new PostgreSQL tier state repository.
func NewPostgreSQLTierStateRepository(db *sql.DB) *PostgreSQLTierStateRepository {
	return &PostgreSQLTierStateRepository{db: db}
}
