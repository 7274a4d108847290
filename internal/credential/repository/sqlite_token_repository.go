package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	credentialDomain "github.com/allisson/tierguard/internal/credential/domain"
	"github.com/allisson/tierguard/internal/database"
	apperrors "github.com/allisson/tierguard/internal/errors"
)

// SQLiteTokenRepository implements TokenRecord persistence for embedded SQLite.
// Ids are stored as canonical UUID text.
type SQLiteTokenRepository struct {
	db *sql.DB
}

// Create inserts a new TokenRecord.
func (s *SQLiteTokenRepository) Create(ctx context.Context, token *credentialDomain.TokenRecord) error {
	querier := database.GetTx(ctx, s.db)

	_, err := querier.ExecContext(
		ctx,
		`INSERT INTO tokens (id, kind, owner_id, issued_at, expires_at, consumed, revoked)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		token.ID.String(),
		string(token.Kind),
		token.OwnerID,
		token.IssuedAt.UTC(),
		token.ExpiresAt.UTC(),
		token.Consumed,
		token.Revoked,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create token")
	}
	return nil
}

// Get retrieves a TokenRecord by ID. Returns ErrTokenNotFound if it doesn't exist.
func (s *SQLiteTokenRepository) Get(ctx context.Context, tokenID uuid.UUID) (*credentialDomain.TokenRecord, error) {
	querier := database.GetTx(ctx, s.db)

	var token credentialDomain.TokenRecord
	err := querier.QueryRowContext(
		ctx,
		`SELECT id, kind, owner_id, issued_at, expires_at, consumed, revoked FROM tokens WHERE id = ?`,
		tokenID.String(),
	).Scan(
		&token.ID,
		&token.Kind,
		&token.OwnerID,
		&token.IssuedAt,
		&token.ExpiresAt,
		&token.Consumed,
		&token.Revoked,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, credentialDomain.ErrTokenNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get token")
	}

	token.IssuedAt = token.IssuedAt.UTC()
	token.ExpiresAt = token.ExpiresAt.UTC()
	return &token, nil
}

// Revoke marks a token revoked. Revoking an already revoked token succeeds.
func (s *SQLiteTokenRepository) Revoke(ctx context.Context, tokenID uuid.UUID) error {
	querier := database.GetTx(ctx, s.db)

	result, err := querier.ExecContext(ctx, `UPDATE tokens SET revoked = 1 WHERE id = ? AND revoked = 0`, tokenID.String())
	if err != nil {
		return apperrors.Wrap(err, "failed to revoke token")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to get rows affected")
	}
	if affected > 0 {
		return nil
	}

	var count int
	err = querier.QueryRowContext(ctx, `SELECT COUNT(*) FROM tokens WHERE id = ?`, tokenID.String()).Scan(&count)
	if err != nil {
		return apperrors.Wrap(err, "failed to check token")
	}
	if count == 0 {
		return credentialDomain.ErrTokenNotFound
	}
	return nil
}

// RevokeByOwner revokes every live token of an owner and returns their ids.
func (s *SQLiteTokenRepository) RevokeByOwner(ctx context.Context, ownerID int64) ([]uuid.UUID, error) {
	querier := database.GetTx(ctx, s.db)

	rows, err := querier.QueryContext(ctx, `SELECT id FROM tokens WHERE owner_id = ? AND revoked = 0`, ownerID)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list owner tokens")
	}
	ids, err := scanIDs(rows, func(id *uuid.UUID) any { return id })
	if err != nil {
		return nil, err
	}

	if _, err := querier.ExecContext(ctx, `UPDATE tokens SET revoked = 1 WHERE owner_id = ? AND revoked = 0`, ownerID); err != nil {
		return nil, apperrors.Wrap(err, "failed to revoke owner tokens")
	}

	return ids, nil
}

// ConsumeMagicLink atomically flips consumed from false to true for a magic
// link that is unrevoked and unexpired at now. It reports true only to the single caller whose update applied.
func (s *SQLiteTokenRepository) ConsumeMagicLink(ctx context.Context, tokenID uuid.UUID, now time.Time) (bool, error) {
	querier := database.GetTx(ctx, s.db)

	result, err := querier.ExecContext(
		ctx,
		`UPDATE tokens SET consumed = 1 WHERE id = ? AND kind = ? AND consumed = 0 AND revoked = 0
		 AND julianday(expires_at) > julianday(?)`,
		tokenID.String(),
		string(credentialDomain.KindMagicLink),
		now.UTC(),
	)
	if err != nil {
		return false, apperrors.Wrap(err, "failed to consume magic link")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, apperrors.Wrap(err, "failed to get rows affected")
	}
	return affected == 1, nil
}

// DeleteExpired deletes tokens that expired before the given time. With dryRun
// set it only counts them. Candidate rows are filtered in Go because SQLite
// compares timestamps as text.
func (s *SQLiteTokenRepository) DeleteExpired(ctx context.Context, before time.Time, dryRun bool) (int64, error) {
	querier := database.GetTx(ctx, s.db)

	rows, err := querier.QueryContext(ctx, `SELECT id, expires_at FROM tokens`)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to list tokens")
	}

	var expired []string
	for rows.Next() {
		var id string
		var expiresAt time.Time
		if err := rows.Scan(&id, &expiresAt); err != nil {
			_ = rows.Close()
			return 0, apperrors.Wrap(err, "failed to scan token")
		}
		if expiresAt.Before(before) {
			expired = append(expired, id)
		}
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return 0, apperrors.Wrap(err, "failed to iterate tokens")
	}
	_ = rows.Close()

	if dryRun {
		return int64(len(expired)), nil
	}

	var count int64
	for _, id := range expired {
		result, err := querier.ExecContext(ctx, `DELETE FROM tokens WHERE id = ?`, id)
		if err != nil {
			return count, apperrors.Wrap(err, "failed to delete expired token")
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return count, apperrors.Wrap(err, "failed to get rows affected")
		}
		count += affected
	}
	return count, nil
}

// NewSQLiteTokenRepository creates a new SQLite token repository.
func NewSQLiteTokenRepository(db *sql.DB) *SQLiteTokenRepository {
	return &SQLiteTokenRepository{db: db}
}
