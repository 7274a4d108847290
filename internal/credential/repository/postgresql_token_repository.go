// Package repository implements durable token storage for PostgreSQL, MySQL and SQLite.
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

// PostgreSQLTokenRepository implements TokenRecord persistence for PostgreSQL.
// Uses native UUID types with transaction support via database.GetTx().
type PostgreSQLTokenRepository struct {
	db *sql.DB
}

// Create inserts a new TokenRecord.
func (p *PostgreSQLTokenRepository) Create(ctx context.Context, token *credentialDomain.TokenRecord) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO tokens (id, kind, owner_id, issued_at, expires_at, consumed, revoked)
			  VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := querier.ExecContext(
		ctx,
		query,
		token.ID,
		string(token.Kind),
		token.OwnerID,
		token.IssuedAt,
		token.ExpiresAt,
		token.Consumed,
		token.Revoked,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create token")
	}
	return nil
}

// Get retrieves a TokenRecord by ID. Returns ErrTokenNotFound if it doesn't exist.
func (p *PostgreSQLTokenRepository) Get(ctx context.Context, tokenID uuid.UUID) (*credentialDomain.TokenRecord, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT id, kind, owner_id, issued_at, expires_at, consumed, revoked
			  FROM tokens WHERE id = $1`

	var token credentialDomain.TokenRecord

	err := querier.QueryRowContext(ctx, query, tokenID).Scan(
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

	return &token, nil
}

// Revoke marks a token revoked. Revoking an already revoked token succeeds.
// Returns ErrTokenNotFound if the token doesn't exist.
func (p *PostgreSQLTokenRepository) Revoke(ctx context.Context, tokenID uuid.UUID) error {
	querier := database.GetTx(ctx, p.db)

	result, err := querier.ExecContext(
		ctx,
		`UPDATE tokens SET revoked = TRUE WHERE id = $1 AND revoked = FALSE`,
		tokenID,
	)
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

	return p.ensureExists(ctx, querier, tokenID)
}

// RevokeByOwner revokes every live token of an owner and returns their ids.
// Callers should run it inside a transaction.
func (p *PostgreSQLTokenRepository) RevokeByOwner(ctx context.Context, ownerID int64) ([]uuid.UUID, error) {
	querier := database.GetTx(ctx, p.db)

	rows, err := querier.QueryContext(
		ctx,
		`SELECT id FROM tokens WHERE owner_id = $1 AND revoked = FALSE`,
		ownerID,
	)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list owner tokens")
	}
	ids, err := scanIDs(rows, func(id *uuid.UUID) any { return id })
	if err != nil {
		return nil, err
	}

	if _, err := querier.ExecContext(
		ctx,
		`UPDATE tokens SET revoked = TRUE WHERE owner_id = $1 AND revoked = FALSE`,
		ownerID,
	); err != nil {
		return nil, apperrors.Wrap(err, "failed to revoke owner tokens")
	}

	return ids, nil
}

// ConsumeMagicLink atomically flips consumed from false to true for a magic
// link that is unrevoked and unexpired at now. It reports true only to the single caller whose update applied.
func (p *PostgreSQLTokenRepository) ConsumeMagicLink(ctx context.Context, tokenID uuid.UUID, now time.Time) (bool, error) {
	querier := database.GetTx(ctx, p.db)

	result, err := querier.ExecContext(
		ctx,
		`UPDATE tokens SET consumed = TRUE
		 WHERE id = $1 AND kind = $2 AND consumed = FALSE AND revoked = FALSE
		 AND expires_at > $3`,
		tokenID,
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
// set it only counts them.
func (p *PostgreSQLTokenRepository) DeleteExpired(ctx context.Context, before time.Time, dryRun bool) (int64, error) {
	querier := database.GetTx(ctx, p.db)

	if dryRun {
		var count int64
		err := querier.QueryRowContext(ctx, `SELECT COUNT(*) FROM tokens WHERE expires_at < $1`, before).Scan(&count)
		if err != nil {
			return 0, apperrors.Wrap(err, "failed to count expired tokens")
		}
		return count, nil
	}

	result, err := querier.ExecContext(ctx, `DELETE FROM tokens WHERE expires_at < $1`, before)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to delete expired tokens")
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to get rows affected")
	}
	return count, nil
}

func (p *PostgreSQLTokenRepository) ensureExists(ctx context.Context, querier database.Querier, tokenID uuid.UUID) error {
	var exists bool
	err := querier.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM tokens WHERE id = $1)`, tokenID).Scan(&exists)
	if err != nil {
		return apperrors.Wrap(err, "failed to check token")
	}
	if !exists {
		return credentialDomain.ErrTokenNotFound
	}
	return nil
}

// NewPostgreSQLTokenRepository creates a new PostgreSQL token repository.
func NewPostgreSQLTokenRepository(db *sql.DB) *PostgreSQLTokenRepository {
	return &PostgreSQLTokenRepository{db: db}
}
