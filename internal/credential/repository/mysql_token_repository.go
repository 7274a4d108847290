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

// MySQLTokenRepository implements TokenRecord persistence for MySQL.
// Uses BINARY(16) for UUIDs with transaction support via database.GetTx().
type MySQLTokenRepository struct {
	db *sql.DB
}

// Create inserts a new TokenRecord using BINARY(16) for the id.
func (m *MySQLTokenRepository) Create(ctx context.Context, token *credentialDomain.TokenRecord) error {
	querier := database.GetTx(ctx, m.db)

	query := `INSERT INTO tokens (id, kind, owner_id, issued_at, expires_at, consumed, revoked)
			  VALUES (?, ?, ?, ?, ?, ?, ?)`

	id, err := token.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal token id")
	}

	_, err = querier.ExecContext(
		ctx,
		query,
		id,
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
func (m *MySQLTokenRepository) Get(ctx context.Context, tokenID uuid.UUID) (*credentialDomain.TokenRecord, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT id, kind, owner_id, issued_at, expires_at, consumed, revoked
			  FROM tokens WHERE id = ?`

	id, err := tokenID.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal token id")
	}

	var token credentialDomain.TokenRecord
	var idBytes []byte

	err = querier.QueryRowContext(ctx, query, id).Scan(
		&idBytes,
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

	if err := token.ID.UnmarshalBinary(idBytes); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal token id")
	}

	return &token, nil
}

// Revoke marks a token revoked. Revoking an already revoked token succeeds.
// Returns ErrTokenNotFound if the token doesn't exist.
func (m *MySQLTokenRepository) Revoke(ctx context.Context, tokenID uuid.UUID) error {
	querier := database.GetTx(ctx, m.db)

	id, err := tokenID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal token id")
	}

	result, err := querier.ExecContext(ctx, `UPDATE tokens SET revoked = TRUE WHERE id = ? AND revoked = FALSE`, id)
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

	var exists bool
	err = querier.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM tokens WHERE id = ?)`, id).Scan(&exists)
	if err != nil {
		return apperrors.Wrap(err, "failed to check token")
	}
	if !exists {
		return credentialDomain.ErrTokenNotFound
	}
	return nil
}

// RevokeByOwner revokes every live token of an owner and returns their ids.
// Callers should run it inside a transaction.
func (m *MySQLTokenRepository) RevokeByOwner(ctx context.Context, ownerID int64) ([]uuid.UUID, error) {
	querier := database.GetTx(ctx, m.db)

	rows, err := querier.QueryContext(
		ctx,
		`SELECT id FROM tokens WHERE owner_id = ? AND revoked = FALSE FOR UPDATE`,
		ownerID,
	)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list owner tokens")
	}
	ids, err := scanIDs(rows, func(id *uuid.UUID) any { return binaryUUID{id: id} })
	if err != nil {
		return nil, err
	}

	if _, err := querier.ExecContext(
		ctx,
		`UPDATE tokens SET revoked = TRUE WHERE owner_id = ? AND revoked = FALSE`,
		ownerID,
	); err != nil {
		return nil, apperrors.Wrap(err, "failed to revoke owner tokens")
	}

	return ids, nil
}

// ConsumeMagicLink atomically flips consumed from false to true for a magic
// link that is unrevoked and unexpired at now. It reports true only to the single caller whose update applied.
func (m *MySQLTokenRepository) ConsumeMagicLink(ctx context.Context, tokenID uuid.UUID, now time.Time) (bool, error) {
	querier := database.GetTx(ctx, m.db)

	id, err := tokenID.MarshalBinary()
	if err != nil {
		return false, apperrors.Wrap(err, "failed to marshal token id")
	}

	result, err := querier.ExecContext(
		ctx,
		`UPDATE tokens SET consumed = TRUE
		 WHERE id = ? AND kind = ? AND consumed = FALSE AND revoked = FALSE
		 AND expires_at > ?`,
		id,
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
func (m *MySQLTokenRepository) DeleteExpired(ctx context.Context, before time.Time, dryRun bool) (int64, error) {
	querier := database.GetTx(ctx, m.db)

	if dryRun {
		var count int64
		err := querier.QueryRowContext(ctx, `SELECT COUNT(*) FROM tokens WHERE expires_at < ?`, before).Scan(&count)
		if err != nil {
			return 0, apperrors.Wrap(err, "failed to count expired tokens")
		}
		return count, nil
	}

	result, err := querier.ExecContext(ctx, `DELETE FROM tokens WHERE expires_at < ?`, before)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to delete expired tokens")
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to get rows affected")
	}
	return count, nil
}

// NewMySQLTokenRepository creates a new MySQL token repository.
func NewMySQLTokenRepository(db *sql.DB) *MySQLTokenRepository {
	return &MySQLTokenRepository{db: db}
}
