package repository

import (
	"database/sql"

	"github.com/google/uuid"

	apperrors "github.com/allisson/tierguard/internal/errors"
)

// scanIDs drains rows holding a single id column. dest adapts the id to the
// driver's scan target.
func scanIDs(rows *sql.Rows, dest func(id *uuid.UUID) any) ([]uuid.UUID, error) {
	defer func() { _ = rows.Close() }()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(dest(&id)); err != nil {
			return nil, apperrors.Wrap(err, "failed to scan token id")
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate token ids")
	}
	return ids, nil
}

// binaryUUID scans a BINARY(16) column into a uuid.UUID.
type binaryUUID struct {
	id *uuid.UUID
}

func (b binaryUUID) Scan(src any) error {
	raw, ok := src.([]byte)
	if !ok {
		return apperrors.New("unexpected uuid column type")
	}
	return b.id.UnmarshalBinary(raw)
}
