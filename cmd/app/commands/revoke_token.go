package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

	credentialUseCase "github.com/allisson/tierguard/internal/credential/usecase"
)

// RunRevokeToken revokes a single token when tokenID is set, or every live
// token of ownerID otherwise. Exactly one of the two must be given.
func RunRevokeToken(
	ctx context.Context,
	credentialUseCase credentialUseCase.CredentialUseCase,
	logger *slog.Logger,
	writer io.Writer,
	tokenID string,
	ownerID int64,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}
	if (tokenID == "") == (ownerID == 0) {
		return errors.New("exactly one of --id or --owner is required")
	}

	if tokenID != "" {
		id, err := uuid.Parse(tokenID)
		if err != nil {
			return fmt.Errorf("invalid token id format: %w", err)
		}
		if err := credentialUseCase.Revoke(ctx, id); err != nil {
			return fmt.Errorf("failed to revoke token: %w", err)
		}

		logger.Info("token revoked", slog.String("token_id", id.String()))

		if format == "json" {
			return writeJSON(writer, map[string]any{"token_id": id.String(), "revoked": 1})
		}
		_, _ = fmt.Fprintf(writer, "Token %s revoked\n", id)
		return nil
	}

	count, err := credentialUseCase.RevokeAllForOwner(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("failed to revoke tokens: %w", err)
	}

	logger.Info("owner tokens revoked", slog.Int64("owner_id", ownerID), slog.Int("count", count))

	if format == "json" {
		return writeJSON(writer, map[string]any{"owner_id": ownerID, "revoked": count})
	}
	_, _ = fmt.Fprintf(writer, "Revoked %d token(s) of owner %d\n", count, ownerID)
	return nil
}
