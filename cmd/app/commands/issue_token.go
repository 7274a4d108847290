package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	credentialDomain "github.com/allisson/tierguard/internal/credential/domain"
	credentialUseCase "github.com/allisson/tierguard/internal/credential/usecase"
)

// RunIssueToken issues a credential and prints it. The credential is only
// shown once; only its id is stored.
func RunIssueToken(
	ctx context.Context,
	credentialUseCase credentialUseCase.CredentialUseCase,
	logger *slog.Logger,
	writer io.Writer,
	kind string,
	ownerID int64,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	parsedKind, err := credentialDomain.ParseKind(kind)
	if err != nil {
		return fmt.Errorf("invalid kind %q: %w", kind, err)
	}

	output, err := credentialUseCase.Issue(ctx, &credentialDomain.IssueTokenInput{
		Kind:    parsedKind,
		OwnerID: ownerID,
	})
	if err != nil {
		return fmt.Errorf("failed to issue token: %w", err)
	}

	logger.Info("token issued",
		slog.String("token_id", output.Record.ID.String()),
		slog.String("kind", string(output.Record.Kind)),
		slog.Int64("owner_id", output.Record.OwnerID),
	)

	if format == "json" {
		return writeJSON(writer, map[string]any{
			"token":      output.Token,
			"token_id":   output.Record.ID.String(),
			"kind":       string(output.Record.Kind),
			"owner_id":   output.Record.OwnerID,
			"expires_at": output.Record.ExpiresAt.Format(time.RFC3339),
		})
	}

	_, _ = fmt.Fprintf(writer, "Token ID:   %s\n", output.Record.ID)
	_, _ = fmt.Fprintf(writer, "Kind:       %s\n", output.Record.Kind)
	_, _ = fmt.Fprintf(writer, "Owner:      %d\n", output.Record.OwnerID)
	_, _ = fmt.Fprintf(writer, "Expires At: %s\n", output.Record.ExpiresAt.Format(time.RFC3339))
	_, _ = fmt.Fprintf(writer, "Token:      %s\n", output.Token)
	_, _ = fmt.Fprintln(writer, "\nWARNING: store the token now, it cannot be retrieved again.")
	return nil
}
