package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/allisson/tierguard/internal/clock"
	entitlementDomain "github.com/allisson/tierguard/internal/entitlement/domain"
	entitlementUseCase "github.com/allisson/tierguard/internal/entitlement/usecase"
)

// RunBillingFailure lapses the subscription of userID at the current time.
func RunBillingFailure(
	ctx context.Context,
	entitlementUseCase entitlementUseCase.EntitlementUseCase,
	clk clock.Clock,
	logger *slog.Logger,
	writer io.Writer,
	userID int64,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	state, err := entitlementUseCase.RecordBillingFailure(ctx, userID, clk.Now())
	if err != nil {
		return fmt.Errorf("failed to record billing failure: %w", err)
	}

	logger.Info("billing failure recorded", slog.Int64("user_id", userID))
	return writeTierState(writer, state, format)
}

// RunBillingSuccess restores the subscription of userID at the current time.
func RunBillingSuccess(
	ctx context.Context,
	entitlementUseCase entitlementUseCase.EntitlementUseCase,
	clk clock.Clock,
	logger *slog.Logger,
	writer io.Writer,
	userID int64,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	state, err := entitlementUseCase.RecordBillingSuccess(ctx, userID, clk.Now())
	if err != nil {
		return fmt.Errorf("failed to record billing success: %w", err)
	}

	logger.Info("billing success recorded", slog.Int64("user_id", userID))
	return writeTierState(writer, state, format)
}

// RunGrantPreview grants userID a preview of tier for duration from now.
func RunGrantPreview(
	ctx context.Context,
	entitlementUseCase entitlementUseCase.EntitlementUseCase,
	clk clock.Clock,
	logger *slog.Logger,
	writer io.Writer,
	userID int64,
	tier string,
	duration time.Duration,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}
	if duration <= 0 {
		return fmt.Errorf("duration must be positive, got: %s", duration)
	}

	parsedTier, err := entitlementDomain.ParseTier(tier)
	if err != nil {
		return fmt.Errorf("invalid tier %q: %w", tier, err)
	}

	state, err := entitlementUseCase.GrantPreview(ctx, userID, parsedTier, clk.Now().Add(duration))
	if err != nil {
		return fmt.Errorf("failed to grant preview: %w", err)
	}

	logger.Info("preview granted",
		slog.Int64("user_id", userID),
		slog.String("tier", string(parsedTier)),
		slog.Duration("duration", duration),
	)
	return writeTierState(writer, state, format)
}

// RunSetTier changes the base tier of userID.
func RunSetTier(
	ctx context.Context,
	entitlementUseCase entitlementUseCase.EntitlementUseCase,
	logger *slog.Logger,
	writer io.Writer,
	userID int64,
	tier string,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	parsedTier, err := entitlementDomain.ParseTier(tier)
	if err != nil {
		return fmt.Errorf("invalid tier %q: %w", tier, err)
	}

	state, err := entitlementUseCase.SetBaseTier(ctx, userID, parsedTier)
	if err != nil {
		return fmt.Errorf("failed to set tier: %w", err)
	}

	logger.Info("base tier set", slog.Int64("user_id", userID), slog.String("tier", string(parsedTier)))
	return writeTierState(writer, state, format)
}

func writeTierState(writer io.Writer, state *entitlementDomain.TierState, format string) error {
	out := map[string]any{
		"user_id":             state.UserID,
		"base_tier":           string(state.BaseTier),
		"subscription_status": string(state.Status),
	}
	if state.PreviewTier != nil && state.PreviewExpiresAt != nil {
		out["preview_tier"] = string(*state.PreviewTier)
		out["preview_expires_at"] = state.PreviewExpiresAt.Format(time.RFC3339)
	}
	if state.LapsedSince != nil {
		out["lapsed_since"] = state.LapsedSince.Format(time.RFC3339)
	}

	if format == "json" {
		return writeJSON(writer, out)
	}

	_, _ = fmt.Fprintf(writer, "User:      %d\n", state.UserID)
	_, _ = fmt.Fprintf(writer, "Base Tier: %s\n", state.BaseTier)
	_, _ = fmt.Fprintf(writer, "Status:    %s\n", state.Status)
	if v, ok := out["preview_tier"]; ok {
		_, _ = fmt.Fprintf(writer, "Preview:   %s until %s\n", v, out["preview_expires_at"])
	}
	if v, ok := out["lapsed_since"]; ok {
		_, _ = fmt.Fprintf(writer, "Lapsed:    since %s\n", v)
	}
	return nil
}
