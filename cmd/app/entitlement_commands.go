package main

import (
	"context"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/allisson/tierguard/cmd/app/commands"
	"github.com/allisson/tierguard/internal/app"
	"github.com/allisson/tierguard/internal/config"
	entitlementUseCase "github.com/allisson/tierguard/internal/entitlement/usecase"
)

// defaultPreviewDuration is the preview length when --duration is omitted.
const defaultPreviewDuration = 7 * 24 * time.Hour

func userFlag() cli.Flag {
	return &cli.Int64Flag{
		Name:     "user",
		Aliases:  []string{"u"},
		Required: true,
		Usage:    "User id",
	}
}

// withEntitlements runs fn with an entitlement use case from a fresh container.
func withEntitlements(
	ctx context.Context,
	fn func(uc entitlementUseCase.EntitlementUseCase, container *app.Container) error,
) error {
	container := app.NewContainer(config.Load())
	defer func() { _ = container.Shutdown(ctx) }()

	uc, err := container.EntitlementUseCase()
	if err != nil {
		return err
	}
	return fn(uc, container)
}

func getEntitlementCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "billing-failure",
			Usage: "Record a failed payment, starting the grace window",
			Flags: []cli.Flag{userFlag(), formatFlag()},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return withEntitlements(ctx, func(uc entitlementUseCase.EntitlementUseCase, c *app.Container) error {
					return commands.RunBillingFailure(
						ctx, uc, c.Clock(), c.Logger(), commands.DefaultIO().Writer,
						cmd.Int64("user"), cmd.String("format"),
					)
				})
			},
		},
		{
			Name:  "billing-success",
			Usage: "Record a successful payment, restoring a lapsed subscription",
			Flags: []cli.Flag{userFlag(), formatFlag()},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return withEntitlements(ctx, func(uc entitlementUseCase.EntitlementUseCase, c *app.Container) error {
					return commands.RunBillingSuccess(
						ctx, uc, c.Clock(), c.Logger(), commands.DefaultIO().Writer,
						cmd.Int64("user"), cmd.String("format"),
					)
				})
			},
		},
		{
			Name:  "grant-preview",
			Usage: "Grant a temporary tier preview",
			Flags: []cli.Flag{
				userFlag(),
				&cli.StringFlag{
					Name:     "tier",
					Aliases:  []string{"t"},
					Required: true,
					Usage:    "Preview tier: observer, navigator, operator or sovereign",
				},
				&cli.DurationFlag{
					Name:    "duration",
					Aliases: []string{"d"},
					Value:   defaultPreviewDuration,
					Usage:   "How long the preview lasts",
				},
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return withEntitlements(ctx, func(uc entitlementUseCase.EntitlementUseCase, c *app.Container) error {
					return commands.RunGrantPreview(
						ctx, uc, c.Clock(), c.Logger(), commands.DefaultIO().Writer,
						cmd.Int64("user"), cmd.String("tier"), cmd.Duration("duration"), cmd.String("format"),
					)
				})
			},
		},
		{
			Name:  "set-tier",
			Usage: "Change the subscribed base tier of a user",
			Flags: []cli.Flag{
				userFlag(),
				&cli.StringFlag{
					Name:     "tier",
					Aliases:  []string{"t"},
					Required: true,
					Usage:    "Base tier: observer, navigator, operator or sovereign",
				},
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return withEntitlements(ctx, func(uc entitlementUseCase.EntitlementUseCase, c *app.Container) error {
					return commands.RunSetTier(
						ctx, uc, c.Logger(), commands.DefaultIO().Writer,
						cmd.Int64("user"), cmd.String("tier"), cmd.String("format"),
					)
				})
			},
		},
	}
}
