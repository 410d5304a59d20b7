package run

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github/chapool/twap-rebalancer/internal/app"
	"github/chapool/twap-rebalancer/internal/config"
	"github/chapool/twap-rebalancer/internal/errs"
	"github/chapool/twap-rebalancer/internal/util/command"
)

func New() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Executes the remaining TWAP rebalance steps",
		Long: `Executes the remaining TWAP rebalance steps.

Every step calls the configured zero argument method once and waits for its receipt.
The next step is submitted one interval after the previous one was confirmed.
Progress is written to the checkpoint file, a restarted run continues where it stopped.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCmdFunc(cmd)
		},
	}

	config.RegisterRunFlags(cmd.Flags())

	return cmd
}

func runCmdFunc(cmd *cobra.Command) error {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return command.WithApp(ctx, cfg, app.TerminalPassword, func(ctx context.Context, a *app.App) error {
		summary, err := a.Run(ctx)
		if err != nil {
			progress := a.Driver.Progress()

			event := log.Error().
				Err(err).
				Str("kind", errs.Kind(err)).
				Int("step", progress.Step).
				Int("last_completed", progress.LastCompleted)
			if summary != nil {
				event = event.Str("run_id", summary.RunID).Int("submitted", summary.Submitted)
			}
			event.Msg("TWAP rebalance aborted")

			return err
		}

		log.Info().
			Str("run_id", summary.RunID).
			Int("first_step", summary.FirstStep).
			Int("submitted", summary.Submitted).
			Int("steps", summary.StepCount).
			Msg("All TWAP rebalance steps executed")

		return nil
	})
}
