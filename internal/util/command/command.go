package command

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github/chapool/twap-rebalancer/internal/app"
	"github/chapool/twap-rebalancer/internal/config"
)

// NewSubcommandGroup returns a command that only groups the given subcommands and prints its help otherwise.
func NewSubcommandGroup(use string, subCommands ...*cobra.Command) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: use + " related subcommands",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(subCommands...)

	return cmd
}

// SetupLogger configures the global zerolog logger.
func SetupLogger(cfg config.Logger) {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.SetGlobalLevel(cfg.Level)

	if cfg.PrettyPrintConsole {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
	} else {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
}

// WithApp builds all components for cfg, runs f and releases the components afterwards.
func WithApp(ctx context.Context, cfg config.Config, password app.PasswordFunc, f func(ctx context.Context, a *app.App) error) error {
	SetupLogger(cfg.Logger)

	a, cleanup, err := app.InitNewApp(ctx, cfg, password)
	if err != nil {
		log.Error().Err(err).Msg("Failed to initialize rebalancer")
		return err
	}
	defer cleanup()

	return f(ctx, a)
}
