package checkpoint

import (
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github/chapool/twap-rebalancer/internal/checkpoint"
	"github/chapool/twap-rebalancer/internal/config"
	"github/chapool/twap-rebalancer/internal/errs"
	"github/chapool/twap-rebalancer/internal/util/command"
)

const (
	forceFlag string = "force"
)

func New() *cobra.Command {
	return command.NewSubcommandGroup("checkpoint",
		newShow(),
		newReset(),
	)
}

func newShow() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Prints the stored progress of the current run",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openStore(cmd)
			if err != nil {
				return err
			}

			state, err := store.Load()
			if errors.Is(err, checkpoint.ErrNotFound) {
				fmt.Fprintf(cmd.OutOrStdout(), "no checkpoint at %s\n", store.Path())
				return nil
			}
			if err != nil {
				return err
			}

			c, err := json.MarshalIndent(state, "", "  ")
			if err != nil {
				return errors.Wrap(err, "failed to marshal checkpoint")
			}

			fmt.Fprintln(cmd.OutOrStdout(), string(c))
			return nil
		},
	}

	cmd.Flags().String(config.FlagName(config.KeyCheckpointPath), "", "progress file of the run")

	return cmd
}

func newReset() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Deletes the stored progress so the next run starts at step 1",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openStore(cmd)
			if err != nil {
				return err
			}

			force, err := cmd.Flags().GetBool(forceFlag)
			if err != nil {
				return err
			}

			state, err := store.Load()
			switch {
			case errors.Is(err, checkpoint.ErrNotFound):
				fmt.Fprintf(cmd.OutOrStdout(), "no checkpoint at %s\n", store.Path())
				return nil
			case err != nil && !force:
				return errors.Wrapf(err, "failed to read checkpoint, use --%s to delete it anyway", forceFlag)
			case err == nil && state.Pending != nil && !force:
				return errs.Configf(config.KeyCheckpointPath,
					"step %d has an unconfirmed transaction %s, use --%s to delete the checkpoint anyway",
					state.Pending.Step, state.Pending.TxHash.Hex(), forceFlag)
			}

			if err := store.Reset(); err != nil {
				return err
			}

			log.Info().Str("path", store.Path()).Msg("Checkpoint deleted")
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", store.Path())
			return nil
		},
	}

	cmd.Flags().String(config.FlagName(config.KeyCheckpointPath), "", "progress file of the run")
	cmd.Flags().Bool(forceFlag, false, "delete even when a transaction is still unconfirmed or the file is unreadable")

	return cmd
}

func openStore(cmd *cobra.Command) (*checkpoint.FileStore, error) {
	cfg, err := config.Read(cmd.Flags())
	if err != nil {
		return nil, err
	}

	if cfg.CheckpointPath == "" {
		return nil, errs.Configf(config.KeyCheckpointPath, "is not set")
	}

	return checkpoint.NewFileStore(cfg.CheckpointPath), nil
}
