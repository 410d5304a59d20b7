package env

import (
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github/chapool/twap-rebalancer/internal/config"
)

func New() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "env",
		Short: "Prints the resolved configuration with secrets masked",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return envCmdFunc(cmd)
		},
	}

	config.RegisterRunFlags(cmd.Flags())

	return cmd
}

func envCmdFunc(cmd *cobra.Command) error {
	cfg, err := config.Read(cmd.Flags())
	if err != nil {
		return err
	}

	c, err := json.MarshalIndent(cfg.Redacted(), "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal config")
	}

	fmt.Fprintln(cmd.OutOrStdout(), string(c))

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "configuration is not valid: %v\n", err)
	}

	return nil
}
