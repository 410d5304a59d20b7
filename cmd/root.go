package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github/chapool/twap-rebalancer/cmd/checkpoint"
	"github/chapool/twap-rebalancer/cmd/env"
	"github/chapool/twap-rebalancer/cmd/probe"
	"github/chapool/twap-rebalancer/cmd/run"
	"github/chapool/twap-rebalancer/internal/config"
	"github/chapool/twap-rebalancer/internal/errs"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Version: config.GetFormattedBuildArgs(),
	Use:     "twap-rebalancer",
	Short:   config.ModuleName,
	Long: fmt.Sprintf(`%v

Executes a fixed number of rebalance transactions against a fund contract,
one every interval, signed with a local key.
Requires configuration through ENV (TWAP_*), an optional .env or config file and flags.`, config.ModuleName),
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	config.RegisterGlobalFlags(rootCmd.PersistentFlags())

	// attach the subcommands
	rootCmd.AddCommand(
		checkpoint.New(),
		env.New(),
		probe.New(),
		run.New(),
	)

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Str("kind", errs.Kind(err)).Msg("Failed to execute root command")
		os.Exit(1)
	}
}
