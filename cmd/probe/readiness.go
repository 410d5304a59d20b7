package probe

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github/chapool/twap-rebalancer/internal/app"
	"github/chapool/twap-rebalancer/internal/chain"
	"github/chapool/twap-rebalancer/internal/config"
	"github/chapool/twap-rebalancer/internal/util/command"
)

const readinessTimeout = 10 * time.Second

func newReadiness() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "readiness",
		Short: "Checks that a run could start: key, ABI and node are usable",
		Long: `Checks that a run could start without sending any transaction.

Verifies the signing key, the ABI and method, that the node answers with the
expected chain id and that the sender holds a balance.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			verbose, err := cmd.Flags().GetBool(verboseFlag)
			if err != nil {
				return err
			}

			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return err
			}
			command.SetupLogger(cfg.Logger)

			ctx, cancel := context.WithTimeout(cmd.Context(), readinessTimeout)
			defer cancel()

			return runReadiness(ctx, cfg, cmd.OutOrStdout(), verbose)
		},
	}

	config.RegisterRunFlags(cmd.Flags())
	cmd.Flags().BoolP(verboseFlag, "v", false, "print the result of every check")

	return cmd
}

func runReadiness(ctx context.Context, cfg config.Config, out io.Writer, verbose bool) error {
	report := func(format string, args ...interface{}) {
		if verbose {
			fmt.Fprintf(out, format+"\n", args...)
		}
	}

	binding, err := app.NewBinding(cfg)
	if err != nil {
		return err
	}
	report("abi: %s (selector %s) on %s", binding.Method(), hexutil.Encode(binding.Selector()), binding.Address().Hex())

	identity, err := app.NewIdentity(cfg, app.TerminalPassword)
	if err != nil {
		return err
	}
	report("sender: %s", identity.Address().Hex())

	client, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return err
	}
	defer client.Close()

	chainID, err := client.ChainID(ctx)
	if err != nil {
		return err
	}
	if cfg.ChainID != 0 && chainID.Uint64() != cfg.ChainID {
		return errors.Errorf("node reports chain id %s, configured %d", chainID, cfg.ChainID)
	}
	report("chain id: %s", chainID)

	balance, err := client.BalanceAt(ctx, identity.Address())
	if err != nil {
		return err
	}
	if balance.Sign() == 0 {
		return errors.Errorf("sender %s has no balance to pay for gas", identity.Address().Hex())
	}
	report("balance: %s wei", balance)

	confirmed, err := client.NonceAt(ctx, identity.Address())
	if err != nil {
		return err
	}
	pending, err := client.PendingNonceAt(ctx, identity.Address())
	if err != nil {
		return err
	}
	report("nonce: %d confirmed, %d pending", confirmed, pending)
	if pending > confirmed {
		report("warning: %d transaction(s) of the sender are not mined yet", pending-confirmed)
	}

	report("ready")

	return nil
}
