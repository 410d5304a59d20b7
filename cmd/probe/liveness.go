package probe

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github/chapool/twap-rebalancer/internal/checkpoint"
	"github/chapool/twap-rebalancer/internal/config"
)

const livenessTimeout = 5 * time.Second

func newLiveness() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "liveness",
		Short: "Checks the checkpoint and the status server of a running instance",
		Long: `Checks that the checkpoint file is readable and its directory writable.
When an HTTP address is configured, the running instance must answer on /-/healthy.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			verbose, err := cmd.Flags().GetBool(verboseFlag)
			if err != nil {
				return err
			}

			cfg, err := config.Read(cmd.Flags())
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), livenessTimeout)
			defer cancel()

			return runLiveness(ctx, cfg, cmd.OutOrStdout(), verbose)
		},
	}

	cmd.Flags().String(config.FlagName(config.KeyCheckpointPath), "", "progress file of the run")
	cmd.Flags().String(config.FlagName(config.KeyHTTPAddr), "", "listen address of the running instance")
	cmd.Flags().BoolP(verboseFlag, "v", false, "print the result of every check")

	return cmd
}

func runLiveness(ctx context.Context, cfg config.Config, out io.Writer, verbose bool) error {
	report := func(format string, args ...interface{}) {
		if verbose {
			fmt.Fprintf(out, format+"\n", args...)
		}
	}

	if cfg.CheckpointPath != "" {
		if err := checkCheckpoint(cfg.CheckpointPath); err != nil {
			return err
		}
		report("checkpoint: %s ok", cfg.CheckpointPath)
	}

	if cfg.HTTPAddr != "" {
		if err := checkHealthy(ctx, cfg.HTTPAddr); err != nil {
			return err
		}
		report("status server: %s ok", cfg.HTTPAddr)
	}

	report("alive")

	return nil
}

func checkCheckpoint(path string) error {
	if _, err := checkpoint.NewFileStore(path).Load(); err != nil && !errors.Is(err, checkpoint.ErrNotFound) {
		return err
	}

	dir := filepath.Dir(path)
	f, err := os.CreateTemp(dir, ".liveness-*")
	if err != nil {
		return errors.Wrapf(err, "checkpoint directory %s is not writable", dir)
	}
	_ = f.Close()

	return os.Remove(f.Name())
}

func checkHealthy(ctx context.Context, addr string) error {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return errors.Wrapf(err, "invalid http address %q", addr)
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}

	url := fmt.Sprintf("http://%s/-/healthy", net.JoinHostPort(host, port))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	res, err := http.DefaultClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "status server is not reachable")
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return errors.Errorf("status server answered %d", res.StatusCode)
	}

	return nil
}
