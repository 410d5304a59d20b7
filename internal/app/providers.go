package app

import (
	"context"
	"math/big"
	"os"

	"github.com/dropbox/godropbox/time2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github/chapool/twap-rebalancer/internal/api"
	"github/chapool/twap-rebalancer/internal/chain"
	"github/chapool/twap-rebalancer/internal/checkpoint"
	"github/chapool/twap-rebalancer/internal/config"
	"github/chapool/twap-rebalancer/internal/contract"
	"github/chapool/twap-rebalancer/internal/errs"
	"github/chapool/twap-rebalancer/internal/metrics"
	"github/chapool/twap-rebalancer/internal/rebalance"
	"github/chapool/twap-rebalancer/internal/signer"
)

func NewBinding(cfg config.Config) (*contract.Binding, error) {
	return contract.Load(cfg.ContractAddress, cfg.ABIPath, cfg.Method)
}

// PasswordFunc supplies the keystore password when none is configured.
type PasswordFunc func() (string, error)

// TerminalPassword asks on the controlling terminal.
func TerminalPassword() (string, error) {
	return signer.PromptPassword(int(os.Stdin.Fd()), os.Stderr, "Keystore password: ")
}

// NewIdentity prefers the raw private key and falls back to the keystore.
func NewIdentity(cfg config.Config, password PasswordFunc) (*signer.Identity, error) {
	if cfg.PrivateKey != "" {
		return signer.FromHex(cfg.PrivateKey)
	}

	if cfg.KeystorePath == "" {
		return nil, errs.Configf(config.KeyPrivateKey, "is required")
	}

	pw := cfg.KeystorePassword
	if pw == "" {
		var err error
		pw, err = password()
		if err != nil {
			return nil, &errs.ConfigurationError{Field: config.KeyKeystorePassword, Err: err}
		}
	}

	return signer.FromKeystore(cfg.KeystorePath, pw)
}

func NewChainClient(ctx context.Context, cfg config.Config) (*chain.Client, func(), error) {
	client, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return nil, nil, err
	}

	return client, client.Close, nil
}

// NewStore keeps progress on disk, or in memory when no checkpoint path is configured.
func NewStore(cfg config.Config) checkpoint.Store {
	if cfg.CheckpointPath == "" {
		log.Warn().Msg("No checkpoint path configured, an interrupted run cannot be resumed")
		return checkpoint.NewMemoryStore()
	}

	return checkpoint.NewFileStore(cfg.CheckpointPath)
}

func NewOptions(cfg config.Config) rebalance.Options {
	opts := rebalance.Options{
		StepCount:           cfg.StepCount,
		StepInterval:        cfg.StepInterval,
		WaitAfterFinalStep:  cfg.WaitAfterFinalStep,
		GasLimit:            cfg.GasLimit,
		ReceiptTimeout:      cfg.ReceiptTimeout,
		ReceiptPollInterval: cfg.ReceiptPollInterval,
		Resume:              cfg.Resume,
	}

	if cfg.ChainID != 0 {
		opts.ChainID = new(big.Int).SetUint64(cfg.ChainID)
	}

	return opts
}

func NewClock() time2.Clock {
	return time2.DefaultClock
}

func NewDriver(
	node rebalance.Node,
	sig rebalance.Signer,
	enc rebalance.CallEncoder,
	store checkpoint.Store,
	m *metrics.Service,
	clock time2.Clock,
	opts rebalance.Options,
) (*rebalance.Driver, error) {
	d, err := rebalance.NewDriver(node, sig, enc, store, m, clock, opts)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create rebalance driver")
	}

	return d, nil
}

// NewServer returns nil when the HTTP surface is disabled.
func NewServer(cfg config.Config, m *metrics.Service, progress api.ProgressSource) *api.Server {
	if cfg.HTTPAddr == "" {
		return nil
	}

	return api.NewServer(cfg.HTTPAddr, m, progress)
}
