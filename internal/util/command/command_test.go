package command_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github/chapool/twap-rebalancer/internal/app"
	"github/chapool/twap-rebalancer/internal/config"
	"github/chapool/twap-rebalancer/internal/errs"
	"github/chapool/twap-rebalancer/internal/util/command"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()

	dir := t.TempDir()
	abiPath := filepath.Join(dir, "Fund.json")
	require.NoError(t, os.WriteFile(abiPath,
		[]byte(`[{"type":"function","name":"rebalanceTWAPStep","inputs":[],"outputs":[],"stateMutability":"nonpayable"}]`), 0o600))

	return config.Config{
		RPCURL:              "http://127.0.0.1:1",
		PrivateKey:          "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80",
		ContractAddress:     common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3"),
		ABIPath:             abiPath,
		Method:              "rebalanceTWAPStep",
		GasLimit:            1_500_000,
		StepCount:           10,
		StepInterval:        time.Hour,
		ReceiptTimeout:      time.Minute,
		ReceiptPollInterval: time.Second,
		Logger:              config.Logger{Level: zerolog.WarnLevel},
	}
}

func TestWithApp(t *testing.T) {
	ctx := t.Context()
	cfg := testConfig(t)

	var testError = errors.New("test error")

	resultErr := command.WithApp(ctx, cfg, app.TerminalPassword, func(_ context.Context, a *app.App) error {
		assert.NotNil(t, a.Driver)
		assert.Equal(t, cfg.ContractAddress, a.Binding.Address())
		return testError
	})

	assert.Equal(t, testError, resultErr)
	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())
}

func TestWithAppInitFailure(t *testing.T) {
	cfg := testConfig(t)
	cfg.Method = "doesNotExist"

	called := false
	err := command.WithApp(t.Context(), cfg, app.TerminalPassword, func(_ context.Context, _ *app.App) error {
		called = true
		return nil
	})

	require.Error(t, err)
	assert.False(t, called)
	assert.Equal(t, "configuration", errs.Kind(err))
}

func TestNewSubcommandGroup(t *testing.T) {
	child := command.NewSubcommandGroup("child")
	group := command.NewSubcommandGroup("group", child)

	assert.Equal(t, "group", group.Use)
	require.Len(t, group.Commands(), 1)
	assert.Equal(t, "child", group.Commands()[0].Use)
}
