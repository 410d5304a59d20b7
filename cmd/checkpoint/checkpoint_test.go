package checkpoint_test

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	checkpointcmd "github/chapool/twap-rebalancer/cmd/checkpoint"
	"github/chapool/twap-rebalancer/internal/checkpoint"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	cmd := checkpointcmd.New()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return out.String(), err
}

func TestShowAndReset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "twap-checkpoint.json")
	store := checkpoint.NewFileStore(path)

	state := checkpoint.New(
		common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3"),
		common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"),
		10,
	)
	state.Complete(checkpoint.Step{Step: 1, TxHash: common.HexToHash("0x01")})
	state.MarkPending(checkpoint.Pending{Step: 2, TxHash: common.HexToHash("0x02"), Nonce: 1})
	require.NoError(t, store.Save(state))

	out, err := execute(t, "show", "--checkpoint-path", path)
	require.NoError(t, err)
	assert.Contains(t, out, state.RunID)
	assert.Contains(t, out, `"pending"`)

	// an unconfirmed transaction protects the checkpoint
	_, err = execute(t, "reset", "--checkpoint-path", path)
	require.Error(t, err)
	_, err = store.Load()
	require.NoError(t, err)

	out, err = execute(t, "reset", "--checkpoint-path", path, "--force")
	require.NoError(t, err)
	assert.Contains(t, out, "deleted")
	_, err = store.Load()
	require.ErrorIs(t, err, checkpoint.ErrNotFound)

	out, err = execute(t, "show", "--checkpoint-path", path)
	require.NoError(t, err)
	assert.Contains(t, out, "no checkpoint")
}

func TestResetWithoutPending(t *testing.T) {
	path := filepath.Join(t.TempDir(), "twap-checkpoint.json")
	store := checkpoint.NewFileStore(path)
	require.NoError(t, store.Save(checkpoint.New(common.HexToAddress("0x01"), common.HexToAddress("0x02"), 3)))

	_, err := execute(t, "reset", "--checkpoint-path", path)
	require.NoError(t, err)

	_, err = store.Load()
	require.ErrorIs(t, err, checkpoint.ErrNotFound)
}
