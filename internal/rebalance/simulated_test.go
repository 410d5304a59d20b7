package rebalance_test

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient/simulated"
	"github.com/ethereum/go-ethereum/params"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github/chapool/twap-rebalancer/internal/rebalance"
)

func TestRunOnSimulatedChain(t *testing.T) {
	f := newFixture(t, 3)
	f.opts.StepInterval = 20 * time.Millisecond

	backend := simulated.NewBackend(types.GenesisAlloc{
		f.identity.Address(): {Balance: new(big.Int).Mul(big.NewInt(100), big.NewInt(params.Ether))},
	})
	t.Cleanup(func() { _ = backend.Close() })

	done := make(chan struct{})
	stopped := make(chan struct{})
	defer func() {
		close(done)
		<-stopped
	}()
	go func() {
		defer close(stopped)
		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				backend.Commit()
			}
		}
	}()

	client := backend.Client()
	d, err := rebalance.NewDriver(client, f.identity, f.binding, f.store, f.metrics, f.clock, f.opts)
	require.NoError(t, err)

	summary, err := d.Run(t.Context())
	require.NoError(t, err)
	require.Len(t, summary.Results, 3)

	for i, result := range summary.Results {
		assert.Equal(t, uint64(i), result.Nonce)

		receipt, err := client.TransactionReceipt(t.Context(), result.TxHash)
		require.NoError(t, err)
		assert.Equal(t, types.ReceiptStatusSuccessful, receipt.Status)

		if i > 0 {
			assert.Greater(t, result.BlockNumber, summary.Results[i-1].BlockNumber)
		}
	}

	nonce, err := client.NonceAt(t.Context(), f.identity.Address(), nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), nonce)
}
