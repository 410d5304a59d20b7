package errs_test

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github/chapool/twap-rebalancer/internal/errs"
)

func TestKind(t *testing.T) {
	cause := errors.New("boom")

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, "none"},
		{"configuration", errs.Configf("abi_path", "missing"), "configuration"},
		{"connection", &errs.ConnectionError{Op: "eth_chainId", Err: cause}, "connection"},
		{"key", &errs.InvalidKeyError{Err: cause}, "invalid_key"},
		{"transaction", &errs.TransactionError{Step: 2, Err: cause}, "transaction"},
		{"timeout", &errs.ConfirmationTimeoutError{Step: 3, Timeout: time.Minute}, "confirmation_timeout"},
		{"wrapped transaction", errors.Wrap(&errs.TransactionError{Step: 1, Err: cause}, "step failed"), "transaction"},
		{"canceled", errors.Wrap(context.Canceled, "waiting"), "canceled"},
		{"unknown", cause, "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errs.Kind(tt.err))
		})
	}
}

func TestConnectionErrorWrapsTransaction(t *testing.T) {
	// a connection failure while submitting stays a connection failure
	err := &errs.TransactionError{Step: 4, Err: &errs.ConnectionError{Op: "eth_sendRawTransaction", Err: context.DeadlineExceeded}}

	assert.True(t, errs.IsConnection(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, "transaction", errs.Kind(err))
}

func TestErrorMessages(t *testing.T) {
	hash := common.HexToHash("0x01")

	txErr := &errs.TransactionError{Step: 5, TxHash: hash, Err: errors.New("execution reverted")}
	assert.Contains(t, txErr.Error(), "step 5")
	assert.Contains(t, txErr.Error(), hash.Hex())

	noHash := &errs.TransactionError{Step: 5, Err: errors.New("nonce too low")}
	assert.NotContains(t, noHash.Error(), "0x")

	cfgErr := errs.Configf("gas_limit", "must be > 0, got %d", 0)
	var target *errs.ConfigurationError
	require.ErrorAs(t, cfgErr, &target)
	assert.Equal(t, "gas_limit", target.Field)
	assert.Equal(t, "configuration error: gas_limit: must be > 0, got 0", cfgErr.Error())
}
