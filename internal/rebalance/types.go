package rebalance

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github/chapool/twap-rebalancer/internal/signer"
)

// Node is the subset of the RPC API the driver consumes.
type Node interface {
	ChainID(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	// TransactionReceipt returns ethereum.NotFound until the transaction is mined.
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// Signer produces signed transactions for a single sender.
type Signer interface {
	Address() common.Address
	Sign(req *signer.Request) (*signer.Signed, error)
}

// CallEncoder encodes the rebalance call for the target contract.
type CallEncoder interface {
	Address() common.Address
	Method() string
	CallData() ([]byte, error)
}

type Options struct {
	StepCount    int
	StepInterval time.Duration
	// WaitAfterFinalStep also sleeps one interval after the last step before Run returns.
	WaitAfterFinalStep bool
	GasLimit           uint64
	// ChainID is asked from the node on first use when nil.
	ChainID             *big.Int
	ReceiptTimeout      time.Duration
	ReceiptPollInterval time.Duration
	// Resume continues from the stored checkpoint instead of starting over at step 1.
	Resume bool
}

func DefaultOptions() Options {
	return Options{
		StepCount:           10,
		StepInterval:        24 * time.Hour,
		GasLimit:            1_500_000,
		ReceiptTimeout:      10 * time.Minute,
		ReceiptPollInterval: 3 * time.Second,
		Resume:              true,
	}
}

// TxRequest is the unsigned transaction of one step, rebuilt on every iteration.
type TxRequest struct {
	Step     int
	From     common.Address
	To       common.Address
	Nonce    uint64
	GasLimit uint64
	GasPrice *big.Int
	Data     []byte
}

// StepResult is the confirmation of one step.
type StepResult struct {
	Step        int           `json:"step"`
	TxHash      common.Hash   `json:"txHash"`
	Nonce       uint64        `json:"nonce"`
	BlockNumber uint64        `json:"blockNumber"`
	GasUsed     uint64        `json:"gasUsed"`
	Duration    time.Duration `json:"duration"`
	// Recovered is set when the transaction was submitted by a previous process.
	Recovered bool `json:"recovered"`
}

// Summary describes what a Run did.
type Summary struct {
	RunID     string       `json:"runId"`
	FirstStep int          `json:"firstStep"`
	StepCount int          `json:"stepCount"`
	Submitted int          `json:"submitted"`
	Results   []StepResult `json:"results"`
}
