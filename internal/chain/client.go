// Package chain wraps the JSON-RPC connection to the node.
package chain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github/chapool/twap-rebalancer/internal/errs"
)

// Client is a single node connection. Over HTTP nothing is sent until the first call,
// so an unreachable endpoint only surfaces there, as *errs.ConnectionError.
// Errors answered by the node itself (rejected transaction, reverted call) are returned as is.
type Client struct {
	client *ethclient.Client
}

// NewClient binds a client to url without contacting the node.
func NewClient(ctx context.Context, url string) (*Client, error) {
	rpcClient, err := rpc.DialContext(ctx, url)
	if err != nil {
		// only malformed URLs and failed websocket / ipc dials end up here
		return nil, &errs.ConnectionError{Op: "dial", Err: err}
	}

	log.Debug().Msg("RPC client created")

	return &Client{
		client: ethclient.NewClient(rpcClient),
	}, nil
}

// Close releases the underlying connection.
func (c *Client) Close() {
	c.client.Close()
}

// ChainID returns the chain id used for replay protection.
func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	chainID, err := c.client.ChainID(ctx)
	if err != nil {
		return nil, classify("eth_chainId", err, "failed to get chain ID")
	}

	return chainID, nil
}

// PendingNonceAt returns the nonce including transactions still in the pool.
func (c *Client) PendingNonceAt(ctx context.Context, address common.Address) (uint64, error) {
	nonce, err := c.client.PendingNonceAt(ctx, address)
	if err != nil {
		return 0, classify("eth_getTransactionCount", err, "failed to get pending nonce")
	}

	return nonce, nil
}

// NonceAt returns the nonce at the latest block.
func (c *Client) NonceAt(ctx context.Context, address common.Address) (uint64, error) {
	nonce, err := c.client.NonceAt(ctx, address, nil)
	if err != nil {
		return 0, classify("eth_getTransactionCount", err, "failed to get nonce")
	}

	return nonce, nil
}

// SuggestGasPrice returns the node's legacy gas price suggestion.
func (c *Client) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	gasPrice, err := c.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, classify("eth_gasPrice", err, "failed to suggest gas price")
	}

	return gasPrice, nil
}

// BalanceAt returns the balance of an address at the latest block.
func (c *Client) BalanceAt(ctx context.Context, address common.Address) (*big.Int, error) {
	balance, err := c.client.BalanceAt(ctx, address, nil)
	if err != nil {
		return nil, classify("eth_getBalance", err, "failed to get balance")
	}

	return balance, nil
}

// SendTransaction broadcasts a signed transaction. Success only means the node accepted it.
func (c *Client) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	if err := c.client.SendTransaction(ctx, tx); err != nil {
		return classify("eth_sendRawTransaction", err, "failed to send transaction")
	}

	return nil
}

// TransactionReceipt returns ethereum.NotFound while the transaction is not mined.
func (c *Client) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	receipt, err := c.client.TransactionReceipt(ctx, txHash)
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return nil, ethereum.NotFound
		}
		return nil, classify("eth_getTransactionReceipt", err, "failed to get transaction receipt")
	}

	return receipt, nil
}

// classify separates answers from the node (rpc.Error) and cancellation from transport failures.
func classify(op string, err error, msg string) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return errors.Wrap(err, msg)
	}

	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		return errors.Wrap(err, msg)
	}

	return &errs.ConnectionError{Op: op, Err: errors.Wrap(err, msg)}
}
