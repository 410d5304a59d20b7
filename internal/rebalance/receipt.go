package rebalance

import (
	"context"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github/chapool/twap-rebalancer/internal/checkpoint"
	"github/chapool/twap-rebalancer/internal/errs"
)

// awaitReceipt polls until the transaction is mined, the receipt timeout passes or ctx is done.
// The receipt is returned whatever its status. Node answers other than a lost connection,
// such as "transaction indexing is in progress", are polled through until the timeout.
func (d *Driver) awaitReceipt(ctx context.Context, step int, txHash common.Hash) (*types.Receipt, error) {
	localCtx, cancel := context.WithTimeout(ctx, d.opts.ReceiptTimeout)
	defer cancel()

	ticker := time.NewTicker(d.opts.ReceiptPollInterval)
	defer ticker.Stop()

	for {
		receipt, err := d.node.TransactionReceipt(localCtx, txHash)
		if err == nil {
			return receipt, nil
		}

		if localCtx.Err() != nil {
			return nil, d.receiptWaitError(ctx, step, txHash)
		}

		switch {
		case errors.Is(err, ethereum.NotFound):
			log.Debug().Int("step", step).Str("tx_hash", txHash.Hex()).Msg("Receipt not available yet")
		case errs.IsConnection(err):
			return nil, errors.Wrap(err, "failed to get transaction receipt")
		default:
			log.Warn().Err(err).Int("step", step).Str("tx_hash", txHash.Hex()).Msg("Node could not serve the receipt, polling again")
		}

		select {
		case <-localCtx.Done():
			return nil, d.receiptWaitError(ctx, step, txHash)
		case <-ticker.C:
		}
	}
}

func (d *Driver) receiptWaitError(ctx context.Context, step int, txHash common.Hash) error {
	if ctx.Err() != nil {
		return errors.Wrap(ctx.Err(), "interrupted while waiting for receipt")
	}

	return &errs.ConfirmationTimeoutError{Step: step, TxHash: txHash, Timeout: d.opts.ReceiptTimeout}
}

func (d *Driver) revertReason(receipt *types.Receipt) error {
	var block string
	if receipt.BlockNumber != nil {
		block = receipt.BlockNumber.String()
	}

	if receipt.GasUsed >= d.opts.GasLimit {
		return errors.Errorf("transaction ran out of gas in block %s (gas used %d of %d)", block, receipt.GasUsed, d.opts.GasLimit)
	}

	return errors.Errorf("transaction reverted in block %s (gas used %d of %d)", block, receipt.GasUsed, d.opts.GasLimit)
}

// recoverPending finishes the step a previous process submitted but did not see confirmed.
// The stored raw transaction is broadcast again when the node does not know its receipt,
// so the nonce is never reused for a different transaction.
func (d *Driver) recoverPending(ctx context.Context, state *checkpoint.State) (*StepResult, error) {
	pending := *state.Pending

	log.Warn().
		Int("step", pending.Step).
		Str("tx_hash", pending.TxHash.Hex()).
		Uint64("nonce", pending.Nonce).
		Time("submitted_at", pending.SubmittedAt).
		Msg("Found unconfirmed step from a previous run, recovering it")

	d.setState(StateAwaitingConfirmation, pending.Step)

	_, err := d.node.TransactionReceipt(ctx, pending.TxHash)
	switch {
	case err == nil:
	case errors.Is(err, ethereum.NotFound):
		tx := new(types.Transaction)
		if err := tx.UnmarshalBinary(pending.RawTx); err != nil {
			return nil, &errs.ConfigurationError{Field: "checkpoint_path", Err: errors.Wrap(err, "failed to decode pending transaction")}
		}

		if err := d.node.SendTransaction(ctx, tx); err != nil && !isKnownTransaction(err) {
			if !errs.IsConnection(err) {
				d.clearPending(state)
			}
			return nil, stepError(pending.Step, pending.TxHash, err, "failed to rebroadcast pending transaction")
		}

		log.Info().Int("step", pending.Step).Str("tx_hash", pending.TxHash.Hex()).Msg("Pending transaction broadcast again")
	case errs.IsConnection(err), ctx.Err() != nil:
		return nil, errors.Wrap(err, "failed to check pending transaction")
	default:
		// the node may still know the transaction, wait for it without sending it again
		log.Warn().Err(err).Int("step", pending.Step).Msg("Node could not serve the pending receipt, polling for it")
	}

	return d.confirm(ctx, state, pending.Step, pending.TxHash, pending.Nonce, pending.SubmittedAt, true)
}

// isKnownTransaction reports a rejection that only means the node already has this exact transaction.
func isKnownTransaction(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "already known") || strings.Contains(msg, "known transaction")
}
