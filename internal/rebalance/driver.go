// Package rebalance drives the fixed sequence of TWAP rebalance transactions.
package rebalance

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/dropbox/godropbox/time2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github/chapool/twap-rebalancer/internal/checkpoint"
	"github/chapool/twap-rebalancer/internal/errs"
	"github/chapool/twap-rebalancer/internal/metrics"
	"github/chapool/twap-rebalancer/internal/signer"
)

// Driver executes the steps strictly one after another: step i+1 is never built before
// step i has a successful receipt.
type Driver struct {
	node     Node
	signer   Signer
	contract CallEncoder
	store    checkpoint.Store
	metrics  *metrics.Service
	clock    time2.Clock
	opts     Options

	chainID *big.Int
	// lastNonce is the nonce of the last confirmed step, nil before the first one.
	lastNonce *uint64
	// lastConfirmedAt is read from the clock when a step of this process confirms. It keeps
	// the monotonic reading the checkpoint timestamps lose.
	lastConfirmedAt time.Time

	mu       sync.RWMutex
	progress Progress
}

func NewDriver(
	node Node,
	sig Signer,
	contract CallEncoder,
	store checkpoint.Store,
	m *metrics.Service,
	clock time2.Clock,
	opts Options,
) (*Driver, error) {
	if node == nil || sig == nil || contract == nil || store == nil || m == nil || clock == nil {
		return nil, errors.New("driver dependencies must not be nil")
	}

	switch {
	case opts.StepCount < 1:
		return nil, errs.Configf("step_count", "must be >= 1, got %d", opts.StepCount)
	case opts.StepInterval < 0:
		return nil, errs.Configf("step_interval_seconds", "must not be negative")
	case opts.GasLimit == 0:
		return nil, errs.Configf("gas_limit", "must be > 0")
	case opts.ReceiptTimeout <= 0:
		return nil, errs.Configf("receipt_timeout", "must be > 0")
	case opts.ReceiptPollInterval <= 0:
		return nil, errs.Configf("receipt_poll_interval", "must be > 0")
	}

	m.StepCount.Set(float64(opts.StepCount))

	return &Driver{
		node:     node,
		signer:   sig,
		contract: contract,
		store:    store,
		metrics:  m,
		clock:    clock,
		opts:     opts,
		chainID:  opts.ChainID,
		progress: Progress{
			State:     StateIdle,
			StepCount: opts.StepCount,
			UpdatedAt: clock.Now().UTC(),
		},
	}, nil
}

// Run executes the remaining steps. Any error aborts the run and is returned unchanged in kind;
// nothing is retried. The returned summary is never nil once the checkpoint was loaded.
func (d *Driver) Run(ctx context.Context) (*Summary, error) {
	state, err := d.loadState()
	if err != nil {
		d.fail(ctx, 0, err)
		return nil, err
	}

	d.setRun(state.RunID, state.LastCompleted())
	d.metrics.LastCompletedStep.Set(float64(state.LastCompleted()))
	if n := len(state.Completed); n > 0 {
		nonce := state.Completed[n-1].Nonce
		d.lastNonce = &nonce
	}

	summary := &Summary{
		RunID:     state.RunID,
		FirstStep: state.NextStep(),
		StepCount: d.opts.StepCount,
		Results:   []StepResult{},
	}

	if state.Pending != nil {
		step := state.Pending.Step
		summary.FirstStep = step

		result, err := d.recoverPending(ctx, state)
		if err != nil {
			d.fail(ctx, step, err)
			return summary, err
		}
		summary.Results = append(summary.Results, *result)
	}

	if state.Done() && len(summary.Results) == 0 {
		log.Info().
			Str("run_id", state.RunID).
			Int("steps", d.opts.StepCount).
			Msg("All rebalance steps already executed, nothing to do")
		d.setState(StateDone, state.LastCompleted())
		return summary, nil
	}

	log.Info().
		Str("run_id", state.RunID).
		Str("contract", d.contract.Address().Hex()).
		Str("method", d.contract.Method()).
		Str("sender", d.signer.Address().Hex()).
		Int("from_step", state.NextStep()).
		Int("steps", d.opts.StepCount).
		Dur("interval", d.opts.StepInterval).
		Msg("Starting TWAP rebalance")

	for step := state.NextStep(); step <= d.opts.StepCount; step++ {
		if err := d.waitForSlot(ctx, state, step); err != nil {
			d.fail(ctx, step, err)
			return summary, err
		}

		result, err := d.executeStep(ctx, state, step)
		if err != nil {
			d.fail(ctx, step, err)
			return summary, err
		}

		summary.Submitted++
		summary.Results = append(summary.Results, *result)
	}

	if d.opts.WaitAfterFinalStep {
		if err := d.waitForSlot(ctx, state, d.opts.StepCount+1); err != nil {
			d.fail(ctx, d.opts.StepCount, err)
			return summary, err
		}
	}

	d.setState(StateDone, d.opts.StepCount)

	log.Info().
		Str("run_id", state.RunID).
		Int("submitted", summary.Submitted).
		Int("steps", d.opts.StepCount).
		Msg("TWAP rebalance completed")

	return summary, nil
}

func (d *Driver) loadState() (*checkpoint.State, error) {
	contract := d.contract.Address()
	sender := d.signer.Address()

	if d.opts.Resume {
		state, err := d.store.Load()
		switch {
		case err == nil:
			if state.Contract != contract || state.Sender != sender {
				return nil, errs.Configf("checkpoint_path",
					"checkpoint belongs to contract %s and sender %s, reset it to start a new run",
					state.Contract.Hex(), state.Sender.Hex())
			}
			if state.StepCount != d.opts.StepCount {
				return nil, errs.Configf("step_count",
					"checkpoint was created for %d steps but %d are configured", state.StepCount, d.opts.StepCount)
			}

			log.Info().
				Str("run_id", state.RunID).
				Int("last_completed", state.LastCompleted()).
				Bool("pending", state.Pending != nil).
				Msg("Resuming from checkpoint")
			return state, nil
		case errors.Is(err, checkpoint.ErrNotFound):
		default:
			return nil, &errs.ConfigurationError{Field: "checkpoint_path", Err: err}
		}
	}

	state := checkpoint.New(contract, sender, d.opts.StepCount)
	if err := d.store.Save(state); err != nil {
		return nil, errors.Wrap(err, "failed to initialize checkpoint")
	}

	return state, nil
}

// waitForSlot blocks until one interval has passed since the last confirmation.
// Steps confirmed by an earlier process are measured from the checkpoint.
func (d *Driver) waitForSlot(ctx context.Context, state *checkpoint.State, nextStep int) error {
	last := d.lastConfirmedAt
	if last.IsZero() {
		last = state.LastConfirmedAt()
	}
	if last.IsZero() || d.opts.StepInterval == 0 {
		return nil
	}

	until := last.Add(d.opts.StepInterval)
	delay := until.Sub(d.clock.Now())
	if delay <= 0 {
		return nil
	}

	d.setWaiting(state.LastCompleted(), until)

	event := log.Info().
		Int("completed_step", state.LastCompleted()).
		Dur("delay", delay).
		Time("until", until)
	if nextStep > d.opts.StepCount {
		event.Msg("Waiting one interval after the final step")
	} else {
		event.Int("next_step", nextStep).Msg("Waiting before next step")
	}

	select {
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "interrupted while waiting for the next step")
	case <-d.clock.After(delay):
		return nil
	}
}

func (d *Driver) executeStep(ctx context.Context, state *checkpoint.State, step int) (*StepResult, error) {
	log.Info().Int("step", step).Int("steps", d.opts.StepCount).Msg("Executing TWAP rebalance step")

	d.setState(StateBuilding, step)
	req, err := d.build(ctx, step)
	if err != nil {
		return nil, err
	}

	d.setState(StateSigning, step)
	signed, err := d.signer.Sign(&signer.Request{
		ChainID:  d.chainID,
		To:       req.To,
		Nonce:    req.Nonce,
		GasLimit: req.GasLimit,
		GasPrice: req.GasPrice,
		Data:     req.Data,
	})
	if err != nil {
		return nil, &errs.TransactionError{Step: step, Err: errors.Wrap(err, "failed to sign transaction")}
	}

	d.setState(StateSubmitting, step)

	submittedAt := d.clock.Now()
	state.MarkPending(checkpoint.Pending{
		Step:        step,
		TxHash:      signed.TxHash,
		Nonce:       req.Nonce,
		RawTx:       signed.RawTransaction,
		SubmittedAt: submittedAt.UTC(),
	})
	if err := d.store.Save(state); err != nil {
		return nil, errors.Wrap(err, "failed to persist pending step")
	}

	if err := d.node.SendTransaction(ctx, signed.Transaction); err != nil {
		// a transport failure may still have delivered the transaction, keep it pending for the next run
		if !errs.IsConnection(err) {
			d.clearPending(state)
		}
		return nil, stepError(step, signed.TxHash, err, "failed to submit transaction")
	}

	d.metrics.StepsSubmitted.Inc()

	log.Info().
		Int("step", step).
		Str("tx_hash", signed.TxHash.Hex()).
		Uint64("nonce", req.Nonce).
		Str("gas_price", req.GasPrice.String()).
		Msg("Rebalance transaction submitted")

	return d.confirm(ctx, state, step, signed.TxHash, req.Nonce, submittedAt, false)
}

// build assembles a fresh request: nonce and gas price are read from the node on every step.
func (d *Driver) build(ctx context.Context, step int) (*TxRequest, error) {
	from := d.signer.Address()

	if d.chainID == nil {
		chainID, err := d.node.ChainID(ctx)
		if err != nil {
			return nil, stepError(step, common.Hash{}, err, "failed to get chain ID")
		}
		d.chainID = chainID
		log.Info().Str("chain_id", chainID.String()).Msg("Resolved chain ID from node")
	}

	nonce, err := d.node.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, stepError(step, common.Hash{}, err, "failed to get nonce")
	}

	if d.lastNonce != nil && nonce <= *d.lastNonce {
		log.Warn().
			Int("step", step).
			Uint64("node_nonce", nonce).
			Uint64("last_nonce", *d.lastNonce).
			Msg("Node reported a stale nonce, using the one after the last confirmed step")
		nonce = *d.lastNonce + 1
	}

	gasPrice, err := d.node.SuggestGasPrice(ctx)
	if err != nil {
		return nil, stepError(step, common.Hash{}, err, "failed to get gas price")
	}

	data, err := d.contract.CallData()
	if err != nil {
		return nil, &errs.TransactionError{Step: step, Err: err}
	}

	gasPriceFloat, _ := new(big.Float).SetInt(gasPrice).Float64()
	d.metrics.GasPriceWei.Set(gasPriceFloat)

	return &TxRequest{
		Step:     step,
		From:     from,
		To:       d.contract.Address(),
		Nonce:    nonce,
		GasLimit: d.opts.GasLimit,
		GasPrice: gasPrice,
		Data:     data,
	}, nil
}

// confirm waits for the receipt and records the step as completed.
func (d *Driver) confirm(
	ctx context.Context,
	state *checkpoint.State,
	step int,
	txHash common.Hash,
	nonce uint64,
	submittedAt time.Time,
	recovered bool,
) (*StepResult, error) {
	d.setState(StateAwaitingConfirmation, step)

	receipt, err := d.awaitReceipt(ctx, step, txHash)
	if err != nil {
		return nil, err
	}

	if receipt.Status != types.ReceiptStatusSuccessful {
		// mined but failed, the nonce is spent and nothing is in flight anymore
		d.clearPending(state)
		return nil, &errs.TransactionError{Step: step, TxHash: txHash, Err: d.revertReason(receipt)}
	}

	confirmedAt := d.clock.Now()
	duration := confirmedAt.Sub(submittedAt)

	var blockNumber uint64
	if receipt.BlockNumber != nil {
		blockNumber = receipt.BlockNumber.Uint64()
	}

	state.Complete(checkpoint.Step{
		Step:        step,
		TxHash:      txHash,
		Nonce:       nonce,
		BlockNumber: blockNumber,
		ConfirmedAt: confirmedAt.UTC(),
	})
	if err := d.store.Save(state); err != nil {
		return nil, errors.Wrap(err, "failed to persist completed step")
	}

	d.lastNonce = &nonce
	d.lastConfirmedAt = confirmedAt
	d.setCompleted(step, txHash)

	d.metrics.StepsConfirmed.Inc()
	d.metrics.LastCompletedStep.Set(float64(step))
	d.metrics.ConfirmationSeconds.Observe(duration.Seconds())

	log.Info().
		Int("step", step).
		Int("steps", d.opts.StepCount).
		Str("tx_hash", txHash.Hex()).
		Uint64("block", blockNumber).
		Uint64("gas_used", receipt.GasUsed).
		Dur("duration", duration).
		Msg("Rebalance step executed")

	return &StepResult{
		Step:        step,
		TxHash:      txHash,
		Nonce:       nonce,
		BlockNumber: blockNumber,
		GasUsed:     receipt.GasUsed,
		Duration:    duration,
		Recovered:   recovered,
	}, nil
}

func (d *Driver) clearPending(state *checkpoint.State) {
	state.ClearPending()
	if err := d.store.Save(state); err != nil {
		log.Error().Err(err).Msg("Failed to clear pending step from checkpoint")
	}
}

func (d *Driver) fail(ctx context.Context, step int, err error) {
	kind := errs.Kind(err)
	if ctx.Err() != nil {
		kind = "canceled"
	}

	d.setFailed(step, err)
	d.metrics.StepFailures.WithLabelValues(kind).Inc()
}

// stepError keeps connection and cancellation errors as they are and turns everything
// else the node answered into a TransactionError.
func stepError(step int, txHash common.Hash, err error, msg string) error {
	if errs.IsConnection(err) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return errors.Wrap(err, msg)
	}

	return &errs.TransactionError{Step: step, TxHash: txHash, Err: errors.Wrap(err, msg)}
}
