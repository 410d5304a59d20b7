// Package checkpoint persists rebalance progress so an interrupted run can resume.
package checkpoint

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/google/uuid"
)

// Version of the on-disk format.
const Version = 1

// Step is a confirmed rebalance step.
type Step struct {
	Step        int         `json:"step"`
	TxHash      common.Hash `json:"txHash"`
	Nonce       uint64      `json:"nonce"`
	BlockNumber uint64      `json:"blockNumber"`
	ConfirmedAt time.Time   `json:"confirmedAt"`
}

// Pending is a step whose transaction was signed and handed to the node but not confirmed yet.
// RawTx allows broadcasting the very same transaction again after a restart.
type Pending struct {
	Step        int           `json:"step"`
	TxHash      common.Hash   `json:"txHash"`
	Nonce       uint64        `json:"nonce"`
	RawTx       hexutil.Bytes `json:"rawTx"`
	SubmittedAt time.Time     `json:"submittedAt"`
}

type State struct {
	Version   int            `json:"version"`
	RunID     string         `json:"runId"`
	Contract  common.Address `json:"contract"`
	Sender    common.Address `json:"sender"`
	StepCount int            `json:"stepCount"`
	Completed []Step         `json:"completed"`
	Pending   *Pending       `json:"pending,omitempty"`
	StartedAt time.Time      `json:"startedAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// New starts a fresh run.
func New(contract common.Address, sender common.Address, stepCount int) *State {
	now := time.Now().UTC()

	return &State{
		Version:   Version,
		RunID:     uuid.New().String(),
		Contract:  contract,
		Sender:    sender,
		StepCount: stepCount,
		Completed: []Step{},
		StartedAt: now,
		UpdatedAt: now,
	}
}

// LastCompleted returns the highest confirmed step, 0 when none.
func (s *State) LastCompleted() int {
	if len(s.Completed) == 0 {
		return 0
	}
	return s.Completed[len(s.Completed)-1].Step
}

// LastConfirmedAt returns when the last step was confirmed, zero when none.
func (s *State) LastConfirmedAt() time.Time {
	if len(s.Completed) == 0 {
		return time.Time{}
	}
	return s.Completed[len(s.Completed)-1].ConfirmedAt
}

// NextStep is the 1-based step to execute next.
func (s *State) NextStep() int {
	return s.LastCompleted() + 1
}

// Done reports whether every step is confirmed.
func (s *State) Done() bool {
	return s.LastCompleted() >= s.StepCount
}

// MarkPending records a transaction about to be broadcast.
func (s *State) MarkPending(p Pending) {
	s.Pending = &p
	s.UpdatedAt = time.Now().UTC()
}

// ClearPending drops the pending marker, e.g. after the node rejected the transaction.
func (s *State) ClearPending() {
	s.Pending = nil
	s.UpdatedAt = time.Now().UTC()
}

// Complete appends a confirmed step and clears the pending marker.
func (s *State) Complete(step Step) {
	s.Completed = append(s.Completed, step)
	s.Pending = nil
	s.UpdatedAt = time.Now().UTC()
}
