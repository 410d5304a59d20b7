package rebalance

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// State is where the driver currently is in its step cycle.
type State string

const (
	StateIdle                 State = "idle"
	StateBuilding             State = "building"
	StateSigning              State = "signing"
	StateSubmitting           State = "submitting"
	StateAwaitingConfirmation State = "awaiting_confirmation"
	StateWaiting              State = "waiting"
	StateDone                 State = "done"
	StateFailed               State = "failed"
)

// Progress is a point in time copy of the driver's position, safe to hand to other goroutines.
type Progress struct {
	RunID         string      `json:"runId"`
	State         State       `json:"state"`
	Step          int         `json:"step"`
	StepCount     int         `json:"stepCount"`
	LastCompleted int         `json:"lastCompleted"`
	LastTxHash    common.Hash `json:"lastTxHash"`
	NextStepAt    *time.Time  `json:"nextStepAt,omitempty"`
	Error         string      `json:"error,omitempty"`
	UpdatedAt     time.Time   `json:"updatedAt"`
}

// Progress returns the current position.
func (d *Driver) Progress() Progress {
	d.mu.RLock()
	defer d.mu.RUnlock()

	p := d.progress
	if p.NextStepAt != nil {
		next := *p.NextStepAt
		p.NextStepAt = &next
	}
	return p
}

func (d *Driver) setState(state State, step int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.progress.State = state
	d.progress.Step = step
	d.progress.NextStepAt = nil
	d.progress.UpdatedAt = d.clock.Now().UTC()
}

func (d *Driver) setWaiting(step int, until time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.progress.State = StateWaiting
	d.progress.Step = step
	d.progress.NextStepAt = &until
	d.progress.UpdatedAt = d.clock.Now().UTC()
}

func (d *Driver) setCompleted(step int, txHash common.Hash) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.progress.LastCompleted = step
	d.progress.LastTxHash = txHash
	d.progress.UpdatedAt = d.clock.Now().UTC()
}

func (d *Driver) setFailed(step int, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.progress.State = StateFailed
	d.progress.Step = step
	d.progress.NextStepAt = nil
	d.progress.Error = err.Error()
	d.progress.UpdatedAt = d.clock.Now().UTC()
}

func (d *Driver) setRun(runID string, lastCompleted int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.progress.RunID = runID
	d.progress.LastCompleted = lastCompleted
	d.progress.Error = ""
	d.progress.UpdatedAt = d.clock.Now().UTC()
}
