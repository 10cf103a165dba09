package transaction

import (
	"sync"
	"time"
)

// FailureKind classifies why a transaction did not fully succeed.
type FailureKind string

const (
	FailureNone             FailureKind = ""
	FailureExecution        FailureKind = "execution_failed"
	FailureRejected         FailureKind = "rejected"
	FailurePermissionDenied FailureKind = "permission_denied"
	FailureIPCBroken        FailureKind = "ipc_broken"
	FailureCanceled         FailureKind = "canceled"
)

// Report is the final state of one executed transaction.
type Report struct {
	Entries  []Entry     `json:"entries"`
	Failure  FailureKind `json:"failure,omitempty"`
	ExitCode int         `json:"exit_code"`
	Reason   string      `json:"reason,omitempty"`

	// Indeterminate is set when the IPC channel broke before the terminal
	// message arrived, so the true outcome of the in-flight entries is
	// unknown.
	Indeterminate bool `json:"indeterminate,omitempty"`

	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished"`
}

// Succeeded reports whether the transaction completed without failure.
func (r *Report) Succeeded() bool {
	return r.Failure == FailureNone
}

// Counts returns how many entries succeeded, failed and were skipped.
func (r *Report) Counts() (succeeded, failed, skipped int) {
	for _, e := range r.Entries {
		switch e.Status {
		case StatusSucceeded:
			succeeded++
		case StatusFailed:
			failed++
		case StatusSkipped:
			skipped++
		}
	}
	return
}

// Aggregator tracks per-entry outcomes while a transaction executes and
// seals the final report. It is the only writer of entry statuses after
// planning.
type Aggregator struct {
	mu      sync.Mutex
	txn     *Transaction
	started time.Time
	sealed  bool
}

// NewAggregator creates an aggregator owning txn's statuses.
func NewAggregator(txn *Transaction) *Aggregator {
	return &Aggregator{txn: txn, started: time.Now()}
}

// Begin marks the given entries Running.
func (a *Aggregator) Begin(indexes []int) {
	a.set(indexes, StatusRunning)
}

// Complete marks the given entries Succeeded when exit is zero, Failed
// otherwise.
func (a *Aggregator) Complete(indexes []int, exit int) {
	if exit == 0 {
		a.set(indexes, StatusSucceeded)
	} else {
		a.set(indexes, StatusFailed)
	}
}

// Skip marks the given entries Skipped. Running entries may be skipped:
// that is the cancellation path, where in-flight work is abandoned.
func (a *Aggregator) Skip(indexes []int) {
	a.set(indexes, StatusSkipped)
}

func (a *Aggregator) set(indexes []int, next Status) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.sealed {
		return
	}
	for _, i := range indexes {
		if i < 0 || i >= len(a.txn.entries) {
			continue
		}
		a.txn.entries[i].advance(next)
	}
}

// FailRunning marks every Running entry Failed. Used when the channel to
// the helper breaks and the step's real outcome is unknown.
func (a *Aggregator) FailRunning() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.sealed {
		return
	}
	for i := range a.txn.entries {
		if a.txn.entries[i].Status == StatusRunning {
			a.txn.entries[i].advance(StatusFailed)
		}
	}
}

// SkipRemaining marks every non-terminal entry Skipped.
func (a *Aggregator) SkipRemaining() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.sealed {
		return
	}
	for i := range a.txn.entries {
		if !a.txn.entries[i].Status.Terminal() {
			a.txn.entries[i].advance(StatusSkipped)
		}
	}
}

// Snapshot returns a copy of the entries with their current statuses.
func (a *Aggregator) Snapshot() []Entry {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.txn.Entries()
}

// Seal produces the final report. The aggregator accepts no further
// mutations afterward.
func (a *Aggregator) Seal(failure FailureKind, exit int, reason string, indeterminate bool) *Report {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sealed = true
	return &Report{
		Entries:       a.txn.Entries(),
		Failure:       failure,
		ExitCode:      exit,
		Reason:        reason,
		Indeterminate: indeterminate,
		Started:       a.started,
		Finished:      time.Now(),
	}
}
