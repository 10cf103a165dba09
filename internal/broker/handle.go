package broker

import (
	"context"
	"errors"
	"sync"

	"borealis/internal/protocol"
	"borealis/pkg/transaction"
)

// step is the routing surface of whatever is currently executing: a
// privileged helper session or a directly spawned process.
type step interface {
	input(line string) error
	cancel(reason string)
}

// Handle observes one submitted transaction: its live log stream, entry
// statuses, cancellation, and the final report.
type Handle struct {
	agg    *transaction.Aggregator
	events *eventQueue
	done   chan struct{}

	mu       sync.Mutex
	current  step
	canceled bool
	report   *transaction.Report
}

func newHandle(txn *transaction.Transaction) *Handle {
	return &Handle{
		agg:    transaction.NewAggregator(txn),
		events: newEventQueue(),
		done:   make(chan struct{}),
	}
}

// Events returns the live log stream. The channel closes when the
// transaction reaches a terminal state; callers must drain it. Per-stream
// order matches production order, and no event is ever dropped.
func (h *Handle) Events() <-chan protocol.LogEvent {
	return h.events.out
}

// Status returns a snapshot of the entries and their current statuses.
func (h *Handle) Status() []transaction.Entry {
	return h.agg.Snapshot()
}

// Done is closed once the report is available.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Cancel requests cooperative cancellation: the running step is told to
// stop and no further step starts. Completed entries keep their status.
// Cancellation is not instantaneous; wait for Wait.
func (h *Handle) Cancel() {
	h.mu.Lock()
	already := h.canceled
	h.canceled = true
	cur := h.current
	h.mu.Unlock()
	if already || cur == nil {
		return
	}
	cur.cancel("canceled by user")
}

// SendInput forwards one line to the running step, for tools prompting
// interactively when confirmation skipping is disabled.
func (h *Handle) SendInput(line string) error {
	h.mu.Lock()
	cur := h.current
	h.mu.Unlock()
	if cur == nil {
		return errors.New("no step is running")
	}
	return cur.input(line)
}

// Wait blocks until the transaction is terminal and returns its report.
func (h *Handle) Wait(ctx context.Context) (*transaction.Report, error) {
	select {
	case <-h.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.report, nil
}

func (h *Handle) isCanceled() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.canceled
}

// setStep publishes the running step for cancel and input routing. A
// cancellation that raced the step's start is applied immediately.
func (h *Handle) setStep(s step) {
	h.mu.Lock()
	h.current = s
	canceled := h.canceled
	h.mu.Unlock()
	if canceled && s != nil {
		s.cancel("canceled by user")
	}
}

func (h *Handle) clearStep() {
	h.setStep(nil)
}

func (h *Handle) finish(kind transaction.FailureKind, exit int, reason string, indeterminate bool) {
	rep := h.agg.Seal(kind, exit, reason, indeterminate)
	h.mu.Lock()
	h.report = rep
	h.mu.Unlock()
	h.events.close()
	close(h.done)
}
