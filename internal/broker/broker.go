// Package broker is the unprivileged side of the transaction engine. It
// validates a planned transaction against the whitelist, owns the single
// active-transaction slot, launches each step (privileged steps through
// pkexec and the helper, community helper and flatpak steps directly),
// relays the live log stream, routes cancellation, and seals the final
// report.
package broker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"

	"borealis/internal/protocol"
	"borealis/internal/runner"
	"borealis/pkg/transaction"
	"borealis/pkg/whitelist"
)

// ErrTransactionInProgress rejects a submission while another transaction
// holds the slot. Submissions are never queued.
var ErrTransactionInProgress = errors.New("a transaction is already in progress")

// Broker executes one transaction at a time.
type Broker struct {
	table *whitelist.Table
	run   *runner.Runner

	mu     sync.Mutex
	busy   bool
	active *Handle

	// Test seams: escalate replaces the [pkexec, helper] command prefix,
	// command replaces how unprivileged steps map to a runner.Spec.
	escalate []string
	command  func(whitelist.Invocation) runner.Spec
}

func New(table *whitelist.Table, run *runner.Runner) *Broker {
	return &Broker{table: table, run: run}
}

// Submit validates the transaction, captures the active slot, and starts
// executing in the background. Validation failures surface here, before any
// process is spawned and without touching the slot.
func (b *Broker) Submit(ctx context.Context, txn *transaction.Transaction) (*Handle, error) {
	invs, err := b.table.Plan(txn)
	if err != nil {
		return nil, err
	}
	if len(invs) == 0 {
		return nil, errors.New("transaction has no entries")
	}

	var base []string
	if anyPrivileged(invs) {
		base, err = b.escalationBase()
		if err != nil {
			return nil, err
		}
	}

	b.mu.Lock()
	if b.busy {
		b.mu.Unlock()
		return nil, ErrTransactionInProgress
	}
	h := newHandle(txn)
	b.busy = true
	b.active = h
	b.mu.Unlock()

	go b.execute(ctx, h, invs, base)
	return h, nil
}

// Active returns the in-flight transaction's handle, or nil.
func (b *Broker) Active() *Handle {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.active
}

func (b *Broker) release(h *Handle) {
	b.mu.Lock()
	if b.active == h {
		b.active = nil
		b.busy = false
	}
	b.mu.Unlock()
}

type stepOutcome int

const (
	stepOK stepOutcome = iota
	stepFailed
	stepRejected
	stepCanceled
	stepDenied
	stepBroken
)

type stepResult struct {
	outcome stepOutcome
	exit    int
	reason  string
}

func (b *Broker) execute(ctx context.Context, h *Handle, invs []whitelist.Invocation, base []string) {
	defer b.release(h)
	seq := newSequencer()

	for _, inv := range invs {
		if h.isCanceled() || ctx.Err() != nil {
			h.agg.SkipRemaining()
			h.finish(transaction.FailureCanceled, 0, "canceled", false)
			return
		}

		seq.step()
		h.agg.Begin(inv.Entries)

		var res stepResult
		if inv.Privileged {
			res = b.privilegedStep(ctx, h, seq, inv, base)
		} else {
			res = b.unprivilegedStep(ctx, h, seq, inv)
		}

		switch res.outcome {
		case stepOK:
			h.agg.Complete(inv.Entries, 0)

		case stepFailed:
			// No rollback: completed entries keep their status, the
			// rest is skipped, and the report says exactly which step
			// broke.
			h.agg.Complete(inv.Entries, res.exit)
			h.agg.SkipRemaining()
			h.finish(transaction.FailureExecution, res.exit, res.reason, false)
			return

		case stepRejected:
			h.agg.Skip(inv.Entries)
			h.agg.SkipRemaining()
			h.finish(transaction.FailureRejected, res.exit, res.reason, false)
			return

		case stepCanceled:
			h.agg.Skip(inv.Entries)
			h.agg.SkipRemaining()
			h.finish(transaction.FailureCanceled, res.exit, res.reason, false)
			return

		case stepDenied:
			h.agg.Skip(inv.Entries)
			h.agg.SkipRemaining()
			h.finish(transaction.FailurePermissionDenied, res.exit, res.reason, false)
			return

		case stepBroken:
			// The step's true outcome is unknown: its entries are
			// failed, the report is flagged indeterminate.
			h.agg.FailRunning()
			h.agg.SkipRemaining()
			h.finish(transaction.FailureIPCBroken, res.exit, res.reason, true)
			return
		}
	}

	h.finish(transaction.FailureNone, 0, "", false)
}

// privilegedStep runs one helper conversation over pkexec.
func (b *Broker) privilegedStep(ctx context.Context, h *Handle, seq *sequencer, inv whitelist.Invocation, base []string) stepResult {
	spec := runner.Spec{
		Program: base[0],
		Args:    append(append([]string{}, base[1:]...), string(inv.Action)),
	}

	s := newSession(seq, h.events.push)
	proc, err := b.run.Start(ctx, spec, s.route)
	if err != nil {
		return stepResult{outcome: stepFailed, exit: -1, reason: err.Error()}
	}
	s.attach(proc)

	h.setStep(s)
	defer h.clearStep()

	// The write can fail if pkexec dies before reading; classification
	// below decides whether that was a denial or a broken channel.
	sendErr := s.send(protocol.NewRequest(string(inv.Action), inv.Names, inv.Flags))
	if sendErr != nil {
		_ = proc.CloseInput()
	}

	code, _ := proc.Wait()

	switch {
	case h.isCanceled() || ctx.Err() != nil:
		return stepResult{outcome: stepCanceled, exit: code, reason: "canceled by user"}
	case s.failed() != nil:
		return stepResult{outcome: stepBroken, exit: code, reason: s.failed().Error()}
	case s.terminal == nil:
		if !s.sawMsg && (code == 126 || code == 127) {
			reason := "authorization dismissed or denied"
			if msg := s.lastStderr(); msg != "" {
				reason = msg
			}
			return stepResult{outcome: stepDenied, exit: code, reason: reason}
		}
		reason := "helper exited without a terminal message"
		if sendErr != nil {
			reason = "sending request: " + sendErr.Error()
		}
		if msg := s.lastStderr(); msg != "" {
			reason += ": " + msg
		}
		return stepResult{outcome: stepBroken, exit: code, reason: reason}
	case s.terminal.Type == protocol.TypeRejected:
		return stepResult{outcome: stepRejected, exit: code, reason: s.terminal.Reason}
	case s.terminal.Canceled:
		return stepResult{outcome: stepCanceled, exit: s.terminal.Exit, reason: "canceled by user"}
	case s.terminal.Exit != 0:
		return stepResult{
			outcome: stepFailed,
			exit:    s.terminal.Exit,
			reason:  fmt.Sprintf("%s step exited with status %d", inv.Action, s.terminal.Exit),
		}
	default:
		return stepResult{outcome: stepOK}
	}
}

// unprivilegedStep spawns the community helper or flatpak directly as the
// invoking user; those tools escalate on their own where needed.
func (b *Broker) unprivilegedStep(ctx context.Context, h *Handle, seq *sequencer, inv whitelist.Invocation) stepResult {
	spec := runner.Spec{Program: inv.Program, Args: inv.Args}
	if b.command != nil {
		spec = b.command(inv)
	}

	proc, err := b.run.Start(ctx, spec, func(stderrStream bool, line string, sq uint64) {
		stream := protocol.StreamStdout
		if stderrStream {
			stream = protocol.StreamStderr
		}
		n, err := seq.next(stream, sq)
		if err != nil {
			return
		}
		h.events.push(protocol.LogEvent{Stream: stream, Line: line, Seq: n})
	})
	if err != nil {
		return stepResult{outcome: stepFailed, exit: 127, reason: err.Error()}
	}

	h.setStep(procStep{proc})
	defer h.clearStep()

	code, waitErr := proc.Wait()
	switch {
	case h.isCanceled() || ctx.Err() != nil:
		return stepResult{outcome: stepCanceled, exit: code, reason: "canceled by user"}
	case waitErr != nil:
		return stepResult{outcome: stepFailed, exit: code, reason: waitErr.Error()}
	case code != 0:
		return stepResult{
			outcome: stepFailed,
			exit:    code,
			reason:  fmt.Sprintf("%s exited with status %d", inv.Program, code),
		}
	default:
		return stepResult{outcome: stepOK}
	}
}

// procStep routes cancel and input to a directly spawned process.
type procStep struct {
	proc *runner.Proc
}

func (s procStep) input(line string) error { return s.proc.Input(line) }
func (s procStep) cancel(string)           { s.proc.Kill() }

// MaintenanceReport is the outcome of a maintenance verb run.
type MaintenanceReport struct {
	Log      []protocol.LogEvent
	ExitCode int
	Reason   string
}

// Succeeded reports a clean maintenance run.
func (r *MaintenanceReport) Succeeded() bool {
	return r.ExitCode == 0 && r.Reason == ""
}

// ClearLock asks the helper to remove a stale pacman database lock. It
// occupies the same slot as a transaction: maintenance never interleaves
// with package operations.
func (b *Broker) ClearLock(ctx context.Context) (*MaintenanceReport, error) {
	base, err := b.escalationBase()
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	if b.busy {
		b.mu.Unlock()
		return nil, ErrTransactionInProgress
	}
	b.busy = true
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		b.busy = false
		b.mu.Unlock()
	}()

	rep := &MaintenanceReport{}
	s := newSession(newSequencer(), func(e protocol.LogEvent) {
		rep.Log = append(rep.Log, e)
	})
	spec := runner.Spec{
		Program: base[0],
		Args:    append(append([]string{}, base[1:]...), "clear-lock"),
	}
	proc, err := b.run.Start(ctx, spec, s.route)
	if err != nil {
		return nil, err
	}
	s.attach(proc)

	code, _ := proc.Wait()
	rep.ExitCode = code
	switch {
	case s.failed() != nil:
		rep.Reason = s.failed().Error()
	case s.terminal == nil:
		if !s.sawMsg && (code == 126 || code == 127) {
			rep.Reason = "authorization dismissed or denied"
		} else {
			rep.Reason = "helper exited without a terminal message"
		}
		if msg := s.lastStderr(); msg != "" {
			rep.Reason += ": " + msg
		}
	case s.terminal.Type == protocol.TypeRejected:
		rep.Reason = s.terminal.Reason
	default:
		rep.ExitCode = s.terminal.Exit
	}
	return rep, nil
}

// HelperPath locates the privileged helper binary: next to the current
// executable first (the development layout), then the installed locations.
func HelperPath() (string, error) {
	var candidates []string
	if exe, err := os.Executable(); err == nil {
		candidates = append(candidates, filepath.Join(filepath.Dir(exe), "borealis-helper"))
	}
	candidates = append(candidates,
		"/usr/lib/borealis/borealis-helper",
		"/usr/bin/borealis-helper",
	)
	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && !info.IsDir() && info.Mode()&0o111 != 0 {
			return c, nil
		}
	}
	return "", errors.New("borealis-helper binary not found")
}

// escalationBase resolves the command prefix privileged steps are launched
// with. pkexec always receives the helper's absolute path.
func (b *Broker) escalationBase() ([]string, error) {
	if len(b.escalate) > 0 {
		return b.escalate, nil
	}
	pkexec, err := exec.LookPath("pkexec")
	if err != nil {
		return nil, fmt.Errorf("pkexec not found: %w", err)
	}
	helper, err := HelperPath()
	if err != nil {
		return nil, err
	}
	return []string{pkexec, helper}, nil
}

func anyPrivileged(invs []whitelist.Invocation) bool {
	for _, inv := range invs {
		if inv.Privileged {
			return true
		}
	}
	return false
}
