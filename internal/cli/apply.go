package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"

	"borealis/internal/broker"
	"borealis/internal/journal"
	"borealis/internal/protocol"
	"borealis/internal/tui"
	"borealis/internal/ui"
	"borealis/pkg/snapshot"
	"borealis/pkg/transaction"
)

// applyQueue plans the queue and takes the transaction through the full
// pipeline: plan display, confirmation, pre-transaction snapshot,
// execution, report, journal.
func applyQueue(ctx context.Context, q *transaction.Queue, title string, trigger snapshot.Trigger) error {
	txn, err := transaction.Plan(q)
	if err != nil {
		return err
	}
	return applyTxn(ctx, txn, title, trigger)
}

// applyTxn runs an already planned transaction. Snapshot restore enters
// here because its plan is built from a diff, not from user arguments.
func applyTxn(ctx context.Context, txn *transaction.Transaction, title string, trigger snapshot.Trigger) error {
	ui.PrintPlan(txn)

	if !yes && !cfg.General.AllowNoConfirm {
		confirmed, err := ui.Confirm("Proceed?", true)
		if err != nil {
			return err
		}
		if !confirmed {
			return ErrAborted
		}
	}

	captureSnapshot(ctx, trigger, title)

	h, err := brk.Submit(ctx, txn)
	if err != nil {
		return err
	}

	if cfg.Output.LiveView && interactive() {
		if err := tui.Run(title, h); err != nil {
			// The terminal could not hold the live view; the
			// transaction is still running, so fall back to lines.
			followPlain(h)
		}
	} else {
		followPlain(h)
	}

	rep, err := h.Wait(ctx)
	if err != nil {
		return err
	}

	ui.PrintReport(rep)
	recordOutcome(rep)

	if !rep.Succeeded() {
		return fmt.Errorf("transaction failed: %s", ui.FailureLabel(rep.Failure))
	}
	return nil
}

// captureSnapshot stores the before image. Failure to capture degrades
// the restore story but never blocks the transaction itself.
func captureSnapshot(ctx context.Context, trigger snapshot.Trigger, description string) {
	store, err := snapshot.Open()
	if err != nil {
		ui.WarningMsg("snapshot store unavailable: %v", err)
		return
	}
	defer store.Close()

	if _, err := store.CaptureAndSave(ctx, trigger, description, reg); err != nil {
		ui.WarningMsg("could not capture a snapshot first: %v", err)
	}
}

// followPlain prints the event stream as plain lines and forwards stdin
// to the running step, for terminals that cannot hold the live view and
// for scripted runs.
func followPlain(h *broker.Handle) {
	go forwardStdin(h)

	for ev := range h.Events() {
		if ev.Stream == protocol.StreamStderr {
			fmt.Fprintln(os.Stderr, ev.Line)
			continue
		}
		fmt.Println(ev.Line)
	}
}

// forwardStdin relays input lines to whichever step is running. The
// scanner ends with the caller's stdin; lines arriving while no step
// runs are dropped by the handle and ignored here.
func forwardStdin(h *broker.Handle) {
	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		select {
		case <-h.Done():
			return
		default:
		}
		_ = h.SendInput(sc.Text()) //nolint:errcheck
	}
}

// recordOutcome journals the transaction and, for helper rejections,
// the separate security event. Journal failures are reported but do not
// change the transaction result.
func recordOutcome(rep *transaction.Report) {
	store, err := journal.Open()
	if err != nil {
		ui.WarningMsg("journal unavailable: %v", err)
		return
	}
	defer store.Close()

	if err := store.Record(journal.NewRecord(rep)); err != nil {
		ui.WarningMsg("could not journal the transaction: %v", err)
	}
	if rep.Failure == transaction.FailureRejected {
		if err := store.RecordSecurity(journal.NewSecurityEvent(rep)); err != nil {
			ui.WarningMsg("could not record the security event: %v", err)
		}
	}
}

// errIsAborted strips the abort sentinel so a declined confirmation
// exits quietly instead of printing an error.
func errIsAborted(err error) bool {
	return errors.Is(err, ErrAborted)
}
