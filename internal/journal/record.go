// Package journal is the durable audit trail of the transaction engine:
// every executed transaction leaves a record, and requests the privileged
// helper refused additionally leave a security record of their own.
package journal

import (
	"fmt"
	"time"

	"borealis/pkg/transaction"
)

// Record is one journaled transaction, summarized from its sealed report.
type Record struct {
	ID            string                  `json:"id"`
	Timestamp     time.Time               `json:"timestamp"`
	Entries       []transaction.Entry     `json:"entries"`
	Failure       transaction.FailureKind `json:"failure,omitempty"`
	ExitCode      int                     `json:"exit_code"`
	Reason        string                  `json:"reason,omitempty"`
	Indeterminate bool                    `json:"indeterminate,omitempty"`
	Started       time.Time               `json:"started"`
	Finished      time.Time               `json:"finished"`
}

// NewRecord builds the journal record for a finished transaction.
func NewRecord(rep *transaction.Report) *Record {
	return &Record{
		ID:            generateID(),
		Timestamp:     rep.Finished,
		Entries:       rep.Entries,
		Failure:       rep.Failure,
		ExitCode:      rep.ExitCode,
		Reason:        rep.Reason,
		Indeterminate: rep.Indeterminate,
		Started:       rep.Started,
		Finished:      rep.Finished,
	}
}

// Succeeded reports whether the recorded transaction completed cleanly.
func (r *Record) Succeeded() bool {
	return r.Failure == transaction.FailureNone
}

// Counts returns how many entries succeeded, failed and were skipped.
func (r *Record) Counts() (succeeded, failed, skipped int) {
	for _, e := range r.Entries {
		switch e.Status {
		case transaction.StatusSucceeded:
			succeeded++
		case transaction.StatusFailed:
			failed++
		case transaction.StatusSkipped:
			skipped++
		}
	}
	return
}

// FormatTime returns a human-readable timestamp.
func (r *Record) FormatTime() string {
	return r.Timestamp.Format("2006-01-02 15:04:05")
}

// Summary returns a one-line rendering for history listings.
func (r *Record) Summary() string {
	status := "ok"
	if r.Failure != transaction.FailureNone {
		status = string(r.Failure)
	}

	what := "(empty)"
	if len(r.Entries) > 0 {
		e := r.Entries[0]
		what = string(e.Action) + " " + e.Ref.Name
		if len(r.Entries) > 1 {
			what += fmt.Sprintf(" +%d", len(r.Entries)-1)
		}
	}

	return fmt.Sprintf("%s  %s (%s)", r.FormatTime(), what, status)
}

// SecurityEvent records a request the privileged helper refused. A
// rejection means the broker's table and the helper's compiled-in copy
// disagreed, or the request channel was tampered with; either way it is
// kept apart from ordinary failures.
type SecurityEvent struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Requests  []string  `json:"requests"`
	Reason    string    `json:"reason"`
}

// NewSecurityEvent derives the audit record from a rejected transaction's
// report.
func NewSecurityEvent(rep *transaction.Report) *SecurityEvent {
	ev := &SecurityEvent{
		ID:        generateID(),
		Timestamp: time.Now(),
		Reason:    rep.Reason,
	}
	for _, e := range rep.Entries {
		ev.Requests = append(ev.Requests, string(e.Action)+" "+e.Ref.String())
	}
	return ev
}

// generateID generates a unique ID for a journal record.
func generateID() string {
	return time.Now().Format("20060102150405.000000")
}
