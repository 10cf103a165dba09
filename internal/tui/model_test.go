package tui

import (
	"fmt"
	"strings"
	"testing"

	"borealis/internal/protocol"
	"borealis/pkg/provider"
	"borealis/pkg/transaction"
)

func entry(name string, action transaction.Action, status transaction.Status) transaction.Entry {
	return transaction.Entry{
		Ref:    provider.Ref{Name: name, Source: provider.SourceRepo},
		Action: action,
		Status: status,
	}
}

func TestAppendEventCapsBuffer(t *testing.T) {
	m := NewModel("install vim", nil)
	for i := 0; i < maxLogLines+50; i++ {
		m.AppendEvent(protocol.LogEvent{Stream: protocol.StreamStdout, Line: fmt.Sprintf("line %d", i)})
	}
	if got := m.LineCount(); got != maxLogLines {
		t.Fatalf("LineCount() = %d, want %d", got, maxLogLines)
	}
	content := m.LogContent()
	if strings.Contains(content, "line 0\n") {
		t.Error("oldest line still present after cap")
	}
	if !strings.HasSuffix(content, fmt.Sprintf("line %d", maxLogLines+49)) {
		t.Error("newest line missing after cap")
	}
}

func TestStateTransitions(t *testing.T) {
	m := NewModel("remove htop", nil)
	if m.Done() {
		t.Fatal("new model already done")
	}
	if !strings.Contains(m.stateLabel(), "running") {
		t.Errorf("stateLabel() = %q, want running", m.stateLabel())
	}

	m.MarkCanceling()
	if m.state != StateCanceling {
		t.Fatalf("state after MarkCanceling = %v, want StateCanceling", m.state)
	}

	m.Finish(&transaction.Report{Failure: transaction.FailureCanceled})
	if !m.Done() {
		t.Fatal("Finish did not end the run")
	}
	if !strings.Contains(m.stateLabel(), "canceled") {
		t.Errorf("stateLabel() = %q, want canceled", m.stateLabel())
	}

	// Finished runs stay finished.
	m.MarkCanceling()
	if m.state != StateDone {
		t.Error("MarkCanceling changed a finished run")
	}
}

func TestStateLabelOutcomes(t *testing.T) {
	tests := []struct {
		name   string
		report *transaction.Report
		want   string
	}{
		{"success", &transaction.Report{}, "succeeded"},
		{"failure", &transaction.Report{Failure: transaction.FailureExecution}, "failed"},
		{"canceled", &transaction.Report{Failure: transaction.FailureCanceled}, "canceled"},
		{"missing report", nil, "failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewModel("update", nil)
			m.Finish(tt.report)
			if got := m.stateLabel(); !strings.Contains(got, tt.want) {
				t.Errorf("stateLabel() = %q, want substring %q", got, tt.want)
			}
		})
	}
}

func TestEntryRowsClampPrefersActive(t *testing.T) {
	var entries []transaction.Entry
	for i := 0; i < maxEntryRows+4; i++ {
		entries = append(entries, entry(fmt.Sprintf("pkg%02d", i), transaction.ActionInstall, transaction.StatusSucceeded))
	}
	// The running entry sits past the clamp point in queue order.
	entries[maxEntryRows+2].Status = transaction.StatusRunning

	m := NewModel("install", entries)
	rows := m.entryRows()
	if len(rows) != maxEntryRows {
		t.Fatalf("got %d rows, want %d", len(rows), maxEntryRows)
	}
	joined := strings.Join(rows, "\n")
	if !strings.Contains(joined, fmt.Sprintf("pkg%02d", maxEntryRows+2)) {
		t.Error("running entry pushed out of the visible block")
	}
	if !strings.Contains(rows[len(rows)-1], "more") {
		t.Errorf("last row = %q, want overflow note", rows[len(rows)-1])
	}
}

func TestEntryRowsSmallSetUnchanged(t *testing.T) {
	entries := []transaction.Entry{
		entry("vim", transaction.ActionInstall, transaction.StatusQueued),
		entry("htop", transaction.ActionRemove, transaction.StatusRunning),
	}
	m := NewModel("mixed", entries)
	rows := m.entryRows()
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if !strings.Contains(rows[0], "vim") || !strings.Contains(rows[1], "htop") {
		t.Errorf("rows out of queue order: %q", rows)
	}
}

func TestSelectVisible(t *testing.T) {
	entries := []transaction.Entry{
		entry("a", transaction.ActionInstall, transaction.StatusSucceeded),
		entry("b", transaction.ActionInstall, transaction.StatusRunning),
		entry("c", transaction.ActionInstall, transaction.StatusQueued),
		entry("d", transaction.ActionInstall, transaction.StatusFailed),
	}
	kept := selectVisible(entries, 3)
	if len(kept) != 3 {
		t.Fatalf("kept %d, want 3", len(kept))
	}
	if kept[0].Ref.Name != "b" || kept[1].Ref.Name != "c" {
		t.Errorf("active entries not kept first: %v, %v", kept[0].Ref.Name, kept[1].Ref.Name)
	}
	if kept[2].Ref.Name != "a" {
		t.Errorf("terminal backfill out of order: %v", kept[2].Ref.Name)
	}
}

func TestLogHeightReservesChrome(t *testing.T) {
	m := NewModel("install vim", []transaction.Entry{
		entry("vim", transaction.ActionInstall, transaction.StatusRunning),
	})
	m.SetSize(80, 24)

	plain := m.logHeight()
	m.inputOpen = true
	withInput := m.logHeight()
	if withInput != plain-1 {
		t.Errorf("input line not reserved: %d -> %d", plain, withInput)
	}

	m.SetSize(80, 5)
	if got := m.logHeight(); got != 3 {
		t.Errorf("logHeight on tiny terminal = %d, want floor of 3", got)
	}
}
