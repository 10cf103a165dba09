package transaction

import (
	"testing"

	"borealis/pkg/provider"
)

func TestActionValid(t *testing.T) {
	tests := []struct {
		action Action
		want   bool
	}{
		{ActionInstall, true},
		{ActionRemove, true},
		{ActionUpdate, true},
		{Action("upgrade"), false},
		{Action(""), false},
	}
	for _, tt := range tests {
		if got := tt.action.Valid(); got != tt.want {
			t.Errorf("Action(%q).Valid() = %v, want %v", tt.action, got, tt.want)
		}
	}
}

func TestStatusTerminal(t *testing.T) {
	tests := []struct {
		status Status
		want   bool
	}{
		{StatusQueued, false},
		{StatusRunning, false},
		{StatusSucceeded, true},
		{StatusFailed, true},
		{StatusSkipped, true},
	}
	for _, tt := range tests {
		if got := tt.status.Terminal(); got != tt.want {
			t.Errorf("Status(%q).Terminal() = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestEntryAdvanceForwardOnly(t *testing.T) {
	tests := []struct {
		name string
		from Status
		to   Status
		ok   bool
	}{
		{"queued to running", StatusQueued, StatusRunning, true},
		{"running to succeeded", StatusRunning, StatusSucceeded, true},
		{"running to failed", StatusRunning, StatusFailed, true},
		{"queued to skipped", StatusQueued, StatusSkipped, true},
		{"running to skipped", StatusRunning, StatusSkipped, true},
		{"running back to queued", StatusRunning, StatusQueued, false},
		{"succeeded to running", StatusSucceeded, StatusRunning, false},
		{"failed to skipped", StatusFailed, StatusSkipped, false},
		{"skipped to queued", StatusSkipped, StatusQueued, false},
		{"no self transition", StatusRunning, StatusRunning, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := Entry{Ref: ref("foo", provider.SourceRepo), Action: ActionInstall, Status: tt.from}
			if got := e.advance(tt.to); got != tt.ok {
				t.Fatalf("advance(%s) = %v, want %v", tt.to, got, tt.ok)
			}
			want := tt.from
			if tt.ok {
				want = tt.to
			}
			if e.Status != want {
				t.Errorf("status after advance = %s, want %s", e.Status, want)
			}
		})
	}
}

func TestQueueAddDeduplicates(t *testing.T) {
	q := &Queue{}
	if !q.Add(ref("foo", provider.SourceRepo), ActionInstall) {
		t.Fatal("first Add() = false, want true")
	}
	if q.Add(ref("foo", provider.SourceRepo), ActionInstall) {
		t.Error("duplicate Add() = true, want false")
	}
	if q.Len() != 1 {
		t.Errorf("Len() = %d, want 1", q.Len())
	}

	// A different action or source is a distinct request.
	if !q.Add(ref("foo", provider.SourceRepo), ActionRemove) {
		t.Error("Add() with new action = false, want true")
	}
	if !q.Add(ref("foo", provider.SourceAUR), ActionInstall) {
		t.Error("Add() with new source = false, want true")
	}
	if q.Len() != 3 {
		t.Errorf("Len() = %d, want 3", q.Len())
	}
}

func TestQueueItemsIsACopy(t *testing.T) {
	q := &Queue{}
	q.Add(ref("foo", provider.SourceRepo), ActionInstall)

	items := q.Items()
	items[0].Ref.Name = "mangled"

	if got := q.Items()[0].Ref.Name; got != "foo" {
		t.Errorf("queue item name = %q after caller mutation, want foo", got)
	}
}

func TestTransactionEntriesIsACopy(t *testing.T) {
	q := &Queue{}
	q.Add(ref("foo", provider.SourceRepo), ActionInstall)
	txn, err := Plan(q)
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}

	entries := txn.Entries()
	entries[0].Status = StatusFailed

	if got := txn.Entries()[0].Status; got != StatusQueued {
		t.Errorf("transaction entry status = %s after caller mutation, want queued", got)
	}
}

func TestTransactionNames(t *testing.T) {
	q := &Queue{}
	q.Add(ref("bar", provider.SourceRepo), ActionRemove)
	q.Add(ref("foo", provider.SourceRepo), ActionInstall)
	txn, err := Plan(q)
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}

	names := txn.Names()
	if len(names) != 2 || names[0] != "bar" || names[1] != "foo" {
		t.Errorf("Names() = %v, want [bar foo]", names)
	}
}
