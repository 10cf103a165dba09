// Package transaction models planned package operations: the queue a user
// builds up, the ordered transaction planned from it, and the report of how
// execution went.
package transaction

import (
	"borealis/pkg/provider"
)

// Action is one kind of package operation.
type Action string

const (
	ActionInstall Action = "install"
	ActionRemove  Action = "remove"
	ActionUpdate  Action = "update"
)

// Actions lists every action in execution precedence order: removals run
// before installs, updates last.
func Actions() []Action {
	return []Action{ActionRemove, ActionInstall, ActionUpdate}
}

// Valid reports whether a names a known action.
func (a Action) Valid() bool {
	switch a {
	case ActionInstall, ActionRemove, ActionUpdate:
		return true
	}
	return false
}

// rank orders actions for planning. Lower runs first.
func (a Action) rank() int {
	switch a {
	case ActionRemove:
		return 0
	case ActionInstall:
		return 1
	default:
		return 2
	}
}

// Status is the lifecycle state of one entry. It only ever moves forward:
// an entry never returns to Queued and never leaves a terminal state.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
)

// Terminal reports whether s is a final state.
func (s Status) Terminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusSkipped:
		return true
	}
	return false
}

// Entry is one planned action on one package.
type Entry struct {
	Ref    provider.Ref `json:"ref"`
	Action Action       `json:"action"`
	Status Status       `json:"status"`
}

// advance moves the entry status forward. Transitions that would reset the
// entry or leave a terminal state are ignored and reported false.
func (e *Entry) advance(next Status) bool {
	if e.Status.Terminal() || next == StatusQueued || next == e.Status {
		return false
	}
	e.Status = next
	return true
}

// Transaction is an ordered, deduplicated set of entries produced by Plan.
// Its composition is fixed; only entry statuses change during execution,
// and only through the Aggregator.
type Transaction struct {
	entries []Entry
}

// Len returns the number of entries.
func (t *Transaction) Len() int {
	return len(t.entries)
}

// Entries returns a copy of the entries in execution order.
func (t *Transaction) Entries() []Entry {
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Names returns the package names in execution order.
func (t *Transaction) Names() []string {
	out := make([]string, len(t.entries))
	for i, e := range t.entries {
		out[i] = e.Ref.Name
	}
	return out
}
