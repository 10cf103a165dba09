package transaction

import (
	"errors"
	"fmt"
	"sort"

	"borealis/pkg/provider"
)

// ErrEmptyQueue is returned when planning a queue with no requests.
var ErrEmptyQueue = errors.New("transaction queue is empty")

// ConflictError reports a package queued with two different actions. This
// is a caller programming error, not a recoverable condition.
type ConflictError struct {
	Name   string
	Source provider.Source
	First  Action
	Second Action
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflicting actions for %s/%s: %s and %s",
		e.Source, e.Name, e.First, e.Second)
}

// Plan converts the queue into an executable transaction: identical
// requests collapse to one entry, a package requested with two different
// actions is a ConflictError, and entries are ordered so removals run
// before installs and updates run last. Planning touches nothing on the
// system; it is a pure transformation over already-resolved references.
func Plan(q *Queue) (*Transaction, error) {
	if q.Len() == 0 {
		return nil, ErrEmptyQueue
	}

	type key struct {
		name   string
		source provider.Source
	}
	seen := make(map[key]Action)

	var entries []Entry
	for _, it := range q.Items() {
		if !it.Action.Valid() {
			return nil, fmt.Errorf("unknown action %q for %s", it.Action, it.Ref)
		}
		if it.Ref.Name == "" {
			return nil, fmt.Errorf("entry with empty package name (source %s)", it.Ref.Source)
		}

		k := key{name: it.Ref.Name, source: it.Ref.Source}
		if prev, ok := seen[k]; ok {
			if prev != it.Action {
				return nil, &ConflictError{
					Name:   it.Ref.Name,
					Source: it.Ref.Source,
					First:  prev,
					Second: it.Action,
				}
			}
			continue
		}
		seen[k] = it.Action

		entries = append(entries, Entry{
			Ref:    it.Ref,
			Action: it.Action,
			Status: StatusQueued,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Action.rank() < entries[j].Action.rank()
	})

	return &Transaction{entries: entries}, nil
}
