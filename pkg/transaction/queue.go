package transaction

import (
	"borealis/pkg/provider"
)

// Item pairs a resolved package with the action requested for it.
type Item struct {
	Ref    provider.Ref
	Action Action
}

// Queue accumulates requested actions before planning. The zero value is
// ready to use.
type Queue struct {
	items []Item
}

// Add appends a request, collapsing exact duplicates. It reports whether
// the queue changed.
func (q *Queue) Add(ref provider.Ref, action Action) bool {
	for _, it := range q.items {
		if it.Ref.Name == ref.Name && it.Ref.Source == ref.Source && it.Action == action {
			return false
		}
	}
	q.items = append(q.items, Item{Ref: ref, Action: action})
	return true
}

// Len returns the number of queued requests.
func (q *Queue) Len() int {
	return len(q.items)
}

// Items returns a copy of the queued requests in insertion order.
func (q *Queue) Items() []Item {
	out := make([]Item, len(q.items))
	copy(out, q.items)
	return out
}
