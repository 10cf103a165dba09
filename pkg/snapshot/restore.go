package snapshot

import (
	"fmt"
	"strings"

	"borealis/pkg/provider"
	"borealis/pkg/transaction"
)

// RestorePlan holds the work needed to bring the system back to a target
// snapshot. The plan is an ordinary transaction: packages installed since
// the snapshot are removed, packages removed since are installed, and the
// whole thing runs through the same validation and execution path as any
// user-built queue.
type RestorePlan struct {
	Target  *Snapshot                // snapshot being restored
	Current *Snapshot                // state at planning time
	Diff    *Diff                    // changes from Current to Target
	Txn     *transaction.Transaction // nil when nothing needs doing

	// Skipped holds version drift the plan leaves alone. Restoring a
	// package to an older version would need archive access the backends
	// do not expose, so drift is reported, not acted on.
	Skipped []Change
}

// IsEmpty reports whether the plan has no transaction to run.
func (p *RestorePlan) IsEmpty() bool {
	return p.Txn == nil
}

// Summary returns a one-line description of the plan.
func (p *RestorePlan) Summary() string {
	var installs, removes int
	if p.Txn != nil {
		for _, e := range p.Txn.Entries() {
			switch e.Action {
			case transaction.ActionInstall:
				installs++
			case transaction.ActionRemove:
				removes++
			}
		}
	}

	var parts []string
	if installs > 0 {
		parts = append(parts, fmt.Sprintf("%d to install", installs))
	}
	if removes > 0 {
		parts = append(parts, fmt.Sprintf("%d to remove", removes))
	}
	if len(p.Skipped) > 0 {
		parts = append(parts, fmt.Sprintf("%d version changes untouched", len(p.Skipped)))
	}
	if len(parts) == 0 {
		return "nothing to restore"
	}
	return strings.Join(parts, ", ")
}

// PlanRestore computes the transaction that brings current back to target.
// The returned plan is not executed here; the caller confirms it and
// submits the transaction like any other.
func PlanRestore(target, current *Snapshot) (*RestorePlan, error) {
	diff := Compare(current, target)
	plan := &RestorePlan{Target: target, Current: current, Diff: diff}

	var queue transaction.Queue
	for _, c := range diff.Changes {
		switch c.Kind {
		case ChangeAdded:
			// In the snapshot but not on the system now: install it back.
			queue.Add(provider.Ref{
				Name:      c.Name,
				Source:    c.Source,
				Origin:    c.Origin,
				Available: c.NewVersion,
			}, transaction.ActionInstall)
		case ChangeRemoved:
			// On the system now but not in the snapshot: remove it.
			queue.Add(provider.Ref{
				Name:      c.Name,
				Source:    c.Source,
				Origin:    c.Origin,
				Installed: c.OldVersion,
			}, transaction.ActionRemove)
		case ChangeDrift:
			plan.Skipped = append(plan.Skipped, c)
		}
	}

	if queue.Len() == 0 {
		return plan, nil
	}

	txn, err := transaction.Plan(&queue)
	if err != nil {
		return nil, fmt.Errorf("planning restore of %s: %w", target.ID, err)
	}
	plan.Txn = txn
	return plan, nil
}

// Filter returns a copy of snap holding only packages from the given
// sources. An empty source list returns snap unchanged.
func Filter(snap *Snapshot, sources []provider.Source) *Snapshot {
	if len(sources) == 0 {
		return snap
	}

	keep := make(map[provider.Source]bool)
	for _, s := range sources {
		keep[s] = true
	}

	filtered := &Snapshot{
		ID:          snap.ID,
		Timestamp:   snap.Timestamp,
		Description: snap.Description,
		Trigger:     snap.Trigger,
	}
	for _, pkg := range snap.Packages {
		if keep[pkg.Source] {
			filtered.Packages = append(filtered.Packages, pkg)
		}
	}
	return filtered
}
