package snapshot

import (
	"fmt"
	"sort"
	"strings"

	"borealis/pkg/provider"
)

// ChangeKind classifies one difference between two snapshots.
type ChangeKind string

const (
	ChangeAdded   ChangeKind = "added"   // present only in the newer snapshot
	ChangeRemoved ChangeKind = "removed" // present only in the older snapshot
	ChangeDrift   ChangeKind = "drift"   // installed version differs
)

// rank orders kinds for display. Lower sorts first.
func (k ChangeKind) rank() int {
	switch k {
	case ChangeAdded:
		return 0
	case ChangeRemoved:
		return 1
	default:
		return 2
	}
}

// Change is a single package difference between two snapshots.
type Change struct {
	Kind       ChangeKind      `json:"kind"`
	Name       string          `json:"name"`
	Source     provider.Source `json:"source"`
	Origin     string          `json:"origin,omitempty"`
	OldVersion string          `json:"old_version,omitempty"`
	NewVersion string          `json:"new_version,omitempty"`
}

// String renders the change for display.
func (c Change) String() string {
	switch c.Kind {
	case ChangeAdded:
		return fmt.Sprintf("+ %s %s [%s]", c.Name, c.NewVersion, c.Source)
	case ChangeRemoved:
		return fmt.Sprintf("- %s %s [%s]", c.Name, c.OldVersion, c.Source)
	case ChangeDrift:
		return fmt.Sprintf("~ %s %s -> %s [%s]", c.Name, c.OldVersion, c.NewVersion, c.Source)
	}
	return fmt.Sprintf("? %s [%s]", c.Name, c.Source)
}

// Diff is the difference between two snapshots.
type Diff struct {
	From    string   `json:"from"` // ID of the older snapshot
	To      string   `json:"to"`   // ID of the newer snapshot
	Changes []Change `json:"changes"`
}

// IsEmpty reports whether the snapshots are identical.
func (d *Diff) IsEmpty() bool {
	return len(d.Changes) == 0
}

func (d *Diff) of(kind ChangeKind) []Change {
	var out []Change
	for _, c := range d.Changes {
		if c.Kind == kind {
			out = append(out, c)
		}
	}
	return out
}

// Added returns the packages present only in the newer snapshot.
func (d *Diff) Added() []Change {
	return d.of(ChangeAdded)
}

// Removed returns the packages present only in the older snapshot.
func (d *Diff) Removed() []Change {
	return d.of(ChangeRemoved)
}

// Drifted returns the packages whose installed version differs.
func (d *Diff) Drifted() []Change {
	return d.of(ChangeDrift)
}

// BySource groups the changes by backend.
func (d *Diff) BySource() map[provider.Source][]Change {
	out := make(map[provider.Source][]Change)
	for _, c := range d.Changes {
		out[c.Source] = append(out[c.Source], c)
	}
	return out
}

// Summary returns a one-line description of the diff.
func (d *Diff) Summary() string {
	if d.IsEmpty() {
		return "no changes"
	}

	var parts []string
	if n := len(d.Added()); n > 0 {
		parts = append(parts, fmt.Sprintf("+%d added", n))
	}
	if n := len(d.Removed()); n > 0 {
		parts = append(parts, fmt.Sprintf("-%d removed", n))
	}
	if n := len(d.Drifted()); n > 0 {
		parts = append(parts, fmt.Sprintf("~%d drifted", n))
	}
	return strings.Join(parts, ", ")
}

// Compare computes the difference between two snapshots, from the older to
// the newer. Packages are matched by source and name; versions are only
// checked for equality, never ordered.
func Compare(from, to *Snapshot) *Diff {
	diff := &Diff{From: from.ID, To: to.ID}

	fromMap := make(map[string]PackageState)
	toMap := make(map[string]PackageState)
	for _, pkg := range from.Packages {
		fromMap[string(pkg.Source)+"/"+pkg.Name] = pkg
	}
	for _, pkg := range to.Packages {
		toMap[string(pkg.Source)+"/"+pkg.Name] = pkg
	}

	for key, pkg := range toMap {
		old, exists := fromMap[key]
		if !exists {
			diff.Changes = append(diff.Changes, Change{
				Kind:       ChangeAdded,
				Name:       pkg.Name,
				Source:     pkg.Source,
				Origin:     pkg.Origin,
				NewVersion: pkg.Version,
			})
			continue
		}
		if old.Version != pkg.Version {
			diff.Changes = append(diff.Changes, Change{
				Kind:       ChangeDrift,
				Name:       pkg.Name,
				Source:     pkg.Source,
				Origin:     pkg.Origin,
				OldVersion: old.Version,
				NewVersion: pkg.Version,
			})
		}
	}

	for key, pkg := range fromMap {
		if _, exists := toMap[key]; !exists {
			diff.Changes = append(diff.Changes, Change{
				Kind:       ChangeRemoved,
				Name:       pkg.Name,
				Source:     pkg.Source,
				Origin:     pkg.Origin,
				OldVersion: pkg.Version,
			})
		}
	}

	sort.Slice(diff.Changes, func(i, j int) bool {
		a, b := diff.Changes[i], diff.Changes[j]
		if a.Kind != b.Kind {
			return a.Kind.rank() < b.Kind.rank()
		}
		if a.Source != b.Source {
			return a.Source < b.Source
		}
		return a.Name < b.Name
	})

	return diff
}
