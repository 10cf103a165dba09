// Package snapshot captures the installed package set across every backend
// so transactions have a before image to compare and restore against.
// Restoring is never automatic: a restore computes the difference between
// the system now and a chosen snapshot and plans an ordinary transaction
// that runs through the same validated path as any other.
package snapshot

import (
	"context"
	"fmt"
	"iter"
	"sort"
	"time"

	"borealis/pkg/provider"
)

// Trigger records what caused a snapshot to be taken.
type Trigger string

const (
	TriggerManual      Trigger = "manual"      // user asked for it
	TriggerTransaction Trigger = "transaction" // taken before a transaction ran
	TriggerRestore     Trigger = "restore"     // taken before a restore ran
)

// PackageState is one installed package at capture time.
type PackageState struct {
	Name    string          `json:"name"`
	Version string          `json:"version"`
	Source  provider.Source `json:"source"`
	Origin  string          `json:"origin,omitempty"` // flatpak remote, empty elsewhere
}

// Snapshot is the installed package set at a point in time.
type Snapshot struct {
	ID          string         `json:"id"`
	Timestamp   time.Time      `json:"timestamp"`
	Description string         `json:"description,omitempty"`
	Trigger     Trigger        `json:"trigger"`
	Packages    []PackageState `json:"packages"`
}

// PackageCount returns how many packages the snapshot holds.
func (s *Snapshot) PackageCount() int {
	return len(s.Packages)
}

// BySource groups the captured packages by backend.
func (s *Snapshot) BySource() map[provider.Source][]PackageState {
	out := make(map[provider.Source][]PackageState)
	for _, pkg := range s.Packages {
		out[pkg.Source] = append(out[pkg.Source], pkg)
	}
	return out
}

// Find returns the captured state of one package, if present.
func (s *Snapshot) Find(source provider.Source, name string) (PackageState, bool) {
	for _, pkg := range s.Packages {
		if pkg.Source == source && pkg.Name == name {
			return pkg, true
		}
	}
	return PackageState{}, false
}

// FormatTime renders the capture time for display.
func (s *Snapshot) FormatTime() string {
	return s.Timestamp.Format("2006-01-02 15:04:05")
}

// Summary returns a one-line description for listings.
func (s *Snapshot) Summary() string {
	what := fmt.Sprintf("%d packages", len(s.Packages))
	if s.Description != "" {
		what += ", " + s.Description
	}
	return fmt.Sprintf("%s  %s (%s)", s.FormatTime(), what, s.Trigger)
}

// Lister yields the installed packages of the reachable backends.
// Satisfied by *provider.Registry.
type Lister interface {
	Installed(ctx context.Context) iter.Seq2[provider.Ref, error]
}

// Capture records the currently installed packages of every reachable
// backend. Backends whose tools are missing contribute nothing; a backend
// that is present but fails to list aborts the capture, because the hole
// it leaves would read as mass removal in a later diff.
func Capture(ctx context.Context, trigger Trigger, description string, from Lister) (*Snapshot, error) {
	snap := &Snapshot{
		ID:          generateID(),
		Timestamp:   time.Now(),
		Description: description,
		Trigger:     trigger,
	}

	for ref, err := range from.Installed(ctx) {
		if err != nil {
			return nil, fmt.Errorf("capturing installed packages: %w", err)
		}
		snap.Packages = append(snap.Packages, PackageState{
			Name:    ref.Name,
			Version: ref.Installed,
			Source:  ref.Source,
			Origin:  ref.Origin,
		})
	}

	sort.Slice(snap.Packages, func(i, j int) bool {
		if snap.Packages[i].Source != snap.Packages[j].Source {
			return snap.Packages[i].Source < snap.Packages[j].Source
		}
		return snap.Packages[i].Name < snap.Packages[j].Name
	})

	return snap, nil
}

// generateID derives the snapshot ID from the capture time, so IDs sort
// chronologically.
func generateID() string {
	return time.Now().Format("20060102-150405.000000")
}
