package snapshot

import (
	"testing"

	"borealis/pkg/provider"
	"borealis/pkg/transaction"
)

func TestPlanRestore(t *testing.T) {
	target := &Snapshot{
		ID: "20260301-100000.000000",
		Packages: []PackageState{
			{Name: "bash", Version: "5.2.026-1", Source: provider.SourceRepo},
			{Name: "vim", Version: "9.1.0-1", Source: provider.SourceRepo},
			{Name: "org.gimp.GIMP", Version: "2.10.38", Source: provider.SourceFlatpak, Origin: "flathub"},
		},
	}
	current := &Snapshot{
		ID: "20260301-110000.000000",
		Packages: []PackageState{
			{Name: "vim", Version: "9.1.1-1", Source: provider.SourceRepo},
			{Name: "htop", Version: "3.3.0-1", Source: provider.SourceRepo},
		},
	}

	plan, err := PlanRestore(target, current)
	if err != nil {
		t.Fatalf("PlanRestore failed: %v", err)
	}
	if plan.IsEmpty() {
		t.Fatal("expected a transaction to run")
	}

	type step struct {
		action transaction.Action
		name   string
		source provider.Source
	}
	want := []step{
		{transaction.ActionRemove, "htop", provider.SourceRepo},
		{transaction.ActionInstall, "org.gimp.GIMP", provider.SourceFlatpak},
		{transaction.ActionInstall, "bash", provider.SourceRepo},
	}
	entries := plan.Txn.Entries()
	if len(entries) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(entries))
	}
	for i, w := range want {
		e := entries[i]
		if e.Action != w.action || e.Ref.Name != w.name || e.Ref.Source != w.source {
			t.Errorf("entry %d: expected %s %s/%s, got %s %s", i, w.action, w.source, w.name, e.Action, e.Ref)
		}
	}

	for _, e := range entries {
		if e.Ref.Source == provider.SourceFlatpak && e.Ref.Origin != "flathub" {
			t.Errorf("expected the flatpak entry to keep its remote, got %q", e.Ref.Origin)
		}
	}

	if len(plan.Skipped) != 1 || plan.Skipped[0].Name != "vim" {
		t.Errorf("expected vim's version drift to be skipped, got %v", plan.Skipped)
	}

	if got := plan.Summary(); got != "2 to install, 1 to remove, 1 version changes untouched" {
		t.Errorf("unexpected summary %q", got)
	}
}

func TestPlanRestoreNothingToDo(t *testing.T) {
	snap := &Snapshot{
		ID: "20260301-100000.000000",
		Packages: []PackageState{
			{Name: "vim", Version: "9.1.0-1", Source: provider.SourceRepo},
		},
	}

	plan, err := PlanRestore(snap, snap)
	if err != nil {
		t.Fatalf("PlanRestore failed: %v", err)
	}
	if !plan.IsEmpty() {
		t.Error("expected an empty plan for identical snapshots")
	}
	if got := plan.Summary(); got != "nothing to restore" {
		t.Errorf("unexpected summary %q", got)
	}
}

func TestPlanRestoreDriftOnly(t *testing.T) {
	target := &Snapshot{
		ID:       "20260301-100000.000000",
		Packages: []PackageState{{Name: "vim", Version: "9.1.0-1", Source: provider.SourceRepo}},
	}
	current := &Snapshot{
		ID:       "20260301-110000.000000",
		Packages: []PackageState{{Name: "vim", Version: "9.1.1-1", Source: provider.SourceRepo}},
	}

	plan, err := PlanRestore(target, current)
	if err != nil {
		t.Fatalf("PlanRestore failed: %v", err)
	}
	if !plan.IsEmpty() {
		t.Error("expected no transaction for version drift alone")
	}
	if len(plan.Skipped) != 1 {
		t.Fatalf("expected 1 skipped change, got %d", len(plan.Skipped))
	}
	if got := plan.Summary(); got != "1 version changes untouched" {
		t.Errorf("unexpected summary %q", got)
	}
}

func TestFilter(t *testing.T) {
	snap := &Snapshot{
		ID:          "20260301-100000.000000",
		Description: "mixed backends",
		Trigger:     TriggerManual,
		Packages: []PackageState{
			{Name: "vim", Version: "9.1.0-1", Source: provider.SourceRepo},
			{Name: "paru-bin", Version: "2.0.3-1", Source: provider.SourceAUR},
			{Name: "org.gimp.GIMP", Version: "2.10.38", Source: provider.SourceFlatpak, Origin: "flathub"},
		},
	}

	repoOnly := Filter(snap, []provider.Source{provider.SourceRepo})
	if repoOnly.PackageCount() != 1 || repoOnly.Packages[0].Name != "vim" {
		t.Errorf("expected only the repo package, got %v", repoOnly.Packages)
	}
	if repoOnly.ID != snap.ID || repoOnly.Trigger != snap.Trigger {
		t.Error("expected snapshot metadata to carry over")
	}

	if got := Filter(snap, nil); got != snap {
		t.Error("expected no filtering without sources")
	}
}
