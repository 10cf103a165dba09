package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"borealis/internal/ui"
	"borealis/pkg/provider"
	"borealis/pkg/snapshot"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Manage installed-state snapshots",
	Long: `Manage snapshots of the installed package set. A snapshot is
taken automatically before every transaction; manual ones can be
created at any time and are never pruned automatically.

Restoring plans a regular transaction back to a snapshot's state and
runs it through the same whitelist and privilege boundary as any
install or remove.

Examples:
  borealis snapshot list
  borealis snapshot create "before testing wayland"
  borealis snapshot show 20260825-101530.000042
  borealis snapshot diff 20260825-101530.000042
  borealis snapshot restore 20260825-101530.000042`,
}

func init() {
	snapshotCmd.AddCommand(snapshotListCmd)
	snapshotCmd.AddCommand(snapshotCreateCmd)
	snapshotCmd.AddCommand(snapshotShowCmd)
	snapshotCmd.AddCommand(snapshotDiffCmd)
	snapshotCmd.AddCommand(snapshotDeleteCmd)
	snapshotCmd.AddCommand(snapshotPruneCmd)
	snapshotCmd.AddCommand(snapshotRestoreCmd)
}

// snapshotListCmd lists stored snapshots.
var snapshotListCmd = &cobra.Command{
	Use:   "list",
	Short: "List snapshots, newest first",
	RunE:  runSnapshotList,
}

var snapshotListLimit int

func init() {
	snapshotListCmd.Flags().IntVarP(&snapshotListLimit, "limit", "l", 20, "maximum number of snapshots to list")
}

func runSnapshotList(cmd *cobra.Command, args []string) error {
	store, err := snapshot.Open()
	if err != nil {
		return fmt.Errorf("opening snapshot store: %w", err)
	}
	defer store.Close()

	snaps, err := store.List(snapshotListLimit)
	if err != nil {
		return fmt.Errorf("listing snapshots: %w", err)
	}

	ui.PrintSnapshots(snaps)

	if total, err := store.Count(); err == nil && len(snaps) > 0 {
		ui.MutedMsg("Showing %d of %d snapshots", len(snaps), total)
	}
	return nil
}

// snapshotCreateCmd captures a manual snapshot.
var snapshotCreateCmd = &cobra.Command{
	Use:   "create [description]",
	Short: "Capture a manual snapshot",
	Long: `Capture the installed package set across every available
backend. Manual snapshots are kept until deleted explicitly.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSnapshotCreate,
}

func runSnapshotCreate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	description := ""
	if len(args) > 0 {
		description = args[0]
	}

	store, err := snapshot.Open()
	if err != nil {
		return fmt.Errorf("opening snapshot store: %w", err)
	}
	defer store.Close()

	var snap *snapshot.Snapshot
	err = ui.WithSpinner("Capturing installed packages", func() error {
		var cerr error
		snap, cerr = store.CaptureAndSave(ctx, snapshot.TriggerManual, description, reg)
		return cerr
	})
	if err != nil {
		return fmt.Errorf("creating snapshot: %w", err)
	}

	ui.SuccessMsg("Created snapshot %s with %d packages", snap.ID, snap.PackageCount())
	for src, pkgs := range snap.BySource() {
		ui.MutedMsg("  %s: %d packages", src, len(pkgs))
	}
	return nil
}

// snapshotShowCmd prints one snapshot in full.
var snapshotShowCmd = &cobra.Command{
	Use:   "show <snapshot-id>",
	Short: "Show a snapshot's packages",
	Args:  cobra.ExactArgs(1),
	RunE:  runSnapshotShow,
}

func runSnapshotShow(cmd *cobra.Command, args []string) error {
	store, err := snapshot.Open()
	if err != nil {
		return fmt.Errorf("opening snapshot store: %w", err)
	}
	defer store.Close()

	snap, err := store.Get(args[0])
	if err != nil {
		return err
	}

	ui.HeaderMsg("Snapshot %s", snap.ID)
	ui.Println("  Taken:       %s", snap.FormatTime())
	ui.Println("  Trigger:     %s", snap.Trigger)
	if snap.Description != "" {
		ui.Println("  Description: %s", snap.Description)
	}
	ui.Println("  Packages:    %d", snap.PackageCount())

	for src, pkgs := range snap.BySource() {
		ui.Println("")
		ui.InfoMsg("%s (%d)", src, len(pkgs))
		for _, pkg := range pkgs {
			ui.MutedMsg("  %s %s", pkg.Name, pkg.Version)
		}
	}
	return nil
}

// snapshotDiffCmd compares a snapshot against another or the live
// system.
var snapshotDiffCmd = &cobra.Command{
	Use:   "diff <snapshot-id> [<snapshot-id>]",
	Short: "Show what changed between snapshots",
	Long: `With two IDs, show what changed from the first snapshot to the
second. With one, compare it against the currently installed set, so
the output reads as everything that happened since.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runSnapshotDiff,
}

func runSnapshotDiff(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	store, err := snapshot.Open()
	if err != nil {
		return fmt.Errorf("opening snapshot store: %w", err)
	}
	defer store.Close()

	from, err := store.Get(args[0])
	if err != nil {
		return err
	}

	var to *snapshot.Snapshot
	if len(args) == 2 {
		to, err = store.Get(args[1])
		if err != nil {
			return err
		}
	} else {
		err = ui.WithSpinner("Reading installed packages", func() error {
			var cerr error
			to, cerr = snapshot.Capture(ctx, snapshot.TriggerManual, "", reg)
			return cerr
		})
		if err != nil {
			return err
		}
	}

	ui.PrintDiff(snapshot.Compare(from, to))
	return nil
}

// snapshotDeleteCmd removes one snapshot.
var snapshotDeleteCmd = &cobra.Command{
	Use:   "delete <snapshot-id>",
	Short: "Delete a snapshot",
	Args:  cobra.ExactArgs(1),
	RunE:  runSnapshotDelete,
}

func runSnapshotDelete(cmd *cobra.Command, args []string) error {
	store, err := snapshot.Open()
	if err != nil {
		return fmt.Errorf("opening snapshot store: %w", err)
	}
	defer store.Close()

	snap, err := store.Get(args[0])
	if err != nil {
		return err
	}

	if !yes {
		confirmed, err := ui.Confirm(fmt.Sprintf("Delete snapshot %s?", snap.ID), false)
		if err != nil {
			return err
		}
		if !confirmed {
			return ErrAborted
		}
	}

	if err := store.Delete(snap.ID); err != nil {
		return fmt.Errorf("deleting snapshot: %w", err)
	}

	ui.SuccessMsg("Deleted snapshot %s", snap.ID)
	return nil
}

// snapshotPruneCmd trims old snapshots.
var snapshotPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete old snapshots past the retention budgets",
	RunE:  runSnapshotPrune,
}

var (
	pruneKeepManual int
	pruneKeepAuto   int
)

func init() {
	snapshotPruneCmd.Flags().IntVar(&pruneKeepManual, "keep-manual", snapshot.MaxManual, "manual snapshots to keep")
	snapshotPruneCmd.Flags().IntVar(&pruneKeepAuto, "keep-auto", snapshot.MaxAuto, "automatic snapshots to keep")
}

func runSnapshotPrune(cmd *cobra.Command, args []string) error {
	store, err := snapshot.Open()
	if err != nil {
		return fmt.Errorf("opening snapshot store: %w", err)
	}
	defer store.Close()

	deleted, err := store.Prune(pruneKeepManual, pruneKeepAuto)
	if err != nil {
		return fmt.Errorf("pruning snapshots: %w", err)
	}

	if deleted == 0 {
		ui.InfoMsg("Nothing to prune")
	} else {
		ui.SuccessMsg("Pruned %d snapshot(s)", deleted)
	}

	if total, err := store.Count(); err == nil {
		ui.MutedMsg("Remaining snapshots: %d", total)
	}
	return nil
}

// snapshotRestoreCmd plans a transaction back to a snapshot's state.
var snapshotRestoreCmd = &cobra.Command{
	Use:   "restore <snapshot-id>",
	Short: "Plan a transaction back to a snapshot's state",
	Long: `Compare a snapshot with the currently installed set and queue
the installs and removals that bring the system back. The resulting
transaction passes the same whitelist validation and privilege
boundary as any other; nothing is executed directly.

Version drift is reported but left untouched, since the backends
cannot install arbitrary old versions. Use --only to restrict the
restore to some backends.

Examples:
  borealis snapshot restore 20260825-101530.000042
  borealis snapshot restore 20260825-101530.000042 --only repo,aur`,
	Args: cobra.ExactArgs(1),
	RunE: runSnapshotRestore,
}

var restoreOnly []string

func init() {
	snapshotRestoreCmd.Flags().StringSliceVar(&restoreOnly, "only", nil, "restrict the restore to these sources")
}

func runSnapshotRestore(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	store, err := snapshot.Open()
	if err != nil {
		return fmt.Errorf("opening snapshot store: %w", err)
	}
	defer store.Close()

	target, err := store.Get(args[0])
	if err != nil {
		return err
	}

	only, err := parseSources(restoreOnly)
	if err != nil {
		return err
	}

	var current *snapshot.Snapshot
	err = ui.WithSpinner("Reading installed packages", func() error {
		var cerr error
		current, cerr = snapshot.Capture(ctx, snapshot.TriggerRestore, "", reg)
		return cerr
	})
	if err != nil {
		return err
	}

	// The filter must hit both sides, or packages from the excluded
	// sources would read as additions and removals in the diff.
	plan, err := snapshot.PlanRestore(snapshot.Filter(target, only), snapshot.Filter(current, only))
	if err != nil {
		return err
	}

	ui.HeaderMsg("Restore to %s (%s)", target.ID, target.FormatTime())
	for _, change := range plan.Skipped {
		ui.MutedMsg("  leaving %s", change.String())
	}
	if plan.IsEmpty() {
		ui.SuccessMsg("Nothing to restore: %s", plan.Summary())
		return nil
	}
	ui.InfoMsg("%s", plan.Summary())

	return applyTxn(ctx, plan.Txn, "restore "+target.ID, snapshot.TriggerRestore)
}

// parseSources validates a --only list.
func parseSources(names []string) ([]provider.Source, error) {
	var out []provider.Source
	for _, n := range names {
		src := provider.Source(n)
		if !src.Valid() {
			return nil, &unknownSourceError{name: n}
		}
		out = append(out, src)
	}
	return out, nil
}
