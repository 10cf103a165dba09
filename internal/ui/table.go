package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"borealis/internal/journal"
	"borealis/pkg/provider"
	"borealis/pkg/snapshot"
	"borealis/pkg/transaction"
)

// Table wraps tabwriter for consistent styling. The header row is written
// at creation time so rows always land below it.
type Table struct {
	writer *tabwriter.Writer
}

// NewTable creates a table writing to w with an upper-case bold header.
func NewTable(w io.Writer, headers ...string) *Table {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if len(headers) > 0 {
		cells := make([]string, len(headers))
		for i, h := range headers {
			cells[i] = Bold(strings.ToUpper(h))
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	return &Table{writer: tw}
}

// AddRow adds one row.
func (t *Table) AddRow(cells ...string) {
	fmt.Fprintln(t.writer, strings.Join(cells, "\t"))
}

// Render flushes the table to its writer.
func (t *Table) Render() {
	t.writer.Flush()
}

// PrintRefs prints package references as a table.
func PrintRefs(refs []provider.Ref) {
	if len(refs) == 0 {
		MutedMsg("no packages found")
		return
	}

	t := NewTable(os.Stdout, "source", "name", "installed", "available")
	for _, ref := range refs {
		installed := NotInstalled.Sprint("-")
		if ref.Installed != "" {
			installed = Installed.Sprint(ref.Installed)
		}
		available := Muted.Sprint("-")
		if ref.Available != "" {
			available = PackageVersion.Sprint(ref.Available)
		}
		t.AddRow(
			PackageSource.Sprint(string(ref.Source)),
			PackageName.Sprint(ref.Name),
			installed,
			available,
		)
	}
	t.Render()
}

// PrintPlan shows what a transaction will do, grouped by action in
// execution order.
func PrintPlan(txn *transaction.Transaction) {
	groups := make(map[transaction.Action][]transaction.Entry)
	for _, e := range txn.Entries() {
		groups[e.Action] = append(groups[e.Action], e)
	}

	for _, action := range transaction.Actions() {
		entries := groups[action]
		if len(entries) == 0 {
			continue
		}
		HeaderMsg("%s (%d)", actionLabel(action), len(entries))
		for _, e := range entries {
			fmt.Printf("  %s %s\n", PackageName.Sprint(e.Ref.Name), entryDetail(e))
		}
	}
}

func actionLabel(a transaction.Action) string {
	switch a {
	case transaction.ActionRemove:
		return "To remove"
	case transaction.ActionInstall:
		return "To install"
	case transaction.ActionUpdate:
		return "To update"
	}
	return string(a)
}

// entryDetail renders the version movement an entry implies.
func entryDetail(e transaction.Entry) string {
	source := Muted.Sprintf("[%s]", e.Ref.Source)
	switch e.Action {
	case transaction.ActionRemove:
		if e.Ref.Installed == "" {
			return source
		}
		return fmt.Sprintf("%s %s", PackageVersion.Sprint(e.Ref.Installed), source)
	case transaction.ActionUpdate:
		if e.Ref.Installed != "" && e.Ref.Available != "" && e.Ref.Installed != e.Ref.Available {
			return fmt.Sprintf("%s %s %s %s",
				e.Ref.Installed, SymbolArrow, PackageVersion.Sprint(e.Ref.Available), source)
		}
		return source
	default:
		if e.Ref.Available == "" {
			return source
		}
		return fmt.Sprintf("%s %s", PackageVersion.Sprint(e.Ref.Available), source)
	}
}

// PrintReport renders the outcome of an executed transaction: one line per
// entry, then a summary.
func PrintReport(rep *transaction.Report) {
	for _, e := range rep.Entries {
		c := StatusColor(e.Status)
		fmt.Printf("%s %s %s %s\n",
			c.Sprint(StatusSymbol(e.Status)),
			e.Action,
			PackageName.Sprint(e.Ref.Name),
			Muted.Sprintf("[%s]", e.Ref.Source),
		)
	}

	succeeded, failed, skipped := rep.Counts()
	var parts []string
	if succeeded > 0 {
		parts = append(parts, fmt.Sprintf("%d succeeded", succeeded))
	}
	if failed > 0 {
		parts = append(parts, fmt.Sprintf("%d failed", failed))
	}
	if skipped > 0 {
		parts = append(parts, fmt.Sprintf("%d skipped", skipped))
	}
	counts := strings.Join(parts, ", ")
	if counts == "" {
		counts = "no entries"
	}

	if rep.Succeeded() {
		SuccessMsg("transaction complete: %s", counts)
	} else {
		ErrorMsg("transaction failed (%s): %s", FailureLabel(rep.Failure), counts)
		if rep.Reason != "" {
			MutedMsg("  %s", rep.Reason)
		}
	}
	if rep.Indeterminate {
		WarningMsg("the channel to the helper broke mid-step; verify the marked entries with pacman -Q")
	}
}

// FailureLabel returns a short human description of a failure kind.
func FailureLabel(k transaction.FailureKind) string {
	switch k {
	case transaction.FailureExecution:
		return "a step failed"
	case transaction.FailureRejected:
		return "the helper rejected a request"
	case transaction.FailurePermissionDenied:
		return "authorization denied"
	case transaction.FailureIPCBroken:
		return "helper channel broken"
	case transaction.FailureCanceled:
		return "canceled"
	}
	return string(k)
}

// PrintRecords prints journal records as a table, newest first.
func PrintRecords(recs []journal.Record) {
	if len(recs) == 0 {
		MutedMsg("journal is empty")
		return
	}

	t := NewTable(os.Stdout, "time", "transaction", "result")
	for _, rec := range recs {
		what := "(empty)"
		if len(rec.Entries) > 0 {
			e := rec.Entries[0]
			what = fmt.Sprintf("%s %s", e.Action, e.Ref.Name)
			if n := len(rec.Entries) - 1; n > 0 {
				what += fmt.Sprintf(" +%d", n)
			}
		}

		result := Success.Sprint("ok")
		if !rec.Succeeded() {
			result = Error.Sprint(string(rec.Failure))
		}
		t.AddRow(rec.FormatTime(), what, result)
	}
	t.Render()
}

// PrintSecurityEvents prints helper rejections as a table, newest first.
func PrintSecurityEvents(evs []journal.SecurityEvent) {
	if len(evs) == 0 {
		MutedMsg("no security events recorded")
		return
	}

	t := NewTable(os.Stdout, "time", "requests", "reason")
	for _, ev := range evs {
		t.AddRow(
			ev.Timestamp.Format("2006-01-02 15:04:05"),
			strings.Join(ev.Requests, ", "),
			Error.Sprint(ev.Reason),
		)
	}
	t.Render()
}

// PrintSnapshots prints snapshots as a table, newest first.
func PrintSnapshots(snaps []snapshot.Snapshot) {
	if len(snaps) == 0 {
		MutedMsg("no snapshots")
		return
	}

	t := NewTable(os.Stdout, "id", "time", "trigger", "packages", "description")
	for _, sn := range snaps {
		t.AddRow(
			PackageName.Sprint(sn.ID),
			sn.FormatTime(),
			string(sn.Trigger),
			fmt.Sprintf("%d", sn.PackageCount()),
			sn.Description,
		)
	}
	t.Render()
}

// PrintDiff prints snapshot changes line by line with a closing summary.
func PrintDiff(d *snapshot.Diff) {
	if d.IsEmpty() {
		MutedMsg("no changes")
		return
	}

	for _, c := range d.Changes {
		switch c.Kind {
		case snapshot.ChangeAdded:
			Println("%s", Green(c.String()))
		case snapshot.ChangeRemoved:
			Println("%s", Red(c.String()))
		default:
			Println("%s", Yellow(c.String()))
		}
	}
	InfoMsg("%s", d.Summary())
}
