package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"borealis/internal/journal"
	"borealis/internal/ui"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the transaction journal",
	Long: `Display executed transactions from the audit journal, newest
first. Requests the privileged helper refused are kept as separate
security events; list those with the security subcommand.

Examples:
  borealis history                   # Recent transactions
  borealis history -l 50             # More of them
  borealis history security          # Refused requests
  borealis history prune --max-age 720h`,
	RunE: runHistory,
}

var historyLimit int

func init() {
	historyCmd.PersistentFlags().IntVarP(&historyLimit, "limit", "l", 10, "number of records to show")

	historyCmd.AddCommand(historySecurityCmd)
	historyCmd.AddCommand(historyPruneCmd)
	historyCmd.AddCommand(historyClearCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	store, err := journal.Open()
	if err != nil {
		return fmt.Errorf("opening journal: %w", err)
	}
	defer store.Close()

	recs, err := store.List(historyLimit)
	if err != nil {
		return fmt.Errorf("reading journal: %w", err)
	}

	ui.PrintRecords(recs)

	transactions, security, err := store.Counts()
	if err == nil && len(recs) > 0 {
		ui.MutedMsg("Showing %d of %d transactions (%d security events)",
			len(recs), transactions, security)
	}
	return nil
}

// historySecurityCmd lists refused requests.
var historySecurityCmd = &cobra.Command{
	Use:   "security",
	Short: "Show refused privileged requests",
	Long: `List requests the privileged helper refused to execute. The
helper re-validates every request against its own compiled-in
whitelist, so a refusal means the request did not come through the
normal path intact and is worth reading.`,
	RunE: runHistorySecurity,
}

func runHistorySecurity(cmd *cobra.Command, args []string) error {
	store, err := journal.Open()
	if err != nil {
		return fmt.Errorf("opening journal: %w", err)
	}
	defer store.Close()

	evs, err := store.ListSecurity(historyLimit)
	if err != nil {
		return fmt.Errorf("reading security events: %w", err)
	}

	ui.PrintSecurityEvents(evs)
	return nil
}

// historyPruneCmd trims old records.
var historyPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete journal records older than --max-age",
	RunE:  runHistoryPrune,
}

var historyMaxAge time.Duration

func init() {
	historyPruneCmd.Flags().DurationVar(&historyMaxAge, "max-age", 90*24*time.Hour, "age past which records are deleted")
}

func runHistoryPrune(cmd *cobra.Command, args []string) error {
	store, err := journal.Open()
	if err != nil {
		return fmt.Errorf("opening journal: %w", err)
	}
	defer store.Close()

	deleted, err := store.Prune(historyMaxAge)
	if err != nil {
		return fmt.Errorf("pruning journal: %w", err)
	}

	if deleted == 0 {
		ui.InfoMsg("Nothing older than %s", historyMaxAge)
	} else {
		ui.SuccessMsg("Deleted %d record(s)", deleted)
	}
	return nil
}

// historyClearCmd empties the journal.
var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the entire journal",
	RunE:  runHistoryClear,
}

func runHistoryClear(cmd *cobra.Command, args []string) error {
	if !yes {
		confirmed, err := ui.Confirm("Delete every journal record, including security events?", false)
		if err != nil {
			return err
		}
		if !confirmed {
			return ErrAborted
		}
	}

	store, err := journal.Open()
	if err != nil {
		return fmt.Errorf("opening journal: %w", err)
	}
	defer store.Close()

	if err := store.Clear(); err != nil {
		return fmt.Errorf("clearing journal: %w", err)
	}

	ui.SuccessMsg("Journal cleared")
	return nil
}
