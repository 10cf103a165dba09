package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"borealis/internal/protocol"
	"borealis/internal/ui"
)

var unlockCmd = &cobra.Command{
	Use:   "unlock",
	Short: "Remove a stale pacman database lock",
	Long: `Ask the privileged helper to remove /var/lib/pacman/db.lck.

The lock file is how pacman serializes database access. Remove it
only when no package manager is actually running; a crashed pacman
leaves it behind, a running one still needs it.`,
	Args: cobra.NoArgs,
	RunE: runUnlock,
}

func runUnlock(cmd *cobra.Command, args []string) error {
	if !yes {
		ui.WarningMsg("Only continue if no package manager is currently running.")
		confirmed, err := ui.Confirm("Remove the pacman database lock?", false)
		if err != nil {
			return err
		}
		if !confirmed {
			return ErrAborted
		}
	}

	rep, err := brk.ClearLock(cmd.Context())
	if err != nil {
		return err
	}

	for _, ev := range rep.Log {
		if ev.Stream == protocol.StreamStderr {
			fmt.Fprintln(os.Stderr, ev.Line)
			continue
		}
		fmt.Println(ev.Line)
	}

	if !rep.Succeeded() {
		return fmt.Errorf("clearing lock: %s", rep.Reason)
	}

	ui.SuccessMsg("Done")
	return nil
}
