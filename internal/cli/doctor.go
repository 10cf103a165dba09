package cli

import (
	"errors"
	"io/fs"
	"os"
	"os/exec"

	"github.com/spf13/cobra"

	"borealis/internal/broker"
	"borealis/internal/config"
	"borealis/internal/journal"
	"borealis/internal/ui"
	"borealis/pkg/snapshot"
)

const pacmanLockPath = "/var/lib/pacman/db.lck"

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check that the pieces are in place",
	Long: `Check the privilege chain (pkexec, the helper binary), the
package backends, the data stores and the pacman database lock.

Examples:
  borealis doctor`,
	Args: cobra.NoArgs,
	RunE: runDoctor,
}

func runDoctor(cmd *cobra.Command, args []string) error {
	issues := 0

	ui.HeaderMsg("Privilege chain")
	if path, err := exec.LookPath("pkexec"); err != nil {
		ui.ErrorMsg("pkexec not found; privileged steps cannot run")
		issues++
	} else {
		ui.SuccessMsg("pkexec: %s", path)
	}
	if path, err := broker.HelperPath(); err != nil {
		ui.ErrorMsg("%v", err)
		issues++
	} else {
		ui.SuccessMsg("helper: %s", path)
	}

	ui.HeaderMsg("Backends")
	available := 0
	for _, src := range reg.Sources() {
		p, err := reg.For(src)
		if err != nil {
			ui.ErrorMsg("%s: %v", src, err)
			issues++
			continue
		}
		if err := p.Available(); err != nil {
			ui.MutedMsg("%s: %v", src, err)
			continue
		}
		available++
		ui.SuccessMsg("%s is available", src)
	}
	if available == 0 {
		ui.ErrorMsg("no backend tool found at all")
		issues++
	}

	ui.HeaderMsg("Configuration")
	if _, err := os.Stat(config.ConfigPath()); errors.Is(err, fs.ErrNotExist) {
		ui.MutedMsg("no config file, using defaults (%s)", config.ConfigPath())
	} else {
		ui.SuccessMsg("config: %s", config.ConfigPath())
	}
	if cfg.General.AllowNoConfirm {
		ui.WarningMsg("allow_no_confirm is on; pacman prompts are skipped")
	}

	ui.HeaderMsg("Data stores")
	if store, err := journal.Open(); err != nil {
		ui.ErrorMsg("journal: %v", err)
		issues++
	} else {
		transactions, security, cerr := store.Counts()
		if cerr != nil {
			ui.ErrorMsg("journal: %v", cerr)
			issues++
		} else {
			ui.SuccessMsg("journal: %d transactions, %d security events", transactions, security)
			if last, lerr := store.Last(); lerr == nil && last != nil {
				ui.MutedMsg("last: %s", last.Summary())
			}
		}
		store.Close()
	}
	if store, err := snapshot.Open(); err != nil {
		ui.ErrorMsg("snapshots: %v", err)
		issues++
	} else {
		count, cerr := store.Count()
		store.Close()
		if cerr != nil {
			ui.ErrorMsg("snapshots: %v", cerr)
			issues++
		} else {
			ui.SuccessMsg("snapshots: %d stored", count)
		}
	}

	ui.HeaderMsg("Database lock")
	if _, err := os.Stat(pacmanLockPath); err == nil {
		ui.WarningMsg("%s exists; if no package manager is running, clear it with: borealis unlock", pacmanLockPath)
	} else {
		ui.SuccessMsg("no database lock")
	}

	ui.HeaderMsg("Summary")
	if issues == 0 {
		ui.SuccessMsg("Everything in place")
	} else {
		ui.WarningMsg("Found %d issue(s)", issues)
	}
	return nil
}
