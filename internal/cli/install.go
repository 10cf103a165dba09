package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"borealis/internal/ui"
	"borealis/pkg/snapshot"
	"borealis/pkg/transaction"
)

var installCmd = &cobra.Command{
	Use:   "install <package>...",
	Short: "Install packages",
	Long: `Install packages from the official repositories, the AUR or
flatpak. Each name is resolved across the enabled backends in order;
use --source to pin one.

Repository installs run through the privileged helper after whitelist
validation. AUR builds run unprivileged under your user; only their
embedded package installs escalate. Flatpak installs stay unprivileged
throughout.

Examples:
  borealis install vim git           # Resolved in the repos
  borealis install paru-bin          # Falls through to the AUR
  borealis install org.gimp.GIMP -s flatpak
  borealis install -y ripgrep        # No confirmation prompt`,
	Args: cobra.MinimumNArgs(1),
	RunE: runInstall,
}

func runInstall(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	q, err := buildInstallQueue(ctx, args)
	if err != nil {
		return err
	}

	title := "install " + summarizeNames(args)
	return applyQueue(ctx, q, title, snapshot.TriggerTransaction)
}

// buildInstallQueue resolves every requested name and queues it. A name
// that resolves nowhere fails the whole command before anything runs.
func buildInstallQueue(ctx context.Context, names []string) (*transaction.Queue, error) {
	q := &transaction.Queue{}

	sp := ui.NewSpinner("Resolving packages")
	sp.Start()
	for _, name := range names {
		sp.Update(fmt.Sprintf("Resolving %s", name))

		ref, err := resolveForInstall(ctx, name)
		if err != nil {
			sp.Error(fmt.Sprintf("Resolving %s failed", name))
			return nil, err
		}
		if ref.IsInstalled() {
			sp.Stop()
			ui.WarningMsg("%s is already installed (%s)", ref.String(), ref.Installed)
			sp.Start()
		}
		q.Add(ref, transaction.ActionInstall)
	}
	sp.Success(fmt.Sprintf("Resolved %d package(s)", q.Len()))

	return q, nil
}

// summarizeNames joins a few names for titles and snapshot descriptions.
func summarizeNames(names []string) string {
	if len(names) <= 3 {
		return strings.Join(names, " ")
	}
	return fmt.Sprintf("%s +%d more", strings.Join(names[:3], " "), len(names)-3)
}
