package cli

import (
	"context"

	"github.com/spf13/cobra"

	"borealis/pkg/snapshot"
	"borealis/pkg/transaction"
)

var removeCmd = &cobra.Command{
	Use:     "remove <package>...",
	Aliases: []string{"uninstall"},
	Short:   "Remove installed packages",
	Long: `Remove packages installed from any backend. Each name is looked
up in the local package databases to find where it came from; use
--source when the same name is installed from several.

Repository and AUR packages are removed with their unneeded
dependencies. Flatpak applications are uninstalled from the user
installation.

Examples:
  borealis remove htop
  borealis remove org.gimp.GIMP -s flatpak`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRemove,
}

func runRemove(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	q, err := buildRemoveQueue(ctx, args)
	if err != nil {
		return err
	}

	title := "remove " + summarizeNames(args)
	return applyQueue(ctx, q, title, snapshot.TriggerTransaction)
}

// buildRemoveQueue maps every requested name to the backend it is
// installed from.
func buildRemoveQueue(ctx context.Context, names []string) (*transaction.Queue, error) {
	q := &transaction.Queue{}
	for _, name := range names {
		ref, err := resolveForRemove(ctx, name)
		if err != nil {
			return nil, err
		}
		q.Add(ref, transaction.ActionRemove)
	}
	return q, nil
}
