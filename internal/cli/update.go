package cli

import (
	"context"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"borealis/internal/ui"
	"borealis/pkg/provider"
	"borealis/pkg/snapshot"
	"borealis/pkg/transaction"
)

var updateCmd = &cobra.Command{
	Use:     "update",
	Aliases: []string{"upgrade"},
	Short:   "Update installed packages",
	Long: `Update the whole system: the official repositories and the AUR
through a full system upgrade, and every installed flatpak
application individually.

When an AUR helper is present its upgrade covers the repositories
too, so only one escalated invocation runs. Use --source to update a
single backend.

Examples:
  borealis update                    # Everything
  borealis update -s flatpak         # Flatpak applications only`,
	Args: cobra.NoArgs,
	RunE: runUpdate,
}

func runUpdate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	q, err := buildUpdateQueue(ctx)
	if err != nil {
		return err
	}
	if q.Len() == 0 {
		ui.InfoMsg("Nothing to update")
		return nil
	}

	return applyQueue(ctx, q, "system update", snapshot.TriggerTransaction)
}

// buildUpdateQueue assembles the update set. Repository and AUR updates
// are whole-system upgrades, so they queue as a single entry per
// backend; flatpak updates name each installed application.
func buildUpdateQueue(ctx context.Context) (*transaction.Queue, error) {
	sources, err := requestedSources()
	if err != nil {
		return nil, err
	}

	q := &transaction.Queue{}
	probed := 0

	if src, ok := systemUpdateSource(sources); ok {
		probed++
		q.Add(provider.Ref{Name: "system", Source: src}, transaction.ActionUpdate)
	} else if sourceFlag != "" && sourceFlag != string(provider.SourceFlatpak) {
		// The user asked for a specific system backend that is not
		// usable; say which and why instead of a generic miss.
		p, err := reg.For(provider.Source(sourceFlag))
		if err != nil {
			return nil, err
		}
		return nil, p.Available()
	}

	if slices.Contains(sources, provider.SourceFlatpak) {
		n, err := queueFlatpakUpdates(ctx, q)
		if err != nil {
			return nil, err
		}
		if n >= 0 {
			probed++
		}
	}

	if probed == 0 {
		return nil, ErrNoBackends
	}
	return q, nil
}

// systemUpdateSource picks the backend that carries the full system
// upgrade. An available AUR helper upgrades the repositories in the
// same run, so it wins over plain pacman unless --source says repo.
func systemUpdateSource(sources []provider.Source) (provider.Source, bool) {
	if slices.Contains(sources, provider.SourceAUR) {
		if p, err := reg.For(provider.SourceAUR); err == nil && p.Available() == nil {
			return provider.SourceAUR, true
		}
	}
	if slices.Contains(sources, provider.SourceRepo) {
		if p, err := reg.For(provider.SourceRepo); err == nil && p.Available() == nil {
			return provider.SourceRepo, true
		}
	}
	return "", false
}

// queueFlatpakUpdates adds one entry per installed application. Returns
// -1 without error when the flatpak tool is absent and was not asked
// for explicitly.
func queueFlatpakUpdates(ctx context.Context, q *transaction.Queue) (int, error) {
	p, err := reg.For(provider.SourceFlatpak)
	if err != nil {
		return -1, err
	}
	if err := p.Available(); err != nil {
		if sourceFlag != "" {
			return -1, err
		}
		return -1, nil
	}

	n := 0
	for ref, err := range p.Installed(ctx) {
		if err != nil {
			return n, fmt.Errorf("listing flatpak applications: %w", err)
		}
		q.Add(ref, transaction.ActionUpdate)
		n++
	}
	return n, nil
}
