package cli

import (
	"github.com/spf13/cobra"

	"borealis/internal/ui"
	"borealis/pkg/provider"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List installed packages",
	Long: `List packages installed from every backend, or from one with
--source. Repository output includes foreign (AUR) packages under
their own source.

Examples:
  borealis list                      # Everything
  borealis list -s flatpak           # Flatpak applications only`,
	Args: cobra.NoArgs,
	RunE: runList,
}

func runList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	sources, err := requestedSources()
	if err != nil {
		return err
	}

	var refs []provider.Ref
	probed := 0
	for _, src := range sources {
		p, err := reg.For(src)
		if err != nil {
			return err
		}
		if err := p.Available(); err != nil {
			if sourceFlag != "" {
				return err
			}
			continue
		}
		probed++

		for ref, err := range p.Installed(ctx) {
			if err != nil {
				return err
			}
			refs = append(refs, ref)
		}
	}
	if probed == 0 {
		return ErrNoBackends
	}

	if len(refs) == 0 {
		ui.InfoMsg("No packages installed")
		return nil
	}

	ui.PrintRefs(refs)
	ui.MutedMsg("%d packages", len(refs))
	return nil
}
