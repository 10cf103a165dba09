// Package cli implements the command-line interface for borealis.
package cli

import (
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"borealis/internal/broker"
	"borealis/internal/config"
	"borealis/internal/runner"
	"borealis/internal/ui"
	"borealis/pkg/provider"
	"borealis/pkg/whitelist"
)

var (
	// Global flags
	cfgFile    string
	sourceFlag string
	yes        bool
	verbose    bool
	noColor    bool
	plain      bool

	// Global state
	cfg *config.Config
	reg *provider.Registry
	brk *broker.Broker
)

// Build metadata - set at build time via ldflags
var (
	Version   = "0.1.0-dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "borealis",
	Short: "Package transactions for Arch-family systems, privilege-separated",
	Long: `Borealis installs, removes and updates packages from the official
repositories, the AUR and flatpak through a single queue. Nothing it
runs is assembled from user input: every privileged invocation is
checked against a fixed whitelist, executed by a small root helper
spawned through pkexec, and recorded in an audit journal.

Examples:
  borealis install vim               # Install from the repos
  borealis install paru-bin          # Resolved in the AUR automatically
  borealis remove htop               # Remove an installed package
  borealis update                    # Update everything
  borealis snapshot restore <id>     # Plan a return to an earlier state`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initializeApp()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")
	rootCmd.PersistentFlags().StringVarP(&sourceFlag, "source", "s", "", "package source (repo, aur, flatpak)")
	rootCmd.PersistentFlags().BoolVarP(&yes, "yes", "y", false, "assume yes to all prompts")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVar(&plain, "plain", false, "stream transaction output as plain lines")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(unlockCmd)
	rootCmd.AddCommand(doctorCmd)
}

// Execute runs the root command. Errors are printed here once; cobra's
// own reporting stays silenced so nothing prints twice.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil && !errIsAborted(err) {
		ui.ErrorMsg("%v", err)
	}
	return err
}

// initializeApp sets up the application state.
func initializeApp() error {
	var err error
	if cfgFile != "" {
		cfg, err = config.LoadFrom(cfgFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}

	// Apply global flag overrides
	if verbose {
		cfg.Output.Verbose = true
	}
	if noColor {
		cfg.Output.Color = false
	}
	if plain {
		cfg.Output.LiveView = false
	}

	ui.Init(cfg.ShouldUseColor(), cfg.Output.Unicode)

	run := runner.New(cfg.Output.Verbose)

	reg = provider.NewRegistry()
	reg.Register(provider.NewPacman(run))
	reg.Register(provider.NewAUR(run, cfg.General.AURHelper))
	reg.Register(provider.NewFlatpak(run, cfg.Flatpak.DefaultRemote))

	brk = broker.New(whitelist.NewTable(cfg.Whitelist()), run)

	return nil
}

// interactive reports whether prompts and the live view make sense:
// stdout is a terminal and --yes was not given.
func interactive() bool {
	return !yes && isatty.IsTerminal(os.Stdout.Fd())
}

// requestedSources returns the backends a command should touch: the one
// named by --source, or every registered backend.
func requestedSources() ([]provider.Source, error) {
	if sourceFlag == "" {
		return reg.Sources(), nil
	}
	src := provider.Source(sourceFlag)
	if !src.Valid() {
		return nil, &unknownSourceError{name: sourceFlag}
	}
	return []provider.Source{src}, nil
}

type unknownSourceError struct {
	name string
}

func (e *unknownSourceError) Error() string {
	return "unknown source " + e.name + " (expected repo, aur or flatpak)"
}

// Version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print borealis version",
	Run: func(cmd *cobra.Command, args []string) {
		ui.InfoMsg("borealis version %s", Version)
		if Commit != "unknown" {
			ui.MutedMsg("  Commit: %s", Commit)
		}
		if BuildTime != "unknown" {
			ui.MutedMsg("  Built:  %s", BuildTime)
		}
	},
}
