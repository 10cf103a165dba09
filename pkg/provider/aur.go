package provider

import (
	"context"
	"fmt"
	"iter"
	"os/exec"

	"borealis/internal/runner"
)

// AUR is the community repository backend, read through the configured
// helper tool (yay or paru). Installed state for foreign packages still
// comes from the local pacman database.
type AUR struct {
	run    Exec
	bin    string
	pacman string
}

// NewAUR creates the community provider backed by helperBin.
func NewAUR(run Exec, helperBin string) *AUR {
	if helperBin == "" {
		helperBin = "yay"
	}
	return &AUR{run: run, bin: helperBin, pacman: "pacman"}
}

// Source reports the backend this provider serves.
func (a *AUR) Source() Source {
	return SourceAUR
}

// Helper returns the community helper binary in use.
func (a *AUR) Helper() string {
	return a.bin
}

// Available checks that the helper tool is on PATH.
func (a *AUR) Available() error {
	if _, err := exec.LookPath(a.bin); err != nil {
		return fmt.Errorf("%s: %w", a.bin, ErrUnavailable)
	}
	return nil
}

// Resolve queries the helper for name and the local database for its
// installed version.
func (a *AUR) Resolve(ctx context.Context, name string) (Ref, error) {
	ref := Ref{Name: name, Source: SourceAUR}

	out, err := a.run.Capture(ctx, runner.Spec{
		Program: a.bin,
		Args:    []string{"-Si", name},
		Env:     queryEnv(),
	})
	switch {
	case err == nil:
		ref.Available = infoField(out, "Version")
		if n := infoField(out, "Name"); n != "" {
			ref.Name = n
		}
	case !isExit(err):
		return Ref{}, fmt.Errorf("%s -Si %s: %w", a.bin, name, err)
	}

	local, err := a.run.Capture(ctx, runner.Spec{
		Program: a.pacman,
		Args:    []string{"-Qi", name},
		Env:     queryEnv(),
	})
	switch {
	case err == nil:
		ref.Installed = infoField(local, "Version")
	case !isExit(err):
		return Ref{}, fmt.Errorf("pacman -Qi %s: %w", name, err)
	}

	if ref.Available == "" && ref.Installed == "" {
		return Ref{}, fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	return ref, nil
}

// Installed yields foreign packages from pacman -Qm.
func (a *AUR) Installed(ctx context.Context) iter.Seq2[Ref, error] {
	return func(yield func(Ref, error) bool) {
		out, err := a.run.Capture(ctx, runner.Spec{
			Program: a.pacman,
			Args:    []string{"-Qm"},
			Env:     queryEnv(),
		})
		if err != nil {
			yield(Ref{}, fmt.Errorf("pacman -Qm: %w", err))
			return
		}
		scanInstalled(out, SourceAUR, yield)
	}
}
