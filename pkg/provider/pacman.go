package provider

import (
	"bufio"
	"context"
	"fmt"
	"iter"
	"os/exec"
	"strings"

	"borealis/internal/runner"
)

// Pacman is the official repository backend.
type Pacman struct {
	run Exec
	bin string
}

// NewPacman creates the repository provider.
func NewPacman(run Exec) *Pacman {
	return &Pacman{run: run, bin: "pacman"}
}

// Source reports the backend this provider serves.
func (p *Pacman) Source() Source {
	return SourceRepo
}

// Available checks that pacman is on PATH.
func (p *Pacman) Available() error {
	if _, err := exec.LookPath(p.bin); err != nil {
		return fmt.Errorf("%s: %w", p.bin, ErrUnavailable)
	}
	return nil
}

// Resolve queries the sync and local databases for name.
func (p *Pacman) Resolve(ctx context.Context, name string) (Ref, error) {
	ref := Ref{Name: name, Source: SourceRepo}

	sync, err := p.run.Capture(ctx, runner.Spec{
		Program: p.bin,
		Args:    []string{"-Si", name},
		Env:     queryEnv(),
	})
	switch {
	case err == nil:
		ref.Available = infoField(sync, "Version")
		if n := infoField(sync, "Name"); n != "" {
			ref.Name = n
		}
	case !isExit(err):
		return Ref{}, fmt.Errorf("pacman -Si %s: %w", name, err)
	}

	local, err := p.run.Capture(ctx, runner.Spec{
		Program: p.bin,
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

// Installed yields natively installed packages from pacman -Qn.
func (p *Pacman) Installed(ctx context.Context) iter.Seq2[Ref, error] {
	return func(yield func(Ref, error) bool) {
		out, err := p.run.Capture(ctx, runner.Spec{
			Program: p.bin,
			Args:    []string{"-Qn"},
			Env:     queryEnv(),
		})
		if err != nil {
			yield(Ref{}, fmt.Errorf("pacman -Qn: %w", err))
			return
		}
		scanInstalled(out, SourceRepo, yield)
	}
}

// scanInstalled parses `pacman -Q` style "name version" lines, yielding one
// Ref per package until the consumer stops.
func scanInstalled(out string, source Source, yield func(Ref, error) bool) {
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 2 {
			continue
		}
		ref := Ref{Name: fields[0], Source: source, Installed: fields[1]}
		if !yield(ref, nil) {
			return
		}
	}
}

// infoField extracts the first value for key from `pacman -Si` style
// "Key : Value" output.
func infoField(output, key string) string {
	sc := bufio.NewScanner(strings.NewReader(output))
	for sc.Scan() {
		k, v, ok := strings.Cut(sc.Text(), ":")
		if !ok {
			continue
		}
		if strings.TrimSpace(k) == key {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
