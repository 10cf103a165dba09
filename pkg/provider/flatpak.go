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

// Flatpak is the flatpak application backend.
type Flatpak struct {
	run    Exec
	bin    string
	remote string
}

// NewFlatpak creates the flatpak provider. Uninstalled applications are
// looked up against remote, which defaults to flathub.
func NewFlatpak(run Exec, remote string) *Flatpak {
	if remote == "" {
		remote = "flathub"
	}
	return &Flatpak{run: run, bin: "flatpak", remote: remote}
}

// Source reports the backend this provider serves.
func (f *Flatpak) Source() Source {
	return SourceFlatpak
}

// Available checks that flatpak is on PATH.
func (f *Flatpak) Available() error {
	if _, err := exec.LookPath(f.bin); err != nil {
		return fmt.Errorf("%s: %w", f.bin, ErrUnavailable)
	}
	return nil
}

// Resolve looks name up as an installed application first, then against the
// configured remote.
func (f *Flatpak) Resolve(ctx context.Context, name string) (Ref, error) {
	ref := Ref{Name: name, Source: SourceFlatpak}
	found := false

	out, err := f.run.Capture(ctx, runner.Spec{
		Program: f.bin,
		Args:    []string{"info", name},
		Env:     queryEnv(),
	})
	switch {
	case err == nil:
		found = true
		ref.Installed = flatpakField(out, "Version")
		ref.Origin = flatpakField(out, "Origin")
		if id := flatpakField(out, "ID"); id != "" {
			ref.Name = id
		}
	case !isExit(err):
		return Ref{}, fmt.Errorf("flatpak info %s: %w", name, err)
	}

	remote, err := f.run.Capture(ctx, runner.Spec{
		Program: f.bin,
		Args:    []string{"remote-info", "--cached", f.remote, name},
		Env:     queryEnv(),
	})
	switch {
	case err == nil:
		found = true
		ref.Available = flatpakField(remote, "Version")
		if id := flatpakField(remote, "ID"); id != "" {
			ref.Name = id
		}
	case !isExit(err):
		return Ref{}, fmt.Errorf("flatpak remote-info %s: %w", name, err)
	}

	if !found {
		return Ref{}, fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	if ref.Origin == "" {
		ref.Origin = f.remote
	}
	return ref, nil
}

// Installed yields installed applications from flatpak list.
func (f *Flatpak) Installed(ctx context.Context) iter.Seq2[Ref, error] {
	return func(yield func(Ref, error) bool) {
		out, err := f.run.Capture(ctx, runner.Spec{
			Program: f.bin,
			Args:    []string{"list", "--app", "--columns=application,version,origin"},
			Env:     queryEnv(),
		})
		if err != nil {
			yield(Ref{}, fmt.Errorf("flatpak list: %w", err))
			return
		}
		sc := bufio.NewScanner(strings.NewReader(out))
		for sc.Scan() {
			ref, ok := parseFlatpakListLine(sc.Text())
			if !ok {
				continue
			}
			if !yield(ref, nil) {
				return
			}
		}
	}
}

// parseFlatpakListLine parses one tab-separated line of
// `flatpak list --columns=application,version,origin`.
func parseFlatpakListLine(line string) (Ref, bool) {
	if strings.TrimSpace(line) == "" {
		return Ref{}, false
	}
	cols := strings.Split(line, "\t")
	ref := Ref{Name: strings.TrimSpace(cols[0]), Source: SourceFlatpak}
	if ref.Name == "" {
		return Ref{}, false
	}
	if len(cols) > 1 {
		ref.Installed = strings.TrimSpace(cols[1])
	}
	if ref.Installed == "" {
		// flatpak omits the version column for some apps; the ref still
		// counts as installed, it just has no version string.
		ref.Installed = "unknown"
	}
	if len(cols) > 2 {
		ref.Origin = strings.TrimSpace(cols[2])
	}
	return ref, true
}

// flatpakField extracts a "Key: Value" field from flatpak info output.
func flatpakField(output, key string) string {
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
