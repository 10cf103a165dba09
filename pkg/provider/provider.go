// Package provider exposes the package backends the engine reads from: the
// official repositories, the community AUR helpers, and flatpak. Providers
// are strictly read-only; anything that modifies the system goes through the
// whitelisted transaction path instead.
package provider

import (
	"context"
	"errors"
	"iter"
	"os"

	"borealis/internal/runner"
)

// Source identifies which backend a package belongs to.
type Source string

const (
	SourceRepo    Source = "repo"
	SourceAUR     Source = "aur"
	SourceFlatpak Source = "flatpak"
)

// Sources lists every supported backend in resolution order.
func Sources() []Source {
	return []Source{SourceRepo, SourceAUR, SourceFlatpak}
}

// Valid reports whether s names a known backend.
func (s Source) Valid() bool {
	switch s {
	case SourceRepo, SourceAUR, SourceFlatpak:
		return true
	}
	return false
}

// Ref identifies one package within one backend. A Ref is immutable once
// resolved.
type Ref struct {
	Name      string `json:"name"`
	Source    Source `json:"source"`
	Installed string `json:"installed,omitempty"` // installed version, empty when not installed
	Available string `json:"available,omitempty"` // version the backend can install
	Origin    string `json:"origin,omitempty"`    // flatpak remote, empty elsewhere
}

// IsInstalled reports whether the package is currently installed.
func (r Ref) IsInstalled() bool {
	return r.Installed != ""
}

// String returns "source/name" for display and error messages.
func (r Ref) String() string {
	return string(r.Source) + "/" + r.Name
}

var (
	// ErrNotFound means the backend does not know the requested name.
	ErrNotFound = errors.New("package not found")

	// ErrUnavailable means the backend tool is missing from this system.
	ErrUnavailable = errors.New("backend unavailable")
)

// Exec captures a backend tool's output. Satisfied by *runner.Runner.
type Exec interface {
	Capture(ctx context.Context, spec runner.Spec) (string, error)
}

// Provider is one read-only package backend.
type Provider interface {
	// Source reports which backend this provider serves.
	Source() Source

	// Available returns nil when the backend tool is usable, or an error
	// wrapping ErrUnavailable.
	Available() error

	// Resolve looks up name, returning its reference with installed and
	// available versions. Unknown names return an error wrapping
	// ErrNotFound.
	Resolve(ctx context.Context, name string) (Ref, error)

	// Installed yields the packages this backend has installed. The
	// sequence is lazy and restartable; callers may stop early and each
	// new range re-queries the backend.
	Installed(ctx context.Context) iter.Seq2[Ref, error]
}

// queryEnv returns the inherited environment with the output locale pinned
// so parsers see stable text.
func queryEnv() []string {
	return append(os.Environ(), "LC_ALL=C")
}

// isExit reports whether err is a nonzero exit from the backend tool, as
// opposed to a failure to run it at all.
func isExit(err error) bool {
	var exitErr *runner.ExitError
	return errors.As(err, &exitErr)
}
