package cli

import (
	"context"
	"errors"
	"fmt"

	"borealis/internal/ui"
	"borealis/pkg/provider"
	"borealis/pkg/whitelist"
)

// resolveForInstall finds name in the requested backends. When several
// backends provide it, an interactive run asks; otherwise resolution
// order decides (repo, then aur, then flatpak).
func resolveForInstall(ctx context.Context, name string) (provider.Ref, error) {
	matches, err := lookupAll(ctx, name, func(ref provider.Ref) bool { return true })
	if err != nil {
		return provider.Ref{}, err
	}
	if len(matches) == 0 {
		return provider.Ref{}, fmt.Errorf("%s: %w", name, provider.ErrNotFound)
	}
	return pickMatch(matches, fmt.Sprintf("Multiple sources provide %s", name))
}

// resolveForRemove finds the backend that has name installed.
func resolveForRemove(ctx context.Context, name string) (provider.Ref, error) {
	matches, err := lookupAll(ctx, name, provider.Ref.IsInstalled)
	if err != nil {
		return provider.Ref{}, err
	}
	if len(matches) == 0 {
		return provider.Ref{}, fmt.Errorf("%s is not installed", name)
	}
	return pickMatch(matches, fmt.Sprintf("%s is installed from several sources", name))
}

// lookupAll resolves name in every requested backend and keeps the refs
// that pass keep. Backends whose tool is absent are skipped unless the
// user named one explicitly with --source.
func lookupAll(ctx context.Context, name string, keep func(provider.Ref) bool) ([]provider.Ref, error) {
	// Names become command operands later; rejecting malformed ones here
	// gives the canonical message before any backend is queried.
	if err := whitelist.CheckName(name); err != nil {
		return nil, err
	}

	sources, err := requestedSources()
	if err != nil {
		return nil, err
	}

	var (
		matches  []provider.Ref
		queryErr error
		probed   int
	)
	for _, src := range sources {
		p, err := reg.For(src)
		if err != nil {
			return nil, err
		}
		if err := p.Available(); err != nil {
			if sourceFlag != "" {
				return nil, err
			}
			continue
		}
		probed++

		ref, err := p.Resolve(ctx, name)
		switch {
		case err == nil:
			if keep(ref) {
				matches = append(matches, ref)
			}
		case errors.Is(err, provider.ErrNotFound):
			// try the next backend
		default:
			// A backend that answered badly should not silently narrow
			// the search; remember the first hard failure.
			if queryErr == nil {
				queryErr = fmt.Errorf("querying %s for %s: %w", src, name, err)
			}
		}
	}

	if probed == 0 {
		return nil, ErrNoBackends
	}
	if len(matches) == 0 && queryErr != nil {
		return nil, queryErr
	}
	return matches, nil
}

// pickMatch narrows multiple matches to one. Interactive runs get a
// selection prompt; everything else takes resolution order.
func pickMatch(matches []provider.Ref, prompt string) (provider.Ref, error) {
	if len(matches) == 1 {
		return matches[0], nil
	}
	if interactive() {
		return ui.SelectRef(matches, prompt)
	}
	return matches[0], nil
}
