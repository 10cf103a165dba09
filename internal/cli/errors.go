package cli

import "errors"

var (
	// ErrAborted is returned when the user declines a confirmation.
	ErrAborted = errors.New("operation aborted by user")

	// ErrNoMatches is returned when no backend knows any requested package.
	ErrNoMatches = errors.New("no matching packages found")

	// ErrNoBackends is returned when every backend tool is missing.
	ErrNoBackends = errors.New("no package backend available on this system")
)
