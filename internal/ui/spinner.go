package ui

import (
	"time"

	"github.com/briandowns/spinner"
)

// Spinner wraps the spinner library for consistent styling.
type Spinner struct {
	s *spinner.Spinner
}

// NewSpinner creates a spinner with the given message.
func NewSpinner(message string) *Spinner {
	charSet := spinner.CharSets[14] // braille dots
	if !UseUnicode {
		charSet = spinner.CharSets[0] // |/-\
	}

	s := spinner.New(charSet, 100*time.Millisecond)
	s.Suffix = " " + message

	if UseColors {
		s.Color("cyan")
	}

	return &Spinner{s: s}
}

// Start starts the spinner.
func (sp *Spinner) Start() {
	sp.s.Start()
}

// Stop stops the spinner without a message.
func (sp *Spinner) Stop() {
	sp.s.Stop()
}

// Success stops the spinner with a success message.
func (sp *Spinner) Success(message string) {
	sp.s.Stop()
	SuccessMsg("%s", message)
}

// Error stops the spinner with an error message.
func (sp *Spinner) Error(message string) {
	sp.s.Stop()
	ErrorMsg("%s", message)
}

// Update changes the spinner message while it runs.
func (sp *Spinner) Update(message string) {
	sp.s.Suffix = " " + message
}

// WithSpinner runs fn behind a spinner and reports the outcome.
func WithSpinner(message string, fn func() error) error {
	sp := NewSpinner(message)
	sp.Start()

	if err := fn(); err != nil {
		sp.Error(err.Error())
		return err
	}

	sp.Success(message + " - done")
	return nil
}
