// Package tui shows a transaction while it runs: one line per queued
// entry with its current status, the helper's streamed output in a
// scrollable log, and keys for cooperative cancel and for answering a
// tool that stopped to ask something. The view lives on the alternate
// screen, so the caller prints the final report after it closes.
package tui

import (
	"github.com/charmbracelet/lipgloss"

	"borealis/pkg/transaction"
)

// Color palette - matches existing CLI colors
var (
	ColorPrimary = lipgloss.Color("#06B6D4") // Cyan
	ColorSuccess = lipgloss.Color("#10B981") // Green
	ColorWarning = lipgloss.Color("#F59E0B") // Yellow
	ColorError   = lipgloss.Color("#EF4444") // Red
	ColorMuted   = lipgloss.Color("#6B7280") // Gray
	ColorText    = lipgloss.Color("#F3F4F6") // Light gray
	ColorBgAlt   = lipgloss.Color("#374151") // Dark gray
)

// Styles holds every style the view renders with.
type Styles struct {
	Header lipgloss.Style
	State  lipgloss.Style

	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Muted   lipgloss.Style

	EntryName   lipgloss.Style
	EntrySource lipgloss.Style

	Stderr lipgloss.Style

	InputPrompt lipgloss.Style
	Footer      lipgloss.Style
}

// DefaultStyles returns the standard look of the live view.
func DefaultStyles() *Styles {
	return &Styles{
		Header: lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorText).
			Background(ColorPrimary).
			Padding(0, 1),

		State: lipgloss.NewStyle().
			Foreground(ColorPrimary),

		Success: lipgloss.NewStyle().Foreground(ColorSuccess),
		Warning: lipgloss.NewStyle().Foreground(ColorWarning),
		Error:   lipgloss.NewStyle().Foreground(ColorError),
		Muted:   lipgloss.NewStyle().Foreground(ColorMuted),

		EntryName: lipgloss.NewStyle().
			Foreground(ColorText),

		EntrySource: lipgloss.NewStyle().
			Foreground(ColorMuted),

		Stderr: lipgloss.NewStyle().
			Foreground(ColorWarning),

		InputPrompt: lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary),

		Footer: lipgloss.NewStyle().
			Foreground(ColorMuted).
			Background(ColorBgAlt).
			Padding(0, 1),
	}
}

// StatusStyle picks the style for an entry in the given status.
func (s *Styles) StatusStyle(status transaction.Status) lipgloss.Style {
	switch status {
	case transaction.StatusSucceeded:
		return s.Success
	case transaction.StatusFailed:
		return s.Error
	case transaction.StatusRunning:
		return s.State
	case transaction.StatusSkipped:
		return s.Warning
	default:
		return s.Muted
	}
}
