package tui

import (
	"github.com/charmbracelet/bubbles/key"
)

// KeyMap defines all keybindings for the live view. Scrolling keys are
// handled by the viewport and only listed here for the help line.
type KeyMap struct {
	Cancel key.Binding
	Close  key.Binding
	Answer key.Binding
	Send   key.Binding
	Blur   key.Binding
	Follow key.Binding
}

// DefaultKeyMap returns the default keybindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Cancel: key.NewBinding(
			key.WithKeys("c", "ctrl+c"),
			key.WithHelp("c", "cancel"),
		),
		Close: key.NewBinding(
			key.WithKeys("q", "enter", "esc"),
			key.WithHelp("q", "close"),
		),
		Answer: key.NewBinding(
			key.WithKeys("i"),
			key.WithHelp("i", "answer prompt"),
		),
		Send: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "send"),
		),
		Blur: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "back"),
		),
		Follow: key.NewBinding(
			key.WithKeys("f", "end"),
			key.WithHelp("f", "follow output"),
		),
	}
}
