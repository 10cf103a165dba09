package ui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/manifoldco/promptui"

	"borealis/pkg/provider"
)

// Confirm asks a yes/no question and returns the answer. Aborting the
// prompt counts as no.
func Confirm(prompt string, defaultYes bool) (bool, error) {
	label := prompt
	if defaultYes {
		label += " [Y/n]"
	} else {
		label += " [y/N]"
	}

	p := promptui.Prompt{
		Label:     label,
		IsConfirm: true,
	}
	if defaultYes {
		p.Default = "y"
	}

	result, err := p.Run()
	if err != nil {
		if errors.Is(err, promptui.ErrAbort) {
			return false, nil
		}
		return false, err
	}

	result = strings.ToLower(strings.TrimSpace(result))
	if result == "" {
		return defaultYes, nil
	}
	return result == "y" || result == "yes", nil
}

// SelectRef asks the user to pick one package when a name resolves in more
// than one backend. A single candidate is returned without prompting.
func SelectRef(refs []provider.Ref, prompt string) (provider.Ref, error) {
	if len(refs) == 0 {
		return provider.Ref{}, fmt.Errorf("no packages to select from")
	}
	if len(refs) == 1 {
		return refs[0], nil
	}

	templates := &promptui.SelectTemplates{
		Label:    "{{ . }}",
		Active:   "▸ {{ .Name | cyan }} {{ .Available | green }} [{{ .Source | magenta }}]",
		Inactive: "  {{ .Name }} {{ .Available | faint }} [{{ .Source | faint }}]",
		Selected: "✓ {{ .Name | cyan }} [{{ .Source | magenta }}]",
	}

	p := promptui.Select{
		Label:     prompt,
		Items:     refs,
		Templates: templates,
		Size:      len(refs),
	}

	index, _, err := p.Run()
	if err != nil {
		return provider.Ref{}, err
	}
	return refs[index], nil
}
