package whitelist

import (
	"fmt"

	"borealis/pkg/provider"
	"borealis/pkg/transaction"
)

// Validate is the helper-side gate. The helper executes only privileged
// repository rules, so validation is pinned to that source; the community
// helper and flatpak backends never cross the privilege boundary. On success
// the rule is returned so the caller rebuilds the argument vector from its
// own table, never from the request it received.
func (t *Table) Validate(action transaction.Action, names, flags []string) (Rule, error) {
	if !action.Valid() {
		return Rule{}, fmt.Errorf("unknown action %q: %w", action, ErrNotWhitelisted)
	}
	rule, err := t.Lookup(provider.SourceRepo, action)
	if err != nil {
		return Rule{}, err
	}
	if !rule.Privileged {
		return Rule{}, fmt.Errorf("%s %s does not cross the privilege boundary: %w",
			rule.Source, action, ErrNotWhitelisted)
	}
	if err := checkFlags(rule, flags); err != nil {
		return Rule{}, err
	}
	if !rule.AcceptsNames && len(names) > 0 {
		return Rule{}, fmt.Errorf("%s takes no package operands, request carries %d: %w",
			action, len(names), ErrNotWhitelisted)
	}
	if rule.RequiresNames && len(names) == 0 {
		return Rule{}, fmt.Errorf("%s requires at least one package operand: %w",
			action, ErrNotWhitelisted)
	}
	if err := checkNames(names); err != nil {
		return Rule{}, err
	}
	return rule, nil
}
