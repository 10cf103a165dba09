package whitelist

import (
	"fmt"

	"borealis/pkg/provider"
	"borealis/pkg/transaction"
)

// Invocation is one validated command the broker may execute: the whitelisted
// program, its complete argument tokens, and the transaction entries it
// covers. Args is always Template + Flags + Names in that order; the helper
// side rebuilds the same vector from its own table rather than trusting this
// one.
type Invocation struct {
	Source     provider.Source
	Action     transaction.Action
	Program    string
	Args       []string
	Flags      []string
	Names      []string
	Privileged bool

	// Entries indexes into the transaction's entry list, execution order.
	Entries []int
}

// Plan maps every transaction entry to its permitted invocation. Entries
// sharing a batching rule collapse into one invocation; per-entry rules get
// one invocation each. Any entry without a rule, any unsafe identifier, or
// any over-limit batch fails the whole plan before anything runs.
func (t *Table) Plan(txn *transaction.Transaction) ([]Invocation, error) {
	entries := txn.Entries()

	type group struct {
		rule    Rule
		names   []string
		indexes []int
	}
	var groups []*group
	batched := make(map[ruleKey]*group)

	for i, e := range entries {
		rule, err := t.Lookup(e.Ref.Source, e.Action)
		if err != nil {
			return nil, err
		}

		var operands []string
		if rule.AcceptsNames {
			if rule.OriginOperand {
				if e.Ref.Origin == "" {
					return nil, fmt.Errorf("%s %s: no remote origin resolved", e.Action, e.Ref)
				}
				operands = append(operands, e.Ref.Origin)
			}
			operands = append(operands, e.Ref.Name)
			for _, op := range operands {
				if err := CheckName(op); err != nil {
					return nil, err
				}
			}
		}

		if rule.PerEntry {
			groups = append(groups, &group{rule: rule, names: operands, indexes: []int{i}})
			continue
		}

		k := ruleKey{source: rule.Source, action: rule.Action}
		g, ok := batched[k]
		if !ok {
			g = &group{rule: rule}
			batched[k] = g
			groups = append(groups, g)
		}
		g.names = append(g.names, operands...)
		g.indexes = append(g.indexes, i)
	}

	out := make([]Invocation, 0, len(groups))
	for _, g := range groups {
		if len(g.names) > maxNames {
			return nil, fmt.Errorf("%d operands exceeds the per-invocation limit of %d: %w",
				len(g.names), maxNames, ErrNotWhitelisted)
		}
		flags := t.chooseFlags(g.rule)
		out = append(out, Invocation{
			Source:     g.rule.Source,
			Action:     g.rule.Action,
			Program:    g.rule.Program,
			Args:       g.rule.Args(flags, g.names),
			Flags:      flags,
			Names:      g.names,
			Privileged: g.rule.Privileged,
			Entries:    g.indexes,
		})
	}
	return out, nil
}

// chooseFlags picks the optional flags the active configuration enables,
// always drawn from the rule's allowed set. --needed is unconditional where
// allowed; the confirmation-skip flags require AllowNoConfirm.
func (t *Table) chooseFlags(r Rule) []string {
	var flags []string
	if r.allows("--needed") {
		flags = append(flags, "--needed")
	}
	if t.cfg.AllowNoConfirm {
		for _, confirm := range []string{"--noconfirm", "-y"} {
			if r.allows(confirm) {
				flags = append(flags, confirm)
			}
		}
	}
	return flags
}
