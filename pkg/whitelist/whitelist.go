// Package whitelist maps transaction actions to the only command invocations
// permitted to perform them. Every privileged operation passes through the
// table twice: once in the unprivileged broker when the transaction is
// planned, and again inside the privileged helper, which re-validates the
// request against its own compiled-in copy before executing anything.
package whitelist

import (
	"errors"
	"fmt"
	"regexp"

	"borealis/pkg/provider"
	"borealis/pkg/transaction"
)

// ErrNotWhitelisted rejects any (source, action) pair, flag, or operand shape
// outside the static rule table. The table fails closed: no rule, no run.
var ErrNotWhitelisted = errors.New("not whitelisted")

// NameError reports a package identifier that failed the safety gate.
type NameError struct {
	Name   string
	Reason string
}

func (e *NameError) Error() string {
	return fmt.Sprintf("unsafe package name %q: %s", e.Name, e.Reason)
}

// Config is the only configuration the whitelist consumes. Nothing else
// influences which invocations are permitted.
type Config struct {
	// AURHelper selects the community helper binary, "yay" or "paru".
	// Empty means yay.
	AURHelper string

	// AllowNoConfirm enables the confirmation-skip flags. Off by default;
	// never inferred.
	AllowNoConfirm bool
}

// Rule is one entry of the static table: the exact program and fixed
// argument template permitted for a (source, action) pair, plus the optional
// flags that may accompany it.
type Rule struct {
	Source provider.Source
	Action transaction.Action

	// Program is the executable. Absolute for privileged rules so the
	// helper never consults PATH as root.
	Program string

	// Template is the fixed leading argument list, always present.
	Template []string

	// AllowedFlags is the closed set of optional flags. Anything outside
	// it is rejected, never passed through.
	AllowedFlags []string

	// AcceptsNames permits package name operands. RequiresNames demands
	// at least one. A full system upgrade accepts none.
	AcceptsNames  bool
	RequiresNames bool

	// OriginOperand prefixes each name with the package's remote origin.
	// Flatpak installs name the remote explicitly.
	OriginOperand bool

	// Privileged rules cross the pkexec boundary; the rest run as the
	// invoking user.
	Privileged bool

	// PerEntry rules execute one entry at a time instead of batching.
	PerEntry bool
}

// Args assembles the full argument vector: template, then flags, then
// operands, each as a discrete token. Rules never produce a joined command
// string.
func (r Rule) Args(flags, names []string) []string {
	args := make([]string, 0, len(r.Template)+len(flags)+len(names))
	args = append(args, r.Template...)
	args = append(args, flags...)
	args = append(args, names...)
	return args
}

// allows reports whether flag is in the rule's allowed set.
func (r Rule) allows(flag string) bool {
	for _, f := range r.AllowedFlags {
		if f == flag {
			return true
		}
	}
	return false
}

type ruleKey struct {
	source provider.Source
	action transaction.Action
}

// Table is the compiled rule set for one configuration. Both sides of the
// privilege boundary build their own.
type Table struct {
	rules map[ruleKey]Rule
	cfg   Config
}

// NewTable compiles the static rules. Every (source, action) pair the system
// exposes gets a rule here; lookups that miss fail closed.
func NewTable(cfg Config) *Table {
	t := &Table{rules: make(map[ruleKey]Rule), cfg: cfg}
	t.add(repoRules()...)
	switch cfg.AURHelper {
	case "paru":
		t.add(paruRules()...)
	default:
		t.add(yayRules()...)
	}
	t.add(flatpakRules()...)
	return t
}

func (t *Table) add(rules ...Rule) {
	for _, r := range rules {
		t.rules[ruleKey{source: r.Source, action: r.Action}] = r
	}
}

// Lookup returns the rule for a (source, action) pair, or ErrNotWhitelisted.
func (t *Table) Lookup(source provider.Source, action transaction.Action) (Rule, error) {
	r, ok := t.rules[ruleKey{source: source, action: action}]
	if !ok {
		return Rule{}, fmt.Errorf("no rule for %s %s: %w", source, action, ErrNotWhitelisted)
	}
	return r, nil
}

const pacmanPath = "/usr/bin/pacman"

// repoRules covers pacman. These are the only privileged rules: the helper
// executes exactly these programs with exactly these templates.
func repoRules() []Rule {
	return []Rule{
		{
			Source:        provider.SourceRepo,
			Action:        transaction.ActionInstall,
			Program:       pacmanPath,
			Template:      []string{"-S", "--noprogressbar"},
			AllowedFlags:  []string{"--noconfirm", "--needed"},
			AcceptsNames:  true,
			RequiresNames: true,
			Privileged:    true,
		},
		{
			Source:        provider.SourceRepo,
			Action:        transaction.ActionRemove,
			Program:       pacmanPath,
			Template:      []string{"-Rns", "--noprogressbar"},
			AllowedFlags:  []string{"--noconfirm"},
			AcceptsNames:  true,
			RequiresNames: true,
			Privileged:    true,
		},
		{
			// Full system upgrade. Takes no operands: partial upgrades
			// are not expressible through this table.
			Source:       provider.SourceRepo,
			Action:       transaction.ActionUpdate,
			Program:      pacmanPath,
			Template:     []string{"-Syu", "--noprogressbar"},
			AllowedFlags: []string{"--noconfirm"},
			Privileged:   true,
		},
	}
}

// yayRules and paruRules are written out separately rather than generated
// from a shared template: each community helper's rule set is independently
// maintained and may diverge.
//
// The helper binaries run as the invoking user (makepkg refuses root) and
// escalate their inner pacman calls through pkexec via --sudo.

func yayRules() []Rule {
	return []Rule{
		{
			Source:        provider.SourceAUR,
			Action:        transaction.ActionInstall,
			Program:       "yay",
			Template:      []string{"-S", "--noprogressbar", "--sudo", "pkexec"},
			AllowedFlags:  []string{"--noconfirm", "--needed"},
			AcceptsNames:  true,
			RequiresNames: true,
		},
		{
			Source:        provider.SourceAUR,
			Action:        transaction.ActionRemove,
			Program:       "yay",
			Template:      []string{"-Rns", "--noprogressbar", "--sudo", "pkexec"},
			AllowedFlags:  []string{"--noconfirm"},
			AcceptsNames:  true,
			RequiresNames: true,
		},
		{
			Source:       provider.SourceAUR,
			Action:       transaction.ActionUpdate,
			Program:      "yay",
			Template:     []string{"-Syu", "--noprogressbar", "--sudo", "pkexec"},
			AllowedFlags: []string{"--noconfirm"},
		},
	}
}

func paruRules() []Rule {
	return []Rule{
		{
			Source:        provider.SourceAUR,
			Action:        transaction.ActionInstall,
			Program:       "paru",
			Template:      []string{"-S", "--noprogressbar", "--sudo", "pkexec"},
			AllowedFlags:  []string{"--noconfirm", "--needed"},
			AcceptsNames:  true,
			RequiresNames: true,
		},
		{
			Source:        provider.SourceAUR,
			Action:        transaction.ActionRemove,
			Program:       "paru",
			Template:      []string{"-Rns", "--noprogressbar", "--sudo", "pkexec"},
			AllowedFlags:  []string{"--noconfirm"},
			AcceptsNames:  true,
			RequiresNames: true,
		},
		{
			Source:       provider.SourceAUR,
			Action:       transaction.ActionUpdate,
			Program:      "paru",
			Template:     []string{"-Syu", "--noprogressbar", "--sudo", "pkexec"},
			AllowedFlags: []string{"--noconfirm"},
		},
	}
}

// flatpakRules run unprivileged against the user installation, one entry at
// a time so each install can name its remote origin.
func flatpakRules() []Rule {
	return []Rule{
		{
			Source:        provider.SourceFlatpak,
			Action:        transaction.ActionInstall,
			Program:       "flatpak",
			Template:      []string{"install"},
			AllowedFlags:  []string{"-y"},
			AcceptsNames:  true,
			RequiresNames: true,
			OriginOperand: true,
			PerEntry:      true,
		},
		{
			Source:        provider.SourceFlatpak,
			Action:        transaction.ActionRemove,
			Program:       "flatpak",
			Template:      []string{"uninstall"},
			AllowedFlags:  []string{"-y"},
			AcceptsNames:  true,
			RequiresNames: true,
			PerEntry:      true,
		},
		{
			Source:        provider.SourceFlatpak,
			Action:        transaction.ActionUpdate,
			Program:       "flatpak",
			Template:      []string{"update"},
			AllowedFlags:  []string{"-y"},
			AcceptsNames:  true,
			RequiresNames: true,
			PerEntry:      true,
		},
	}
}

const (
	// maxNameLen bounds one identifier, maxNames one invocation. Both are
	// far above anything legitimate.
	maxNameLen = 128
	maxNames   = 200
)

// namePattern admits repository package names, AUR package names, flatpak
// application IDs and remote names. The first character excludes '-' and '.'
// so no identifier can ever be parsed as a flag or a relative path.
var namePattern = regexp.MustCompile(`^[A-Za-z0-9@_][A-Za-z0-9@._+-]*$`)

// CheckName applies the identifier safety gate.
func CheckName(name string) error {
	switch {
	case name == "":
		return &NameError{Name: name, Reason: "empty"}
	case len(name) > maxNameLen:
		return &NameError{Name: name, Reason: fmt.Sprintf("longer than %d bytes", maxNameLen)}
	case !namePattern.MatchString(name):
		return &NameError{Name: name, Reason: "contains characters outside the package name charset"}
	}
	return nil
}

func checkNames(names []string) error {
	if len(names) > maxNames {
		return fmt.Errorf("%d operands exceeds the per-invocation limit of %d: %w",
			len(names), maxNames, ErrNotWhitelisted)
	}
	for _, n := range names {
		if err := CheckName(n); err != nil {
			return err
		}
	}
	return nil
}

func checkFlags(r Rule, flags []string) error {
	for _, f := range flags {
		if !r.allows(f) {
			return fmt.Errorf("flag %q not allowed for %s %s: %w",
				f, r.Source, r.Action, ErrNotWhitelisted)
		}
	}
	return nil
}
