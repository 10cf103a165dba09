package whitelist

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"borealis/pkg/provider"
	"borealis/pkg/transaction"
)

func planTxn(t *testing.T, add func(q *transaction.Queue)) *transaction.Transaction {
	t.Helper()
	q := &transaction.Queue{}
	add(q)
	txn, err := transaction.Plan(q)
	if err != nil {
		t.Fatalf("transaction.Plan() error = %v", err)
	}
	return txn
}

func repoRef(name string) provider.Ref {
	return provider.Ref{Name: name, Source: provider.SourceRepo}
}

func aurRef(name string) provider.Ref {
	return provider.Ref{Name: name, Source: provider.SourceAUR}
}

func flatpakRef(name, origin string) provider.Ref {
	return provider.Ref{Name: name, Source: provider.SourceFlatpak, Origin: origin}
}

func TestTableIsExhaustive(t *testing.T) {
	for _, helper := range []string{"", "yay", "paru"} {
		table := NewTable(Config{AURHelper: helper})
		for _, source := range provider.Sources() {
			for _, action := range transaction.Actions() {
				if _, err := table.Lookup(source, action); err != nil {
					t.Errorf("helper %q: no rule for %s %s", helper, source, action)
				}
			}
		}
	}
}

func TestLookupFailsClosed(t *testing.T) {
	table := NewTable(Config{})
	_, err := table.Lookup(provider.Source("snap"), transaction.ActionInstall)
	if !errors.Is(err, ErrNotWhitelisted) {
		t.Fatalf("Lookup(snap) error = %v, want ErrNotWhitelisted", err)
	}
}

func TestPlanBatchesRepoEntries(t *testing.T) {
	table := NewTable(Config{})
	txn := planTxn(t, func(q *transaction.Queue) {
		q.Add(repoRef("vim"), transaction.ActionInstall)
		q.Add(repoRef("htop"), transaction.ActionInstall)
	})

	invs, err := table.Plan(txn)
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if len(invs) != 1 {
		t.Fatalf("Plan() produced %d invocations, want 1", len(invs))
	}

	inv := invs[0]
	if inv.Program != "/usr/bin/pacman" {
		t.Errorf("Program = %q, want /usr/bin/pacman", inv.Program)
	}
	if !inv.Privileged {
		t.Error("repo invocation not marked privileged")
	}
	wantArgs := []string{"-S", "--noprogressbar", "--needed", "vim", "htop"}
	if got := strings.Join(inv.Args, " "); got != strings.Join(wantArgs, " ") {
		t.Errorf("Args = %v, want %v", inv.Args, wantArgs)
	}
	if len(inv.Entries) != 2 || inv.Entries[0] != 0 || inv.Entries[1] != 1 {
		t.Errorf("Entries = %v, want [0 1]", inv.Entries)
	}
}

func TestPlanSplitsBySourceAndAction(t *testing.T) {
	table := NewTable(Config{})
	txn := planTxn(t, func(q *transaction.Queue) {
		q.Add(repoRef("vim"), transaction.ActionInstall)
		q.Add(aurRef("spotify"), transaction.ActionInstall)
		q.Add(repoRef("htop"), transaction.ActionInstall)
		q.Add(repoRef("nano"), transaction.ActionRemove)
	})

	invs, err := table.Plan(txn)
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	// Removals plan first, then installs grouped per source.
	if len(invs) != 3 {
		t.Fatalf("Plan() produced %d invocations, want 3", len(invs))
	}
	if invs[0].Action != transaction.ActionRemove || invs[0].Names[0] != "nano" {
		t.Errorf("first invocation = %s %v, want remove [nano]", invs[0].Action, invs[0].Names)
	}
	if invs[1].Source != provider.SourceRepo || len(invs[1].Names) != 2 {
		t.Errorf("second invocation = %s %v, want repo [vim htop]", invs[1].Source, invs[1].Names)
	}
	if invs[2].Source != provider.SourceAUR || invs[2].Names[0] != "spotify" {
		t.Errorf("third invocation = %s %v, want aur [spotify]", invs[2].Source, invs[2].Names)
	}
}

func TestPlanFlagsStayInAllowedSet(t *testing.T) {
	configs := []Config{
		{},
		{AllowNoConfirm: true},
		{AURHelper: "paru", AllowNoConfirm: true},
	}
	for _, cfg := range configs {
		table := NewTable(cfg)
		txn := planTxn(t, func(q *transaction.Queue) {
			q.Add(repoRef("vim"), transaction.ActionInstall)
			q.Add(repoRef("nano"), transaction.ActionRemove)
			q.Add(aurRef("spotify"), transaction.ActionInstall)
			q.Add(flatpakRef("org.gimp.GIMP", "flathub"), transaction.ActionInstall)
		})

		invs, err := table.Plan(txn)
		if err != nil {
			t.Fatalf("cfg %+v: Plan() error = %v", cfg, err)
		}
		for _, inv := range invs {
			rule, err := table.Lookup(inv.Source, inv.Action)
			if err != nil {
				t.Fatalf("invocation references unknown rule %s %s", inv.Source, inv.Action)
			}
			for _, f := range inv.Flags {
				if !rule.allows(f) {
					t.Errorf("cfg %+v: %s %s carries flag %q outside the allowed set",
						cfg, inv.Source, inv.Action, f)
				}
			}
		}
	}
}

func TestPlanNoConfirmRequiresConfig(t *testing.T) {
	txn := planTxn(t, func(q *transaction.Queue) {
		q.Add(repoRef("vim"), transaction.ActionInstall)
	})

	for _, allow := range []bool{false, true} {
		table := NewTable(Config{AllowNoConfirm: allow})
		invs, err := table.Plan(txn)
		if err != nil {
			t.Fatalf("Plan() error = %v", err)
		}
		has := false
		for _, f := range invs[0].Flags {
			if f == "--noconfirm" {
				has = true
			}
		}
		if has != allow {
			t.Errorf("allow_no_confirm=%v: --noconfirm present = %v", allow, has)
		}
	}
}

func TestPlanUpdateTakesNoOperands(t *testing.T) {
	table := NewTable(Config{})
	txn := planTxn(t, func(q *transaction.Queue) {
		q.Add(repoRef("linux"), transaction.ActionUpdate)
		q.Add(repoRef("systemd"), transaction.ActionUpdate)
	})

	invs, err := table.Plan(txn)
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if len(invs) != 1 {
		t.Fatalf("Plan() produced %d invocations, want 1", len(invs))
	}
	inv := invs[0]
	if len(inv.Names) != 0 {
		t.Errorf("update invocation carries operands %v, want none", inv.Names)
	}
	want := "-Syu --noprogressbar"
	if got := strings.Join(inv.Args, " "); got != want {
		t.Errorf("Args = %q, want %q", got, want)
	}
	if len(inv.Entries) != 2 {
		t.Errorf("Entries = %v, want both update entries", inv.Entries)
	}
}

func TestPlanFlatpakRunsPerEntry(t *testing.T) {
	table := NewTable(Config{AllowNoConfirm: true})
	txn := planTxn(t, func(q *transaction.Queue) {
		q.Add(flatpakRef("org.gimp.GIMP", "flathub"), transaction.ActionInstall)
		q.Add(flatpakRef("org.videolan.VLC", "flathub"), transaction.ActionInstall)
		q.Add(flatpakRef("com.spotify.Client", "flathub"), transaction.ActionRemove)
	})

	invs, err := table.Plan(txn)
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if len(invs) != 3 {
		t.Fatalf("Plan() produced %d invocations, want 3 per-entry", len(invs))
	}

	remove := invs[0]
	if got := strings.Join(remove.Args, " "); got != "uninstall -y com.spotify.Client" {
		t.Errorf("remove Args = %q", got)
	}
	install := invs[1]
	if got := strings.Join(install.Args, " "); got != "install -y flathub org.gimp.GIMP" {
		t.Errorf("install Args = %q", got)
	}
	if install.Privileged {
		t.Error("flatpak invocation marked privileged")
	}
}

func TestPlanFlatpakInstallNeedsOrigin(t *testing.T) {
	table := NewTable(Config{})
	txn := planTxn(t, func(q *transaction.Queue) {
		q.Add(flatpakRef("org.gimp.GIMP", ""), transaction.ActionInstall)
	})

	if _, err := table.Plan(txn); err == nil {
		t.Fatal("Plan() succeeded for a flatpak install without an origin")
	}
}

func TestPlanUsesConfiguredAURHelper(t *testing.T) {
	txn := planTxn(t, func(q *transaction.Queue) {
		q.Add(aurRef("spotify"), transaction.ActionInstall)
	})

	tests := []struct {
		helper string
		want   string
	}{
		{"", "yay"},
		{"yay", "yay"},
		{"paru", "paru"},
	}
	for _, tt := range tests {
		table := NewTable(Config{AURHelper: tt.helper})
		invs, err := table.Plan(txn)
		if err != nil {
			t.Fatalf("helper %q: Plan() error = %v", tt.helper, err)
		}
		if invs[0].Program != tt.want {
			t.Errorf("helper %q: Program = %q, want %q", tt.helper, invs[0].Program, tt.want)
		}
		joined := strings.Join(invs[0].Args, " ")
		if !strings.Contains(joined, "--sudo pkexec") {
			t.Errorf("helper %q: Args %q missing --sudo pkexec", tt.helper, joined)
		}
	}
}

func TestPlanRejectsUnsafeNames(t *testing.T) {
	table := NewTable(Config{})
	txn := planTxn(t, func(q *transaction.Queue) {
		q.Add(repoRef("vim; rm -rf /"), transaction.ActionInstall)
	})

	_, err := table.Plan(txn)
	var nameErr *NameError
	if !errors.As(err, &nameErr) {
		t.Fatalf("Plan() error = %v, want NameError", err)
	}
}

func TestPlanRejectsOversizedBatch(t *testing.T) {
	table := NewTable(Config{})
	txn := planTxn(t, func(q *transaction.Queue) {
		for i := 0; i <= maxNames; i++ {
			q.Add(repoRef(fmt.Sprintf("pkg%d", i)), transaction.ActionInstall)
		}
	})

	if _, err := table.Plan(txn); !errors.Is(err, ErrNotWhitelisted) {
		t.Fatalf("Plan() error = %v, want ErrNotWhitelisted", err)
	}
}

func TestCheckName(t *testing.T) {
	tests := []struct {
		name string
		ok   bool
	}{
		{"firefox", true},
		{"lib32-glibc", true},
		{"python-requests", true},
		{"gtk2+extra", true},
		{"org.mozilla.firefox", true},
		{"_underscore", true},
		{"@scoped", true},
		{"", false},
		{"-Syu", false},
		{"--noconfirm", false},
		{".hidden", false},
		{"../etc/passwd", false},
		{"foo bar", false},
		{"foo;reboot", false},
		{"$(reboot)", false},
		{"foo\nbar", false},
		{"foo/bar", false},
		{strings.Repeat("a", 129), false},
	}
	for _, tt := range tests {
		err := CheckName(tt.name)
		if (err == nil) != tt.ok {
			t.Errorf("CheckName(%q) error = %v, want ok=%v", tt.name, err, tt.ok)
		}
	}
}

func TestRuleArgsOrder(t *testing.T) {
	r := Rule{Template: []string{"-S", "--noprogressbar"}}
	got := strings.Join(r.Args([]string{"--needed"}, []string{"vim", "htop"}), " ")
	want := "-S --noprogressbar --needed vim htop"
	if got != want {
		t.Errorf("Args = %q, want %q", got, want)
	}
}

func TestValidate(t *testing.T) {
	table := NewTable(Config{})

	tests := []struct {
		name    string
		action  transaction.Action
		names   []string
		flags   []string
		wantErr bool
	}{
		{
			name:   "install",
			action: transaction.ActionInstall,
			names:  []string{"vim", "htop"},
			flags:  []string{"--needed", "--noconfirm"},
		},
		{
			name:   "remove",
			action: transaction.ActionRemove,
			names:  []string{"vim"},
			flags:  []string{"--noconfirm"},
		},
		{
			name:   "update without operands",
			action: transaction.ActionUpdate,
			flags:  []string{"--noconfirm"},
		},
		{
			name:    "update with operands",
			action:  transaction.ActionUpdate,
			names:   []string{"vim"},
			wantErr: true,
		},
		{
			name:    "install without operands",
			action:  transaction.ActionInstall,
			wantErr: true,
		},
		{
			name:    "unknown action",
			action:  transaction.Action("downgrade"),
			names:   []string{"vim"},
			wantErr: true,
		},
		{
			name:    "flag outside allowed set",
			action:  transaction.ActionInstall,
			names:   []string{"vim"},
			flags:   []string{"--dbpath"},
			wantErr: true,
		},
		{
			name:    "config override flag",
			action:  transaction.ActionInstall,
			names:   []string{"vim"},
			flags:   []string{"--config=/tmp/evil.conf"},
			wantErr: true,
		},
		{
			name:    "needed on remove",
			action:  transaction.ActionRemove,
			names:   []string{"vim"},
			flags:   []string{"--needed"},
			wantErr: true,
		},
		{
			name:    "operand shaped like a flag",
			action:  transaction.ActionInstall,
			names:   []string{"-Rns"},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule, err := table.Validate(tt.action, tt.names, tt.flags)
			if tt.wantErr {
				if err == nil {
					t.Fatal("Validate() succeeded, want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Validate() error = %v", err)
			}
			if rule.Program != "/usr/bin/pacman" {
				t.Errorf("rule.Program = %q, want /usr/bin/pacman", rule.Program)
			}
		})
	}
}

func TestValidateRejectsOversizedRequest(t *testing.T) {
	table := NewTable(Config{})
	names := make([]string, maxNames+1)
	for i := range names {
		names[i] = fmt.Sprintf("pkg%d", i)
	}
	if _, err := table.Validate(transaction.ActionInstall, names, nil); !errors.Is(err, ErrNotWhitelisted) {
		t.Fatalf("Validate() error = %v, want ErrNotWhitelisted", err)
	}
}
