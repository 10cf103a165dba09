package provider

import (
	"context"
	"errors"
	"testing"
)

const flatpakInfoSample = `Firefox - Web Browser

          ID: org.mozilla.firefox
         Ref: app/org.mozilla.firefox/x86_64/stable
        Arch: x86_64
      Branch: stable
     Version: 128.0.3
     License: MPL-2.0
      Origin: flathub
  Collection: org.flathub.Stable
`

const flatpakRemoteInfoSample = `Firefox - Web Browser

          ID: org.mozilla.firefox
         Ref: app/org.mozilla.firefox/x86_64/stable
        Arch: x86_64
      Branch: stable
     Version: 129.0
     License: MPL-2.0
`

func TestFlatpakField(t *testing.T) {
	tests := []struct {
		name string
		key  string
		want string
	}{
		{"id", "ID", "org.mozilla.firefox"},
		{"version", "Version", "128.0.3"},
		{"origin", "Origin", "flathub"},
		{"missing", "Sdk", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := flatpakField(flatpakInfoSample, tt.key); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestParseFlatpakListLine(t *testing.T) {
	tests := []struct {
		name string
		line string
		want Ref
		ok   bool
	}{
		{
			name: "full line",
			line: "org.mozilla.firefox\t128.0.3\tflathub",
			want: Ref{Name: "org.mozilla.firefox", Source: SourceFlatpak, Installed: "128.0.3", Origin: "flathub"},
			ok:   true,
		},
		{
			name: "missing version",
			line: "org.gnome.Calculator\t\tflathub",
			want: Ref{Name: "org.gnome.Calculator", Source: SourceFlatpak, Installed: "unknown", Origin: "flathub"},
			ok:   true,
		},
		{
			name: "blank line",
			line: "   ",
			ok:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseFlatpakListLine(tt.line)
			if ok != tt.ok {
				t.Fatalf("expected ok=%v, got %v", tt.ok, ok)
			}
			if ok && got != tt.want {
				t.Errorf("expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestFlatpakResolveInstalledAndRemote(t *testing.T) {
	fake := &fakeExec{outputs: map[string]string{
		"flatpak info org.mozilla.firefox":                         flatpakInfoSample,
		"flatpak remote-info --cached flathub org.mozilla.firefox": flatpakRemoteInfoSample,
	}}
	f := NewFlatpak(fake, "")

	ref, err := f.Resolve(context.Background(), "org.mozilla.firefox")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if ref.Installed != "128.0.3" {
		t.Errorf("expected installed 128.0.3, got %q", ref.Installed)
	}
	if ref.Available != "129.0" {
		t.Errorf("expected available 129.0, got %q", ref.Available)
	}
	if ref.Origin != "flathub" {
		t.Errorf("expected origin flathub, got %q", ref.Origin)
	}
}

func TestFlatpakResolveRemoteOnly(t *testing.T) {
	fake := &fakeExec{outputs: map[string]string{
		"flatpak remote-info --cached flathub org.mozilla.firefox": flatpakRemoteInfoSample,
	}}
	f := NewFlatpak(fake, "flathub")

	ref, err := f.Resolve(context.Background(), "org.mozilla.firefox")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if ref.IsInstalled() {
		t.Errorf("uninstalled app reported as installed: %+v", ref)
	}
	if ref.Origin != "flathub" {
		t.Errorf("expected default origin, got %q", ref.Origin)
	}
}

func TestFlatpakResolveNotFound(t *testing.T) {
	f := NewFlatpak(&fakeExec{}, "")

	_, err := f.Resolve(context.Background(), "org.example.Missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestFlatpakInstalled(t *testing.T) {
	fake := &fakeExec{outputs: map[string]string{
		"flatpak list --app --columns=application,version,origin": "org.mozilla.firefox\t128.0.3\tflathub\norg.gnome.Calculator\t48.1\tflathub\n",
	}}
	f := NewFlatpak(fake, "")

	var refs []Ref
	for ref, err := range f.Installed(context.Background()) {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		refs = append(refs, ref)
	}

	if len(refs) != 2 {
		t.Fatalf("expected 2 refs, got %d", len(refs))
	}
	if refs[0].Name != "org.mozilla.firefox" || refs[0].Origin != "flathub" {
		t.Errorf("unexpected first ref: %+v", refs[0])
	}
}
