package provider

import (
	"context"
	"errors"
	"testing"

	"borealis/internal/runner"
)

const pacmanSiSample = `Repository      : extra
Name            : jq
Version         : 1.7.1-2
Description     : Command-line JSON processor
Architecture    : x86_64
URL             : https://jqlang.github.io/jq/
Licenses        : custom
Depends On      : glibc  oniguruma
Download Size   : 443.82 KiB
Installed Size  : 1134.16 KiB
`

const pacmanQiSample = `Name            : jq
Version         : 1.7.1-1
Description     : Command-line JSON processor
Architecture    : x86_64
Install Date    : Mon 05 May 2025 10:12:01 AM UTC
Install Reason  : Explicitly installed
`

// fakeExec serves canned output keyed by the rendered command line. Commands
// with no canned output fail like pacman does for unknown targets.
type fakeExec struct {
	outputs map[string]string
	errs    map[string]error
	calls   []string
}

func (f *fakeExec) Capture(_ context.Context, spec runner.Spec) (string, error) {
	key := spec.String()
	f.calls = append(f.calls, key)
	if err, ok := f.errs[key]; ok {
		return "", err
	}
	out, ok := f.outputs[key]
	if !ok {
		return "", &runner.ExitError{Program: spec.Program, Code: 1, Stderr: "error: target not found"}
	}
	return out, nil
}

func TestInfoField(t *testing.T) {
	tests := []struct {
		name string
		key  string
		want string
	}{
		{"version", "Version", "1.7.1-2"},
		{"name", "Name", "jq"},
		{"url keeps scheme colon", "URL", "https://jqlang.github.io/jq/"},
		{"missing key", "Packager", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := infoField(pacmanSiSample, tt.key); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestScanInstalled(t *testing.T) {
	out := "bash 5.2.026-2\njq 1.7.1-1\n\nmalformed\ncoreutils 9.5-1\n"

	var refs []Ref
	scanInstalled(out, SourceRepo, func(r Ref, err error) bool {
		refs = append(refs, r)
		return true
	})

	if len(refs) != 3 {
		t.Fatalf("expected 3 refs, got %d: %+v", len(refs), refs)
	}
	if refs[1].Name != "jq" || refs[1].Installed != "1.7.1-1" {
		t.Errorf("unexpected ref: %+v", refs[1])
	}
	for _, r := range refs {
		if r.Source != SourceRepo {
			t.Errorf("expected repo source, got %s", r.Source)
		}
	}
}

func TestScanInstalledStopsWhenConsumerDoes(t *testing.T) {
	out := "a 1\nb 2\nc 3\n"

	count := 0
	scanInstalled(out, SourceRepo, func(Ref, error) bool {
		count++
		return count < 2
	})

	if count != 2 {
		t.Errorf("expected scan to stop after 2 yields, got %d", count)
	}
}

func TestPacmanResolve(t *testing.T) {
	fake := &fakeExec{outputs: map[string]string{
		"pacman -Si jq": pacmanSiSample,
		"pacman -Qi jq": pacmanQiSample,
	}}
	p := NewPacman(fake)

	ref, err := p.Resolve(context.Background(), "jq")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if ref.Name != "jq" || ref.Source != SourceRepo {
		t.Errorf("unexpected identity: %+v", ref)
	}
	if ref.Available != "1.7.1-2" {
		t.Errorf("expected available 1.7.1-2, got %q", ref.Available)
	}
	if ref.Installed != "1.7.1-1" {
		t.Errorf("expected installed 1.7.1-1, got %q", ref.Installed)
	}
}

func TestPacmanResolveInstalledOnly(t *testing.T) {
	// Package no longer in the sync database but still installed locally.
	fake := &fakeExec{outputs: map[string]string{
		"pacman -Qi oldpkg": "Name            : oldpkg\nVersion         : 0.9-1\n",
	}}
	p := NewPacman(fake)

	ref, err := p.Resolve(context.Background(), "oldpkg")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if ref.Installed != "0.9-1" || ref.Available != "" {
		t.Errorf("unexpected versions: %+v", ref)
	}
}

func TestPacmanResolveNotFound(t *testing.T) {
	p := NewPacman(&fakeExec{})

	_, err := p.Resolve(context.Background(), "no-such-package")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestPacmanResolveToolFailure(t *testing.T) {
	fake := &fakeExec{errs: map[string]error{
		"pacman -Si jq": errors.New("exec format error"),
	}}
	p := NewPacman(fake)

	_, err := p.Resolve(context.Background(), "jq")
	if err == nil {
		t.Fatal("expected error when the tool cannot run")
	}
	if errors.Is(err, ErrNotFound) {
		t.Errorf("tool failure must not look like a missing package: %v", err)
	}
}

func TestPacmanInstalledRestartable(t *testing.T) {
	fake := &fakeExec{outputs: map[string]string{
		"pacman -Qn": "a 1.0\nb 2.0\nc 3.0\n",
	}}
	p := NewPacman(fake)

	count := 0
	for range p.Installed(context.Background()) {
		count++
		if count == 2 {
			break
		}
	}
	if count != 2 {
		t.Fatalf("expected early stop after 2, got %d", count)
	}

	var names []string
	for ref, err := range p.Installed(context.Background()) {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		names = append(names, ref.Name)
	}
	if len(names) != 3 {
		t.Errorf("restarted sequence should yield all 3, got %v", names)
	}

	queries := 0
	for _, call := range fake.calls {
		if call == "pacman -Qn" {
			queries++
		}
	}
	if queries != 2 {
		t.Errorf("expected 2 backend queries for 2 ranges, got %d", queries)
	}
}

func TestPacmanInstalledQueryError(t *testing.T) {
	fake := &fakeExec{errs: map[string]error{
		"pacman -Qn": errors.New("database locked"),
	}}
	p := NewPacman(fake)

	var got error
	for _, err := range p.Installed(context.Background()) {
		got = err
		break
	}
	if got == nil {
		t.Fatal("expected query error to be yielded")
	}
}
