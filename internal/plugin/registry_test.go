// SPDX-License-Identifier: MPL-2.0

package plugin

import (
	"context"
	"errors"
	"testing"
)

// stubProvider satisfies Provider for registry tests without running anything.
type stubProvider struct{}

func (*stubProvider) Install(context.Context, string) error { return nil }
func (*stubProvider) Update(context.Context, string) error  { return nil }

func (*stubProvider) InstallDependencies(context.Context, string, string) error { return nil }

func (*stubProvider) Probe(context.Context, string) (ProbeResult, error) {
	return ProbeResult{Healthy: true}, nil
}

func (*stubProvider) ActivationEnv(string) (map[string]string, error) {
	return map[string]string{}, nil
}

func (*stubProvider) Deactivate(context.Context, string) error { return nil }

func descriptor(name Name, requires ...Name) *Descriptor {
	return &Descriptor{
		Name:     name,
		Supports: ">=1.0.0",
		Requires: requires,
		Provider: &stubProvider{},
	}
}

func TestRegistry_RegisterAndLookup(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	d := descriptor("node")
	if err := r.Register(d); err != nil {
		t.Fatalf("register: %v", err)
	}

	got, err := r.Lookup("node")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got.Name != "node" {
		t.Errorf("expected node, got %s", got.Name)
	}
}

func TestRegistry_LookupUnknown(t *testing.T) {
	t.Parallel()

	_, err := NewRegistry().Lookup("zig")
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, ErrPluginNotFound) {
		t.Errorf("expected ErrPluginNotFound, got %v", err)
	}
	var nfErr *NotFoundError
	if !errors.As(err, &nfErr) || nfErr.Name != "zig" {
		t.Errorf("expected NotFoundError for zig, got %v", err)
	}
}

func TestRegistry_IdenticalReRegistrationIsNoop(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	d := descriptor("python")
	if err := r.Register(d); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := r.Register(d); err != nil {
		t.Fatalf("idempotent re-register should succeed: %v", err)
	}
}

func TestRegistry_ConflictingRegistrationFails(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	if err := r.Register(descriptor("python")); err != nil {
		t.Fatalf("first register: %v", err)
	}

	other := descriptor("python")
	other.Supports = ">=2.0.0"
	err := r.Register(other)
	if err == nil {
		t.Fatal("expected duplicate error")
	}
	if !errors.Is(err, ErrDuplicatePlugin) {
		t.Errorf("expected ErrDuplicatePlugin, got %v", err)
	}
}

func TestRegistry_RejectsRequirementCycle(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	if err := r.Register(descriptor("a", "b")); err != nil {
		t.Fatalf("register a: %v", err)
	}
	if err := r.Register(descriptor("b", "c")); err != nil {
		t.Fatalf("register b: %v", err)
	}

	// c -> a closes the loop a -> b -> c -> a.
	if err := r.Register(descriptor("c", "a")); err == nil {
		t.Fatal("expected cycle rejection")
	}

	// The failed registration must not leave c behind.
	if _, err := r.Lookup("c"); !errors.Is(err, ErrPluginNotFound) {
		t.Errorf("expected c to be absent after rejected registration, got %v", err)
	}
}

func TestRegistry_RejectsSelfRequirement(t *testing.T) {
	t.Parallel()

	if err := NewRegistry().Register(descriptor("a", "a")); err == nil {
		t.Fatal("expected self-requirement rejection")
	}
}

func TestRegistry_Resolve(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	d := descriptor("node")
	d.Supports = ">=14.0.0"
	if err := r.Register(d); err != nil {
		t.Fatalf("register: %v", err)
	}

	tests := []struct {
		name      string
		requested string
		wantErr   error
	}{
		{name: "exact version in range", requested: "20.10.0"},
		{name: "caret range overlaps", requested: "^18.0.0"},
		{name: "empty request matches", requested: ""},
		{name: "below supported range", requested: "<14.0.0", wantErr: ErrVersionUnsupported},
		{name: "exact version below range", requested: "12.22.0", wantErr: ErrVersionUnsupported},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := r.Resolve("node", tt.requested)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestRegistry_DependenciesOf(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	if err := r.Register(descriptor("base")); err != nil {
		t.Fatalf("register base: %v", err)
	}
	if err := r.Register(descriptor("mid", "base")); err != nil {
		t.Fatalf("register mid: %v", err)
	}
	if err := r.Register(descriptor("top", "mid", "base")); err != nil {
		t.Fatalf("register top: %v", err)
	}

	deps, err := r.DependenciesOf("top")
	if err != nil {
		t.Fatalf("dependencies: %v", err)
	}
	if len(deps) != 2 || deps[0] != "base" || deps[1] != "mid" {
		t.Errorf("expected [base mid], got %v", deps)
	}
}

func TestRegistry_Names(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	for _, n := range []Name{"ruby", "node", "python"} {
		if err := r.Register(descriptor(n)); err != nil {
			t.Fatalf("register %s: %v", n, err)
		}
	}
	names := r.Names()
	if len(names) != 3 || names[0] != "node" || names[1] != "python" || names[2] != "ruby" {
		t.Errorf("expected sorted names, got %v", names)
	}
}

func TestName_IsValid(t *testing.T) {
	t.Parallel()

	if ok, _ := Name("node").IsValid(); !ok {
		t.Error("expected node to be valid")
	}
	ok, errs := Name("").IsValid()
	if ok {
		t.Fatal("expected empty name to be invalid")
	}
	if len(errs) != 1 || !errors.Is(errs[0], ErrInvalidPluginName) {
		t.Errorf("expected ErrInvalidPluginName, got %v", errs)
	}
}
