// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"
	"strings"
	"testing"
)

func TestId_Constants(t *testing.T) {
	// Verify all IDs are unique and sequential
	ids := []Id{
		ConfigLoadFailedId,
		EnvironmentNotFoundId,
		EnvironmentNameTakenId,
		PluginNotFoundId,
		VersionUnsupportedId,
		InstallFailedId,
		SwitchInProgressId,
		ActivationFailedId,
		DetectionAmbiguousId,
	}

	seen := make(map[Id]bool)
	for _, id := range ids {
		if seen[id] {
			t.Errorf("duplicate ID: %d", id)
		}
		seen[id] = true
	}

	// Verify IDs start at 1 (iota + 1)
	if ConfigLoadFailedId != 1 {
		t.Errorf("ConfigLoadFailedId = %d, want 1", ConfigLoadFailedId)
	}
}

func TestGet_KnownIssues(t *testing.T) {
	for _, id := range []Id{EnvironmentNotFoundId, SwitchInProgressId, InstallFailedId} {
		issue := Get(id)
		if issue == nil {
			t.Fatalf("Get(%d) returned nil", id)
		}
		if issue.Id() != id {
			t.Errorf("Get(%d).Id() = %d", id, issue.Id())
		}
		if issue.MarkdownMsg() == "" {
			t.Errorf("issue %d has empty message", id)
		}
	}
}

func TestValues_CoversCatalog(t *testing.T) {
	vals := Values()
	if len(vals) != len(issues) {
		t.Errorf("Values() returned %d issues, catalog has %d", len(vals), len(issues))
	}
	// Sorted ascending by id.
	for i := 1; i < len(vals); i++ {
		if vals[i-1].Id() >= vals[i].Id() {
			t.Errorf("Values() not sorted at index %d", i)
		}
	}
}

func TestActionableError_ErrorAndFormat(t *testing.T) {
	cause := errors.New("descriptor missing")
	err := NewErrorContext().
		WithOperation("switch environment").
		WithResource("staging").
		WithSuggestion("Run 'devenv list' to see known environments").
		Wrap(cause).
		Build()

	if err == nil {
		t.Fatal("Build returned nil")
	}
	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to find the cause")
	}

	msg := err.Error()
	if !strings.Contains(msg, "failed to switch environment") || !strings.Contains(msg, "staging") {
		t.Errorf("unexpected message: %q", msg)
	}

	formatted := err.Format(false)
	if !strings.Contains(formatted, "devenv list") {
		t.Errorf("expected suggestion in formatted output: %q", formatted)
	}

	verbose := err.Format(true)
	if !strings.Contains(verbose, "Error chain:") {
		t.Errorf("expected error chain in verbose output: %q", verbose)
	}
}

func TestErrorContext_RequiresOperation(t *testing.T) {
	if err := NewErrorContext().WithResource("x").BuildError(); err != nil {
		t.Errorf("expected nil without operation, got %v", err)
	}
}

func TestWrapWithOperation_NilPassthrough(t *testing.T) {
	if got := WrapWithOperation(nil, "anything"); got != nil {
		t.Errorf("expected nil, got %v", got)
	}
}
