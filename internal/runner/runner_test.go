// SPDX-License-Identifier: MPL-2.0

package runner

import (
	"context"
	"runtime"
	"slices"
	"sort"
	"strings"
	"testing"
	"time"
)

func TestEnvToSlice(t *testing.T) {
	t.Parallel()
	got := EnvToSlice(map[string]string{"A": "1", "B": "2"})
	sort.Strings(got)
	if !slices.Equal(got, []string{"A=1", "B=2"}) {
		t.Errorf("unexpected env slice: %v", got)
	}
}

func TestExecRunner_Argv(t *testing.T) {
	t.Parallel()
	if runtime.GOOS == "windows" {
		t.Skip("unix-only fixture")
	}
	r := NewExecRunner()
	res, err := r.Run(context.Background(), Spec{Argv: []string{"echo", "hello"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ExitCode != 0 {
		t.Errorf("expected exit 0, got %d (stderr: %s)", res.ExitCode, res.Stderr)
	}
	if strings.TrimSpace(res.Stdout) != "hello" {
		t.Errorf("expected hello, got %q", res.Stdout)
	}
}

func TestExecRunner_ScriptNonZeroExit(t *testing.T) {
	t.Parallel()
	if runtime.GOOS == "windows" {
		t.Skip("unix-only fixture")
	}
	r := NewExecRunner()
	res, err := r.Run(context.Background(), Spec{Script: "exit 3"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ExitCode != 3 {
		t.Errorf("expected exit 3, got %d", res.ExitCode)
	}
}

func TestExecRunner_EmptySpec(t *testing.T) {
	t.Parallel()
	r := NewExecRunner()
	if _, err := r.Run(context.Background(), Spec{}); err == nil {
		t.Fatal("expected error for empty spec")
	}
}

func TestExecRunner_Timeout(t *testing.T) {
	t.Parallel()
	if runtime.GOOS == "windows" {
		t.Skip("unix-only fixture")
	}
	r := NewExecRunner()
	_, err := r.Run(context.Background(), Spec{
		Script:  "sleep 5",
		Timeout: 50 * time.Millisecond,
	})
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !IsTimeout(err) {
		t.Errorf("expected IsTimeout(err), got %v", err)
	}
}

func TestVirtualRunner_Script(t *testing.T) {
	t.Parallel()
	r := NewVirtualRunner()
	res, err := r.Run(context.Background(), Spec{
		Script: "echo virtual-$GREETING",
		Env:    map[string]string{"GREETING": "ok"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(res.Stdout) != "virtual-ok" {
		t.Errorf("unexpected stdout: %q", res.Stdout)
	}
}

func TestVirtualRunner_ExitCode(t *testing.T) {
	t.Parallel()
	r := NewVirtualRunner()
	res, err := r.Run(context.Background(), Spec{Script: "exit 7"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ExitCode != 7 {
		t.Errorf("expected exit 7, got %d", res.ExitCode)
	}
}

func TestVirtualRunner_SyntaxError(t *testing.T) {
	t.Parallel()
	r := NewVirtualRunner()
	if _, err := r.Run(context.Background(), Spec{Script: "if then fi ((("}); err == nil {
		t.Fatal("expected syntax error")
	}
}

func TestVirtualRunner_RejectsArgv(t *testing.T) {
	t.Parallel()
	r := NewVirtualRunner()
	if _, err := r.Run(context.Background(), Spec{Argv: []string{"echo"}}); err == nil {
		t.Fatal("expected error for argv spec")
	}
}
