// SPDX-License-Identifier: MPL-2.0

// Package runner provides the process-execution capability consumed by the
// installer and health probes: run an external command or portable shell
// script with environment, working directory, and timeout, and capture the
// outcome. Callers depend on the Runner interface, never on os/exec directly.
package runner

import (
	"context"
	"errors"
	"time"
)

// ErrNoShell is returned when no usable shell can be found for script execution.
var ErrNoShell = errors.New("no shell found")

type (
	// Spec describes a single external invocation. Exactly one of Argv or
	// Script must be set: Argv runs a binary directly, Script runs through
	// a shell (system shell for ExecRunner, built-in interpreter for
	// VirtualRunner).
	Spec struct {
		// Argv is the command and its arguments.
		Argv []string
		// Script is a shell script body.
		Script string
		// Env contains additional environment variables (merged over the
		// inherited environment).
		Env map[string]string
		// Dir overrides the working directory.
		Dir string
		// Timeout bounds the invocation; zero means no per-invocation bound
		// beyond the caller's context.
		Timeout time.Duration
	}

	// Result contains the outcome of an invocation.
	Result struct {
		// ExitCode is the process exit code; -1 when the process never ran.
		ExitCode int
		// Stdout contains captured standard output.
		Stdout string
		// Stderr contains captured standard error.
		Stderr string
		// Duration is the wall-clock time the invocation took.
		Duration time.Duration
	}

	// Runner executes external invocations.
	Runner interface {
		// Run executes the spec and returns its result. A non-zero exit code
		// is reported via Result, not via the error; the error is reserved
		// for failures to execute at all (missing binary, timeout, bad spec).
		Run(ctx context.Context, spec Spec) (*Result, error)
	}
)

// Success reports whether the invocation ran and exited zero.
func (r *Result) Success() bool {
	return r != nil && r.ExitCode == 0
}

// EnvToSlice converts a map of environment variables to KEY=VALUE form.
func EnvToSlice(env map[string]string) []string {
	result := make([]string, 0, len(env))
	for k, v := range env {
		result = append(result, k+"="+v)
	}
	return result
}

// IsTimeout reports whether err stems from a deadline, either the spec's
// own timeout or the caller's context.
func IsTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}
