// SPDX-License-Identifier: MPL-2.0

// Package envstate owns named development environments: their lifecycle
// states, on-disk descriptors, and the exclusive switch operation that makes
// one environment active at a time.
//
// The lifecycle vocabulary is deliberately compact. An environment that
// exists but is not active is simply Ready (there is no separate inactive
// state), an environment that was never set up has no descriptor at all,
// and removal deletes the descriptor rather than leaving a tombstone
// status behind. Removed names are therefore immediately reusable.
package envstate

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BibhabenduMukherjee/dev-env-manager/internal/platform"
)

// Environment statuses. Creating covers detection and install; Ready means
// installed and activatable; Active is at most one environment at a time;
// Degraded means usable but with failed components or health issues; Failed
// means setup did not produce a usable environment.
const (
	StatusCreating EnvStatus = "creating"
	StatusReady    EnvStatus = "ready"
	StatusActive   EnvStatus = "active"
	StatusDegraded EnvStatus = "degraded"
	StatusFailed   EnvStatus = "failed"
)

// Sentinel errors wrapped by the typed errors below.
var (
	ErrInvalidEnvName      = errors.New("invalid environment name")
	ErrInvalidEnvStatus    = errors.New("invalid environment status")
	ErrInvalidStatusChange = errors.New("invalid status change")
)

type (
	// EnvName identifies an environment. Names double as descriptor file
	// stems, so they must be non-empty and free of path separators.
	EnvName string

	// EnvStatus is the lifecycle state of an environment.
	EnvStatus string

	// InvalidEnvNameError is returned when an EnvName value is empty or
	// contains path separators. It wraps ErrInvalidEnvName.
	InvalidEnvNameError struct {
		Value EnvName
	}

	// InvalidEnvStatusError is returned when an EnvStatus value is not one
	// of the defined statuses. It wraps ErrInvalidEnvStatus.
	InvalidEnvStatusError struct {
		Value EnvStatus
	}

	// InvalidStatusChangeError reports a disallowed lifecycle transition.
	// It wraps ErrInvalidStatusChange.
	InvalidStatusChangeError struct {
		Name EnvName
		From EnvStatus
		To   EnvStatus
	}

	// Environment is the persisted description of one development
	// environment. TOML tags shape the on-disk descriptor.
	Environment struct {
		// Name is the unique environment name.
		Name EnvName `toml:"name"`
		// ProjectRoot is the project directory the environment was built for.
		ProjectRoot string `toml:"project_root"`
		// Status is the lifecycle state.
		Status EnvStatus `toml:"status"`
		// Languages maps language name to the installed version or range.
		Languages map[string]string `toml:"languages"`
		// Frameworks maps detected framework name to version or range.
		Frameworks map[string]string `toml:"frameworks,omitempty"`
		// Activation holds the environment variable mutations that activate
		// this environment in a shell.
		Activation map[string]string `toml:"activation"`
		// CreatedAt is when the environment was first set up.
		CreatedAt time.Time `toml:"created_at"`
		// UpdatedAt is when the descriptor last changed.
		UpdatedAt time.Time `toml:"updated_at"`
	}
)

// Error implements the error interface.
func (e *InvalidEnvNameError) Error() string {
	return fmt.Sprintf("invalid environment name %q: must be non-empty and free of path separators", e.Value)
}

// Unwrap returns ErrInvalidEnvName so callers can use errors.Is for programmatic detection.
func (e *InvalidEnvNameError) Unwrap() error { return ErrInvalidEnvName }

// Error implements the error interface.
func (e *InvalidEnvStatusError) Error() string {
	return fmt.Sprintf("invalid environment status %q (valid: %s, %s, %s, %s, %s)",
		e.Value, StatusCreating, StatusReady, StatusActive, StatusDegraded, StatusFailed)
}

// Unwrap returns ErrInvalidEnvStatus so callers can use errors.Is for programmatic detection.
func (e *InvalidEnvStatusError) Unwrap() error { return ErrInvalidEnvStatus }

// Error implements the error interface.
func (e *InvalidStatusChangeError) Error() string {
	return fmt.Sprintf("environment %q: invalid status change %s -> %s", e.Name, e.From, e.To)
}

// Unwrap returns ErrInvalidStatusChange so callers can use errors.Is for programmatic detection.
func (e *InvalidStatusChangeError) Unwrap() error { return ErrInvalidStatusChange }

// String returns the string representation of the EnvName.
func (n EnvName) String() string { return string(n) }

// IsValid returns true if the EnvName is usable as a descriptor file stem,
// or false with the validation errors.
func (n EnvName) IsValid() (bool, []error) {
	if n == "" || strings.ContainsAny(string(n), "/\\") || n == "." || n == ".." {
		return false, []error{&InvalidEnvNameError{Value: n}}
	}
	if platform.IsWindowsReservedName(string(n)) {
		return false, []error{&InvalidEnvNameError{Value: n}}
	}
	return true, nil
}

// String returns the string representation of the EnvStatus.
func (s EnvStatus) String() string { return string(s) }

// Validate returns nil if the EnvStatus is one of the defined statuses,
// or a validation error if it is not.
func (s EnvStatus) Validate() error {
	switch s {
	case StatusCreating, StatusReady, StatusActive, StatusDegraded, StatusFailed:
		return nil
	default:
		return &InvalidEnvStatusError{Value: s}
	}
}

// CanChangeTo reports whether the lifecycle permits moving to the target
// status. Failed and Degraded environments can be rebuilt (back to
// Creating); Degraded never promotes to Active directly, only through a
// setup re-run that restores it to Ready first. Everything else follows
// Creating -> Ready/Degraded/Failed and the Active swap cycle.
func (s EnvStatus) CanChangeTo(to EnvStatus) bool {
	if s == to {
		return true
	}
	switch s {
	case StatusCreating:
		return to == StatusReady || to == StatusDegraded || to == StatusFailed
	case StatusReady:
		return to == StatusActive || to == StatusDegraded || to == StatusCreating
	case StatusActive:
		return to == StatusReady || to == StatusDegraded
	case StatusDegraded:
		return to == StatusReady || to == StatusCreating
	case StatusFailed:
		return to == StatusCreating
	default:
		return false
	}
}

// ChangeStatus moves the environment to a new status, enforcing lifecycle
// rules, and bumps UpdatedAt.
func (e *Environment) ChangeStatus(to EnvStatus) error {
	if err := to.Validate(); err != nil {
		return err
	}
	if !e.Status.CanChangeTo(to) {
		return &InvalidStatusChangeError{Name: e.Name, From: e.Status, To: to}
	}
	e.Status = to
	e.UpdatedAt = time.Now().UTC()
	return nil
}

// Activatable reports whether the environment can become active. Degraded
// environments are not activatable; a setup re-run has to clear them first.
func (e *Environment) Activatable() bool {
	return e.Status == StatusReady || e.Status == StatusActive
}
