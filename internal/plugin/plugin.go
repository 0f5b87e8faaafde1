// SPDX-License-Identifier: MPL-2.0

// Package plugin defines the language-plugin contract and the registry that
// resolves detected languages to installable providers. A plugin declares
// which versions it supports and which other plugins it requires; the
// registry enforces name uniqueness and keeps the requirement graph acyclic.
package plugin

import (
	"context"
	"errors"
	"fmt"

	"github.com/BibhabenduMukherjee/dev-env-manager/internal/semver"
)

// Sentinel errors wrapped by the typed errors below.
var (
	ErrDuplicatePlugin    = errors.New("duplicate plugin")
	ErrPluginNotFound     = errors.New("plugin not found")
	ErrVersionUnsupported = errors.New("version unsupported")
	ErrInvalidPluginName  = errors.New("invalid plugin name")
)

type (
	// Name identifies a plugin. Plugin names double as language names in
	// detection profiles ("node", "python", "golang").
	Name string

	// Descriptor declares a plugin: what it is called, which version range
	// it can install, what it depends on, and the provider that does the work.
	Descriptor struct {
		// Name is the unique plugin name.
		Name Name
		// Supports is the semver range of versions this plugin can install.
		Supports semver.SemVerConstraint
		// Requires lists plugins that must be installed before this one.
		// The registry rejects registrations that would create a cycle.
		Requires []Name
		// Provider performs installs, health probes, and activation.
		Provider Provider
		// Fallback, when non-nil, is tried once after the primary provider
		// fails permanently.
		Fallback Provider
	}

	// Provider is the installable backend of a plugin. Implementations run
	// version managers (nvm, pyenv, rustup) through the process runner and
	// must be safe for concurrent use across distinct versions.
	Provider interface {
		// Install installs the given version. A nil return means the version
		// is present and usable afterward; Install must be idempotent.
		Install(ctx context.Context, version string) error
		// Update refreshes an installed version in place (patch releases,
		// toolchain components).
		Update(ctx context.Context, version string) error
		// InstallDependencies installs project-level dependencies for an
		// environment rooted at projectRoot (npm install, pip install, ...).
		InstallDependencies(ctx context.Context, projectRoot, version string) error
		// Probe checks that an installed version responds. It returns the
		// observed version string so callers can report drift.
		Probe(ctx context.Context, version string) (ProbeResult, error)
		// ActivationEnv returns the environment variable mutations that make
		// the given version active in a shell.
		ActivationEnv(version string) (map[string]string, error)
		// Deactivate tears down manager-side state for the given version when
		// its environment stops being active. It runs best-effort after a
		// switch commits; providers whose activation is purely env-var based
		// may treat it as a no-op.
		Deactivate(ctx context.Context, version string) error
	}

	// ProbeResult is the outcome of a provider health probe.
	ProbeResult struct {
		// Healthy reports whether the probe succeeded.
		Healthy bool
		// ObservedVersion is the version the runtime reported, which may
		// drift from the version the environment declares.
		ObservedVersion string
		// Detail carries a human-readable explanation when unhealthy.
		Detail string
	}

	// DuplicatePluginError is returned when a plugin name is registered twice
	// with different descriptors. It wraps ErrDuplicatePlugin.
	DuplicatePluginError struct {
		Name Name
	}

	// NotFoundError is returned when a lookup names an unregistered plugin.
	// It wraps ErrPluginNotFound.
	NotFoundError struct {
		Name Name
	}

	// VersionUnsupportedError is returned when a requested version range has
	// no overlap with the plugin's supported range. It wraps
	// ErrVersionUnsupported.
	VersionUnsupportedError struct {
		Name      Name
		Requested string
		Supports  semver.SemVerConstraint
	}

	// InvalidNameError is returned when a Name value is empty.
	// It wraps ErrInvalidPluginName.
	InvalidNameError struct {
		Value Name
	}
)

// Error implements the error interface.
func (e *DuplicatePluginError) Error() string {
	return fmt.Sprintf("plugin %q is already registered with a different descriptor", e.Name)
}

// Unwrap returns ErrDuplicatePlugin so callers can use errors.Is for programmatic detection.
func (e *DuplicatePluginError) Unwrap() error { return ErrDuplicatePlugin }

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no plugin registered for %q", e.Name)
}

// Unwrap returns ErrPluginNotFound so callers can use errors.Is for programmatic detection.
func (e *NotFoundError) Unwrap() error { return ErrPluginNotFound }

// Error implements the error interface.
func (e *VersionUnsupportedError) Error() string {
	return fmt.Sprintf("plugin %q supports %q, which does not satisfy requested %q",
		e.Name, e.Supports, e.Requested)
}

// Unwrap returns ErrVersionUnsupported so callers can use errors.Is for programmatic detection.
func (e *VersionUnsupportedError) Unwrap() error { return ErrVersionUnsupported }

// Error implements the error interface.
func (e *InvalidNameError) Error() string {
	return fmt.Sprintf("invalid plugin name %q: must be non-empty", e.Value)
}

// Unwrap returns ErrInvalidPluginName so callers can use errors.Is for programmatic detection.
func (e *InvalidNameError) Unwrap() error { return ErrInvalidPluginName }

// String returns the string representation of the Name.
func (n Name) String() string { return string(n) }

// IsValid returns true if the Name is non-empty, or false with the
// validation errors.
func (n Name) IsValid() (bool, []error) {
	if n == "" {
		return false, []error{&InvalidNameError{Value: n}}
	}
	return true, nil
}

// Validate checks the descriptor's name, supported range, and requirement
// names before registration.
func (d *Descriptor) Validate() error {
	if ok, errs := d.Name.IsValid(); !ok {
		return errs[0]
	}
	if d.Provider == nil {
		return fmt.Errorf("plugin %q has no provider", d.Name)
	}
	if d.Supports != "" {
		if ok, errs := d.Supports.IsValid(); !ok {
			return fmt.Errorf("plugin %q: %w", d.Name, errs[0])
		}
	}
	for _, req := range d.Requires {
		if ok, errs := req.IsValid(); !ok {
			return fmt.Errorf("plugin %q requirement: %w", d.Name, errs[0])
		}
		if req == d.Name {
			return fmt.Errorf("plugin %q cannot require itself", d.Name)
		}
	}
	return nil
}
