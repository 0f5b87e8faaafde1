// SPDX-License-Identifier: MPL-2.0

package engine

import (
	"errors"
	"fmt"

	"github.com/BibhabenduMukherjee/dev-env-manager/internal/detect"
	"github.com/BibhabenduMukherjee/dev-env-manager/internal/envstate"
	"github.com/BibhabenduMukherjee/dev-env-manager/internal/installer"
	"github.com/BibhabenduMukherjee/dev-env-manager/internal/plugin"
)

// Error kinds classify engine failures for callers that branch on failure
// mode (exit codes, retry decisions) without string matching.
const (
	KindConfiguration      Kind = "configuration"
	KindDetectionAmbiguous Kind = "detection_ambiguous"
	KindPluginNotFound     Kind = "plugin_not_found"
	KindVersionUnsupported Kind = "version_unsupported"
	KindInstallFailed      Kind = "install_failed"
	KindActivationFailed   Kind = "activation_failed"
	KindSwitchInProgress   Kind = "switch_in_progress"
	KindEnvNotFound        Kind = "environment_not_found"
	KindEnvNameTaken       Kind = "environment_name_taken"
	KindInternal           Kind = "internal"
)

type (
	// Kind is the failure classification of an engine error.
	Kind string

	// Error is the engine's error envelope: a classification plus the
	// underlying cause.
	Error struct {
		Kind Kind
		Err  error
	}
)

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// String returns the string representation of the Kind.
func (k Kind) String() string { return string(k) }

// classify wraps err in an Error with the kind derived from the error chain.
// A nil err stays nil; an already-classified error passes through.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var already *Error
	if errors.As(err, &already) {
		return err
	}
	return &Error{Kind: kindOf(err), Err: err}
}

func kindOf(err error) Kind {
	switch {
	case errors.Is(err, detect.ErrDetectionAmbiguous):
		return KindDetectionAmbiguous
	case errors.Is(err, plugin.ErrPluginNotFound):
		return KindPluginNotFound
	case errors.Is(err, plugin.ErrVersionUnsupported):
		return KindVersionUnsupported
	case errors.Is(err, envstate.ErrSwitchInProgress):
		return KindSwitchInProgress
	case errors.Is(err, envstate.ErrActivationFailed), errors.Is(err, envstate.ErrNotActivatable):
		return KindActivationFailed
	case errors.Is(err, envstate.ErrEnvNotFound):
		return KindEnvNotFound
	case errors.Is(err, envstate.ErrEnvNameTaken), errors.Is(err, envstate.ErrInvalidEnvName):
		return KindEnvNameTaken
	case errors.Is(err, installer.ErrDependencyFailed):
		return KindInstallFailed
	default:
		return KindInternal
	}
}

// KindOf returns the kind of an engine error, or KindInternal for anything
// else.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
