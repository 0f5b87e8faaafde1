// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/BibhabenduMukherjee/dev-env-manager/internal/engine"
	"github.com/BibhabenduMukherjee/dev-env-manager/internal/issue"
)

// Exit codes by failure kind, so scripts can branch on what went wrong.
const (
	exitGeneral            = 1
	exitConfiguration      = 2
	exitDetectionAmbiguous = 3
	exitPluginNotFound     = 4
	exitVersionUnsupported = 5
	exitInstallFailed      = 6
	exitActivationFailed   = 7
	exitSwitchInProgress   = 8
	exitEnvNotFound        = 9
	exitEnvNameTaken       = 10
)

// ExitError signals a non-zero exit code without forcing os.Exit in RunE handlers.
type ExitError struct {
	Code int
	Err  error
}

// Error returns the error message for ExitError.
func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

// Unwrap returns the underlying error, if any.
func (e *ExitError) Unwrap() error {
	return e.Err
}

// exitCodeFor maps an engine error kind to a process exit code.
func exitCodeFor(err error) int {
	switch engine.KindOf(err) {
	case engine.KindConfiguration:
		return exitConfiguration
	case engine.KindDetectionAmbiguous:
		return exitDetectionAmbiguous
	case engine.KindPluginNotFound:
		return exitPluginNotFound
	case engine.KindVersionUnsupported:
		return exitVersionUnsupported
	case engine.KindInstallFailed:
		return exitInstallFailed
	case engine.KindActivationFailed:
		return exitActivationFailed
	case engine.KindSwitchInProgress:
		return exitSwitchInProgress
	case engine.KindEnvNotFound:
		return exitEnvNotFound
	case engine.KindEnvNameTaken:
		return exitEnvNameTaken
	default:
		return exitGeneral
	}
}

// issueFor maps an engine error kind to its help catalog entry, or nil
// when no entry applies.
func issueFor(err error) *issue.Issue {
	switch engine.KindOf(err) {
	case engine.KindConfiguration:
		return issue.Get(issue.ConfigLoadFailedId)
	case engine.KindDetectionAmbiguous:
		return issue.Get(issue.DetectionAmbiguousId)
	case engine.KindPluginNotFound:
		return issue.Get(issue.PluginNotFoundId)
	case engine.KindVersionUnsupported:
		return issue.Get(issue.VersionUnsupportedId)
	case engine.KindInstallFailed:
		return issue.Get(issue.InstallFailedId)
	case engine.KindActivationFailed:
		return issue.Get(issue.ActivationFailedId)
	case engine.KindSwitchInProgress:
		return issue.Get(issue.SwitchInProgressId)
	case engine.KindEnvNotFound:
		return issue.Get(issue.EnvironmentNotFoundId)
	case engine.KindEnvNameTaken:
		return issue.Get(issue.EnvironmentNameTakenId)
	default:
		return nil
	}
}

// wrapCommandError renders err for the user, follows it with the help
// catalog entry for its kind when one exists, and converts it into an
// ExitError carrying the kind-specific exit code.
func wrapCommandError(err error) error {
	if err == nil {
		return nil
	}
	fmt.Println(ErrorStyle.Render("Error: ") + formatErrorForDisplay(err, verbose))
	if iss := issueFor(err); iss != nil {
		if rendered, renderErr := iss.Render("dark"); renderErr == nil {
			fmt.Println(rendered)
		}
	}
	return &ExitError{Code: exitCodeFor(err), Err: err}
}
