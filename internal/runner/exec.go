// SPDX-License-Identifier: MPL-2.0

package runner

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// ExecRunner executes invocations through os/exec, using the system shell
// for script specs.
type ExecRunner struct {
	// Shell overrides the default shell used for Script specs.
	Shell string
}

// NewExecRunner creates a new ExecRunner.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

// Run implements Runner.
func (r *ExecRunner) Run(ctx context.Context, spec Spec) (*Result, error) {
	argv, err := r.resolveArgv(spec)
	if err != nil {
		return nil, err
	}

	if spec.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, spec.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	if spec.Dir != "" {
		cmd.Dir = spec.Dir
	}
	cmd.Env = append(os.Environ(), EnvToSlice(spec.Env)...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	result := &Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	if runErr != nil {
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		result.ExitCode = -1
		// Surface the deadline as the error so callers can classify it as transient.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return result, fmt.Errorf("command timed out: %w", ctxErr)
		}
		return result, fmt.Errorf("failed to execute command: %w", runErr)
	}

	return result, nil
}

// resolveArgv turns the spec into the final argv, routing scripts through
// the system shell.
func (r *ExecRunner) resolveArgv(spec Spec) ([]string, error) {
	if len(spec.Argv) > 0 {
		return spec.Argv, nil
	}
	if spec.Script == "" {
		return nil, fmt.Errorf("spec has neither argv nor script")
	}

	shell, err := r.findShell()
	if err != nil {
		return nil, err
	}
	return append([]string{shell}, shellArgs(shell, spec.Script)...), nil
}

// findShell determines which shell to use for script specs.
func (r *ExecRunner) findShell() (string, error) {
	if r.Shell != "" {
		return r.Shell, nil
	}

	switch runtime.GOOS {
	case "windows":
		if pwsh, err := exec.LookPath("pwsh"); err == nil {
			return pwsh, nil
		}
		if ps, err := exec.LookPath("powershell"); err == nil {
			return ps, nil
		}
		if cmdExe, err := exec.LookPath("cmd"); err == nil {
			return cmdExe, nil
		}
		return "", ErrNoShell
	default:
		// Unix-like: use SHELL env var, or fall back to common shells
		if shell := os.Getenv("SHELL"); shell != "" {
			return shell, nil
		}
		if bash, err := exec.LookPath("bash"); err == nil {
			return bash, nil
		}
		if sh, err := exec.LookPath("sh"); err == nil {
			return sh, nil
		}
		return "", ErrNoShell
	}
}

// shellArgs returns the shell arguments that execute the script.
func shellArgs(shell, script string) []string {
	base := strings.TrimSuffix(filepath.Base(shell), ".exe")
	switch base {
	case "cmd":
		return []string{"/C", script}
	case "powershell", "pwsh":
		return []string{"-NoProfile", "-Command", script}
	default:
		// Assume POSIX shell
		return []string{"-c", script}
	}
}
