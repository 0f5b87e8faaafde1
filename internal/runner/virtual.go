// SPDX-License-Identifier: MPL-2.0

package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

// VirtualRunner executes script specs with the built-in mvdan/sh interpreter.
// It needs no shell on the host, which makes portable install scripts work
// on systems where shell discovery fails. Argv specs are not supported.
type VirtualRunner struct{}

// NewVirtualRunner creates a new VirtualRunner.
func NewVirtualRunner() *VirtualRunner {
	return &VirtualRunner{}
}

// Validate checks that the spec's script parses.
func (r *VirtualRunner) Validate(spec Spec) error {
	if spec.Script == "" {
		return fmt.Errorf("virtual runner requires a script spec")
	}
	if _, err := syntax.NewParser().Parse(strings.NewReader(spec.Script), "script"); err != nil {
		return fmt.Errorf("script syntax error: %w", err)
	}
	return nil
}

// Run implements Runner.
func (r *VirtualRunner) Run(ctx context.Context, spec Spec) (*Result, error) {
	if err := r.Validate(spec); err != nil {
		return nil, err
	}

	prog, err := syntax.NewParser().Parse(strings.NewReader(spec.Script), "script")
	if err != nil {
		return nil, fmt.Errorf("failed to parse script: %w", err)
	}

	if spec.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, spec.Timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	env := append(os.Environ(), EnvToSlice(spec.Env)...)

	opts := []interp.RunnerOption{
		interp.Env(expand.ListEnviron(env...)),
		interp.StdIO(nil, &stdout, &stderr),
	}
	if spec.Dir != "" {
		opts = append(opts, interp.Dir(spec.Dir))
	}

	sh, err := interp.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create interpreter: %w", err)
	}

	start := time.Now()
	runErr := sh.Run(ctx, prog)
	result := &Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	if runErr != nil {
		var exitStatus interp.ExitStatus
		if errors.As(runErr, &exitStatus) {
			result.ExitCode = int(exitStatus)
			return result, nil
		}
		result.ExitCode = -1
		if ctxErr := ctx.Err(); ctxErr != nil {
			return result, fmt.Errorf("script timed out: %w", ctxErr)
		}
		return result, fmt.Errorf("script execution failed: %w", runErr)
	}

	return result, nil
}
