// SPDX-License-Identifier: MPL-2.0

// Package installer plans and executes toolchain installs. A detection
// profile is resolved against the plugin registry into a dependency graph
// of tasks, which a bounded worker pool executes in topological order with
// retry for transient failures and a one-shot fallback for permanent ones.
package installer

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/BibhabenduMukherjee/dev-env-manager/internal/plugin"
)

// Task states. Transitions are monotonic toward a terminal state:
// Pending -> Running -> Succeeded | Failed, with Running -> Retrying ->
// Running loops for transient failures. Terminal states never change.
const (
	StatePending   TaskState = "pending"
	StateRunning   TaskState = "running"
	StateRetrying  TaskState = "retrying"
	StateSucceeded TaskState = "succeeded"
	StateFailed    TaskState = "failed"
)

// ErrInvalidTransition is the sentinel error wrapped by InvalidTransitionError.
var ErrInvalidTransition = errors.New("invalid task transition")

type (
	// TaskState is the lifecycle state of an install task.
	TaskState string

	// InvalidTransitionError reports a disallowed task state transition.
	// It wraps ErrInvalidTransition.
	InvalidTransitionError struct {
		Plugin plugin.Name
		From   TaskState
		To     TaskState
	}

	// Task is one plugin install within a plan. State access is
	// mutex-guarded because the scheduler and observers touch tasks
	// from different goroutines.
	Task struct {
		// Plugin names the plugin this task installs.
		Plugin plugin.Name
		// Version is the version or range passed to the provider.
		Version string

		mu           sync.Mutex
		state        TaskState
		attempts     int
		usedFallback bool
		err          error
		started      time.Time
		duration     time.Duration
	}
)

// Error implements the error interface.
func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("task %q: invalid transition %s -> %s", e.Plugin, e.From, e.To)
}

// Unwrap returns ErrInvalidTransition so callers can use errors.Is for programmatic detection.
func (e *InvalidTransitionError) Unwrap() error { return ErrInvalidTransition }

// String returns the string representation of the TaskState.
func (s TaskState) String() string { return string(s) }

// Terminal reports whether the state admits no further transitions.
func (s TaskState) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// newTask creates a pending task.
func newTask(name plugin.Name, version string) *Task {
	return &Task{Plugin: name, Version: version, state: StatePending}
}

// State returns the task's current state.
func (t *Task) State() TaskState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Attempts returns how many times the provider has been invoked.
func (t *Task) Attempts() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.attempts
}

// UsedFallback reports whether the fallback provider performed the install.
func (t *Task) UsedFallback() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.usedFallback
}

// Err returns the terminal error for failed tasks, nil otherwise.
func (t *Task) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Duration returns the wall time the task spent running.
func (t *Task) Duration() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.duration
}

// transition moves the task to a new state, enforcing monotonicity.
func (t *Task) transition(to TaskState) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !validTransition(t.state, to) {
		return &InvalidTransitionError{Plugin: t.Plugin, From: t.state, To: to}
	}

	switch to {
	case StateRunning:
		t.attempts++
		if t.started.IsZero() {
			t.started = time.Now()
		}
	case StateSucceeded, StateFailed:
		if !t.started.IsZero() {
			t.duration = time.Since(t.started)
		}
	}

	t.state = to
	return nil
}

// fail moves the task to Failed and records its terminal error.
func (t *Task) fail(err error) error {
	if terr := t.transition(StateFailed); terr != nil {
		return terr
	}
	t.mu.Lock()
	t.err = err
	t.mu.Unlock()
	return nil
}

// markFallback records that the fallback provider is in use.
func (t *Task) markFallback() {
	t.mu.Lock()
	t.usedFallback = true
	t.mu.Unlock()
}

func validTransition(from, to TaskState) bool {
	switch from {
	case StatePending:
		// Pending -> Failed covers tasks skipped because a dependency failed.
		return to == StateRunning || to == StateFailed
	case StateRunning:
		return to == StateRetrying || to == StateSucceeded || to == StateFailed
	case StateRetrying:
		return to == StateRunning || to == StateFailed
	default:
		return false
	}
}
