// SPDX-License-Identifier: MPL-2.0

package envstate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// activePointerFile is the file under the store directory that names the
// active environment. Absence means no environment is active.
const activePointerFile = "active"

// Sentinel errors wrapped by the typed errors below.
var (
	ErrSwitchInProgress = errors.New("switch in progress")
	ErrActivationFailed = errors.New("activation failed")
	ErrNotActivatable   = errors.New("environment not activatable")
)

type (
	// SwitchInProgressError is returned when a switch is requested while
	// another one holds the critical section. It wraps ErrSwitchInProgress.
	SwitchInProgressError struct {
		Requested EnvName
	}

	// ActivationFailedError is returned when the activation hook fails and
	// the previous environment was rolled back. It wraps ErrActivationFailed.
	ActivationFailedError struct {
		Name EnvName
		Err  error
	}

	// NotActivatableError is returned when the target environment is not in
	// an activatable status. It wraps ErrNotActivatable.
	NotActivatableError struct {
		Name   EnvName
		Status EnvStatus
	}

	// Hooks are the callbacks a switch runs around the persisted state
	// change. Activate makes the target usable (probes, shell state);
	// Deactivate tears down the previous environment. Either may be nil.
	Hooks struct {
		Activate   func(ctx context.Context, env *Environment) error
		Deactivate func(ctx context.Context, env *Environment) error
	}

	// SwitchResult reports what a completed switch did.
	SwitchResult struct {
		// Previous names the environment that was active before, empty when
		// none was.
		Previous EnvName
		// Activated is the now-active environment.
		Activated *Environment
	}

	// Machine coordinates environment activation. At most one switch runs at
	// a time; a second concurrent request is rejected, not queued. The active
	// pointer on disk moves only after activation succeeds, so a failed
	// switch leaves the previous environment active.
	Machine struct {
		store    *Store
		switchMu sync.Mutex
	}
)

// Error implements the error interface.
func (e *SwitchInProgressError) Error() string {
	return fmt.Sprintf("cannot switch to %q: another switch is in progress", e.Requested)
}

// Unwrap returns ErrSwitchInProgress so callers can use errors.Is for programmatic detection.
func (e *SwitchInProgressError) Unwrap() error { return ErrSwitchInProgress }

// Error implements the error interface.
func (e *ActivationFailedError) Error() string {
	return fmt.Sprintf("failed to activate environment %q: %v", e.Name, e.Err)
}

// Unwrap returns the wrapped errors so callers can use errors.Is for programmatic detection.
func (e *ActivationFailedError) Unwrap() []error { return []error{ErrActivationFailed, e.Err} }

// Error implements the error interface.
func (e *NotActivatableError) Error() string {
	return fmt.Sprintf("environment %q is %s and cannot be activated", e.Name, e.Status)
}

// Unwrap returns ErrNotActivatable so callers can use errors.Is for programmatic detection.
func (e *NotActivatableError) Unwrap() error { return ErrNotActivatable }

// NewMachine creates a machine over the given store.
func NewMachine(store *Store) *Machine {
	return &Machine{store: store}
}

// ActiveName returns the name of the active environment, or "" when none.
func (m *Machine) ActiveName() (EnvName, error) {
	data, err := os.ReadFile(filepath.Join(m.store.dir, activePointerFile))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read active environment pointer: %w", err)
	}
	return EnvName(strings.TrimSpace(string(data))), nil
}

// Active loads the active environment, or nil when none is active.
func (m *Machine) Active() (*Environment, error) {
	name, err := m.ActiveName()
	if err != nil || name == "" {
		return nil, err
	}
	env, err := m.store.Load(name)
	if errors.Is(err, ErrEnvNotFound) {
		// Stale pointer; treat as no active environment.
		return nil, nil
	}
	return env, err
}

// Switch makes the named environment active. The operation holds an
// exclusive critical section: a concurrent switch gets SwitchInProgressError
// immediately. Activation runs before any state is persisted; if it fails,
// nothing changes and the previous environment stays active. Switching to
// the already-active environment is a no-op.
func (m *Machine) Switch(ctx context.Context, name EnvName, hooks Hooks) (*SwitchResult, error) {
	if ok, errs := name.IsValid(); !ok {
		return nil, errs[0]
	}

	if !m.switchMu.TryLock() {
		return nil, &SwitchInProgressError{Requested: name}
	}
	defer m.switchMu.Unlock()

	target, err := m.store.Load(name)
	if err != nil {
		return nil, err
	}
	if !target.Activatable() {
		return nil, &NotActivatableError{Name: name, Status: target.Status}
	}

	prev, err := m.Active()
	if err != nil {
		return nil, err
	}
	result := &SwitchResult{Activated: target}
	if prev != nil {
		result.Previous = prev.Name
		if prev.Name == name {
			return result, nil
		}
	}

	if hooks.Activate != nil {
		if err := hooks.Activate(ctx, target); err != nil {
			return nil, &ActivationFailedError{Name: name, Err: err}
		}
	}

	// Persist the swap: demote previous, promote target, then move the
	// pointer last so a crash mid-swap still resolves to a consistent state.
	if prev != nil {
		if err := prev.ChangeStatus(StatusReady); err != nil {
			return nil, err
		}
		if err := m.store.Save(prev); err != nil {
			return nil, err
		}
	}

	if err := target.ChangeStatus(StatusActive); err != nil {
		return nil, m.rollbackPrevious(prev, err)
	}
	if err := m.store.Save(target); err != nil {
		return nil, m.rollbackPrevious(prev, err)
	}
	if err := m.writeActivePointer(name); err != nil {
		return nil, m.rollbackPrevious(prev, err)
	}

	if hooks.Deactivate != nil && prev != nil {
		// Best-effort teardown; the switch itself already committed.
		_ = hooks.Deactivate(ctx, prev)
	}

	return result, nil
}

// Deactivate clears the active environment, demoting it to Ready.
func (m *Machine) Deactivate(ctx context.Context, hooks Hooks) error {
	if !m.switchMu.TryLock() {
		return &SwitchInProgressError{}
	}
	defer m.switchMu.Unlock()

	prev, err := m.Active()
	if err != nil {
		return err
	}
	if prev == nil {
		return nil
	}

	if err := prev.ChangeStatus(StatusReady); err != nil {
		return err
	}
	if err := m.store.Save(prev); err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(m.store.dir, activePointerFile)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to clear active environment pointer: %w", err)
	}

	if hooks.Deactivate != nil {
		_ = hooks.Deactivate(ctx, prev)
	}
	return nil
}

// rollbackPrevious restores the previously active environment after a
// failed commit and returns the original error (joined with any rollback
// failure).
func (m *Machine) rollbackPrevious(prev *Environment, cause error) error {
	if prev == nil {
		return cause
	}
	if err := prev.ChangeStatus(StatusActive); err != nil {
		return errors.Join(cause, err)
	}
	if err := m.store.Save(prev); err != nil {
		return errors.Join(cause, err)
	}
	return cause
}

// writeActivePointer atomically updates the active pointer file.
func (m *Machine) writeActivePointer(name EnvName) error {
	tmp, err := os.CreateTemp(m.store.dir, ".active.tmp-*")
	if err != nil {
		return fmt.Errorf("failed to stage active pointer: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.WriteString(string(name) + "\n"); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to stage active pointer: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to stage active pointer: %w", err)
	}
	if err := os.Rename(tmpName, filepath.Join(m.store.dir, activePointerFile)); err != nil {
		return fmt.Errorf("failed to update active pointer: %w", err)
	}
	return nil
}
