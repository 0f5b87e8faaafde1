// SPDX-License-Identifier: MPL-2.0

package envstate

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"golang.org/x/exp/slices"
)

// Sentinel errors wrapped by the typed errors below.
var (
	ErrEnvNotFound  = errors.New("environment not found")
	ErrEnvNameTaken = errors.New("environment name taken")
)

type (
	// NotFoundError is returned when an operation names an environment with
	// no descriptor on disk. It wraps ErrEnvNotFound.
	NotFoundError struct {
		Name EnvName
	}

	// NameTakenError is returned when creating an environment whose name is
	// already in use. It wraps ErrEnvNameTaken.
	NameTakenError struct {
		Name EnvName
	}

	// Store persists environment descriptors as TOML files, one per
	// environment, under a single directory. Writes are atomic: descriptors
	// are written to a temp file and renamed into place, so readers never
	// observe a partial descriptor.
	Store struct {
		dir string
	}
)

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("environment %q does not exist", e.Name)
}

// Unwrap returns ErrEnvNotFound so callers can use errors.Is for programmatic detection.
func (e *NotFoundError) Unwrap() error { return ErrEnvNotFound }

// Error implements the error interface.
func (e *NameTakenError) Error() string {
	return fmt.Sprintf("environment name %q is already in use", e.Name)
}

// Unwrap returns ErrEnvNameTaken so callers can use errors.Is for programmatic detection.
func (e *NameTakenError) Unwrap() error { return ErrEnvNameTaken }

// NewStore creates a store rooted at dir. The directory is created if
// missing.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create environments directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the store's root directory.
func (s *Store) Dir() string { return s.dir }

// Create persists a new environment descriptor. The name must be unused.
func (s *Store) Create(env *Environment) error {
	if ok, errs := env.Name.IsValid(); !ok {
		return errs[0]
	}
	if s.Exists(env.Name) {
		return &NameTakenError{Name: env.Name}
	}
	return s.write(env)
}

// Save overwrites an existing environment descriptor.
func (s *Store) Save(env *Environment) error {
	if ok, errs := env.Name.IsValid(); !ok {
		return errs[0]
	}
	if !s.Exists(env.Name) {
		return &NotFoundError{Name: env.Name}
	}
	return s.write(env)
}

// Load reads an environment descriptor by name.
func (s *Store) Load(name EnvName) (*Environment, error) {
	if ok, errs := name.IsValid(); !ok {
		return nil, errs[0]
	}

	data, err := os.ReadFile(s.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &NotFoundError{Name: name}
		}
		return nil, fmt.Errorf("failed to read environment %q: %w", name, err)
	}

	var env Environment
	if err := toml.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to parse environment %q: %w", name, err)
	}
	if err := env.Status.Validate(); err != nil {
		return nil, fmt.Errorf("environment %q: %w", name, err)
	}
	return &env, nil
}

// Delete removes an environment descriptor.
func (s *Store) Delete(name EnvName) error {
	if ok, errs := name.IsValid(); !ok {
		return errs[0]
	}
	if err := os.Remove(s.path(name)); err != nil {
		if os.IsNotExist(err) {
			return &NotFoundError{Name: name}
		}
		return fmt.Errorf("failed to delete environment %q: %w", name, err)
	}
	return nil
}

// Exists reports whether a descriptor exists for the name.
func (s *Store) Exists(name EnvName) bool {
	info, err := os.Stat(s.path(name))
	return err == nil && !info.IsDir()
}

// List returns all environment names in sorted order.
func (s *Store) List() ([]EnvName, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list environments: %w", err)
	}

	var names []EnvName
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".toml") {
			continue
		}
		names = append(names, EnvName(strings.TrimSuffix(e.Name(), ".toml")))
	}
	slices.Sort(names)
	return names, nil
}

// write marshals the descriptor to a temp file and renames it into place.
func (s *Store) write(env *Environment) error {
	data, err := toml.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to encode environment %q: %w", env.Name, err)
	}

	tmp, err := os.CreateTemp(s.dir, "."+string(env.Name)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to stage environment %q: %w", env.Name, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to stage environment %q: %w", env.Name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to stage environment %q: %w", env.Name, err)
	}

	if err := os.Rename(tmpName, s.path(env.Name)); err != nil {
		return fmt.Errorf("failed to persist environment %q: %w", env.Name, err)
	}
	return nil
}

func (s *Store) path(name EnvName) string {
	return filepath.Join(s.dir, string(name)+".toml")
}
