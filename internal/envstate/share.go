// SPDX-License-Identifier: MPL-2.0

package envstate

import (
	"fmt"
	"io"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Export writes an environment descriptor as TOML so it can be shared with
// another machine. Machine-local fields (status, timestamps, activation
// paths) are stripped: the importer rebuilds them for its own filesystem.
func (s *Store) Export(name EnvName, w io.Writer) error {
	env, err := s.Load(name)
	if err != nil {
		return err
	}

	portable := &Environment{
		Name:        env.Name,
		ProjectRoot: env.ProjectRoot,
		Languages:   env.Languages,
		Frameworks:  env.Frameworks,
	}

	data, err := toml.Marshal(portable)
	if err != nil {
		return fmt.Errorf("failed to encode environment %q: %w", name, err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write environment %q: %w", name, err)
	}
	return nil
}

// Import reads an exported descriptor and creates it under newName (or the
// exported name when newName is empty). The imported environment starts in
// Creating: its toolchains still need installing on this machine.
func (s *Store) Import(r io.Reader, newName EnvName) (*Environment, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read environment descriptor: %w", err)
	}

	var env Environment
	if err := toml.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to parse environment descriptor: %w", err)
	}

	if newName != "" {
		env.Name = newName
	}
	if ok, errs := env.Name.IsValid(); !ok {
		return nil, errs[0]
	}

	now := time.Now().UTC()
	env.Status = StatusCreating
	env.Activation = nil
	env.CreatedAt = now
	env.UpdatedAt = now

	if err := s.Create(&env); err != nil {
		return nil, err
	}
	return &env, nil
}
