// SPDX-License-Identifier: MPL-2.0

package plugin

import (
	"fmt"
	"reflect"
	"sync"

	"golang.org/x/exp/slices"

	"github.com/BibhabenduMukherjee/dev-env-manager/internal/dag"
	"github.com/BibhabenduMukherjee/dev-env-manager/internal/semver"
)

// Registry holds registered plugins and their requirement graph. It is safe
// for concurrent use: reads take a shared lock, registration an exclusive one.
type Registry struct {
	mu      sync.RWMutex
	plugins map[Name]*Descriptor
}

// NewRegistry creates an empty plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		plugins: make(map[Name]*Descriptor),
	}
}

// Register adds a plugin to the registry. Re-registering an identical
// descriptor is a no-op; a name collision with a different descriptor
// returns DuplicatePluginError. Registrations whose requirements would
// create a cycle are rejected and leave the registry unchanged.
func (r *Registry) Register(d *Descriptor) error {
	if err := d.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.plugins[d.Name]; ok {
		if descriptorsEqual(existing, d) {
			return nil
		}
		return &DuplicatePluginError{Name: d.Name}
	}

	if err := r.checkAcyclicLocked(d); err != nil {
		return err
	}

	r.plugins[d.Name] = d
	return nil
}

// checkAcyclicLocked validates that adding d keeps the requirement graph
// acyclic. Requirements on plugins not yet registered are allowed; they
// surface later at resolution time.
func (r *Registry) checkAcyclicLocked(d *Descriptor) error {
	g := dag.New()
	for name := range r.plugins {
		g.AddNode(string(name))
	}
	g.AddNode(string(d.Name))
	for name, desc := range r.plugins {
		for _, req := range desc.Requires {
			g.AddEdge(string(req), string(name))
		}
	}
	for _, req := range d.Requires {
		g.AddEdge(string(req), string(d.Name))
	}
	if err := g.Validate(); err != nil {
		return fmt.Errorf("plugin %q: %w", d.Name, err)
	}
	return nil
}

// Lookup returns the descriptor for a plugin name.
func (r *Registry) Lookup(name Name) (*Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.plugins[name]
	if !ok {
		return nil, &NotFoundError{Name: name}
	}
	return d, nil
}

// Resolve returns the plugin for a language and checks that the requested
// version range overlaps the plugin's supported range. An empty requested
// range matches any plugin; an empty Supports range accepts any request.
func (r *Registry) Resolve(name Name, requested string) (*Descriptor, error) {
	d, err := r.Lookup(name)
	if err != nil {
		return nil, err
	}

	if requested == "" || d.Supports == "" {
		return d, nil
	}

	reqConstraint, err := semver.ParseConstraint(requested)
	if err != nil {
		return nil, fmt.Errorf("plugin %q: invalid requested version %q: %w", name, requested, err)
	}
	supConstraint, err := semver.ParseConstraint(string(d.Supports))
	if err != nil {
		return nil, fmt.Errorf("plugin %q: invalid supported range %q: %w", name, d.Supports, err)
	}

	if !semver.Intersects(reqConstraint, supConstraint) {
		return nil, &VersionUnsupportedError{
			Name:      name,
			Requested: requested,
			Supports:  d.Supports,
		}
	}
	return d, nil
}

// Names returns all registered plugin names in sorted order.
func (r *Registry) Names() []Name {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]Name, 0, len(r.plugins))
	for name := range r.plugins {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// DependenciesOf returns the transitive requirements of a plugin in
// installation order (requirements before dependents). Requirements that
// are not registered are returned as-is so callers can report them.
func (r *Registry) DependenciesOf(name Name) ([]Name, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.plugins[name]; !ok {
		return nil, &NotFoundError{Name: name}
	}

	g := dag.New()
	var walk func(n Name)
	walk = func(n Name) {
		g.AddNode(string(n))
		d, ok := r.plugins[n]
		if !ok {
			return
		}
		for _, req := range d.Requires {
			if !g.HasNode(string(req)) {
				walk(req)
			}
			g.AddEdge(string(req), string(n))
		}
	}
	walk(name)

	sorted, err := g.TopologicalSort()
	if err != nil {
		return nil, err
	}

	deps := make([]Name, 0, len(sorted)-1)
	for _, n := range sorted {
		if Name(n) == name {
			continue
		}
		deps = append(deps, Name(n))
	}
	return deps, nil
}

// descriptorsEqual compares descriptors for idempotent re-registration.
// Providers are compared by identity, not behavior.
func descriptorsEqual(a, b *Descriptor) bool {
	return a.Name == b.Name &&
		a.Supports == b.Supports &&
		slices.Equal(a.Requires, b.Requires) &&
		providerEqual(a.Provider, b.Provider) &&
		providerEqual(a.Fallback, b.Fallback)
}

func providerEqual(a, b Provider) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Kind() != reflect.Pointer || vb.Kind() != reflect.Pointer {
		return false
	}
	return va.Pointer() == vb.Pointer()
}
