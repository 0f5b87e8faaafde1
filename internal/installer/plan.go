// SPDX-License-Identifier: MPL-2.0

package installer

import (
	"golang.org/x/exp/slices"

	"github.com/BibhabenduMukherjee/dev-env-manager/internal/dag"
	"github.com/BibhabenduMukherjee/dev-env-manager/internal/detect"
	"github.com/BibhabenduMukherjee/dev-env-manager/internal/plugin"
)

// Plan is a resolved install: one task per plugin, ordered by the plugin
// requirement graph.
type Plan struct {
	// Graph holds the dependency edges between tasks, keyed by plugin name.
	Graph *dag.Graph
	// Tasks maps plugin name to its task.
	Tasks map[plugin.Name]*Task
	// Order is a valid topological execution order.
	Order []plugin.Name
}

// BuildPlan resolves a detection profile against the registry into an
// executable plan. Each detected language becomes a task; transitive plugin
// requirements are pulled in as tasks of their own (installed at whatever
// version the plugin's manager defaults to). Resolution failures abort
// planning: an unknown language or an unsatisfiable version range is
// reported before anything is installed.
func BuildPlan(profile *detect.Profile, registry *plugin.Registry) (*Plan, error) {
	plan := &Plan{
		Graph: dag.New(),
		Tasks: make(map[plugin.Name]*Task),
	}

	// Sort for deterministic task ordering across runs.
	languages := make([]string, 0, len(profile.Languages))
	for lang := range profile.Languages {
		languages = append(languages, lang)
	}
	slices.Sort(languages)

	for _, lang := range languages {
		name := plugin.Name(lang)
		version := profile.Languages[lang]
		if _, err := registry.Resolve(name, version); err != nil {
			return nil, err
		}
		if err := plan.addTask(registry, name, version); err != nil {
			return nil, err
		}
	}

	order, err := plan.Graph.TopologicalSort()
	if err != nil {
		return nil, err
	}
	plan.Order = make([]plugin.Name, len(order))
	for i, n := range order {
		plan.Order[i] = plugin.Name(n)
	}

	return plan, nil
}

// addTask adds a task for name and, recursively, its requirements.
func (p *Plan) addTask(registry *plugin.Registry, name plugin.Name, version string) error {
	if _, ok := p.Tasks[name]; ok {
		// Already planned; a detected language may also be a requirement.
		// Keep the existing task but make sure a declared version wins over
		// the empty version a requirement edge carries.
		if version != "" && p.Tasks[name].Version == "" {
			p.Tasks[name].Version = version
		}
		return nil
	}

	d, err := registry.Lookup(name)
	if err != nil {
		return err
	}

	p.Tasks[name] = newTask(name, version)
	p.Graph.AddNode(string(name))

	for _, req := range d.Requires {
		if err := p.addTask(registry, req, ""); err != nil {
			return err
		}
		p.Graph.AddEdge(string(req), string(name))
	}
	return nil
}

// Len returns the number of tasks in the plan.
func (p *Plan) Len() int { return len(p.Tasks) }
