// SPDX-License-Identifier: MPL-2.0

// Package dag provides directed acyclic graph operations for the install
// scheduler: topological sorting, cycle detection, and the ready-set
// bookkeeping used to release tasks whose dependencies have completed.
package dag

import (
	"fmt"
	"slices"
	"strings"
)

type (
	// CycleError indicates that the graph contains a cycle, preventing topological ordering.
	CycleError struct {
		// Cycle contains the nodes that form the cycle (not necessarily all of them,
		// but enough to identify the problem).
		Cycle []string
	}

	// Graph is a directed graph keyed by string node names. An edge from A to B
	// means A must complete before B starts (B depends on A).
	Graph struct {
		// adjacency maps each node to its outgoing neighbors (nodes that depend on it).
		adjacency map[string][]string
		// incoming maps each node to its dependencies.
		incoming map[string][]string
		// nodes tracks all nodes in insertion order for deterministic output.
		nodes []string
		// nodeSet provides O(1) lookup for node existence.
		nodeSet map[string]bool
	}
)

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle detected: %s", strings.Join(e.Cycle, " -> "))
}

// New creates an empty Graph.
func New() *Graph {
	return &Graph{
		adjacency: make(map[string][]string),
		incoming:  make(map[string][]string),
		nodeSet:   make(map[string]bool),
	}
}

// AddNode adds a node to the graph. Adding an existing node is a no-op.
func (g *Graph) AddNode(name string) {
	if g.nodeSet[name] {
		return
	}
	g.nodeSet[name] = true
	g.nodes = append(g.nodes, name)
}

// AddEdge adds a directed edge from -> to, meaning "from" must complete
// before "to" starts. Both nodes are implicitly added if they don't exist.
// Duplicate edges are collapsed.
func (g *Graph) AddEdge(from, to string) {
	g.AddNode(from)
	g.AddNode(to)
	if slices.Contains(g.adjacency[from], to) {
		return
	}
	g.adjacency[from] = append(g.adjacency[from], to)
	g.incoming[to] = append(g.incoming[to], from)
}

// HasNode reports whether the graph contains the named node.
func (g *Graph) HasNode(name string) bool {
	return g.nodeSet[name]
}

// Nodes returns all nodes in insertion order.
func (g *Graph) Nodes() []string {
	return slices.Clone(g.nodes)
}

// Len returns the number of nodes in the graph.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// DependenciesOf returns the nodes that must complete before the named node.
func (g *Graph) DependenciesOf(name string) []string {
	return slices.Clone(g.incoming[name])
}

// DependentsOf returns the nodes that wait on the named node.
func (g *Graph) DependentsOf(name string) []string {
	return slices.Clone(g.adjacency[name])
}

// Roots returns the nodes with no dependencies, in insertion order.
// These are the tasks a scheduler may start immediately.
func (g *Graph) Roots() []string {
	var roots []string
	for _, node := range g.nodes {
		if len(g.incoming[node]) == 0 {
			roots = append(roots, node)
		}
	}
	return roots
}

// InDegrees returns a fresh node -> unmet-dependency-count map. Schedulers
// decrement counts as dependencies complete; the graph itself is not mutated.
func (g *Graph) InDegrees() map[string]int {
	degrees := make(map[string]int, len(g.nodes))
	for _, node := range g.nodes {
		degrees[node] = len(g.incoming[node])
	}
	return degrees
}

// TopologicalSort returns a valid execution order using Kahn's algorithm.
// Returns CycleError if the graph contains a cycle.
// The returned order is deterministic: nodes at the same topological level
// appear in the order they were first added to the graph.
func (g *Graph) TopologicalSort() ([]string, error) {
	if len(g.nodes) == 0 {
		return nil, nil
	}

	inDegree := g.InDegrees()

	// Seed the queue with nodes that have no incoming edges, in insertion order.
	queue := make([]string, 0)
	for _, node := range g.nodes {
		if inDegree[node] == 0 {
			queue = append(queue, node)
		}
	}

	var result []string
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		result = append(result, node)

		for _, neighbor := range g.adjacency[node] {
			inDegree[neighbor]--
			if inDegree[neighbor] == 0 {
				queue = append(queue, neighbor)
			}
		}
	}

	if len(result) != len(g.nodes) {
		// Remaining nodes with non-zero in-degree form the cycle.
		var cycleNodes []string
		for _, node := range g.nodes {
			if inDegree[node] > 0 {
				cycleNodes = append(cycleNodes, node)
			}
		}
		return nil, &CycleError{Cycle: cycleNodes}
	}

	return result, nil
}

// Validate checks the graph for cycles without materializing an order.
func (g *Graph) Validate() error {
	_, err := g.TopologicalSort()
	return err
}
