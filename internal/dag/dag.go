// SPDX-License-Identifier: MPL-2.0

// Package dag orders named nodes so that every node comes after the nodes it
// depends on. The installer uses it to install each package after the
// packages it requires.
package dag

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

type (
	// CycleError indicates that the graph contains a cycle, preventing topological ordering.
	CycleError struct {
		// Cycle holds the nodes that could not be ordered, by name.
		Cycle []string
	}

	// Graph is a directed graph for topological sorting. An edge from A to B
	// means A must come before B.
	Graph struct {
		adjacency map[string][]string
		edges     map[[2]string]bool
		nodeSet   map[string]bool
	}
)

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle detected: %s", strings.Join(e.Cycle, " -> "))
}

// New creates an empty Graph.
func New() *Graph {
	return &Graph{
		adjacency: make(map[string][]string),
		edges:     make(map[[2]string]bool),
		nodeSet:   make(map[string]bool),
	}
}

// AddNode adds a node to the graph. If the node already exists, this is a no-op.
func (g *Graph) AddNode(name string) {
	g.nodeSet[name] = true
}

// AddEdge adds a directed edge from -> to, meaning "from" must come before
// "to". Both nodes are added if missing. Duplicate edges are ignored.
func (g *Graph) AddEdge(from, to string) {
	g.AddNode(from)
	g.AddNode(to)
	key := [2]string{from, to}
	if g.edges[key] {
		return
	}
	g.edges[key] = true
	g.adjacency[from] = append(g.adjacency[from], to)
}

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.nodeSet) }

// TopologicalSort returns an order in which every node follows its
// predecessors, or a CycleError. Among nodes that are ready at the same
// time the smallest name goes first, so the result is deterministic.
func (g *Graph) TopologicalSort() ([]string, error) {
	order, stuck := g.sort(false)
	if len(stuck) > 0 {
		return nil, &CycleError{Cycle: stuck}
	}
	return order, nil
}

// Order is TopologicalSort that never fails: when only nodes on cycles
// remain, the smallest remaining name is released and sorting goes on. The
// second result lists the released nodes.
func (g *Graph) Order() (order, broken []string) {
	return g.sort(true)
}

func (g *Graph) sort(breakCycles bool) (order, stuck []string) {
	if len(g.nodeSet) == 0 {
		return nil, nil
	}

	inDegree := make(map[string]int, len(g.nodeSet))
	for _, neighbors := range g.adjacency {
		for _, n := range neighbors {
			inDegree[n]++
		}
	}

	remaining := slices.Sorted(maps.Keys(g.nodeSet))
	order = make([]string, 0, len(remaining))
	for len(remaining) > 0 {
		i := slices.IndexFunc(remaining, func(n string) bool { return inDegree[n] == 0 })
		if i < 0 {
			if !breakCycles {
				return order, remaining
			}
			i = 0
			stuck = append(stuck, remaining[0])
		}
		node := remaining[i]
		remaining = slices.Delete(remaining, i, i+1)
		order = append(order, node)
		for _, n := range g.adjacency[node] {
			inDegree[n]--
		}
	}
	return order, stuck
}
