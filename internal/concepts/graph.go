// Package concepts models the prerequisite graph between concepts.
package concepts

import (
	"fmt"
	"slices"
	"sort"

	"github.com/abhisek/mathprogress/internal/store"
)

// Graph is an immutable view of the concept DAG with precomputed indices.
// Build it once per catalog load; it is safe for concurrent reads.
type Graph struct {
	concepts   []store.Concept
	byID       map[string]*store.Concept
	dependents map[string][]string
	topoOrder  []string
}

// NewGraph builds the graph indices. Prerequisites that name unknown
// concepts are kept as edges but never resolved; run Validate first to
// reject such catalogs.
func NewGraph(concepts []store.Concept) *Graph {
	g := &Graph{
		concepts:   slices.Clone(concepts),
		byID:       make(map[string]*store.Concept, len(concepts)),
		dependents: make(map[string][]string),
	}

	for i := range g.concepts {
		g.byID[g.concepts[i].ID] = &g.concepts[i]
	}

	for i := range g.concepts {
		for _, prereqID := range g.concepts[i].Prerequisites {
			g.dependents[prereqID] = append(g.dependents[prereqID], g.concepts[i].ID)
		}
	}
	for id := range g.dependents {
		sort.Strings(g.dependents[id])
	}

	g.topoOrder, _ = topoSort(g.concepts)
	return g
}

// Get returns a concept by ID.
func (g *Graph) Get(id string) (store.Concept, error) {
	c, ok := g.byID[id]
	if !ok {
		return store.Concept{}, fmt.Errorf("concept %q: %w", id, store.ErrNotFound)
	}
	return *c, nil
}

// Has reports whether the concept exists.
func (g *Graph) Has(id string) bool {
	_, ok := g.byID[id]
	return ok
}

// All returns every concept in load order.
func (g *Graph) All() []store.Concept {
	return slices.Clone(g.concepts)
}

// Prerequisites returns the direct prerequisite IDs of a concept.
func (g *Graph) Prerequisites(id string) []string {
	c, ok := g.byID[id]
	if !ok {
		return nil
	}
	return slices.Clone(c.Prerequisites)
}

// Dependents returns the IDs of concepts that list id as a direct
// prerequisite, sorted.
func (g *Graph) Dependents(id string) []string {
	return slices.Clone(g.dependents[id])
}

// Roots returns concepts with no prerequisites.
func (g *Graph) Roots() []store.Concept {
	var roots []store.Concept
	for _, c := range g.concepts {
		if len(c.Prerequisites) == 0 {
			roots = append(roots, c)
		}
	}
	return roots
}

// TopoOrder returns concept IDs with every prerequisite before its
// dependents. Concepts on a cycle are omitted.
func (g *Graph) TopoOrder() []string {
	return slices.Clone(g.topoOrder)
}

// topoSort runs Kahn's algorithm with sorted queues for deterministic
// output. The second result lists concepts left on cycles.
func topoSort(concepts []store.Concept) (order, cyclic []string) {
	inDegree := make(map[string]int, len(concepts))
	adj := make(map[string][]string)
	for _, c := range concepts {
		inDegree[c.ID] += len(c.Prerequisites)
		for _, prereqID := range c.Prerequisites {
			adj[prereqID] = append(adj[prereqID], c.ID)
		}
	}
	// Edges from unknown prerequisites never resolve; drop them so the
	// sort only reports real cycles.
	for prereqID, deps := range adj {
		if _, known := inDegree[prereqID]; !known {
			for _, dep := range deps {
				inDegree[dep]--
			}
		}
	}

	var queue []string
	for id, deg := range inDegree {
		if deg == 0 {
			queue = append(queue, id)
		}
	}
	sort.Strings(queue)

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)

		deps := slices.Clone(adj[id])
		sort.Strings(deps)
		for _, depID := range deps {
			inDegree[depID]--
			if inDegree[depID] == 0 {
				queue = append(queue, depID)
			}
		}
	}

	for _, c := range concepts {
		if inDegree[c.ID] > 0 {
			cyclic = append(cyclic, c.ID)
		}
	}
	return order, cyclic
}
