// Package conceptgraph holds the concept catalog: concept metadata and the
// weighted prerequisite graph between concepts.
package conceptgraph

import (
	"errors"
	"fmt"
	"slices"
	"sort"
)

// ErrNotFound is matched by every NotFoundError.
var ErrNotFound = errors.New("not found")

// NotFoundError reports an unknown concept ID.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("concept not found: %q", e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// Graph is an immutable, validated concept graph with precomputed indices.
// It is safe for concurrent use.
type Graph struct {
	concepts   []Concept
	byID       map[string]*Concept
	dependents map[string][]Prerequisite
	byTier     map[tierKey][]Concept
	topoOrder  []Concept
}

type tierKey struct {
	course string
	tier   Complexity
}

// New validates the concepts and builds a Graph.
func New(concepts []Concept) (*Graph, error) {
	if err := validateConcepts(concepts); err != nil {
		return nil, err
	}
	return buildGraph(concepts), nil
}

func buildGraph(concepts []Concept) *Graph {
	gr := &Graph{
		concepts:   slices.Clone(concepts),
		byID:       make(map[string]*Concept, len(concepts)),
		dependents: make(map[string][]Prerequisite),
		byTier:     make(map[tierKey][]Concept),
	}

	for i := range gr.concepts {
		gr.byID[gr.concepts[i].ID] = &gr.concepts[i]
	}

	// Reverse edges carry the strength of the original edge.
	for i := range gr.concepts {
		c := &gr.concepts[i]
		for _, p := range c.Prerequisites {
			gr.dependents[p.ConceptID] = append(gr.dependents[p.ConceptID], Prerequisite{
				ConceptID: c.ID,
				Strength:  p.Strength,
			})
		}
	}

	for i := range gr.concepts {
		c := gr.concepts[i]
		k := tierKey{course: c.CourseID, tier: c.Complexity}
		gr.byTier[k] = append(gr.byTier[k], c)
	}
	for k, cs := range gr.byTier {
		sort.SliceStable(cs, func(i, j int) bool {
			if !cs[i].CreatedAt.Equal(cs[j].CreatedAt) {
				return cs[i].CreatedAt.Before(cs[j].CreatedAt)
			}
			return cs[i].ID < cs[j].ID
		})
		gr.byTier[k] = cs
	}

	// Topological sort (Kahn's algorithm), deterministic by ID.
	inDegree := make(map[string]int, len(gr.concepts))
	for _, c := range gr.concepts {
		inDegree[c.ID] = len(c.Prerequisites)
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
		gr.topoOrder = append(gr.topoOrder, *gr.byID[id])

		var ready []string
		for _, dep := range gr.dependents[id] {
			inDegree[dep.ConceptID]--
			if inDegree[dep.ConceptID] == 0 {
				ready = append(ready, dep.ConceptID)
			}
		}
		sort.Strings(ready)
		queue = append(queue, ready...)
	}

	return gr
}

// Concept returns a concept by ID.
func (g *Graph) Concept(id string) (Concept, error) {
	c, ok := g.byID[id]
	if !ok {
		return Concept{}, &NotFoundError{ID: id}
	}
	return *c, nil
}

// TopoOrder returns every concept with prerequisites before dependents.
func (g *Graph) TopoOrder() []Concept {
	return slices.Clone(g.topoOrder)
}

// Prerequisites returns the weighted prerequisite edges of a concept,
// strongest first. Unknown IDs return nil.
func (g *Graph) Prerequisites(id string) []Prerequisite {
	c, ok := g.byID[id]
	if !ok {
		return nil
	}
	return byStrength(c.Prerequisites)
}

// Dependents returns the concepts that list id as a prerequisite, with the
// strength of that edge, strongest first.
func (g *Graph) Dependents(id string) []Prerequisite {
	return byStrength(g.dependents[id])
}

// NextTierConcept returns the earliest-created concept one complexity tier
// above the given tier in the same course.
func (g *Graph) NextTierConcept(courseID string, tier Complexity) (Concept, bool) {
	next, ok := tier.Next()
	if !ok {
		return Concept{}, false
	}
	cs := g.byTier[tierKey{course: courseID, tier: next}]
	if len(cs) == 0 {
		return Concept{}, false
	}
	return cs[0], true
}

// byStrength returns a copy ordered by strength descending, then ID.
func byStrength(edges []Prerequisite) []Prerequisite {
	sorted := slices.Clone(edges)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Strength != sorted[j].Strength {
			return sorted[i].Strength > sorted[j].Strength
		}
		return sorted[i].ConceptID < sorted[j].ConceptID
	})
	return sorted
}
