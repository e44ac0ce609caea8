package conceptgraph

import (
	"fmt"
	"strings"
)

// validateConcepts performs all structural checks on the given concept set.
// Returns a combined error describing all problems found, or nil if valid.
func validateConcepts(concepts []Concept) error {
	var errs []string

	idSet := make(map[string]bool, len(concepts))
	for _, c := range concepts {
		if c.ID == "" {
			errs = append(errs, "concept with empty ID")
			continue
		}
		if idSet[c.ID] {
			errs = append(errs, fmt.Sprintf("duplicate concept ID: %q", c.ID))
		}
		idSet[c.ID] = true
	}

	for _, c := range concepts {
		if !c.Complexity.Valid() {
			errs = append(errs, fmt.Sprintf("concept %q has unknown complexity %q", c.ID, c.Complexity))
		}
		if c.CourseID == "" {
			errs = append(errs, fmt.Sprintf("concept %q has no course", c.ID))
		}
		for _, p := range c.Prerequisites {
			if !idSet[p.ConceptID] {
				errs = append(errs, fmt.Sprintf("concept %q references nonexistent prerequisite %q", c.ID, p.ConceptID))
			}
			if p.ConceptID == c.ID {
				errs = append(errs, fmt.Sprintf("concept %q lists itself as a prerequisite", c.ID))
			}
			if p.Strength < 0 || p.Strength > 1 {
				errs = append(errs, fmt.Sprintf("concept %q prerequisite %q: strength must be in [0, 1], got %f", c.ID, p.ConceptID, p.Strength))
			}
		}
	}

	// Check for cycles using Kahn's algorithm.
	inDegree := make(map[string]int, len(concepts))
	adjList := make(map[string][]string)
	for _, c := range concepts {
		inDegree[c.ID] = len(c.Prerequisites)
		for _, p := range c.Prerequisites {
			adjList[p.ConceptID] = append(adjList[p.ConceptID], c.ID)
		}
	}

	var queue []string
	for _, c := range concepts {
		if inDegree[c.ID] == 0 {
			queue = append(queue, c.ID)
		}
	}

	visited := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		visited++
		for _, depID := range adjList[id] {
			inDegree[depID]--
			if inDegree[depID] == 0 {
				queue = append(queue, depID)
			}
		}
	}

	if visited < len(inDegree) {
		var cycleNodes []string
		for _, c := range concepts {
			if inDegree[c.ID] > 0 {
				cycleNodes = append(cycleNodes, c.ID)
			}
		}
		errs = append(errs, fmt.Sprintf("cycle detected involving concepts: %s", strings.Join(cycleNodes, ", ")))
	}

	if len(errs) > 0 {
		return fmt.Errorf("concept graph validation failed:\n  %s", strings.Join(errs, "\n  "))
	}
	return nil
}
