package conceptgraph

import (
	"fmt"
	"strings"
	"time"
)

// Complexity is a concept's difficulty tier within its course.
type Complexity string

const (
	ComplexityBasic        Complexity = "BASIC"
	ComplexityIntermediate Complexity = "INTERMEDIATE"
	ComplexityAdvanced     Complexity = "ADVANCED"
)

// AllComplexities returns the tiers from lowest to highest.
func AllComplexities() []Complexity {
	return []Complexity{
		ComplexityBasic,
		ComplexityIntermediate,
		ComplexityAdvanced,
	}
}

// ParseComplexity parses a tier name, case-insensitively.
func ParseComplexity(s string) (Complexity, error) {
	c := Complexity(strings.ToUpper(strings.TrimSpace(s)))
	if c.Valid() {
		return c, nil
	}
	return "", fmt.Errorf("unknown complexity: %q", s)
}

// Valid reports whether c is a known tier.
func (c Complexity) Valid() bool {
	switch c {
	case ComplexityBasic, ComplexityIntermediate, ComplexityAdvanced:
		return true
	}
	return false
}

// Next returns the next-higher tier. ok is false at the top tier.
func (c Complexity) Next() (next Complexity, ok bool) {
	switch c {
	case ComplexityBasic:
		return ComplexityIntermediate, true
	case ComplexityIntermediate:
		return ComplexityAdvanced, true
	}
	return "", false
}

// Prerequisite is a weighted edge to a concept that should be learned first.
type Prerequisite struct {
	ConceptID string
	Strength  float64 // 0.0-1.0
}

// Concept is a single node in the prerequisite graph.
type Concept struct {
	ID            string
	Name          string
	CourseID      string
	Complexity    Complexity
	CreatedAt     time.Time
	Prerequisites []Prerequisite
}
