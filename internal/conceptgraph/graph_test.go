package conceptgraph

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func testConcepts() []Concept {
	return []Concept{
		{ID: "cell-bio", CourseID: "phys", Complexity: ComplexityBasic, CreatedAt: epoch},
		{ID: "homeostasis", CourseID: "phys", Complexity: ComplexityBasic, CreatedAt: epoch.Add(time.Hour)},
		{
			ID: "cardiac-output", CourseID: "phys", Complexity: ComplexityIntermediate, CreatedAt: epoch.Add(3 * time.Hour),
			Prerequisites: []Prerequisite{
				{ConceptID: "cell-bio", Strength: 0.4},
				{ConceptID: "homeostasis", Strength: 0.9},
			},
		},
		{ID: "renal", CourseID: "phys", Complexity: ComplexityIntermediate, CreatedAt: epoch.Add(2 * time.Hour)},
		{
			ID: "heart-failure", CourseID: "phys", Complexity: ComplexityAdvanced, CreatedAt: epoch.Add(4 * time.Hour),
			Prerequisites: []Prerequisite{{ConceptID: "cardiac-output", Strength: 0.8}},
		},
		{ID: "pharm-basics", CourseID: "pharm", Complexity: ComplexityIntermediate, CreatedAt: epoch},
	}
}

func testGraph(t *testing.T) *Graph {
	t.Helper()
	g, err := New(testConcepts())
	require.NoError(t, err)
	return g
}

func TestConcept_Lookup(t *testing.T) {
	g := testGraph(t)

	c, err := g.Concept("renal")
	require.NoError(t, err)
	assert.Equal(t, ComplexityIntermediate, c.Complexity)

	_, err = g.Concept("missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
	var nf *NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "missing", nf.ID)
}

func TestPrerequisites_StrongestFirst(t *testing.T) {
	g := testGraph(t)
	got := g.Prerequisites("cardiac-output")
	require.Len(t, got, 2)
	assert.Equal(t, "homeostasis", got[0].ConceptID)
	assert.Equal(t, 0.9, got[0].Strength)
	assert.Nil(t, g.Prerequisites("unknown"))
}

func TestDependents_CarryEdgeStrength(t *testing.T) {
	g := testGraph(t)
	got := g.Dependents("cardiac-output")
	require.Len(t, got, 1)
	assert.Equal(t, Prerequisite{ConceptID: "heart-failure", Strength: 0.8}, got[0])
	assert.Empty(t, g.Dependents("heart-failure"))
}

func TestNextTierConcept(t *testing.T) {
	g := testGraph(t)

	// renal was created before cardiac-output.
	c, ok := g.NextTierConcept("phys", ComplexityBasic)
	require.True(t, ok)
	assert.Equal(t, "renal", c.ID)

	c, ok = g.NextTierConcept("phys", ComplexityIntermediate)
	require.True(t, ok)
	assert.Equal(t, "heart-failure", c.ID)

	_, ok = g.NextTierConcept("phys", ComplexityAdvanced)
	assert.False(t, ok, "no tier above advanced")

	_, ok = g.NextTierConcept("pharm", ComplexityIntermediate)
	assert.False(t, ok, "pharm has no advanced concepts")
}

func TestTopoOrder_PrerequisitesFirst(t *testing.T) {
	g := testGraph(t)
	pos := make(map[string]int)
	for i, c := range g.TopoOrder() {
		pos[c.ID] = i
	}
	require.Len(t, pos, len(testConcepts()))
	for _, c := range testConcepts() {
		for _, p := range c.Prerequisites {
			assert.Less(t, pos[p.ConceptID], pos[c.ID], "%s should precede %s", p.ConceptID, c.ID)
		}
	}
}

func TestComplexity_Next(t *testing.T) {
	next, ok := ComplexityBasic.Next()
	assert.True(t, ok)
	assert.Equal(t, ComplexityIntermediate, next)

	_, ok = ComplexityAdvanced.Next()
	assert.False(t, ok)
}

func TestParseComplexity(t *testing.T) {
	c, err := ParseComplexity("advanced")
	require.NoError(t, err)
	assert.Equal(t, ComplexityAdvanced, c)

	_, err = ParseComplexity("expert")
	assert.Error(t, err)
}

func TestNew_ValidationErrors(t *testing.T) {
	tests := []struct {
		name     string
		concepts []Concept
		wantMsg  string
	}{
		{
			name: "duplicate",
			concepts: []Concept{
				{ID: "a", CourseID: "c", Complexity: ComplexityBasic},
				{ID: "a", CourseID: "c", Complexity: ComplexityBasic},
			},
			wantMsg: "duplicate concept ID",
		},
		{
			name: "dangling",
			concepts: []Concept{
				{ID: "a", CourseID: "c", Complexity: ComplexityBasic, Prerequisites: []Prerequisite{{ConceptID: "zz", Strength: 0.5}}},
			},
			wantMsg: "nonexistent prerequisite",
		},
		{
			name: "strength out of range",
			concepts: []Concept{
				{ID: "a", CourseID: "c", Complexity: ComplexityBasic},
				{ID: "b", CourseID: "c", Complexity: ComplexityBasic, Prerequisites: []Prerequisite{{ConceptID: "a", Strength: 1.5}}},
			},
			wantMsg: "strength must be in [0, 1]",
		},
		{
			name: "cycle",
			concepts: []Concept{
				{ID: "a", CourseID: "c", Complexity: ComplexityBasic, Prerequisites: []Prerequisite{{ConceptID: "b", Strength: 0.5}}},
				{ID: "b", CourseID: "c", Complexity: ComplexityBasic, Prerequisites: []Prerequisite{{ConceptID: "a", Strength: 0.5}}},
			},
			wantMsg: "cycle detected",
		},
		{
			name: "unknown complexity",
			concepts: []Concept{
				{ID: "a", CourseID: "c", Complexity: "EXPERT"},
			},
			wantMsg: "unknown complexity",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.concepts)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestLoad_YAMLCatalog(t *testing.T) {
	const doc = `
concepts:
  - id: fluids
    name: Body Fluids
    course: phys
    complexity: basic
    created_at: 2026-01-01T00:00:00Z
  - id: acid-base
    name: Acid-Base Balance
    course: phys
    complexity: intermediate
    created_at: 2026-01-02T00:00:00Z
    prerequisites:
      - id: fluids
        strength: 0.75
`
	g, err := Load(strings.NewReader(doc))
	require.NoError(t, err)

	c, err := g.Concept("acid-base")
	require.NoError(t, err)
	assert.Equal(t, "Acid-Base Balance", c.Name)
	assert.Equal(t, ComplexityIntermediate, c.Complexity)
	assert.Equal(t, []Prerequisite{{ConceptID: "fluids", Strength: 0.75}}, c.Prerequisites)
}

func TestLoad_RejectsUnknownFields(t *testing.T) {
	const doc = `
concepts:
  - id: fluids
    course: phys
    complexity: basic
    difficulty: 3
`
	_, err := Load(strings.NewReader(doc))
	assert.Error(t, err)
}
