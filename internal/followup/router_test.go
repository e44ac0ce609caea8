package followup

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/abhisek/adaptiq/internal/conceptgraph"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func testGraph(t *testing.T) *conceptgraph.Graph {
	t.Helper()
	g, err := conceptgraph.New([]conceptgraph.Concept{
		{ID: "fluids", CourseID: "phys", Complexity: conceptgraph.ComplexityBasic, CreatedAt: epoch},
		{ID: "membranes", CourseID: "phys", Complexity: conceptgraph.ComplexityBasic, CreatedAt: epoch},
		{
			ID: "acid-base", CourseID: "phys", Complexity: conceptgraph.ComplexityIntermediate, CreatedAt: epoch.Add(time.Hour),
			Prerequisites: []conceptgraph.Prerequisite{
				{ConceptID: "fluids", Strength: 0.9},
				{ConceptID: "membranes", Strength: 0.3},
			},
		},
		{ID: "renal", CourseID: "phys", Complexity: conceptgraph.ComplexityIntermediate, CreatedAt: epoch.Add(2 * time.Hour)},
		{
			ID: "abg-interpretation", CourseID: "phys", Complexity: conceptgraph.ComplexityAdvanced, CreatedAt: epoch.Add(3 * time.Hour),
			Prerequisites: []conceptgraph.Prerequisite{{ConceptID: "acid-base", Strength: 0.7}},
		},
		{ID: "shock", CourseID: "phys", Complexity: conceptgraph.ComplexityAdvanced, CreatedAt: epoch.Add(4 * time.Hour)},
	})
	if err != nil {
		t.Fatalf("build graph: %v", err)
	}
	return g
}

func newTestRouter(t *testing.T) *Router {
	return New(DefaultConfig(), testGraph(t), nil)
}

func TestRoute_LowScoreFollowsStrongestPrerequisite(t *testing.T) {
	d, err := newTestRouter(t).Route("acid-base", 55, 0)
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	if !d.ShouldFollowUp {
		t.Fatal("expected a follow-up")
	}
	if d.Kind != KindPrerequisite {
		t.Errorf("Kind = %q, want PREREQUISITE", d.Kind)
	}
	if d.RelatedConceptID != "fluids" {
		t.Errorf("RelatedConceptID = %q, want fluids", d.RelatedConceptID)
	}
	if d.DifficultyAdjustment != -20 {
		t.Errorf("DifficultyAdjustment = %d, want -20", d.DifficultyAdjustment)
	}
}

func TestRoute_LowScoreWithoutPrerequisites(t *testing.T) {
	d, err := newTestRouter(t).Route("fluids", 30, 0)
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	if d.ShouldFollowUp {
		t.Error("expected no follow-up when no prerequisite exists")
	}
	if d.Rationale == "" {
		t.Error("expected a rationale")
	}
}

func TestRoute_HighScorePrefersDependent(t *testing.T) {
	d, err := newTestRouter(t).Route("acid-base", 92, 1)
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	if !d.ShouldFollowUp || d.Kind != KindAdvanced {
		t.Fatalf("got (%v, %q), want advanced follow-up", d.ShouldFollowUp, d.Kind)
	}
	if d.RelatedConceptID != "abg-interpretation" {
		t.Errorf("RelatedConceptID = %q, want abg-interpretation", d.RelatedConceptID)
	}
	if d.DifficultyAdjustment != 20 {
		t.Errorf("DifficultyAdjustment = %d, want 20", d.DifficultyAdjustment)
	}
}

func TestRoute_HighScoreFallsBackToNextTier(t *testing.T) {
	// membranes has a dependent (acid-base) so use renal, which has none.
	d, err := newTestRouter(t).Route("renal", 90, 0)
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	if !d.ShouldFollowUp {
		t.Fatal("expected a follow-up")
	}
	// Earliest-created advanced concept in the course.
	if d.RelatedConceptID != "abg-interpretation" {
		t.Errorf("RelatedConceptID = %q, want abg-interpretation", d.RelatedConceptID)
	}
}

func TestRoute_HighScoreAtTopTier(t *testing.T) {
	d, err := newTestRouter(t).Route("shock", 99, 0)
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	if d.ShouldFollowUp {
		t.Error("expected no follow-up above the top tier")
	}
}

func TestRoute_MidBandNoFollowUp(t *testing.T) {
	for _, score := range []int{60, 72, 85} {
		d, err := newTestRouter(t).Route("acid-base", score, 0)
		if err != nil {
			t.Fatalf("route: %v", err)
		}
		if d.ShouldFollowUp {
			t.Errorf("score %d: expected no follow-up", score)
		}
	}
}

func TestRoute_BudgetCheckedFirst(t *testing.T) {
	r := newTestRouter(t)
	for _, score := range []int{10, 70, 95} {
		d, err := r.Route("acid-base", score, 2)
		if err != nil {
			t.Fatalf("route: %v", err)
		}
		if d.ShouldFollowUp {
			t.Errorf("score %d: follow-up allowed past budget", score)
		}
		if !strings.Contains(d.Rationale, "budget exhausted") {
			t.Errorf("Rationale = %q, want budget exhausted", d.Rationale)
		}
	}

	// Budget wins even for unknown concepts.
	if _, err := r.Route("missing", 10, 2); err != nil {
		t.Errorf("unexpected error past budget: %v", err)
	}
}

func TestRoute_NeverMoreThanTwoFollowUpsPerItem(t *testing.T) {
	r := newTestRouter(t)
	used := 0
	for i := 0; i < 5; i++ {
		d, err := r.Route("acid-base", 40, used)
		if err != nil {
			t.Fatalf("route: %v", err)
		}
		if d.ShouldFollowUp {
			used++
		}
	}
	if used != 2 {
		t.Errorf("follow-ups = %d, want 2", used)
	}
}

func TestRoute_UnknownConcept(t *testing.T) {
	_, err := newTestRouter(t).Route("missing", 40, 0)
	if !errors.Is(err, conceptgraph.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
