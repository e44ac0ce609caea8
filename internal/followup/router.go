// Package followup decides whether a scored item should branch into a
// remedial prerequisite or an advanced follow-up concept.
package followup

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/abhisek/adaptiq/internal/conceptgraph"
)

// Kind is the direction of a follow-up.
type Kind string

const (
	KindNone         Kind = ""
	KindPrerequisite Kind = "PREREQUISITE"
	KindAdvanced     Kind = "ADVANCED"
)

// Graph is the prerequisite graph the router reads. *conceptgraph.Graph
// satisfies it.
type Graph interface {
	Concept(id string) (conceptgraph.Concept, error)
	Prerequisites(id string) []conceptgraph.Prerequisite
	Dependents(id string) []conceptgraph.Prerequisite
	NextTierConcept(courseID string, tier conceptgraph.Complexity) (conceptgraph.Concept, bool)
}

// Decision is the outcome of routing one scored item.
type Decision struct {
	ShouldFollowUp       bool
	Kind                 Kind
	RelatedConceptID     string
	DifficultyAdjustment int
	Rationale            string
}

// Config holds the routing thresholds.
type Config struct {
	// Budget is the maximum number of follow-ups per original item.
	Budget int `yaml:"budget"`

	// Scores strictly below LowScore route to a prerequisite; strictly above
	// HighScore route to an advanced concept.
	LowScore  int `yaml:"low_score"`
	HighScore int `yaml:"high_score"`

	PrerequisiteAdjustment int `yaml:"prerequisite_adjustment"`
	AdvancedAdjustment     int `yaml:"advanced_adjustment"`
}

// DefaultConfig returns the standard routing thresholds.
func DefaultConfig() Config {
	return Config{
		Budget:                 2,
		LowScore:               60,
		HighScore:              85,
		PrerequisiteAdjustment: -20,
		AdvancedAdjustment:     20,
	}
}

// Router routes follow-ups over a concept graph.
type Router struct {
	cfg    Config
	graph  Graph
	logger *zap.Logger
}

// New creates a Router. A nil logger is replaced with a no-op logger.
func New(cfg Config, graph Graph, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{cfg: cfg, graph: graph, logger: logger}
}

// Budget returns the per-item follow-up cap.
func (r *Router) Budget() int {
	return r.cfg.Budget
}

// Route decides the follow-up for an item on parentConceptID answered with
// score, given how many follow-ups that item has already produced.
func (r *Router) Route(parentConceptID string, score, followUpsUsed int) (*Decision, error) {
	// The budget is per original item and applies regardless of score.
	if followUpsUsed >= r.cfg.Budget {
		return &Decision{
			Rationale: fmt.Sprintf("Follow-up budget exhausted (%d of %d used for this item)", followUpsUsed, r.cfg.Budget),
		}, nil
	}

	parent, err := r.graph.Concept(parentConceptID)
	if err != nil {
		return nil, fmt.Errorf("route follow-up: %w", err)
	}

	var d *Decision
	switch {
	case score < r.cfg.LowScore:
		d = r.prerequisite(parent, score)
	case score > r.cfg.HighScore:
		d = r.advanced(parent, score)
	default:
		d = &Decision{
			Rationale: fmt.Sprintf("Score %d within %d-%d: continue with the main assessment", score, r.cfg.LowScore, r.cfg.HighScore),
		}
	}

	r.logger.Debug("follow-up routed",
		zap.String("parent", parent.ID),
		zap.Int("score", score),
		zap.Int("used", followUpsUsed),
		zap.Bool("follow_up", d.ShouldFollowUp),
		zap.String("kind", string(d.Kind)),
		zap.String("target", d.RelatedConceptID))

	return d, nil
}

func (r *Router) prerequisite(parent conceptgraph.Concept, score int) *Decision {
	prereqs := r.graph.Prerequisites(parent.ID)
	if len(prereqs) == 0 {
		return &Decision{
			Kind:      KindPrerequisite,
			Rationale: fmt.Sprintf("Score %d suggests a gap, but %q has no prerequisite concepts", score, parent.ID),
		}
	}
	best := prereqs[0]
	return &Decision{
		ShouldFollowUp:       true,
		Kind:                 KindPrerequisite,
		RelatedConceptID:     best.ConceptID,
		DifficultyAdjustment: r.cfg.PrerequisiteAdjustment,
		Rationale: fmt.Sprintf("Score %d below %d: reviewing prerequisite %q (strength %.2f)",
			score, r.cfg.LowScore, best.ConceptID, best.Strength),
	}
}

func (r *Router) advanced(parent conceptgraph.Concept, score int) *Decision {
	if deps := r.graph.Dependents(parent.ID); len(deps) > 0 {
		best := deps[0]
		return &Decision{
			ShouldFollowUp:       true,
			Kind:                 KindAdvanced,
			RelatedConceptID:     best.ConceptID,
			DifficultyAdjustment: r.cfg.AdvancedAdjustment,
			Rationale: fmt.Sprintf("Score %d above %d: extending to dependent concept %q (strength %.2f)",
				score, r.cfg.HighScore, best.ConceptID, best.Strength),
		}
	}

	if next, ok := r.graph.NextTierConcept(parent.CourseID, parent.Complexity); ok {
		return &Decision{
			ShouldFollowUp:       true,
			Kind:                 KindAdvanced,
			RelatedConceptID:     next.ID,
			DifficultyAdjustment: r.cfg.AdvancedAdjustment,
			Rationale: fmt.Sprintf("Score %d above %d: extending to %s concept %q",
				score, r.cfg.HighScore, next.Complexity, next.ID),
		}
	}

	return &Decision{
		Kind:      KindAdvanced,
		Rationale: fmt.Sprintf("Score %d shows strength, but no advanced concept follows %q", score, parent.ID),
	}
}
