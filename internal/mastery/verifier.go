// Package mastery verifies durable concept mastery from a learner's recent
// responses.
package mastery

import (
	"fmt"
	"math"
	"time"

	"github.com/abhisek/adaptiq/internal/conceptgraph"
	"github.com/abhisek/adaptiq/internal/history"
)

// Config holds the verification thresholds.
type Config struct {
	// HighScore is the score a response must exceed to count as high.
	HighScore int `yaml:"high_score"`

	// ConsecutiveRequired is how many of the most recent responses must be high.
	ConsecutiveRequired int `yaml:"consecutive_required"`

	// MinTypes is the number of distinct response types required.
	MinTypes int `yaml:"min_types"`

	// DifficultyFloors maps a complexity tier to the minimum mean item
	// difficulty. Tiers absent from the map have no floor.
	DifficultyFloors map[conceptgraph.Complexity]float64 `yaml:"difficulty_floors"`

	// MinCalibrated is the fewest responses with a confidence rating.
	MinCalibrated int `yaml:"min_calibrated"`

	// MaxCalibrationError is the largest acceptable mean |confidence - score|.
	MaxCalibrationError float64 `yaml:"max_calibration_error"`

	// MinSpacing is the span the recent high scores must cover.
	MinSpacing time.Duration `yaml:"min_spacing"`
}

// DefaultConfig returns the standard verification thresholds.
func DefaultConfig() Config {
	return Config{
		HighScore:           80,
		ConsecutiveRequired: 3,
		MinTypes:            2,
		DifficultyFloors: map[conceptgraph.Complexity]float64{
			conceptgraph.ComplexityIntermediate: 40,
			conceptgraph.ComplexityAdvanced:     70,
		},
		MinCalibrated:       3,
		MaxCalibrationError: 15,
		MinSpacing:          48 * time.Hour,
	}
}

// Verifier evaluates the mastery criteria. It is stateless.
type Verifier struct {
	cfg Config
}

// NewVerifier creates a Verifier.
func NewVerifier(cfg Config) *Verifier {
	return &Verifier{cfg: cfg}
}

// Check evaluates all five criteria over the learner's recent responses for
// one concept.
func (v *Verifier) Check(responses []history.Response, complexity conceptgraph.Complexity) *Report {
	sorted := history.SortByDateDesc(responses)

	criteria := Criteria{
		ConsecutiveHighScores:   v.consecutiveHighScores(sorted),
		MultipleAssessmentTypes: v.multipleTypes(sorted),
		AppropriateDifficulty:   v.appropriateDifficulty(sorted, complexity),
		AccurateCalibration:     v.accurateCalibration(sorted),
		TimeSpaced:              v.timeSpaced(sorted),
	}

	status := StatusInProgress
	switch {
	case len(sorted) == 0:
		status = StatusNotStarted
	case criteria.AllMet():
		status = StatusVerified
	}

	return &Report{
		Status:    status,
		Criteria:  criteria,
		NextSteps: v.nextSteps(criteria, complexity),
		Responses: len(sorted),
	}
}

func (v *Verifier) consecutiveHighScores(sorted []history.Response) bool {
	if len(sorted) < v.cfg.ConsecutiveRequired {
		return false
	}
	for _, r := range sorted[:v.cfg.ConsecutiveRequired] {
		if r.Score <= v.cfg.HighScore {
			return false
		}
	}
	return true
}

func (v *Verifier) multipleTypes(sorted []history.Response) bool {
	types := make(map[history.ResponseType]bool)
	for _, r := range sorted {
		types[r.Type] = true
	}
	return len(types) >= v.cfg.MinTypes
}

func (v *Verifier) appropriateDifficulty(sorted []history.Response, complexity conceptgraph.Complexity) bool {
	floor, ok := v.cfg.DifficultyFloors[complexity]
	if !ok {
		return true
	}
	if len(sorted) == 0 {
		return false
	}
	sum := 0
	for _, r := range sorted {
		sum += r.Difficulty
	}
	return float64(sum)/float64(len(sorted)) >= floor
}

func (v *Verifier) accurateCalibration(sorted []history.Response) bool {
	var total float64
	n := 0
	for _, r := range sorted {
		if r.CalibrationDelta == 0 {
			continue
		}
		total += math.Abs(float64(r.CalibrationDelta))
		n++
	}
	if n < v.cfg.MinCalibrated {
		return false
	}
	return total/float64(n) <= v.cfg.MaxCalibrationError
}

func (v *Verifier) timeSpaced(sorted []history.Response) bool {
	var high []history.Response
	for _, r := range sorted {
		if r.Score > v.cfg.HighScore {
			high = append(high, r)
			if len(high) == v.cfg.ConsecutiveRequired {
				break
			}
		}
	}
	if len(high) < v.cfg.ConsecutiveRequired {
		return false
	}
	newest := high[0].Date
	oldest := high[len(high)-1].Date
	return newest.Sub(oldest) >= v.cfg.MinSpacing
}

func (v *Verifier) nextSteps(c Criteria, complexity conceptgraph.Complexity) []string {
	unmet := c.Unmet()
	if len(unmet) == 0 {
		return []string{"Mastery verified! You have shown consistent, well-calibrated performance over time. Move on to the next concept."}
	}

	steps := make([]string, 0, len(unmet))
	for _, crit := range unmet {
		switch crit {
		case CriterionConsecutiveHighScores:
			steps = append(steps, fmt.Sprintf("Score above %d%% on %d assessments in a row.", v.cfg.HighScore, v.cfg.ConsecutiveRequired))
		case CriterionMultipleAssessmentTypes:
			steps = append(steps, "Complete a different assessment type, such as a clinical reasoning case, to show you can apply the concept.")
		case CriterionAppropriateDifficulty:
			steps = append(steps, fmt.Sprintf("Practice with harder items: your average item difficulty should reach %.0f for a %s concept.",
				v.cfg.DifficultyFloors[complexity], complexity))
		case CriterionAccurateCalibration:
			steps = append(steps, fmt.Sprintf("Rate your confidence before answering: at least %d rated responses within %.0f points of your score are needed.",
				v.cfg.MinCalibrated, v.cfg.MaxCalibrationError))
		case CriterionTimeSpaced:
			steps = append(steps, fmt.Sprintf("Spread your high scores out: the last %d should span at least %d days.",
				v.cfg.ConsecutiveRequired, int(v.cfg.MinSpacing.Hours()/24)))
		}
	}
	return steps
}
