package session

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/abhisek/adaptiq/internal/difficulty"
	"github.com/abhisek/adaptiq/internal/mastery"
)

// closingQuestionID identifies the synthesized confidence-building item.
const closingQuestionID = "closing"

// Adaptation explains one recorded item and the difficulty change after it.
type Adaptation struct {
	Position   int    `json:"position"`
	QuestionID string `json:"question_id"`
	Score      int    `json:"score"`
	From       int    `json:"from"`
	To         int    `json:"to"`
	Delta      int    `json:"delta"`
	Rationale  string `json:"rationale"`
	Synthetic  bool   `json:"synthetic,omitempty"`
}

// Summary is produced when a session ends.
type Summary struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
	ConceptID string `json:"concept_id"`

	TotalQuestions        int             `json:"total_questions"`
	DifficultyProgression []int           `json:"difficulty_progression"`
	Adaptations           []Adaptation    `json:"adaptations"`
	Recalibrations        []Recalibration `json:"recalibrations"`

	// FinalKnowledgeEstimate is nil when no item was scored.
	FinalKnowledgeEstimate *float64 `json:"final_knowledge_estimate,omitempty"`
	ConfidenceInterval     *float64 `json:"confidence_interval,omitempty"`

	MasteryStatus    mastery.Status  `json:"mastery_status"`
	MasteryReport    *mastery.Report `json:"mastery_report,omitempty"`
	MasteryCandidate bool            `json:"mastery_candidate"`

	DurationMs      int64      `json:"duration_ms"`
	Efficiency      Efficiency `json:"efficiency"`
	EfficiencyScore float64    `json:"efficiency_score"`

	// EndedOnHighNote is set when a closing item was synthesized.
	EndedOnHighNote bool `json:"ended_on_high_note"`

	CreatedAt time.Time `json:"created_at"`
	EndedAt   time.Time `json:"ended_at"`
}

// EndStrategically terminates the session and returns its summary. When the
// last few scores are low, a final easier item with an assumed high score is
// appended first so the session does not end on a low point.
func (o *Orchestrator) EndStrategically(ctx context.Context, sessionID string) (*Summary, error) {
	s, err := o.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	concept, err := o.concept(s.ConceptID)
	if err != nil {
		return nil, err
	}
	if err := s.transition(StateTerminated); err != nil {
		return nil, err
	}

	now := o.now()
	closed := false
	if recent := lastScores(s.Trajectory, o.cfg.ClosingWindow); len(recent) > 0 && mean(recent) < o.cfg.ClosingMeanFloor {
		eased := difficulty.Clamp(s.CurrentDifficulty - o.cfg.ClosingEasing)
		s.appendEntry(TrajectoryEntry{
			QuestionID: closingQuestionID,
			Difficulty: eased,
			Score:      o.cfg.ClosingAssumedScore,
			Rationale: fmt.Sprintf("Recent average %.1f below %.0f: closing on an easier item at difficulty %d",
				mean(recent), o.cfg.ClosingMeanFloor, eased),
			Synthetic: true,
			Timestamp: now,
		})
		s.CurrentDifficulty = eased
		closed = true
	}

	responses, err := o.responses.RecentResponses(ctx, s.UserID, s.ConceptID, o.cfg.MasteryHistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("load response history: %w", err)
	}
	report := o.verifier.Check(responses, concept.Complexity)

	if est := o.estimate(s); est != nil {
		theta, ci := est.Theta, est.ConfidenceInterval
		s.IRTEstimate = &theta
		s.ConfidenceInterval = &ci
	}
	s.EndedAt = &now
	s.UpdatedAt = now

	sum := o.buildSummary(s, report, closed, now)

	if err := o.store.UpdateSession(ctx, s); err != nil {
		return nil, fmt.Errorf("update session: %w", err)
	}
	if err := o.store.SaveSummary(ctx, sum); err != nil {
		return nil, fmt.Errorf("save summary: %w", err)
	}

	o.logger.Info("session ended",
		zap.String("session", s.ID),
		zap.Int("questions", sum.TotalQuestions),
		zap.Bool("closing_item", closed),
		zap.String("mastery", string(sum.MasteryStatus)),
		zap.Float64("time_saved_pct", sum.EfficiencyScore))

	return sum, nil
}

func (o *Orchestrator) buildSummary(s *AdaptiveSession, report *mastery.Report, closed bool, now time.Time) *Summary {
	entries := s.Trajectory.Entries()
	adaptations := make([]Adaptation, len(entries))
	for i, e := range entries {
		adaptations[i] = Adaptation{
			Position:   i,
			QuestionID: e.QuestionID,
			Score:      e.Score,
			From:       e.Difficulty,
			To:         difficulty.Clamp(e.Difficulty + e.Adjustment),
			Delta:      e.Adjustment,
			Rationale:  e.Rationale,
			Synthetic:  e.Synthetic,
		}
	}

	eff := o.efficiency(s)
	sum := &Summary{
		SessionID:             s.ID,
		UserID:                s.UserID,
		ConceptID:             s.ConceptID,
		TotalQuestions:        s.QuestionCount,
		DifficultyProgression: s.Trajectory.Difficulties(),
		Adaptations:           adaptations,
		Recalibrations:        append([]Recalibration(nil), s.Recalibrations...),
		MasteryStatus:         report.Status,
		MasteryReport:         report,
		MasteryCandidate:      s.MasteryCandidate,
		DurationMs:            now.Sub(s.CreatedAt).Milliseconds(),
		Efficiency:            eff,
		EfficiencyScore:       eff.TimeSavedPercent,
		EndedOnHighNote:       closed,
		CreatedAt:             s.CreatedAt,
		EndedAt:               now,
	}
	if s.IRTEstimate != nil {
		v := *s.IRTEstimate
		sum.FinalKnowledgeEstimate = &v
	}
	if s.ConfidenceInterval != nil {
		v := *s.ConfidenceInterval
		sum.ConfidenceInterval = &v
	}
	return sum
}

// lastScores returns up to n of the most recent scores, oldest first.
func lastScores(t Trajectory, n int) []int {
	scores := t.Scores()
	if len(scores) > n {
		scores = scores[len(scores)-n:]
	}
	return scores
}
