// Package session runs adaptive assessment sessions: it owns the per-session
// state machine and coordinates difficulty calibration, ability estimation,
// follow-up routing and mastery verification.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/abhisek/adaptiq/internal/conceptgraph"
	"github.com/abhisek/adaptiq/internal/difficulty"
	"github.com/abhisek/adaptiq/internal/followup"
	"github.com/abhisek/adaptiq/internal/history"
	"github.com/abhisek/adaptiq/internal/irt"
	"github.com/abhisek/adaptiq/internal/mastery"
)

// ErrInvalidScore is returned for scores outside 0-100.
var ErrInvalidScore = errors.New("score must be between 0 and 100")

// Store persists sessions and their summaries. GetSession must return an
// error matching ErrNotFound for unknown IDs. The caller guarantees at most
// one writer per session ID.
type Store interface {
	CreateSession(ctx context.Context, s *AdaptiveSession) error
	GetSession(ctx context.Context, id string) (*AdaptiveSession, error)
	UpdateSession(ctx context.Context, s *AdaptiveSession) error
	SaveSummary(ctx context.Context, sum *Summary) error
}

// TurnInput is the outcome of the previous item. Score is nil on the first
// turn, before any item has been answered.
type TurnInput struct {
	QuestionID string

	// ParentQuestionID is set when the answered item was itself a follow-up,
	// so that the follow-up budget is charged to the original question.
	ParentQuestionID string

	Score *int
}

// Score returns a pointer to v, for building a TurnInput.
func Score(v int) *int { return &v }

// Efficiency compares an adaptive session with a fixed-length assessment.
type Efficiency struct {
	QuestionsAsked   int     `json:"questions_asked"`
	QuestionsSaved   int     `json:"questions_saved"`
	TimeSavedPercent float64 `json:"time_saved_percent"`
}

// TurnResult is returned by ConductAssessment.
type TurnResult struct {
	SessionID          string
	NextItemDifficulty int
	RecommendBreak     bool
	BreakReason        string
	CanStopEarly       bool
	Efficiency         Efficiency

	// Adjustment is the difficulty change applied after the answered item,
	// nil on the first turn.
	Adjustment *difficulty.Adjustment

	// Estimate is nil until an item has been scored.
	Estimate *irt.Estimate

	// ExpectedAccuracy is the modelled chance of answering the next item
	// correctly, zero without an estimate.
	ExpectedAccuracy float64

	// FollowUp is the routing decision for the answered item.
	FollowUp           *followup.Decision
	FollowUpDifficulty int

	MasteryCandidate bool
}

// TerminationCheck is returned by ShouldTerminate.
type TerminationCheck struct {
	Terminate        bool
	Reason           string
	MasteryCandidate bool
	MasteryStatus    mastery.Status
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithConfig sets the session thresholds.
func WithConfig(cfg Config) Option {
	return func(o *Orchestrator) { o.cfg = cfg }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithCalibrator replaces the difficulty calibrator.
func WithCalibrator(c *difficulty.Calibrator) Option {
	return func(o *Orchestrator) { o.calibrator = c }
}

// WithEstimator replaces the ability estimator.
func WithEstimator(e *irt.Estimator) Option {
	return func(o *Orchestrator) { o.estimator = e }
}

// WithRouter replaces the follow-up router.
func WithRouter(r *followup.Router) Option {
	return func(o *Orchestrator) { o.router = r }
}

// WithVerifier replaces the mastery verifier.
func WithVerifier(v *mastery.Verifier) Option {
	return func(o *Orchestrator) { o.verifier = v }
}

// WithIDGenerator sets the session ID generator.
func WithIDGenerator(gen func() string) Option {
	return func(o *Orchestrator) { o.newID = gen }
}

// Orchestrator drives adaptive sessions. It keeps no session state of its
// own; every operation loads the session from the Store and writes it back.
type Orchestrator struct {
	cfg       Config
	store     Store
	responses history.Source
	graph     followup.Graph

	calibrator *difficulty.Calibrator
	estimator  *irt.Estimator
	router     *followup.Router
	verifier   *mastery.Verifier

	logger *zap.Logger
	now    func() time.Time
	newID  func() string
}

// New creates an Orchestrator. Engines not supplied through options are
// built from their default configs.
func New(store Store, responses history.Source, graph followup.Graph, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:       DefaultConfig(),
		store:     store,
		responses: responses,
		graph:     graph,
		logger:    zap.NewNop(),
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.calibrator == nil {
		o.calibrator = difficulty.New(difficulty.DefaultConfig(), difficulty.WithLogger(o.logger))
	}
	if o.estimator == nil {
		o.estimator = irt.New(irt.DefaultConfig())
	}
	if o.router == nil {
		o.router = followup.New(followup.DefaultConfig(), graph, o.logger)
	}
	if o.verifier == nil {
		o.verifier = mastery.NewVerifier(mastery.DefaultConfig())
	}
	return o
}

// InitializeSession starts a session for the user and concept at a
// difficulty derived from the learner's history.
func (o *Orchestrator) InitializeSession(ctx context.Context, userID, conceptID string) (*AdaptiveSession, error) {
	if userID == "" {
		return nil, &NotFoundError{Kind: "user"}
	}
	if _, err := o.concept(conceptID); err != nil {
		return nil, err
	}

	recent, err := o.responses.RecentResponses(ctx, userID, conceptID, o.cfg.InitialHistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("load response history: %w", err)
	}
	windows, err := o.responses.CalibrationWindows(ctx, userID, conceptID, o.cfg.CalibrationWindowLimit)
	if err != nil {
		return nil, fmt.Errorf("load calibration windows: %w", err)
	}

	init := o.calibrator.InitialDifficulty(recent, windows)
	now := o.now()
	s := &AdaptiveSession{
		ID:                o.newID(),
		UserID:            userID,
		ConceptID:         conceptID,
		State:             StateInitialized,
		InitialDifficulty: init.Difficulty,
		CurrentDifficulty: init.Difficulty,
		InitialRationale:  init.Reason,
		FollowUps:         make(map[string]int),
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := o.store.CreateSession(ctx, s); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	o.logger.Info("session initialized",
		zap.String("session", s.ID),
		zap.String("user", userID),
		zap.String("concept", conceptID),
		zap.Int("difficulty", s.InitialDifficulty),
		zap.Int("history", init.SampleSize))

	return s.Clone(), nil
}

// ConductAssessment records the previous item's score, if any, and returns
// the difficulty for the next item along with break and early-stop signals.
func (o *Orchestrator) ConductAssessment(ctx context.Context, sessionID string, in TurnInput) (*TurnResult, error) {
	s, err := o.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := s.transition(StateAssessing); err != nil {
		return nil, err
	}

	now := o.now()
	res := &TurnResult{SessionID: s.ID}

	if in.Score != nil {
		score := *in.Score
		if score < 0 || score > 100 {
			return nil, fmt.Errorf("conduct assessment: %w (got %d)", ErrInvalidScore, score)
		}

		qid := in.QuestionID
		if qid == "" {
			qid = fmt.Sprintf("q%d", s.QuestionCount+1)
		}

		adj := o.calibrator.Adjust(s.CurrentDifficulty, score, s.Trajectory.NonZeroAdjustments())
		s.appendEntry(TrajectoryEntry{
			QuestionID: qid,
			Difficulty: s.CurrentDifficulty,
			Score:      score,
			Adjustment: adj.Delta,
			Rationale:  adj.Rationale,
			Timestamp:  now,
		})
		s.CurrentDifficulty = adj.NewDifficulty
		res.Adjustment = &adj

		root := in.ParentQuestionID
		if root == "" {
			root = qid
		}
		decision, err := o.router.Route(s.ConceptID, score, s.FollowUps[root])
		if err != nil {
			return nil, fmt.Errorf("conduct assessment: %w", err)
		}
		if decision.ShouldFollowUp {
			s.FollowUps[root]++
			res.FollowUpDifficulty = difficulty.Clamp(s.CurrentDifficulty + decision.DifficultyAdjustment)
		}
		res.FollowUp = decision

		if o.masteryCandidate(s) {
			s.MasteryCandidate = true
		}
	}

	if est := o.estimate(s); est != nil {
		theta, ci := est.Theta, est.ConfidenceInterval
		s.IRTEstimate = &theta
		s.ConfidenceInterval = &ci
		res.Estimate = est
		res.CanStopEarly = est.ShouldStopEarly
		res.ExpectedAccuracy = irt.ProbabilityCorrect(theta, float64(s.CurrentDifficulty))
	}

	res.RecommendBreak, res.BreakReason = o.breakCheck(s, now)
	res.NextItemDifficulty = s.CurrentDifficulty
	res.Efficiency = o.efficiency(s)
	res.MasteryCandidate = s.MasteryCandidate

	s.UpdatedAt = now
	if err := o.store.UpdateSession(ctx, s); err != nil {
		return nil, fmt.Errorf("update session: %w", err)
	}

	o.logger.Debug("assessment turn",
		zap.String("session", s.ID),
		zap.Int("questions", s.QuestionCount),
		zap.Int("next_difficulty", res.NextItemDifficulty),
		zap.Bool("stop_early", res.CanStopEarly))
	if res.RecommendBreak {
		o.logger.Info("break recommended",
			zap.String("session", s.ID),
			zap.String("reason", res.BreakReason))
	}

	return res, nil
}

// ShouldTerminate reports whether the session should end: it has run too
// long, asked too many questions, or the learner's mastery of conceptID is
// already verified. An empty conceptID means the session's own concept.
func (o *Orchestrator) ShouldTerminate(ctx context.Context, sessionID, conceptID string) (*TerminationCheck, error) {
	s, err := o.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if conceptID == "" {
		conceptID = s.ConceptID
	}
	concept, err := o.concept(conceptID)
	if err != nil {
		return nil, err
	}

	check := &TerminationCheck{MasteryCandidate: o.masteryCandidate(s)}

	if s.Terminated() {
		check.Terminate = true
		check.Reason = "Session already ended"
		return check, nil
	}

	elapsed := o.now().Sub(s.CreatedAt)
	if elapsed > o.cfg.MaxDuration {
		check.Terminate = true
		check.Reason = fmt.Sprintf("Session time exceeded %s", o.cfg.MaxDuration)
		return check, nil
	}

	if limit := 2 * o.cfg.FatigueThreshold; s.QuestionCount >= limit {
		check.Terminate = true
		check.Reason = fmt.Sprintf("Question limit reached (%d)", limit)
		return check, nil
	}

	responses, err := o.responses.RecentResponses(ctx, s.UserID, conceptID, o.cfg.MasteryHistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("load response history: %w", err)
	}
	report := o.verifier.Check(responses, concept.Complexity)
	check.MasteryStatus = report.Status
	if report.Status == mastery.StatusVerified {
		check.Terminate = true
		check.Reason = "Mastery already verified"
	}

	if check.Terminate {
		o.logger.Info("termination recommended",
			zap.String("session", s.ID),
			zap.String("reason", check.Reason))
	}
	return check, nil
}

// RecalibrateSession compares the first and second halves of the trajectory
// and moves the difficulty when the trend is strong. Sessions with too few
// items are left unchanged.
func (o *Orchestrator) RecalibrateSession(ctx context.Context, sessionID string) (*Recalibration, error) {
	s, err := o.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if s.Terminated() {
		return nil, &TransitionError{SessionID: s.ID, From: s.State, To: StateRecalibrating}
	}

	now := o.now()
	rec := &Recalibration{
		At:                 now,
		PreviousDifficulty: s.CurrentDifficulty,
		NewDifficulty:      s.CurrentDifficulty,
	}

	n := s.Trajectory.Len()
	if n < o.cfg.MinRecalibrationEntries {
		rec.Rationale = fmt.Sprintf("Need at least %d items to recalibrate (have %d)", o.cfg.MinRecalibrationEntries, n)
		return rec, nil
	}

	if err := s.transition(StateRecalibrating); err != nil {
		return nil, err
	}

	scores := s.Trajectory.Scores()
	rec.FirstHalfMean = mean(scores[:n/2])
	rec.SecondHalfMean = mean(scores[n/2:])
	rec.Trend = rec.SecondHalfMean - rec.FirstHalfMean

	switch {
	case rec.Trend > o.cfg.RecalibrationTrend:
		rec.NewDifficulty = difficulty.Clamp(s.CurrentDifficulty + o.cfg.RecalibrationStep)
		rec.Rationale = fmt.Sprintf("Scores improved by %.1f points: raising difficulty", rec.Trend)
	case rec.Trend < -o.cfg.RecalibrationTrend:
		rec.NewDifficulty = difficulty.Clamp(s.CurrentDifficulty - o.cfg.RecalibrationStep)
		rec.Rationale = fmt.Sprintf("Scores declined by %.1f points: lowering difficulty", -rec.Trend)
	default:
		rec.Rationale = fmt.Sprintf("Score trend %+.1f within ±%.0f: difficulty unchanged", rec.Trend, o.cfg.RecalibrationTrend)
	}

	s.CurrentDifficulty = rec.NewDifficulty
	s.Recalibrations = append(s.Recalibrations, *rec)
	if err := s.transition(StateAssessing); err != nil {
		return nil, err
	}

	s.UpdatedAt = now
	if err := o.store.UpdateSession(ctx, s); err != nil {
		return nil, fmt.Errorf("update session: %w", err)
	}

	o.logger.Info("session recalibrated",
		zap.String("session", s.ID),
		zap.Float64("trend", rec.Trend),
		zap.Int("from", rec.PreviousDifficulty),
		zap.Int("to", rec.NewDifficulty))

	return rec, nil
}

// Session returns a snapshot of the session.
func (o *Orchestrator) Session(ctx context.Context, sessionID string) (*AdaptiveSession, error) {
	s, err := o.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return s.Clone(), nil
}

func (o *Orchestrator) load(ctx context.Context, sessionID string) (*AdaptiveSession, error) {
	if sessionID == "" {
		return nil, &NotFoundError{Kind: "session"}
	}
	s, err := o.store.GetSession(ctx, sessionID)
	if err != nil {
		var nf *NotFoundError
		if errors.As(err, &nf) {
			return nil, err
		}
		if errors.Is(err, ErrNotFound) {
			return nil, &NotFoundError{Kind: "session", ID: sessionID, Err: err}
		}
		return nil, fmt.Errorf("load session %s: %w", sessionID, err)
	}
	if s.FollowUps == nil {
		s.FollowUps = make(map[string]int)
	}
	return s, nil
}

func (o *Orchestrator) concept(id string) (conceptgraph.Concept, error) {
	if id == "" {
		return conceptgraph.Concept{}, &NotFoundError{Kind: "concept"}
	}
	c, err := o.graph.Concept(id)
	if err != nil {
		return conceptgraph.Concept{}, &NotFoundError{Kind: "concept", ID: id, Err: err}
	}
	return c, nil
}

// estimate fits an ability estimate over the real (non-synthetic) items.
func (o *Orchestrator) estimate(s *AdaptiveSession) *irt.Estimate {
	var obs []irt.Observation
	for _, e := range s.Trajectory.entries {
		if e.Synthetic {
			continue
		}
		obs = append(obs, irt.Observation{
			Difficulty: float64(e.Difficulty),
			Correct:    e.Score >= o.cfg.CorrectScore,
		})
	}
	est, err := o.estimator.Estimate(obs)
	if err != nil {
		return nil
	}
	return est
}

func (o *Orchestrator) breakCheck(s *AdaptiveSession, now time.Time) (bool, string) {
	if s.QuestionCount >= o.cfg.FatigueThreshold {
		return true, fmt.Sprintf("%d questions answered: take a short break", s.QuestionCount)
	}
	if now.Sub(s.CreatedAt) >= o.cfg.MaxDuration {
		return true, fmt.Sprintf("Session has run for %s: take a short break", o.cfg.MaxDuration)
	}
	if n := s.Trajectory.Len(); n >= 3 {
		a, b, c := s.Trajectory.At(n-3).Score, s.Trajectory.At(n-2).Score, s.Trajectory.At(n-1).Score
		if a-b > o.cfg.ScoreDropThreshold && b-c > o.cfg.ScoreDropThreshold {
			return true, fmt.Sprintf("Scores dropped sharply twice in a row (%d, %d, %d): take a short break", a, b, c)
		}
	}
	return false, ""
}

// masteryCandidate reports whether the latest real scores form a high streak.
func (o *Orchestrator) masteryCandidate(s *AdaptiveSession) bool {
	streak := 0
	for i := s.Trajectory.Len() - 1; i >= 0; i-- {
		e := s.Trajectory.At(i)
		if e.Synthetic {
			continue
		}
		if e.Score <= o.cfg.MasteryCandidateScore {
			break
		}
		streak++
		if streak >= o.cfg.MasteryCandidateStreak {
			return true
		}
	}
	return false
}

func (o *Orchestrator) efficiency(s *AdaptiveSession) Efficiency {
	asked := 0
	for _, e := range s.Trajectory.entries {
		if !e.Synthetic {
			asked++
		}
	}
	return efficiencyFor(asked, o.cfg.BaselineQuestions)
}

func efficiencyFor(asked, baseline int) Efficiency {
	saved := max(0, baseline-asked)
	eff := Efficiency{QuestionsAsked: asked, QuestionsSaved: saved}
	if baseline > 0 {
		eff.TimeSavedPercent = float64(saved) / float64(baseline) * 100
	}
	return eff
}

func mean(vs []int) float64 {
	if len(vs) == 0 {
		return 0
	}
	sum := 0
	for _, v := range vs {
		sum += v
	}
	return float64(sum) / float64(len(vs))
}
