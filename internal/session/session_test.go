package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"

	"github.com/abhisek/adaptiq/internal/conceptgraph"
	"github.com/abhisek/adaptiq/internal/difficulty"
	"github.com/abhisek/adaptiq/internal/followup"
	"github.com/abhisek/adaptiq/internal/history"
	"github.com/abhisek/adaptiq/internal/mastery"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var start = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

// memStore keeps sessions in memory and stores deep copies.
type memStore struct {
	sessions  map[string]*AdaptiveSession
	summaries []*Summary
}

func newMemStore() *memStore {
	return &memStore{sessions: make(map[string]*AdaptiveSession)}
}

func (m *memStore) CreateSession(_ context.Context, s *AdaptiveSession) error {
	if _, ok := m.sessions[s.ID]; ok {
		return fmt.Errorf("session %s exists", s.ID)
	}
	m.sessions[s.ID] = s.Clone()
	return nil
}

func (m *memStore) GetSession(_ context.Context, id string) (*AdaptiveSession, error) {
	s, ok := m.sessions[id]
	if !ok {
		return nil, &NotFoundError{Kind: "session", ID: id}
	}
	return s.Clone(), nil
}

func (m *memStore) UpdateSession(_ context.Context, s *AdaptiveSession) error {
	prev, ok := m.sessions[s.ID]
	if !ok {
		return &NotFoundError{Kind: "session", ID: s.ID}
	}
	if s.Trajectory.Len() < prev.Trajectory.Len() {
		return fmt.Errorf("trajectory shrank")
	}
	m.sessions[s.ID] = s.Clone()
	return nil
}

func (m *memStore) SaveSummary(_ context.Context, sum *Summary) error {
	m.summaries = append(m.summaries, sum)
	return nil
}

// memHistory serves responses keyed by user and concept.
type memHistory struct {
	responses map[string][]history.Response
}

func (h *memHistory) RecentResponses(_ context.Context, userID, conceptID string, limit int) ([]history.Response, error) {
	rs := history.SortByDateDesc(h.responses[userID+"/"+conceptID])
	if limit > 0 && len(rs) > limit {
		rs = rs[:limit]
	}
	return rs, nil
}

func (h *memHistory) CalibrationWindows(context.Context, string, string, int) ([]history.CalibrationWindow, error) {
	return nil, nil
}

// midRand yields zero initial variation and zero mid-band jitter.
type midRand struct{}

func (midRand) IntN(n int) int   { return n / 2 }
func (midRand) Float64() float64 { return 0.5 }

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

type fixture struct {
	orch    *Orchestrator
	store   *memStore
	history *memHistory
	clock   *clock
}

func testGraph(t *testing.T) *conceptgraph.Graph {
	t.Helper()
	g, err := conceptgraph.New([]conceptgraph.Concept{
		{ID: "fluids", CourseID: "phys", Complexity: conceptgraph.ComplexityBasic, CreatedAt: start},
		{
			ID: "acid-base", CourseID: "phys", Complexity: conceptgraph.ComplexityIntermediate, CreatedAt: start.Add(time.Hour),
			Prerequisites: []conceptgraph.Prerequisite{{ConceptID: "fluids", Strength: 0.9}},
		},
		{
			ID: "abg", CourseID: "phys", Complexity: conceptgraph.ComplexityAdvanced, CreatedAt: start.Add(2 * time.Hour),
			Prerequisites: []conceptgraph.Prerequisite{{ConceptID: "acid-base", Strength: 0.6}},
		},
	})
	if err != nil {
		t.Fatalf("build graph: %v", err)
	}
	return g
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		store:   newMemStore(),
		history: &memHistory{responses: make(map[string][]history.Response)},
		clock:   &clock{t: start},
	}
	g := testGraph(t)
	n := 0
	base := []Option{
		WithClock(f.clock.now),
		WithCalibrator(difficulty.New(difficulty.DefaultConfig(), difficulty.WithRand(midRand{}))),
		WithRouter(followup.New(followup.DefaultConfig(), g, nil)),
		WithIDGenerator(func() string {
			n++
			return fmt.Sprintf("sess-%d", n)
		}),
	}
	f.orch = New(f.store, f.history, g, append(base, opts...)...)
	return f
}

func (f *fixture) start(t *testing.T, conceptID string) *AdaptiveSession {
	t.Helper()
	s, err := f.orch.InitializeSession(context.Background(), "u1", conceptID)
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if _, err := f.orch.ConductAssessment(context.Background(), s.ID, TurnInput{}); err != nil {
		t.Fatalf("first turn: %v", err)
	}
	return s
}

func (f *fixture) answer(t *testing.T, id string, scores ...int) *TurnResult {
	t.Helper()
	var res *TurnResult
	for _, sc := range scores {
		var err error
		res, err = f.orch.ConductAssessment(context.Background(), id, TurnInput{Score: Score(sc)})
		if err != nil {
			t.Fatalf("turn with score %d: %v", sc, err)
		}
	}
	return res
}

func TestInitializeSession_NoHistory(t *testing.T) {
	f := newFixture(t)
	s, err := f.orch.InitializeSession(context.Background(), "u1", "acid-base")
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if s.State != StateInitialized {
		t.Errorf("State = %s, want INITIALIZED", s.State)
	}
	if s.InitialDifficulty != 50 || s.CurrentDifficulty != 50 {
		t.Errorf("difficulty = %d/%d, want 50/50", s.InitialDifficulty, s.CurrentDifficulty)
	}
	if s.QuestionCount != 0 || s.Trajectory.Len() != 0 {
		t.Errorf("QuestionCount = %d, trajectory = %d, want 0", s.QuestionCount, s.Trajectory.Len())
	}
	if s.IRTEstimate != nil {
		t.Error("expected no IRT estimate before the first response")
	}
	if _, ok := f.store.sessions[s.ID]; !ok {
		t.Error("session not persisted")
	}
}

func TestInitializeSession_UsesHistory(t *testing.T) {
	f := newFixture(t)
	f.history.responses["u1/acid-base"] = []history.Response{
		{Score: 80, Date: start.Add(-time.Hour)},
		{Score: 80, Date: start.Add(-2 * time.Hour)},
	}
	s, err := f.orch.InitializeSession(context.Background(), "u1", "acid-base")
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if s.InitialDifficulty != 80 {
		t.Errorf("InitialDifficulty = %d, want 80", s.InitialDifficulty)
	}
}

func TestInitializeSession_NotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.orch.InitializeSession(ctx, "u1", "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if !errors.Is(err, conceptgraph.ErrNotFound) {
		t.Errorf("err = %v, want to wrap conceptgraph.ErrNotFound", err)
	}

	_, err = f.orch.InitializeSession(ctx, "", "acid-base")
	var nf *NotFoundError
	if !errors.As(err, &nf) || nf.Kind != "user" {
		t.Errorf("err = %v, want user NotFoundError", err)
	}
}

func TestConductAssessment_FirstTurn(t *testing.T) {
	f := newFixture(t)
	s, _ := f.orch.InitializeSession(context.Background(), "u1", "acid-base")

	res, err := f.orch.ConductAssessment(context.Background(), s.ID, TurnInput{})
	if err != nil {
		t.Fatalf("turn: %v", err)
	}
	if res.NextItemDifficulty != 50 {
		t.Errorf("NextItemDifficulty = %d, want 50", res.NextItemDifficulty)
	}
	if res.Adjustment != nil || res.Estimate != nil {
		t.Error("expected no adjustment or estimate on the first turn")
	}
	want := Efficiency{QuestionsAsked: 0, QuestionsSaved: 15, TimeSavedPercent: 100}
	if diff := cmp.Diff(want, res.Efficiency); diff != "" {
		t.Errorf("Efficiency mismatch (-want +got):\n%s", diff)
	}

	got, _ := f.orch.Session(context.Background(), s.ID)
	if got.State != StateAssessing {
		t.Errorf("State = %s, want ASSESSING", got.State)
	}
}

func TestConductAssessment_HighScoreRaisesDifficulty(t *testing.T) {
	f := newFixture(t)
	s := f.start(t, "acid-base")

	res := f.answer(t, s.ID, 90)
	if res.NextItemDifficulty != 65 {
		t.Errorf("NextItemDifficulty = %d, want 65", res.NextItemDifficulty)
	}
	if res.Adjustment == nil || res.Adjustment.Delta != 15 {
		t.Errorf("Adjustment = %+v, want +15", res.Adjustment)
	}

	got, _ := f.orch.Session(context.Background(), s.ID)
	if got.QuestionCount != 1 || got.Trajectory.Len() != 1 {
		t.Fatalf("QuestionCount = %d, trajectory = %d, want 1", got.QuestionCount, got.Trajectory.Len())
	}
	e := got.Trajectory.At(0)
	if e.Difficulty != 50 || e.Score != 90 || e.Adjustment != 15 {
		t.Errorf("entry = %+v, want difficulty 50, score 90, adjustment 15", e)
	}
	if e.QuestionID != "q1" {
		t.Errorf("QuestionID = %q, want q1", e.QuestionID)
	}
	if got.IRTEstimate == nil || got.ConfidenceInterval == nil {
		t.Error("expected an IRT estimate after the first score")
	}
	if res.CanStopEarly {
		t.Error("early stop with a single response")
	}
}

func TestConductAssessment_AdjustmentCap(t *testing.T) {
	f := newFixture(t)
	s := f.start(t, "fluids")

	res := f.answer(t, s.ID, 90, 90, 90, 90, 90)
	if res.NextItemDifficulty != 95 {
		t.Errorf("NextItemDifficulty = %d, want 95", res.NextItemDifficulty)
	}
	if !res.Adjustment.BudgetReached {
		t.Error("expected budget reached on the fifth item")
	}

	got, _ := f.orch.Session(context.Background(), s.ID)
	if n := got.Trajectory.NonZeroAdjustments(); n != 3 {
		t.Errorf("NonZeroAdjustments = %d, want 3", n)
	}
	if diff := cmp.Diff([]int{50, 65, 80, 95, 95}, got.Trajectory.Difficulties()); diff != "" {
		t.Errorf("difficulties mismatch (-want +got):\n%s", diff)
	}
}

func TestConductAssessment_InvariantsUnderRandomScores(t *testing.T) {
	f := newFixture(t, WithCalibrator(difficulty.New(difficulty.DefaultConfig(), difficulty.WithRand(difficulty.SeededRand(7)))))
	s, err := f.orch.InitializeSession(context.Background(), "u1", "fluids")
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}

	rng := difficulty.SeededRand(42)
	for i := 0; i < 40; i++ {
		res, err := f.orch.ConductAssessment(context.Background(), s.ID, TurnInput{Score: Score(rng.IntN(101))})
		if err != nil {
			t.Fatalf("turn %d: %v", i, err)
		}
		if res.NextItemDifficulty < 0 || res.NextItemDifficulty > 100 {
			t.Fatalf("turn %d: difficulty %d out of range", i, res.NextItemDifficulty)
		}
		got, _ := f.orch.Session(context.Background(), s.ID)
		if got.QuestionCount != got.Trajectory.Len() {
			t.Fatalf("turn %d: QuestionCount %d != trajectory %d", i, got.QuestionCount, got.Trajectory.Len())
		}
		if n := got.Trajectory.NonZeroAdjustments(); n > 3 {
			t.Fatalf("turn %d: %d non-zero adjustments", i, n)
		}
	}
}

func TestConductAssessment_BreakOnDecliningScores(t *testing.T) {
	f := newFixture(t)
	s := f.start(t, "fluids")

	res := f.answer(t, s.ID, 90, 70)
	if res.RecommendBreak {
		t.Fatalf("break after one drop: %s", res.BreakReason)
	}
	res = f.answer(t, s.ID, 50)
	if !res.RecommendBreak {
		t.Fatal("expected a break after two consecutive drops over 15")
	}
	if !strings.Contains(res.BreakReason, "dropped") {
		t.Errorf("BreakReason = %q", res.BreakReason)
	}
}

func TestConductAssessment_BreakOnSmallDrops(t *testing.T) {
	f := newFixture(t)
	s := f.start(t, "fluids")

	// Drops of exactly 15 do not count.
	res := f.answer(t, s.ID, 85, 70, 55)
	if res.RecommendBreak {
		t.Errorf("unexpected break: %s", res.BreakReason)
	}
}

func TestConductAssessment_BreakOnFatigue(t *testing.T) {
	f := newFixture(t)
	s := f.start(t, "fluids")

	res := f.answer(t, s.ID, 70, 70, 70, 70, 70, 70, 70, 70, 70)
	if res.RecommendBreak {
		t.Fatalf("break after 9 questions: %s", res.BreakReason)
	}
	res = f.answer(t, s.ID, 70)
	if !res.RecommendBreak {
		t.Error("expected a break at 10 questions")
	}
}

func TestConductAssessment_BreakOnElapsedTime(t *testing.T) {
	f := newFixture(t)
	s := f.start(t, "fluids")

	f.clock.advance(30 * time.Minute)
	res := f.answer(t, s.ID, 70)
	if !res.RecommendBreak {
		t.Error("expected a break after 30 minutes")
	}
}

func TestConductAssessment_FollowUpBudgetPerQuestion(t *testing.T) {
	f := newFixture(t)
	s := f.start(t, "acid-base")
	ctx := context.Background()

	res, err := f.orch.ConductAssessment(ctx, s.ID, TurnInput{QuestionID: "q1", Score: Score(40)})
	if err != nil {
		t.Fatalf("turn: %v", err)
	}
	if res.FollowUp == nil || !res.FollowUp.ShouldFollowUp {
		t.Fatal("expected a follow-up for a low score")
	}
	if res.FollowUp.Kind != followup.KindPrerequisite || res.FollowUp.RelatedConceptID != "fluids" {
		t.Errorf("FollowUp = %+v, want prerequisite fluids", res.FollowUp)
	}
	// 50 - 15 after the item, then -20 for the follow-up.
	if res.FollowUpDifficulty != 15 {
		t.Errorf("FollowUpDifficulty = %d, want 15", res.FollowUpDifficulty)
	}

	res, _ = f.orch.ConductAssessment(ctx, s.ID, TurnInput{QuestionID: "q1-f1", ParentQuestionID: "q1", Score: Score(40)})
	if !res.FollowUp.ShouldFollowUp {
		t.Fatal("expected a second follow-up")
	}
	res, _ = f.orch.ConductAssessment(ctx, s.ID, TurnInput{QuestionID: "q1-f2", ParentQuestionID: "q1", Score: Score(40)})
	if res.FollowUp.ShouldFollowUp {
		t.Error("third follow-up for the same question")
	}

	// A new original question has its own budget.
	res, _ = f.orch.ConductAssessment(ctx, s.ID, TurnInput{QuestionID: "q2", Score: Score(40)})
	if !res.FollowUp.ShouldFollowUp {
		t.Error("expected a follow-up for a new question")
	}

	got, _ := f.orch.Session(ctx, s.ID)
	if diff := cmp.Diff(map[string]int{"q1": 2, "q2": 1}, got.FollowUps); diff != "" {
		t.Errorf("FollowUps mismatch (-want +got):\n%s", diff)
	}
}

func TestConductAssessment_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.orch.ConductAssessment(ctx, "missing", TurnInput{})
	var nf *NotFoundError
	if !errors.As(err, &nf) || nf.Kind != "session" {
		t.Errorf("err = %v, want session NotFoundError", err)
	}

	_, err = f.orch.ConductAssessment(ctx, "", TurnInput{})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound for empty id", err)
	}

	s := f.start(t, "fluids")
	_, err = f.orch.ConductAssessment(ctx, s.ID, TurnInput{Score: Score(101)})
	if !errors.Is(err, ErrInvalidScore) {
		t.Errorf("err = %v, want ErrInvalidScore", err)
	}
}

func TestShouldTerminate(t *testing.T) {
	ctx := context.Background()

	t.Run("fresh session continues", func(t *testing.T) {
		f := newFixture(t)
		s := f.start(t, "fluids")
		check, err := f.orch.ShouldTerminate(ctx, s.ID, "")
		if err != nil {
			t.Fatalf("check: %v", err)
		}
		if check.Terminate {
			t.Errorf("terminate: %s", check.Reason)
		}
		if check.MasteryStatus != mastery.StatusNotStarted {
			t.Errorf("MasteryStatus = %s, want NOT_STARTED", check.MasteryStatus)
		}
	})

	t.Run("duration exceeded", func(t *testing.T) {
		f := newFixture(t)
		s := f.start(t, "fluids")
		f.clock.advance(30 * time.Minute)
		check, _ := f.orch.ShouldTerminate(ctx, s.ID, "")
		if check.Terminate {
			t.Error("terminated at exactly 30 minutes")
		}
		f.clock.advance(time.Second)
		check, _ = f.orch.ShouldTerminate(ctx, s.ID, "")
		if !check.Terminate {
			t.Error("expected termination after 30 minutes")
		}
	})

	t.Run("question limit", func(t *testing.T) {
		f := newFixture(t)
		s := f.start(t, "fluids")
		for i := 0; i < 19; i++ {
			f.answer(t, s.ID, 70)
		}
		check, _ := f.orch.ShouldTerminate(ctx, s.ID, "")
		if check.Terminate {
			t.Fatalf("terminated at 19 questions: %s", check.Reason)
		}
		f.answer(t, s.ID, 70)
		check, _ = f.orch.ShouldTerminate(ctx, s.ID, "")
		if !check.Terminate {
			t.Error("expected termination at 20 questions")
		}
	})

	t.Run("mastery verified", func(t *testing.T) {
		f := newFixture(t)
		f.history.responses["u1/acid-base"] = []history.Response{
			{Type: history.TypeComprehension, Score: 90, Date: start.Add(-72 * time.Hour), CalibrationDelta: 5, Difficulty: 60},
			{Type: history.TypeClinicalReasoning, Score: 92, Date: start.Add(-48 * time.Hour), CalibrationDelta: -5, Difficulty: 60},
			{Type: history.TypeComprehension, Score: 88, Date: start.Add(-time.Hour), CalibrationDelta: 8, Difficulty: 60},
		}
		s := f.start(t, "acid-base")
		check, _ := f.orch.ShouldTerminate(ctx, s.ID, "acid-base")
		if !check.Terminate || check.MasteryStatus != mastery.StatusVerified {
			t.Errorf("check = %+v, want terminate on VERIFIED", check)
		}
	})

	t.Run("high streak is only a candidate", func(t *testing.T) {
		f := newFixture(t)
		s := f.start(t, "fluids")
		f.answer(t, s.ID, 90, 95, 85)
		check, _ := f.orch.ShouldTerminate(ctx, s.ID, "")
		if check.Terminate {
			t.Errorf("terminated on a high streak: %s", check.Reason)
		}
		if !check.MasteryCandidate {
			t.Error("expected MasteryCandidate")
		}
	})

	t.Run("unknown concept", func(t *testing.T) {
		f := newFixture(t)
		s := f.start(t, "fluids")
		_, err := f.orch.ShouldTerminate(ctx, s.ID, "missing")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("err = %v, want ErrNotFound", err)
		}
	})
}

func TestRecalibrateSession(t *testing.T) {
	tests := []struct {
		name   string
		scores []int
		want   int
	}{
		// 50 -> 35 -> 20 -> 35, then the budget holds it at 35.
		{"improving", []int{40, 40, 90, 90}, 55},
		// 50 -> 65 -> 80 -> 65, held at 65.
		{"declining", []int{90, 90, 40, 40}, 45},
		{"flat", []int{70, 70, 70, 70}, 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			s := f.start(t, "fluids")
			f.answer(t, s.ID, tt.scores...)

			rec, err := f.orch.RecalibrateSession(context.Background(), s.ID)
			if err != nil {
				t.Fatalf("recalibrate: %v", err)
			}
			if rec.NewDifficulty != tt.want {
				t.Errorf("NewDifficulty = %d, want %d (%s)", rec.NewDifficulty, tt.want, rec.Rationale)
			}

			got, _ := f.orch.Session(context.Background(), s.ID)
			if got.CurrentDifficulty != tt.want {
				t.Errorf("CurrentDifficulty = %d, want %d", got.CurrentDifficulty, tt.want)
			}
			if got.State != StateAssessing {
				t.Errorf("State = %s, want ASSESSING", got.State)
			}
			if len(got.Recalibrations) != 1 {
				t.Errorf("Recalibrations = %d, want 1", len(got.Recalibrations))
			}
		})
	}
}

func TestRecalibrateSession_TooFewEntries(t *testing.T) {
	f := newFixture(t)
	s := f.start(t, "fluids")
	f.answer(t, s.ID, 20, 20, 95)

	rec, err := f.orch.RecalibrateSession(context.Background(), s.ID)
	if err != nil {
		t.Fatalf("recalibrate: %v", err)
	}
	if rec.NewDifficulty != rec.PreviousDifficulty {
		t.Errorf("difficulty changed %d -> %d", rec.PreviousDifficulty, rec.NewDifficulty)
	}
	if !strings.Contains(rec.Rationale, "at least 4") {
		t.Errorf("Rationale = %q", rec.Rationale)
	}
	got, _ := f.orch.Session(context.Background(), s.ID)
	if len(got.Recalibrations) != 0 {
		t.Error("no-op recalibration was recorded")
	}
}

func TestEndStrategically_LowFinish(t *testing.T) {
	f := newFixture(t)
	s := f.start(t, "fluids")
	f.answer(t, s.ID, 50, 50, 50)
	f.clock.advance(5 * time.Minute)

	sum, err := f.orch.EndStrategically(context.Background(), s.ID)
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	if !sum.EndedOnHighNote {
		t.Error("expected a closing item")
	}
	if sum.TotalQuestions != 4 {
		t.Errorf("TotalQuestions = %d, want 4", sum.TotalQuestions)
	}
	if diff := cmp.Diff([]int{50, 35, 20, 0}, sum.DifficultyProgression); diff != "" {
		t.Errorf("progression mismatch (-want +got):\n%s", diff)
	}
	last := sum.Adaptations[len(sum.Adaptations)-1]
	if !last.Synthetic || last.Score != 90 || last.Delta != 0 {
		t.Errorf("closing adaptation = %+v", last)
	}
	for i, a := range sum.Adaptations {
		if a.Rationale == "" {
			t.Errorf("adaptation %d has no rationale", i)
		}
	}
	wantEff := Efficiency{QuestionsAsked: 3, QuestionsSaved: 12, TimeSavedPercent: 80}
	if diff := cmp.Diff(wantEff, sum.Efficiency); diff != "" {
		t.Errorf("Efficiency mismatch (-want +got):\n%s", diff)
	}
	if sum.EfficiencyScore != 80 {
		t.Errorf("EfficiencyScore = %v, want 80", sum.EfficiencyScore)
	}
	if sum.FinalKnowledgeEstimate == nil {
		t.Error("expected a final estimate")
	}
	if sum.DurationMs != (5 * time.Minute).Milliseconds() {
		t.Errorf("DurationMs = %d", sum.DurationMs)
	}
	if len(f.store.summaries) != 1 {
		t.Errorf("summaries saved = %d, want 1", len(f.store.summaries))
	}

	got, _ := f.orch.Session(context.Background(), s.ID)
	if got.State != StateTerminated || got.EndedAt == nil {
		t.Errorf("State = %s, EndedAt = %v", got.State, got.EndedAt)
	}
}

func TestEndStrategically_HighFinish(t *testing.T) {
	f := newFixture(t)
	s := f.start(t, "fluids")
	f.answer(t, s.ID, 90, 92, 88)

	sum, err := f.orch.EndStrategically(context.Background(), s.ID)
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	if sum.EndedOnHighNote || sum.TotalQuestions != 3 {
		t.Errorf("EndedOnHighNote = %v, TotalQuestions = %d", sum.EndedOnHighNote, sum.TotalQuestions)
	}
	if !sum.MasteryCandidate {
		t.Error("expected MasteryCandidate")
	}
}

func TestEndStrategically_EmptySession(t *testing.T) {
	f := newFixture(t)
	s, _ := f.orch.InitializeSession(context.Background(), "u1", "fluids")

	sum, err := f.orch.EndStrategically(context.Background(), s.ID)
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	if sum.TotalQuestions != 0 || sum.FinalKnowledgeEstimate != nil {
		t.Errorf("summary = %+v, want empty", sum)
	}
	if sum.MasteryStatus != mastery.StatusNotStarted {
		t.Errorf("MasteryStatus = %s", sum.MasteryStatus)
	}
}

func TestTerminatedSessionRejectsOperations(t *testing.T) {
	f := newFixture(t)
	s := f.start(t, "fluids")
	ctx := context.Background()
	if _, err := f.orch.EndStrategically(ctx, s.ID); err != nil {
		t.Fatalf("end: %v", err)
	}

	var te *TransitionError
	if _, err := f.orch.ConductAssessment(ctx, s.ID, TurnInput{Score: Score(80)}); !errors.As(err, &te) {
		t.Errorf("ConductAssessment err = %v, want TransitionError", err)
	}
	if _, err := f.orch.RecalibrateSession(ctx, s.ID); !errors.As(err, &te) {
		t.Errorf("RecalibrateSession err = %v, want TransitionError", err)
	}
	if _, err := f.orch.EndStrategically(ctx, s.ID); !errors.As(err, &te) {
		t.Errorf("EndStrategically err = %v, want TransitionError", err)
	}

	check, err := f.orch.ShouldTerminate(ctx, s.ID, "")
	if err != nil || !check.Terminate {
		t.Errorf("ShouldTerminate = %+v, %v", check, err)
	}
}

func TestSessionsAreIsolated(t *testing.T) {
	f := newFixture(t)
	a := f.start(t, "fluids")
	b := f.start(t, "acid-base")
	f.answer(t, a.ID, 90, 90)

	got, _ := f.orch.Session(context.Background(), b.ID)
	if got.QuestionCount != 0 {
		t.Errorf("session b QuestionCount = %d, want 0", got.QuestionCount)
	}
	ids := make([]string, 0, len(f.store.sessions))
	for id := range f.store.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	if diff := cmp.Diff([]string{"sess-1", "sess-2"}, ids); diff != "" {
		t.Errorf("session ids mismatch (-want +got):\n%s", diff)
	}
}
