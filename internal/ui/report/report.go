// Package report renders engine results for the terminal.
package report

import (
	"fmt"
	"strconv"
	"strings"

	"charm.land/lipgloss/v2"
	"charm.land/lipgloss/v2/table"

	"github.com/abhisek/adaptiq/internal/conceptgraph"
	"github.com/abhisek/adaptiq/internal/followup"
	"github.com/abhisek/adaptiq/internal/history"
	"github.com/abhisek/adaptiq/internal/irt"
	"github.com/abhisek/adaptiq/internal/mastery"
	"github.com/abhisek/adaptiq/internal/session"
	"github.com/abhisek/adaptiq/internal/ui/components"
	"github.com/abhisek/adaptiq/internal/ui/theme"
)

const meterWidth = 50

// field renders one "label  value" line.
func field(label, value string) string {
	return theme.Label.Render(label) + theme.Value.Render(value)
}

func card(title string, lines ...string) string {
	body := lipgloss.JoinVertical(lipgloss.Left, append([]string{theme.Title.Render(title)}, lines...)...)
	return theme.Card.Render(body)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func optional(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f", *v)
}

// Session renders a session's current state and trajectory.
func Session(s *session.AdaptiveSession) string {
	lines := []string{
		field("Session", s.ID),
		field("Learner", s.UserID),
		field("Concept", s.ConceptID),
		field("State", string(s.State)),
		field("Difficulty", fmt.Sprintf("%d (started at %d)", s.CurrentDifficulty, s.InitialDifficulty)),
		field("Questions", strconv.Itoa(s.QuestionCount)),
		field("Knowledge estimate", optional(s.IRTEstimate)+" ± "+optional(s.ConfidenceInterval)),
		field("Mastery candidate", yesNo(s.MasteryCandidate)),
		theme.Hint.Render(s.InitialRationale),
	}
	if s.Trajectory.Len() > 0 {
		lines = append(lines, "", field("Difficulty trend", components.Sparkline(s.Trajectory.Difficulties())), trajectoryTable(s))
	}
	return card("Adaptive session", lines...)
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(theme.Border)).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return theme.TableHeader
			}
			return theme.TableCell
		})
}

func trajectoryTable(s *session.AdaptiveSession) string {
	t := newTable("#", "Question", "Difficulty", "Score", "Adj", "Rationale")
	for i, e := range s.Trajectory.Entries() {
		q := e.QuestionID
		if e.Synthetic {
			q += " *"
		}
		t.Row(strconv.Itoa(i+1), q, strconv.Itoa(e.Difficulty), strconv.Itoa(e.Score), signed(e.Adjustment), e.Rationale)
	}
	return t.String()
}

func signed(n int) string {
	if n > 0 {
		return "+" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}

// Turn renders the outcome of one assessment turn.
func Turn(r *session.TurnResult) string {
	lines := []string{
		field("Next item difficulty", strconv.Itoa(r.NextItemDifficulty)),
	}
	if r.Adjustment != nil {
		lines = append(lines, field("Adjustment", fmt.Sprintf("%s (%s)", signed(r.Adjustment.Delta), r.Adjustment.Rationale)))
	}
	if r.Estimate != nil {
		lines = append(lines, Estimate(r.Estimate), field("Expected accuracy", fmt.Sprintf("%.0f%%", r.ExpectedAccuracy*100)))
	}
	if r.FollowUp != nil && r.FollowUp.ShouldFollowUp {
		lines = append(lines, field("Follow-up", fmt.Sprintf("%s on %s at difficulty %d",
			strings.ToLower(string(r.FollowUp.Kind)), r.FollowUp.RelatedConceptID, r.FollowUpDifficulty)))
	}
	if r.RecommendBreak {
		lines = append(lines, theme.Caution.Render("Break recommended: "+r.BreakReason))
	}
	if r.CanStopEarly {
		lines = append(lines, theme.Good.Render("Estimate is precise enough to stop early."))
	}
	if r.MasteryCandidate {
		lines = append(lines, theme.Good.Render("Mastery candidate: run a mastery check."))
	}
	lines = append(lines, components.NewMeter("Time saved", r.Efficiency.TimeSavedPercent, true, meterWidth).View())
	return card("Turn "+r.SessionID, lines...)
}

// Estimate renders an ability estimate with its 95% interval.
func Estimate(e *irt.Estimate) string {
	lo, hi := e.Bounds()
	return lipgloss.JoinVertical(lipgloss.Left,
		components.NewMeter("Knowledge estimate", e.Theta, true, meterWidth).View(),
		field("95% interval", fmt.Sprintf("%.1f - %.1f (±%.1f)", lo, hi, e.ConfidenceInterval)),
		field("Fit", fmt.Sprintf("%d responses, %d iterations, converged: %s", e.Responses, e.Iterations, yesNo(e.Converged))),
	)
}

// FollowUp renders a routing decision.
func FollowUp(d *followup.Decision) string {
	if !d.ShouldFollowUp {
		return card("Follow-up", theme.Hint.Render(d.Rationale))
	}
	return card("Follow-up",
		field("Kind", string(d.Kind)),
		field("Concept", d.RelatedConceptID),
		field("Difficulty change", signed(d.DifficultyAdjustment)),
		theme.Hint.Render(d.Rationale),
	)
}

var criterionLabels = []struct {
	name  string
	value func(mastery.Criteria) bool
}{
	{"Consecutive high scores", func(c mastery.Criteria) bool { return c.ConsecutiveHighScores }},
	{"Multiple types", func(c mastery.Criteria) bool { return c.MultipleAssessmentTypes }},
	{"Appropriate difficulty", func(c mastery.Criteria) bool { return c.AppropriateDifficulty }},
	{"Accurate calibration", func(c mastery.Criteria) bool { return c.AccurateCalibration }},
	{"Time spaced", func(c mastery.Criteria) bool { return c.TimeSpaced }},
}

// Mastery renders a mastery report with each criterion and the next steps.
func Mastery(r *mastery.Report) string {
	lines := []string{field("Status", StatusText(r.Status)), field("Responses", strconv.Itoa(r.Responses))}
	for _, c := range criterionLabels {
		mark := theme.Bad.Render("✗")
		if c.value(r.Criteria) {
			mark = theme.Good.Render("✓")
		}
		lines = append(lines, theme.Label.Render(c.name)+mark)
	}
	if len(r.NextSteps) > 0 {
		lines = append(lines, "")
		for _, s := range r.NextSteps {
			lines = append(lines, theme.Hint.Render("• "+s))
		}
	}
	return card("Mastery", lines...)
}

// StatusText colors a mastery status.
func StatusText(s mastery.Status) string {
	switch s {
	case mastery.StatusVerified:
		return theme.Good.Render(string(s))
	case mastery.StatusInProgress:
		return theme.Caution.Render(string(s))
	default:
		return theme.Hint.Render(string(s))
	}
}

// Termination renders a should-terminate decision.
func Termination(c *session.TerminationCheck) string {
	verdict := theme.Value.Render("continue")
	if c.Terminate {
		verdict = theme.Caution.Render("terminate")
	}
	lines := []string{field("Decision", verdict)}
	if c.Reason != "" {
		lines = append(lines, field("Reason", c.Reason))
	}
	if c.MasteryStatus != "" {
		lines = append(lines, field("Mastery", StatusText(c.MasteryStatus)))
	}
	lines = append(lines, field("Mastery candidate", yesNo(c.MasteryCandidate)))
	return card("Termination check", lines...)
}

// Recalibration renders a trend recalibration.
func Recalibration(r *session.Recalibration) string {
	return card("Recalibration",
		field("Halves", fmt.Sprintf("%.1f → %.1f (trend %+.1f)", r.FirstHalfMean, r.SecondHalfMean, r.Trend)),
		field("Difficulty", fmt.Sprintf("%d → %d", r.PreviousDifficulty, r.NewDifficulty)),
		theme.Hint.Render(r.Rationale),
	)
}

// Summary renders an ended session.
func Summary(s *session.Summary) string {
	lines := []string{
		field("Session", s.SessionID),
		field("Questions", strconv.Itoa(s.TotalQuestions)),
		field("Difficulty", components.Sparkline(s.DifficultyProgression)+" "+joinInts(s.DifficultyProgression)),
		field("Knowledge estimate", optional(s.FinalKnowledgeEstimate)+" ± "+optional(s.ConfidenceInterval)),
		field("Mastery", StatusText(s.MasteryStatus)),
		field("Duration", fmt.Sprintf("%.1f min", float64(s.DurationMs)/60000)),
		field("Questions saved", fmt.Sprintf("%d of %d", s.Efficiency.QuestionsSaved, s.Efficiency.QuestionsAsked+s.Efficiency.QuestionsSaved)),
		components.NewMeter("Efficiency", s.EfficiencyScore, true, meterWidth).View(),
	}
	if s.EndedOnHighNote {
		lines = append(lines, theme.Good.Render("Ended on a confidence-building item."))
	}
	if len(s.Recalibrations) > 0 {
		lines = append(lines, field("Recalibrations", strconv.Itoa(len(s.Recalibrations))))
	}
	if s.MasteryReport != nil && len(s.MasteryReport.NextSteps) > 0 {
		lines = append(lines, "")
		for _, step := range s.MasteryReport.NextSteps {
			lines = append(lines, theme.Hint.Render("• "+step))
		}
	}
	return card("Session summary", lines...)
}

func joinInts(vs []int) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, " → ")
}

// SessionList renders one row per session.
func SessionList(sessions []*session.AdaptiveSession) string {
	if len(sessions) == 0 {
		return theme.Hint.Render("No sessions found.")
	}
	t := newTable("Session", "Learner", "Concept", "State", "Questions", "Difficulty", "Estimate", "Started")
	for _, s := range sessions {
		t.Row(s.ID, s.UserID, s.ConceptID, string(s.State), strconv.Itoa(s.QuestionCount),
			strconv.Itoa(s.CurrentDifficulty), optional(s.IRTEstimate), s.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	return lipgloss.JoinVertical(lipgloss.Left, t.String(), theme.Hint.Render(fmt.Sprintf("%d sessions", len(sessions))))
}

// Responses renders response history, newest first.
func Responses(rs []history.Response) string {
	if len(rs) == 0 {
		return theme.Hint.Render("No responses found.")
	}
	t := newTable("Date", "Learner", "Concept", "Type", "Score", "Difficulty", "Confidence")
	for _, r := range rs {
		conf := "-"
		if r.CalibrationDelta != 0 {
			conf = strconv.Itoa(r.Confidence())
		}
		t.Row(r.Date.Local().Format("2006-01-02 15:04"), r.UserID, r.ConceptID, string(r.Type),
			strconv.Itoa(r.Score), strconv.Itoa(r.Difficulty), conf)
	}
	return t.String()
}

// Import renders the outcome of a spreadsheet import.
func Import(processed, imported, skipped int, errs []string) string {
	lines := []string{
		field("Rows processed", strconv.Itoa(processed)),
		field("Imported", theme.Good.Render(strconv.Itoa(imported))),
	}
	if skipped > 0 {
		lines = append(lines, field("Skipped", theme.Caution.Render(strconv.Itoa(skipped))))
		for _, e := range errs {
			lines = append(lines, theme.Hint.Render("• "+e))
		}
	}
	return card("Import", lines...)
}

// Concepts renders the catalog, one row per concept.
func Concepts(cs []conceptgraph.Concept) string {
	if len(cs) == 0 {
		return theme.Hint.Render("No concepts found.")
	}
	t := newTable("ID", "Name", "Course", "Complexity", "Prerequisites")
	for _, c := range cs {
		prereqs := make([]string, len(c.Prerequisites))
		for i, p := range c.Prerequisites {
			prereqs[i] = fmt.Sprintf("%s (%.1f)", p.ConceptID, p.Strength)
		}
		t.Row(c.ID, c.Name, c.CourseID, string(c.Complexity), strings.Join(prereqs, ", "))
	}
	return lipgloss.JoinVertical(lipgloss.Left, t.String(), theme.Hint.Render(fmt.Sprintf("%d concepts", len(cs))))
}
