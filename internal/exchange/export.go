package exchange

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/abhisek/adaptiq/internal/history"
	"github.com/abhisek/adaptiq/internal/session"
)

// Sheet names written by the exporters.
const (
	SheetSessions   = "Sessions"
	SheetTrajectory = "Trajectory"
	SheetResponses  = "Responses"
)

var (
	sessionHeader    = []any{"Session", "User", "Concept", "State", "Initial Difficulty", "Current Difficulty", "Questions", "Knowledge Estimate", "Confidence Interval", "Follow-ups", "Recalibrations", "Mastery Candidate", "Created", "Ended"}
	trajectoryHeader = []any{"Session", "Position", "Question", "Difficulty", "Score", "Adjustment", "Synthetic", "Rationale", "Timestamp"}
	responseHeader   = []any{"User", "Concept", "Type", "Score", "Date", "Difficulty", "Calibration"}
)

// sheet is a named table of rows, header first.
type sheet struct {
	name   string
	header []any
	rows   [][]any
}

// ExportSessions writes one sheet summarizing each session and one sheet
// with every trajectory entry.
func ExportSessions(path string, sessions []*session.AdaptiveSession) error {
	summary := sheet{name: SheetSessions, header: sessionHeader}
	entries := sheet{name: SheetTrajectory, header: trajectoryHeader}

	for _, s := range sessions {
		followUps := 0
		for _, n := range s.FollowUps {
			followUps += n
		}
		summary.rows = append(summary.rows, []any{
			s.ID, s.UserID, s.ConceptID, string(s.State),
			s.InitialDifficulty, s.CurrentDifficulty, s.QuestionCount,
			optionalFloat(s.IRTEstimate), optionalFloat(s.ConfidenceInterval),
			followUps, len(s.Recalibrations), s.MasteryCandidate,
			formatTime(s.CreatedAt), optionalTime(s.EndedAt),
		})

		for i, e := range s.Trajectory.Entries() {
			entries.rows = append(entries.rows, []any{
				s.ID, i + 1, e.QuestionID, e.Difficulty, e.Score, e.Adjustment,
				e.Synthetic, e.Rationale, formatTime(e.Timestamp),
			})
		}
	}
	return writeWorkbook(path, summary, entries)
}

// ExportResponses writes responses in the layout DefaultImportConfig reads.
func ExportResponses(path string, responses []history.Response) error {
	out := sheet{name: SheetResponses, header: responseHeader}
	for _, r := range responses {
		out.rows = append(out.rows, []any{
			r.UserID, r.ConceptID, string(r.Type), r.Score,
			formatTime(r.Date), r.Difficulty, r.CalibrationDelta,
		})
	}
	return writeWorkbook(path, out)
}

func writeWorkbook(path string, sheets ...sheet) error {
	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"DDEBF7"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	for i, sh := range sheets {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", sh.name); err != nil {
				return fmt.Errorf("rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(sh.name); err != nil {
			return fmt.Errorf("create sheet %s: %w", sh.name, err)
		}
		if err := writeSheet(f, sh, headerStyle); err != nil {
			return err
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, sh sheet, headerStyle int) error {
	if err := f.SetSheetRow(sh.name, "A1", &sh.header); err != nil {
		return fmt.Errorf("write %s header: %w", sh.name, err)
	}
	last, err := excelize.CoordinatesToCellName(len(sh.header), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sh.name, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("style %s header: %w", sh.name, err)
	}

	for i, row := range sh.rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sh.name, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sh.name, i+2, err)
		}
	}

	lastCol, _, err := excelize.SplitCellName(last)
	if err != nil {
		return err
	}
	if err := f.SetColWidth(sh.name, "A", lastCol, 16); err != nil {
		return fmt.Errorf("size %s columns: %w", sh.name, err)
	}
	return f.SetPanes(sh.name, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func optionalTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

func optionalFloat(v *float64) any {
	if v == nil {
		return ""
	}
	return *v
}
