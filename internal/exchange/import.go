// Package exchange moves response history and session trajectories in and
// out of spreadsheets (XLSX and CSV).
package exchange

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/abhisek/adaptiq/internal/history"
)

// ImportConfig defines where each response field lives in the sheet.
type ImportConfig struct {
	FilePath  string // Path to the XLSX or CSV file
	SheetName string // XLSX sheet to read; empty means the first sheet
	StartRow  int    // First data row (1-based)

	UserColumn        string
	ConceptColumn     string
	TypeColumn        string
	ScoreColumn       string
	DateColumn        string
	DifficultyColumn  string // Optional
	CalibrationColumn string // Optional; confidence minus score

	// DefaultUserID fills rows whose user cell is empty.
	DefaultUserID string

	// DefaultDifficulty is used when the difficulty cell is empty.
	DefaultDifficulty int
}

// DefaultImportConfig returns the layout written by ExportResponses.
func DefaultImportConfig() ImportConfig {
	return ImportConfig{
		StartRow:          2,
		UserColumn:        "A",
		ConceptColumn:     "B",
		TypeColumn:        "C",
		ScoreColumn:       "D",
		DateColumn:        "E",
		DifficultyColumn:  "F",
		CalibrationColumn: "G",
		DefaultDifficulty: 50,
	}
}

// ImportResult holds the outcome of reading a sheet.
type ImportResult struct {
	TotalProcessed int
	Imported       int
	Skipped        int
	Errors         []string

	Responses []history.Response
}

// Appender persists imported responses.
type Appender interface {
	Append(ctx context.Context, responses ...history.Response) error
}

// ImportResponses reads the sheet and appends every valid row to dst in a
// single batch. Invalid rows are skipped and reported in the result.
func ImportResponses(ctx context.Context, cfg ImportConfig, dst Appender) (*ImportResult, error) {
	result, err := ReadResponses(cfg)
	if err != nil {
		return nil, err
	}
	if len(result.Responses) == 0 {
		return result, nil
	}
	if err := dst.Append(ctx, result.Responses...); err != nil {
		return result, fmt.Errorf("append responses: %w", err)
	}
	result.Imported = len(result.Responses)
	return result, nil
}

// ReadResponses parses responses from an XLSX or CSV file without
// persisting them.
func ReadResponses(cfg ImportConfig) (*ImportResult, error) {
	cols, err := cfg.columns()
	if err != nil {
		return nil, err
	}

	var rows [][]string
	switch ext := strings.ToLower(filepath.Ext(cfg.FilePath)); ext {
	case ".csv":
		rows, err = readCSV(cfg.FilePath)
	case ".xlsx", ".xlsm":
		rows, err = readExcel(cfg.FilePath, cfg.SheetName)
	default:
		return nil, fmt.Errorf("unsupported file type %q (want .xlsx or .csv)", ext)
	}
	if err != nil {
		return nil, err
	}

	result := &ImportResult{Errors: make([]string, 0)}
	for i, row := range rows {
		rowNum := i + 1
		if rowNum < cfg.StartRow || blankRow(row) {
			continue
		}
		result.TotalProcessed++

		resp, err := parseRow(row, cols, cfg)
		if err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: %v", rowNum, err))
			continue
		}
		result.Responses = append(result.Responses, resp)
	}
	return result, nil
}

func readExcel(path, sheet string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, errors.New("workbook has no sheets")
		}
		sheet = sheets[0]
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	return rows, nil
}

func readCSV(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var rows [][]string
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// columnIndexes holds zero-based column positions; -1 means not mapped.
type columnIndexes struct {
	user, concept, typ, score, date, difficulty, calibration int
}

func (cfg ImportConfig) columns() (columnIndexes, error) {
	var errs []error
	idx := func(field, name string, required bool) int {
		if name == "" {
			if required {
				errs = append(errs, fmt.Errorf("%s: required column not mapped", field))
			}
			return -1
		}
		n, err := excelize.ColumnNameToNumber(name)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: column %q: %w", field, name, err))
			return -1
		}
		return n - 1
	}
	c := columnIndexes{
		user:        idx("user", cfg.UserColumn, cfg.DefaultUserID == ""),
		concept:     idx("concept", cfg.ConceptColumn, true),
		typ:         idx("type", cfg.TypeColumn, true),
		score:       idx("score", cfg.ScoreColumn, true),
		date:        idx("date", cfg.DateColumn, true),
		difficulty:  idx("difficulty", cfg.DifficultyColumn, false),
		calibration: idx("calibration", cfg.CalibrationColumn, false),
	}
	return c, errors.Join(errs...)
}

func parseRow(row []string, cols columnIndexes, cfg ImportConfig) (history.Response, error) {
	cell := func(i int) string {
		if i < 0 || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	resp := history.Response{
		UserID:     cell(cols.user),
		ConceptID:  cell(cols.concept),
		Difficulty: cfg.DefaultDifficulty,
	}
	if resp.UserID == "" {
		resp.UserID = cfg.DefaultUserID
	}
	if resp.UserID == "" {
		return resp, errors.New("user cannot be empty")
	}
	if resp.ConceptID == "" {
		return resp, errors.New("concept cannot be empty")
	}

	typ, err := history.ParseResponseType(cell(cols.typ))
	if err != nil {
		return resp, err
	}
	resp.Type = typ

	if resp.Score, err = parseBounded(cell(cols.score), 0, 100); err != nil {
		return resp, fmt.Errorf("score: %w", err)
	}
	if resp.Date, err = parseDate(cell(cols.date)); err != nil {
		return resp, fmt.Errorf("date: %w", err)
	}
	if v := cell(cols.difficulty); v != "" {
		if resp.Difficulty, err = parseBounded(v, 0, 100); err != nil {
			return resp, fmt.Errorf("difficulty: %w", err)
		}
	}
	if v := cell(cols.calibration); v != "" {
		if resp.CalibrationDelta, err = parseBounded(v, -100, 100); err != nil {
			return resp, fmt.Errorf("calibration: %w", err)
		}
	}
	return resp, nil
}

func parseBounded(s string, lo, hi int) (int, error) {
	if s == "" {
		return 0, errors.New("empty")
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			return 0, fmt.Errorf("not a number: %q", s)
		}
		n = int(math.Round(f))
	}
	if n < lo || n > hi {
		return 0, fmt.Errorf("%d outside [%d, %d]", n, lo, hi)
	}
	return n, nil
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// parseDate accepts the layouts above or an Excel serial date.
func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, errors.New("empty")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	if serial, err := strconv.ParseFloat(s, 64); err == nil {
		return excelize.ExcelDateToTime(serial, false)
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
