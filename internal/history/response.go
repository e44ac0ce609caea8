package history

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ResponseType identifies the assessment format a response came from.
type ResponseType string

const (
	TypeComprehension     ResponseType = "COMPREHENSION"
	TypeClinicalReasoning ResponseType = "CLINICAL_REASONING"
	TypeApplication       ResponseType = "APPLICATION"
	TypeRecall            ResponseType = "RECALL"
)

// AllResponseTypes returns every known response type in display order.
func AllResponseTypes() []ResponseType {
	return []ResponseType{
		TypeComprehension,
		TypeClinicalReasoning,
		TypeApplication,
		TypeRecall,
	}
}

// ParseResponseType parses a response type name, case-insensitively.
func ParseResponseType(s string) (ResponseType, error) {
	t := ResponseType(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range AllResponseTypes() {
		if t == known {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown response type: %q", s)
}

// Response is a single scored learner response for a concept. Responses are
// owned by the response store and never mutated by the engine.
type Response struct {
	ID        string
	UserID    string
	ConceptID string
	Type      ResponseType
	Score     int // 0-100
	Date      time.Time

	// CalibrationDelta is confidence minus score. Zero means no confidence
	// rating was captured.
	CalibrationDelta int

	// Difficulty is the item difficulty on the 0-100 scale.
	Difficulty int
}

// Confidence returns the learner's self-reported confidence for the response.
func (r Response) Confidence() int {
	return r.Score + r.CalibrationDelta
}

// CalibrationWindow is one period's confidence-accuracy correlation.
type CalibrationWindow struct {
	Date        time.Time
	Correlation float64 // -1.0 to 1.0
}

// Source provides read access to a learner's response history.
type Source interface {
	// RecentResponses returns up to limit responses for the user and concept,
	// most recent first. limit <= 0 means no limit.
	RecentResponses(ctx context.Context, userID, conceptID string, limit int) ([]Response, error)

	// CalibrationWindows returns up to limit calibration windows for the user
	// and concept, most recent first.
	CalibrationWindows(ctx context.Context, userID, conceptID string, limit int) ([]CalibrationWindow, error)
}

// SortByDateDesc returns a copy of responses ordered most recent first.
// Responses with equal dates keep their relative order.
func SortByDateDesc(responses []Response) []Response {
	sorted := make([]Response, len(responses))
	copy(sorted, responses)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.After(sorted[j].Date)
	})
	return sorted
}

// SortWindowsByDateDesc returns a copy of windows ordered most recent first.
func SortWindowsByDateDesc(windows []CalibrationWindow) []CalibrationWindow {
	sorted := make([]CalibrationWindow, len(windows))
	copy(sorted, windows)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.After(sorted[j].Date)
	})
	return sorted
}
