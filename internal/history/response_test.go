package history

import (
	"math"
	"testing"
	"time"
)

func TestParseResponseType(t *testing.T) {
	tests := []struct {
		in      string
		want    ResponseType
		wantErr bool
	}{
		{"COMPREHENSION", TypeComprehension, false},
		{"clinical_reasoning", TypeClinicalReasoning, false},
		{" recall ", TypeRecall, false},
		{"essay", "", true},
	}
	for _, tt := range tests {
		got, err := ParseResponseType(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseResponseType(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseResponseType(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSortByDateDesc(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	in := []Response{
		{ID: "a", Date: base},
		{ID: "b", Date: base.Add(48 * time.Hour)},
		{ID: "c", Date: base.Add(24 * time.Hour)},
	}
	got := SortByDateDesc(in)
	want := []string{"b", "c", "a"}
	for i, id := range want {
		if got[i].ID != id {
			t.Errorf("got[%d].ID = %s, want %s", i, got[i].ID, id)
		}
	}
	if in[0].ID != "a" {
		t.Error("SortByDateDesc must not mutate its input")
	}
}

func TestCorrelation_PerfectlyCalibrated(t *testing.T) {
	// Confidence tracks score exactly with a constant offset.
	responses := []Response{
		{Score: 40, CalibrationDelta: 5},
		{Score: 60, CalibrationDelta: 5},
		{Score: 80, CalibrationDelta: 5},
	}
	c, ok := Correlation(responses)
	if !ok {
		t.Fatal("expected correlation to be computable")
	}
	if math.Abs(c-1.0) > 1e-9 {
		t.Errorf("Correlation = %f, want 1.0", c)
	}
}

func TestCorrelation_ConstantOffsetStaysInRange(t *testing.T) {
	var responses []Response
	for _, score := range []int{19, 16, 78, 14, 9} {
		responses = append(responses, Response{Score: score, CalibrationDelta: 20})
	}
	c, ok := Correlation(responses)
	if !ok {
		t.Fatal("expected correlation to be computable")
	}
	if c > 1 || c < -1 {
		t.Errorf("Correlation = %v, want within [-1, 1]", c)
	}
	if math.Abs(c-1.0) > 1e-9 {
		t.Errorf("Correlation = %v, want 1.0", c)
	}
}

func TestCorrelation_IgnoresUnratedResponses(t *testing.T) {
	responses := []Response{
		{Score: 40, CalibrationDelta: 5},
		{Score: 60, CalibrationDelta: 0},
		{Score: 80, CalibrationDelta: 5},
	}
	if _, ok := Correlation(responses); ok {
		t.Error("expected ok=false with only two rated responses")
	}
}

func TestCorrelation_ZeroVariance(t *testing.T) {
	responses := []Response{
		{Score: 70, CalibrationDelta: 10},
		{Score: 70, CalibrationDelta: 10},
		{Score: 70, CalibrationDelta: 10},
	}
	if _, ok := Correlation(responses); ok {
		t.Error("expected ok=false when scores have no variance")
	}
}

func TestWindowFrom(t *testing.T) {
	at := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)
	responses := []Response{
		{Score: 90, CalibrationDelta: -30},
		{Score: 50, CalibrationDelta: 30},
		{Score: 70, CalibrationDelta: 1},
	}
	w, ok := WindowFrom(responses, at)
	if !ok {
		t.Fatal("expected a window")
	}
	if !w.Date.Equal(at) {
		t.Errorf("Date = %v, want %v", w.Date, at)
	}
	if w.Correlation >= 0 {
		t.Errorf("Correlation = %f, want negative for inverted confidence", w.Correlation)
	}
}
