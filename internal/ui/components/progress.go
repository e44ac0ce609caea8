package components

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/abhisek/adaptiq/internal/ui/theme"
)

// Meter displays a 0-100 value as a horizontal bar.
type Meter struct {
	Label     string
	Value     float64
	ShowValue bool
	Width     int
}

// NewMeter creates a new meter.
func NewMeter(label string, value float64, showValue bool, width int) Meter {
	return Meter{
		Label:     label,
		Value:     value,
		ShowValue: showValue,
		Width:     width,
	}
}

// View renders the meter.
func (m Meter) View() string {
	var result string

	if m.Label != "" {
		result += theme.Label.Render(m.Label)
	}

	labelWidth := lipgloss.Width(result)
	valueWidth := 0
	if m.ShowValue {
		valueWidth = 6 // "  100"
	}

	barWidth := m.Width - labelWidth - valueWidth
	if barWidth < 4 {
		barWidth = 4
	}

	filled := int(float64(barWidth) * m.Value / 100)
	if filled > barWidth {
		filled = barWidth
	}
	if filled < 0 {
		filled = 0
	}

	result += theme.MeterFilled.Render(strings.Repeat("█", filled)) +
		theme.MeterEmpty.Render(strings.Repeat("░", barWidth-filled))

	if m.ShowValue {
		result += theme.Value.Render(fmt.Sprintf("  %3.0f", m.Value))
	}
	return result
}

var sparkBlocks = []rune("▁▂▃▄▅▆▇█")

// Sparkline renders 0-100 values as one block character each.
func Sparkline(values []int) string {
	var b strings.Builder
	for _, v := range values {
		if v < 0 {
			v = 0
		}
		if v > 100 {
			v = 100
		}
		b.WriteRune(sparkBlocks[v*(len(sparkBlocks)-1)/100])
	}
	return theme.MeterFilled.Render(b.String())
}
