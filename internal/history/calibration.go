package history

import (
	"math"
	"time"
)

// minCorrelationSamples is the fewest rated responses a window needs.
const minCorrelationSamples = 3

// Correlation computes the Pearson correlation between confidence and score
// over responses that carry a confidence rating. Returns ok=false when fewer
// than three rated responses exist or either series has zero variance.
func Correlation(responses []Response) (float64, bool) {
	var xs, ys []float64
	for _, r := range responses {
		if r.CalibrationDelta == 0 {
			continue
		}
		xs = append(xs, float64(r.Confidence()))
		ys = append(ys, float64(r.Score))
	}
	if len(xs) < minCorrelationSamples {
		return 0, false
	}

	n := float64(len(xs))
	var sumX, sumY float64
	for i := range xs {
		sumX += xs[i]
		sumY += ys[i]
	}
	meanX, meanY := sumX/n, sumY/n

	var cov, varX, varY float64
	for i := range xs {
		dx := xs[i] - meanX
		dy := ys[i] - meanY
		cov += dx * dy
		varX += dx * dx
		varY += dy * dy
	}
	if varX == 0 || varY == 0 {
		return 0, false
	}
	// Rounding can push a perfect correlation just past ±1.
	return math.Max(-1, math.Min(1, cov/math.Sqrt(varX*varY))), true
}

// WindowFrom builds a calibration window dated at the given time from the
// responses. Returns ok=false when no correlation can be computed.
func WindowFrom(responses []Response, at time.Time) (CalibrationWindow, bool) {
	c, ok := Correlation(responses)
	if !ok {
		return CalibrationWindow{}, false
	}
	return CalibrationWindow{Date: at, Correlation: c}, true
}
