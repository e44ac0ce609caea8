// Package irt estimates learner ability with the Rasch (1PL) model.
//
// Item difficulties and abilities are reported on a 0-100 scale and mapped
// linearly onto the logit range [-4, +4] for fitting.
package irt

import (
	"errors"
	"math"
)

// ErrInsufficientData is returned when estimation is attempted with no
// scored responses.
var ErrInsufficientData = errors.New("irt: at least one response is required")

const (
	// logitRange is the logit magnitude at the ends of the 0-100 scale.
	logitRange = 4.0

	// z95 is the two-sided 95% normal quantile.
	z95 = 1.96

	minStandardError = 0.1
	maxStandardError = 10.0

	// negligibleCurvature marks a flat likelihood where Newton steps are
	// numerically meaningless.
	negligibleCurvature = 1e-8

	// seedOffset nudges the starting theta toward the observed outcome.
	seedOffset = 0.5

	maxStep = 1.0
)

// Observation is one scored item: its difficulty and whether it was answered
// correctly.
type Observation struct {
	Difficulty float64 // 0-100
	Correct    bool
}

// Estimate is the result of fitting an ability parameter.
type Estimate struct {
	// Theta is the ability on the 0-100 scale, clamped.
	Theta float64

	// ThetaLogit is the unclamped ability on the logit scale.
	ThetaLogit float64

	// StandardError is the logit-scale standard error.
	StandardError float64

	// ConfidenceInterval is the 95% CI half-width in 0-100 points.
	ConfidenceInterval float64

	Iterations int
	Converged  bool
	Responses  int

	// ShouldStopEarly reports that the estimate is precise enough to end
	// the assessment.
	ShouldStopEarly bool
}

// Bounds returns the 95% interval on the 0-100 scale, clipped to the scale.
func (e *Estimate) Bounds() (lo, hi float64) {
	return clamp(e.Theta-e.ConfidenceInterval, 0, 100), clamp(e.Theta+e.ConfidenceInterval, 0, 100)
}

// Estimator fits Rasch ability estimates. The zero value is not usable;
// construct with New.
type Estimator struct {
	cfg Config
}

// New creates an Estimator with the given config.
func New(cfg Config) *Estimator {
	return &Estimator{cfg: cfg}
}

// Estimate fits theta to the observations by damped Newton-Raphson on the
// Rasch log-likelihood.
func (e *Estimator) Estimate(responses []Observation) (*Estimate, error) {
	if len(responses) == 0 {
		return nil, ErrInsufficientData
	}

	betas := make([]float64, len(responses))
	seed := 0.0
	for i, r := range responses {
		betas[i] = ToLogit(r.Difficulty)
		if r.Correct {
			seed += betas[i] + seedOffset
		} else {
			seed += betas[i] - seedOffset
		}
	}
	theta := seed / float64(len(responses))

	iterations := 0
	converged := false
	for iterations < e.cfg.MaxIterations {
		gradient, hessian := derivatives(theta, betas, responses)
		if math.Abs(hessian) < negligibleCurvature {
			converged = true
			break
		}

		step := clamp(-gradient/hessian, -maxStep, maxStep)
		theta += step
		iterations++

		if math.Abs(step) < e.cfg.Tolerance {
			converged = true
			break
		}
	}

	_, hessian := derivatives(theta, betas, responses)
	se := maxStandardError
	if math.Abs(hessian) >= negligibleCurvature {
		se = 1 / math.Sqrt(math.Abs(hessian))
	}
	se = clamp(se, minStandardError, maxStandardError)

	halfWidth := logitSpanToScale(z95 * se)

	return &Estimate{
		Theta:              clamp(FromLogit(theta), 0, 100),
		ThetaLogit:         theta,
		StandardError:      se,
		ConfidenceInterval: halfWidth,
		Iterations:         iterations,
		Converged:          converged,
		Responses:          len(responses),
		ShouldStopEarly:    len(responses) >= e.cfg.MinResponsesForStop && halfWidth < e.cfg.StopHalfWidth,
	}, nil
}

// derivatives returns the first and second derivatives of the Rasch
// log-likelihood at theta.
func derivatives(theta float64, betas []float64, responses []Observation) (gradient, hessian float64) {
	for i, beta := range betas {
		p := probability(theta, beta)
		y := 0.0
		if responses[i].Correct {
			y = 1.0
		}
		gradient += y - p
		hessian -= p * (1 - p)
	}
	return gradient, hessian
}

// ProbabilityCorrect returns the Rasch probability that a learner with the
// given ability answers an item of the given difficulty correctly. Both
// arguments are on the 0-100 scale.
func ProbabilityCorrect(ability, difficulty float64) float64 {
	return probability(ToLogit(ability), ToLogit(difficulty))
}

func probability(theta, beta float64) float64 {
	return 1 / (1 + math.Exp(-(theta - beta)))
}

// ToLogit maps a 0-100 difficulty onto the logit scale (0→-4, 50→0, 100→+4).
func ToLogit(v float64) float64 {
	return (v - 50) / 50 * logitRange
}

// FromLogit maps a logit back onto the 0-100 scale. The result is not clamped.
func FromLogit(l float64) float64 {
	return l/logitRange*50 + 50
}

func logitSpanToScale(span float64) float64 {
	return span / logitRange * 50
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
