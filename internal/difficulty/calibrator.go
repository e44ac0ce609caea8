// Package difficulty picks a learner's starting difficulty and nudges it
// after each scored item.
package difficulty

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/abhisek/adaptiq/internal/history"
)

// InitialResult reports a starting difficulty and the parts it was built from.
type InitialResult struct {
	Difficulty int

	// Baseline is the decay-weighted mean of recent scores.
	Baseline float64

	// Adjustment is the calibration-quality bonus or penalty.
	Adjustment float64

	// Variation is the random challenge added on top.
	Variation float64

	SampleSize int
	Reason     string
}

// Adjustment reports the outcome of one real-time difficulty adjustment.
type Adjustment struct {
	Previous      int
	NewDifficulty int
	Delta         int
	BudgetReached bool
	Rationale     string
}

// Calibrator computes initial difficulties and bounded adjustments. It holds
// no per-session state and is safe for concurrent use when its RandSource is.
type Calibrator struct {
	cfg    Config
	rng    RandSource
	logger *zap.Logger
}

// Option configures a Calibrator.
type Option func(*Calibrator)

// WithRand sets the random source.
func WithRand(r RandSource) Option {
	return func(c *Calibrator) { c.rng = r }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Calibrator) { c.logger = l }
}

// New creates a Calibrator. Without options it uses SystemRand and a no-op
// logger.
func New(cfg Config, opts ...Option) *Calibrator {
	c := &Calibrator{
		cfg:    cfg,
		rng:    SystemRand(),
		logger: zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	return c
}

// Budget returns the per-session adjustment cap.
func (c *Calibrator) Budget() int {
	return c.cfg.AdjustmentBudget
}

// InitialDifficulty computes a starting difficulty from recent history and
// calibration windows.
func (c *Calibrator) InitialDifficulty(recent []history.Response, windows []history.CalibrationWindow) InitialResult {
	if len(recent) == 0 {
		return InitialResult{
			Difficulty: c.cfg.DefaultDifficulty,
			Baseline:   float64(c.cfg.DefaultDifficulty),
			Reason:     "no data",
		}
	}

	sorted := history.SortByDateDesc(recent)
	if len(sorted) > c.cfg.HistoryWindow {
		sorted = sorted[:c.cfg.HistoryWindow]
	}

	var weighted, totalWeight float64
	weight := 1.0
	for _, r := range sorted {
		weighted += weight * float64(r.Score)
		totalWeight += weight
		weight *= c.cfg.DecayFactor
	}
	baseline := weighted / totalWeight

	adjustment := c.calibrationAdjustment(windows)
	variation := uniformFloat(c.rng, c.cfg.MaxVariation)

	value := clamp(baseline+adjustment+variation, 0, 100)
	result := InitialResult{
		Difficulty: int(math.Round(value)),
		Baseline:   baseline,
		Adjustment: adjustment,
		Variation:  variation,
		SampleSize: len(sorted),
		Reason: fmt.Sprintf("baseline %.1f from %d responses, calibration %+.0f, variation %+.1f",
			baseline, len(sorted), adjustment, variation),
	}

	c.logger.Debug("initial difficulty",
		zap.Int("difficulty", result.Difficulty),
		zap.Float64("baseline", baseline),
		zap.Float64("adjustment", adjustment),
		zap.Float64("variation", variation),
		zap.Int("sample_size", result.SampleSize))

	return result
}

func (c *Calibrator) calibrationAdjustment(windows []history.CalibrationWindow) float64 {
	if len(windows) == 0 {
		return 0
	}
	sorted := history.SortWindowsByDateDesc(windows)
	if len(sorted) > c.cfg.CalibrationWindows {
		sorted = sorted[:c.cfg.CalibrationWindows]
	}
	sum := 0.0
	for _, w := range sorted {
		sum += w.Correlation
	}
	mean := sum / float64(len(sorted))

	switch {
	case mean > c.cfg.HighCorrelation:
		return c.cfg.CalibrationBonus
	case mean < c.cfg.LowCorrelation:
		return -c.cfg.CalibrationBonus
	default:
		return 0
	}
}

// Adjust computes the next difficulty from the score on the current item.
// Once sessionAdjustmentCount reaches the budget the difficulty is returned
// unchanged.
func (c *Calibrator) Adjust(current, score, sessionAdjustmentCount int) Adjustment {
	current = clampInt(current, 0, 100)

	if sessionAdjustmentCount >= c.cfg.AdjustmentBudget {
		return Adjustment{
			Previous:      current,
			NewDifficulty: current,
			BudgetReached: true,
			Rationale: fmt.Sprintf("Adjustment budget reached (%d of %d used); difficulty held at %d",
				sessionAdjustmentCount, c.cfg.AdjustmentBudget, current),
		}
	}

	var delta int
	var why string
	switch {
	case score > c.cfg.HighScore:
		delta = c.cfg.Step
		why = fmt.Sprintf("Score %d above %d: increasing challenge", score, c.cfg.HighScore)
	case score < c.cfg.LowScore:
		delta = -c.cfg.Step
		why = fmt.Sprintf("Score %d below %d: reducing difficulty to rebuild confidence", score, c.cfg.LowScore)
	default:
		delta = uniformInt(c.rng, c.cfg.MidBandJitter)
		why = fmt.Sprintf("Score %d in target band: fine-tuning", score)
	}

	next := clampInt(current+delta, 0, 100)
	adj := Adjustment{
		Previous:      current,
		NewDifficulty: next,
		Delta:         next - current,
		Rationale:     fmt.Sprintf("%s (%d -> %d, %+d)", why, current, next, next-current),
	}

	c.logger.Debug("difficulty adjusted",
		zap.Int("score", score),
		zap.Int("from", current),
		zap.Int("to", next),
		zap.Int("used", sessionAdjustmentCount))

	return adj
}

// Clamp bounds a difficulty to the 0-100 scale.
func Clamp(v int) int {
	return clampInt(v, 0, 100)
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

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
