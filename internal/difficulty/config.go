package difficulty

// Config holds difficulty calibration settings.
type Config struct {
	// DefaultDifficulty is used when the learner has no history.
	DefaultDifficulty int `yaml:"default_difficulty"`

	// HistoryWindow is how many recent responses feed the baseline.
	HistoryWindow int `yaml:"history_window"`

	// DecayFactor weights each step back in time (most recent = 1).
	DecayFactor float64 `yaml:"decay_factor"`

	// CalibrationWindows is how many recent calibration windows are averaged.
	CalibrationWindows int     `yaml:"calibration_windows"`
	HighCorrelation    float64 `yaml:"high_correlation"`
	LowCorrelation     float64 `yaml:"low_correlation"`
	CalibrationBonus   float64 `yaml:"calibration_bonus"`

	// MaxVariation bounds the random initial challenge, in points either way.
	MaxVariation float64 `yaml:"max_variation"`

	// AdjustmentBudget is the hard cap on non-zero adjustments per session.
	AdjustmentBudget int `yaml:"adjustment_budget"`

	// Scores strictly above HighScore step up; strictly below LowScore step down.
	HighScore int `yaml:"high_score"`
	LowScore  int `yaml:"low_score"`
	Step      int `yaml:"step"`

	// MidBandJitter bounds the random adjustment for mid-band scores.
	MidBandJitter int `yaml:"mid_band_jitter"`
}

// DefaultConfig returns the standard calibration settings.
func DefaultConfig() Config {
	return Config{
		DefaultDifficulty:  50,
		HistoryWindow:      10,
		DecayFactor:        0.9,
		CalibrationWindows: 3,
		HighCorrelation:    0.7,
		LowCorrelation:     0.3,
		CalibrationBonus:   5,
		MaxVariation:       10,
		AdjustmentBudget:   3,
		HighScore:          85,
		LowScore:           60,
		Step:               15,
		MidBandJitter:      5,
	}
}
