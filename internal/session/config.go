package session

import "time"

// Config holds the orchestrator's session-level thresholds.
type Config struct {
	// FatigueThreshold is the question count at which a break is recommended.
	// Twice this count terminates the session.
	FatigueThreshold int `yaml:"fatigue_threshold"`

	// MaxDuration is the elapsed time that recommends a break and, once
	// exceeded, terminates the session.
	MaxDuration time.Duration `yaml:"max_duration"`

	// ScoreDropThreshold is the point drop between consecutive items that
	// counts toward a declining-performance break.
	ScoreDropThreshold int `yaml:"score_drop_threshold"`

	// BaselineQuestions is the question count of a traditional fixed-length
	// assessment, used for efficiency metrics.
	BaselineQuestions int `yaml:"baseline_questions"`

	// CorrectScore is the lowest score counted as correct for ability
	// estimation.
	CorrectScore int `yaml:"correct_score"`

	// MasteryCandidateScore and MasteryCandidateStreak flag a session whose
	// recent scores suggest mastery.
	MasteryCandidateScore  int `yaml:"mastery_candidate_score"`
	MasteryCandidateStreak int `yaml:"mastery_candidate_streak"`

	// InitialHistoryLimit and CalibrationWindowLimit bound the history read
	// when choosing a starting difficulty.
	InitialHistoryLimit    int `yaml:"initial_history_limit"`
	CalibrationWindowLimit int `yaml:"calibration_window_limit"`

	// MasteryHistoryLimit caps the responses read for a mastery check.
	MasteryHistoryLimit int `yaml:"mastery_history_limit"`

	// Recalibration.
	MinRecalibrationEntries int     `yaml:"min_recalibration_entries"`
	RecalibrationTrend      float64 `yaml:"recalibration_trend"`
	RecalibrationStep       int     `yaml:"recalibration_step"`

	// Strategic ending.
	ClosingWindow       int     `yaml:"closing_window"`
	ClosingMeanFloor    float64 `yaml:"closing_mean_floor"`
	ClosingEasing       int     `yaml:"closing_easing"`
	ClosingAssumedScore int     `yaml:"closing_assumed_score"`
}

// DefaultConfig returns the standard session thresholds.
func DefaultConfig() Config {
	return Config{
		FatigueThreshold:        10,
		MaxDuration:             30 * time.Minute,
		ScoreDropThreshold:      15,
		BaselineQuestions:       15,
		CorrectScore:            60,
		MasteryCandidateScore:   80,
		MasteryCandidateStreak:  3,
		InitialHistoryLimit:     10,
		CalibrationWindowLimit:  3,
		MasteryHistoryLimit:     50,
		MinRecalibrationEntries: 4,
		RecalibrationTrend:      20,
		RecalibrationStep:       20,
		ClosingWindow:           3,
		ClosingMeanFloor:        70,
		ClosingEasing:           20,
		ClosingAssumedScore:     90,
	}
}
