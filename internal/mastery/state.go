package mastery

// Status represents a learner's position in mastery verification for one
// concept.
type Status string

const (
	StatusNotStarted Status = "NOT_STARTED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusVerified   Status = "VERIFIED"
)

// Criteria holds the five independently evaluated mastery criteria.
type Criteria struct {
	ConsecutiveHighScores   bool `json:"consecutive_high_scores"`
	MultipleAssessmentTypes bool `json:"multiple_assessment_types"`
	AppropriateDifficulty   bool `json:"appropriate_difficulty"`
	AccurateCalibration     bool `json:"accurate_calibration"`
	TimeSpaced              bool `json:"time_spaced"`
}

// Criterion names one mastery criterion.
type Criterion string

const (
	CriterionConsecutiveHighScores   Criterion = "consecutive_high_scores"
	CriterionMultipleAssessmentTypes Criterion = "multiple_assessment_types"
	CriterionAppropriateDifficulty   Criterion = "appropriate_difficulty"
	CriterionAccurateCalibration     Criterion = "accurate_calibration"
	CriterionTimeSpaced              Criterion = "time_spaced"
)

// AllMet reports whether every criterion holds.
func (c Criteria) AllMet() bool {
	return c.ConsecutiveHighScores &&
		c.MultipleAssessmentTypes &&
		c.AppropriateDifficulty &&
		c.AccurateCalibration &&
		c.TimeSpaced
}

// Unmet returns the failing criteria in fixed reporting order.
func (c Criteria) Unmet() []Criterion {
	var out []Criterion
	if !c.ConsecutiveHighScores {
		out = append(out, CriterionConsecutiveHighScores)
	}
	if !c.MultipleAssessmentTypes {
		out = append(out, CriterionMultipleAssessmentTypes)
	}
	if !c.AppropriateDifficulty {
		out = append(out, CriterionAppropriateDifficulty)
	}
	if !c.AccurateCalibration {
		out = append(out, CriterionAccurateCalibration)
	}
	if !c.TimeSpaced {
		out = append(out, CriterionTimeSpaced)
	}
	return out
}

// Report is the result of a mastery check.
type Report struct {
	Status    Status   `json:"status"`
	Criteria  Criteria `json:"criteria"`
	NextSteps []string `json:"next_steps"`

	// Responses is how many responses the check considered.
	Responses int `json:"responses"`
}
