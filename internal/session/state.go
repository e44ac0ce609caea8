package session

import (
	"time"
)

// State is the lifecycle state of an adaptive session.
type State string

const (
	StateInitialized   State = "INITIALIZED"
	StateAssessing     State = "ASSESSING"
	StateRecalibrating State = "RECALIBRATING"
	StateTerminated    State = "TERMINATED"
)

// transitions lists the states reachable from each state. Staying in the
// same state is always allowed except from StateTerminated.
var transitions = map[State][]State{
	StateInitialized:   {StateAssessing, StateTerminated},
	StateAssessing:     {StateRecalibrating, StateTerminated},
	StateRecalibrating: {StateAssessing, StateTerminated},
}

// CanTransition reports whether a session may move from one state to another.
func CanTransition(from, to State) bool {
	if from == StateTerminated {
		return false
	}
	if from == to {
		return true
	}
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Recalibration records one mid-session trend recalibration.
type Recalibration struct {
	At                 time.Time `json:"at"`
	FirstHalfMean      float64   `json:"first_half_mean"`
	SecondHalfMean     float64   `json:"second_half_mean"`
	Trend              float64   `json:"trend"`
	PreviousDifficulty int       `json:"previous_difficulty"`
	NewDifficulty      int       `json:"new_difficulty"`
	Rationale          string    `json:"rationale"`
}

// AdaptiveSession is one adaptive assessment attempt for a user and concept.
type AdaptiveSession struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	ConceptID string `json:"concept_id"`
	State     State  `json:"state"`

	InitialDifficulty int `json:"initial_difficulty"`
	CurrentDifficulty int `json:"current_difficulty"`
	QuestionCount     int `json:"question_count"`

	// InitialRationale explains how the starting difficulty was chosen.
	InitialRationale string `json:"initial_rationale"`

	Trajectory Trajectory `json:"trajectory"`

	// IRTEstimate and ConfidenceInterval are nil until the first scored item.
	IRTEstimate        *float64 `json:"irt_estimate,omitempty"`
	ConfidenceInterval *float64 `json:"confidence_interval,omitempty"`

	// FollowUps counts follow-ups issued per original question ID.
	FollowUps map[string]int `json:"follow_ups"`

	Recalibrations []Recalibration `json:"recalibrations"`

	// MasteryCandidate is set when recent scores suggest mastery. It does
	// not end the session.
	MasteryCandidate bool `json:"mastery_candidate"`

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

// Clone returns a deep copy of the session.
func (s *AdaptiveSession) Clone() *AdaptiveSession {
	c := *s
	c.Trajectory = NewTrajectory(s.Trajectory.entries)
	if s.IRTEstimate != nil {
		v := *s.IRTEstimate
		c.IRTEstimate = &v
	}
	if s.ConfidenceInterval != nil {
		v := *s.ConfidenceInterval
		c.ConfidenceInterval = &v
	}
	c.FollowUps = make(map[string]int, len(s.FollowUps))
	for k, v := range s.FollowUps {
		c.FollowUps[k] = v
	}
	c.Recalibrations = append([]Recalibration(nil), s.Recalibrations...)
	if s.EndedAt != nil {
		t := *s.EndedAt
		c.EndedAt = &t
	}
	return &c
}

// Terminated reports whether the session has ended.
func (s *AdaptiveSession) Terminated() bool {
	return s.State == StateTerminated
}

func (s *AdaptiveSession) transition(to State) error {
	if !CanTransition(s.State, to) {
		return &TransitionError{SessionID: s.ID, From: s.State, To: to}
	}
	s.State = to
	return nil
}

// appendEntry records an assessed item and keeps QuestionCount in step with
// the trajectory.
func (s *AdaptiveSession) appendEntry(e TrajectoryEntry) {
	s.Trajectory.Append(e)
	s.QuestionCount = s.Trajectory.Len()
}
