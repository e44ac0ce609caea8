package session

import (
	"encoding/json"
	"time"
)

// TrajectoryEntry records one assessed item. Entries are immutable once
// appended.
type TrajectoryEntry struct {
	QuestionID string    `json:"question_id"`
	Difficulty int       `json:"difficulty"`
	Score      int       `json:"score"`
	Adjustment int       `json:"adjustment"`
	Rationale  string    `json:"rationale"`
	Synthetic  bool      `json:"synthetic,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Trajectory is the append-only sequence of assessed items in a session,
// indexed by position.
type Trajectory struct {
	entries []TrajectoryEntry
}

// NewTrajectory restores a trajectory from persisted entries.
func NewTrajectory(entries []TrajectoryEntry) Trajectory {
	t := Trajectory{entries: make([]TrajectoryEntry, len(entries))}
	copy(t.entries, entries)
	return t
}

// Append adds an entry at the end and returns its position.
func (t *Trajectory) Append(e TrajectoryEntry) int {
	t.entries = append(t.entries, e)
	return len(t.entries) - 1
}

// Len returns the number of entries.
func (t Trajectory) Len() int { return len(t.entries) }

// At returns the entry at position i.
func (t Trajectory) At(i int) TrajectoryEntry { return t.entries[i] }

// Entries returns a copy of all entries in order.
func (t Trajectory) Entries() []TrajectoryEntry {
	out := make([]TrajectoryEntry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Since returns a copy of the entries from position i onward.
func (t Trajectory) Since(i int) []TrajectoryEntry {
	if i >= len(t.entries) {
		return nil
	}
	out := make([]TrajectoryEntry, len(t.entries)-i)
	copy(out, t.entries[i:])
	return out
}

// NonZeroAdjustments counts entries that changed the difficulty.
func (t Trajectory) NonZeroAdjustments() int {
	n := 0
	for _, e := range t.entries {
		if e.Adjustment != 0 {
			n++
		}
	}
	return n
}

// Scores returns the score of every entry in order.
func (t Trajectory) Scores() []int {
	out := make([]int, len(t.entries))
	for i, e := range t.entries {
		out[i] = e.Score
	}
	return out
}

// Difficulties returns the difficulty used for every entry in order.
func (t Trajectory) Difficulties() []int {
	out := make([]int, len(t.entries))
	for i, e := range t.entries {
		out[i] = e.Difficulty
	}
	return out
}

func (t Trajectory) MarshalJSON() ([]byte, error) {
	if t.entries == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(t.entries)
}

func (t *Trajectory) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &t.entries)
}
