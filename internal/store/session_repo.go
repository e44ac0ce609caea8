package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"go.uber.org/zap"

	"github.com/abhisek/adaptiq/internal/session"
)

// sessionRepo implements SessionRepo on the sessions and
// trajectory_entries tables.
type sessionRepo struct {
	store *Store
}

var sessionSelectColumns = []string{
	colID, colUserID, colConceptID, "state",
	"initial_difficulty", "current_difficulty", "question_count", "initial_rationale",
	"irt_estimate", "confidence_interval", "follow_ups", "recalibrations",
	"mastery_candidate", colCreatedAt, "updated_at", "ended_at",
}

func (r *sessionRepo) CreateSession(ctx context.Context, s *session.AdaptiveSession) error {
	followUps, recals, err := sessionJSON(s)
	if err != nil {
		return err
	}

	return r.store.inTx(ctx, func(tx *sql.Tx) error {
		query, args := r.store.builder().Insert(tableSessions).
			Columns(sessionSelectColumns...).
			Values(
				s.ID, s.UserID, s.ConceptID, string(s.State),
				s.InitialDifficulty, s.CurrentDifficulty, s.QuestionCount, s.InitialRationale,
				nullFloat(s.IRTEstimate), nullFloat(s.ConfidenceInterval), followUps, recals,
				s.MasteryCandidate, s.CreatedAt.UTC(), s.UpdatedAt.UTC(), nullTime(s.EndedAt),
			).Query()
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("save session: %w", err)
		}
		return r.appendEntries(ctx, tx, s.ID, 0, s.Trajectory.Entries())
	})
}

func (r *sessionRepo) GetSession(ctx context.Context, id string) (*session.AdaptiveSession, error) {
	b := r.store.builder()
	query, args := b.Select(sessionSelectColumns...).
		From(b.Table(tableSessions)).
		Where(entsql.EQ(colID, id)).
		Query()

	s, err := scanSession(r.store.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &session.NotFoundError{Kind: "session", ID: id}
		}
		return nil, fmt.Errorf("query session: %w", err)
	}

	entries, err := r.entries(ctx, r.store.db, id)
	if err != nil {
		return nil, err
	}
	s.Trajectory = session.NewTrajectory(entries)
	if s.QuestionCount != s.Trajectory.Len() {
		r.store.logger.Warn("session question count disagrees with trajectory",
			zap.String("session", id),
			zap.Int("question_count", s.QuestionCount),
			zap.Int("entries", s.Trajectory.Len()))
	}
	return s, nil
}

func (r *sessionRepo) UpdateSession(ctx context.Context, s *session.AdaptiveSession) error {
	followUps, recals, err := sessionJSON(s)
	if err != nil {
		return err
	}

	return r.store.inTx(ctx, func(tx *sql.Tx) error {
		stored, err := r.entries(ctx, tx, s.ID)
		if err != nil {
			return err
		}
		if err := checkPrefix(stored, s.Trajectory); err != nil {
			return fmt.Errorf("update session %s: %w", s.ID, err)
		}

		query, args := r.store.builder().Update(tableSessions).
			Set("state", string(s.State)).
			Set("current_difficulty", s.CurrentDifficulty).
			Set("question_count", s.QuestionCount).
			Set("irt_estimate", nullFloat(s.IRTEstimate)).
			Set("confidence_interval", nullFloat(s.ConfidenceInterval)).
			Set("follow_ups", followUps).
			Set("recalibrations", recals).
			Set("mastery_candidate", s.MasteryCandidate).
			Set("updated_at", s.UpdatedAt.UTC()).
			Set("ended_at", nullTime(s.EndedAt)).
			Where(entsql.EQ(colID, s.ID)).
			Query()
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("update session: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return &session.NotFoundError{Kind: "session", ID: s.ID}
		}

		return r.appendEntries(ctx, tx, s.ID, len(stored), s.Trajectory.Since(len(stored)))
	})
}

func (r *sessionRepo) SaveSummary(ctx context.Context, sum *session.Summary) error {
	return r.store.Summaries().Save(ctx, sum)
}

func (r *sessionRepo) ListSessions(ctx context.Context, opts QueryOpts) ([]*session.AdaptiveSession, error) {
	b := r.store.builder()
	sel := b.Select(colID).From(b.Table(tableSessions))
	if p := opts.predicate(colCreatedAt); p != nil {
		sel.Where(p)
	}
	sel.OrderBy(entsql.Desc(colCreatedAt))
	if opts.Limit > 0 {
		sel.Limit(opts.Limit)
	}
	query, args := sel.Query()

	rows, err := r.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan session id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}

	out := make([]*session.AdaptiveSession, 0, len(ids))
	for _, id := range ids {
		s, err := r.GetSession(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// appendEntries inserts entries starting at position from, validating each
// against the trajectory entry schema.
func (r *sessionRepo) appendEntries(ctx context.Context, tx *sql.Tx, sessionID string, from int, entries []session.TrajectoryEntry) error {
	if len(entries) == 0 {
		return nil
	}
	for i, e := range entries {
		if _, err := validateValue(trajectoryEntrySchema, e); err != nil {
			return fmt.Errorf("trajectory entry %d: %w", from+i, err)
		}
	}

	seq, err := r.store.seq.Reserve(ctx, tx, len(entries))
	if err != nil {
		return err
	}

	ins := r.store.builder().Insert(tableTrajectory).
		Columns(colSequence, colSessionID, colPosition, "question_id", "difficulty", "score", "adjustment", "rationale", "synthetic", "timestamp")
	for i, e := range entries {
		ins.Values(seq+int64(i), sessionID, from+i, e.QuestionID, e.Difficulty, e.Score, e.Adjustment, e.Rationale, e.Synthetic, e.Timestamp.UTC())
	}
	query, args := ins.Query()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("append trajectory: %w", err)
	}
	return nil
}

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// entries loads a session's trajectory in position order and validates each
// row against the trajectory entry schema.
func (r *sessionRepo) entries(ctx context.Context, q queryer, sessionID string) ([]session.TrajectoryEntry, error) {
	b := r.store.builder()
	query, args := b.Select(colPosition, "question_id", "difficulty", "score", "adjustment", "rationale", "synthetic", "timestamp").
		From(b.Table(tableTrajectory)).
		Where(entsql.EQ(colSessionID, sessionID)).
		OrderBy(colPosition).
		Query()

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query trajectory: %w", err)
	}
	defer rows.Close()

	var out []session.TrajectoryEntry
	for rows.Next() {
		var (
			pos int
			e   session.TrajectoryEntry
		)
		if err := rows.Scan(&pos, &e.QuestionID, &e.Difficulty, &e.Score, &e.Adjustment, &e.Rationale, &e.Synthetic, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan trajectory entry: %w", err)
		}
		if pos != len(out) {
			return nil, fmt.Errorf("session %s: %w: gap at position %d", sessionID, ErrInvalidTrajectory, len(out))
		}
		if _, err := validateValue(trajectoryEntrySchema, e); err != nil {
			return nil, fmt.Errorf("trajectory entry %d: %w", pos, err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trajectory: %w", err)
	}
	return out, nil
}

// checkPrefix verifies that the persisted entries are an unchanged prefix of
// the trajectory being written.
func checkPrefix(stored []session.TrajectoryEntry, t session.Trajectory) error {
	if t.Len() < len(stored) {
		return fmt.Errorf("%w: %d persisted entries, update has %d", ErrInvalidTrajectory, len(stored), t.Len())
	}
	for i, old := range stored {
		cur := t.At(i)
		if old.QuestionID != cur.QuestionID ||
			old.Difficulty != cur.Difficulty ||
			old.Score != cur.Score ||
			old.Adjustment != cur.Adjustment ||
			old.Synthetic != cur.Synthetic {
			return fmt.Errorf("%w: entry %d changed", ErrInvalidTrajectory, i)
		}
	}
	return nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*session.AdaptiveSession, error) {
	var (
		s                 session.AdaptiveSession
		state             string
		estimate, ci      sql.NullFloat64
		followUps, recals []byte
		endedAt           sql.NullTime
	)
	err := row.Scan(
		&s.ID, &s.UserID, &s.ConceptID, &state,
		&s.InitialDifficulty, &s.CurrentDifficulty, &s.QuestionCount, &s.InitialRationale,
		&estimate, &ci, &followUps, &recals,
		&s.MasteryCandidate, &s.CreatedAt, &s.UpdatedAt, &endedAt,
	)
	if err != nil {
		return nil, err
	}

	s.State = session.State(state)
	if estimate.Valid {
		s.IRTEstimate = &estimate.Float64
	}
	if ci.Valid {
		s.ConfidenceInterval = &ci.Float64
	}
	if endedAt.Valid {
		t := endedAt.Time
		s.EndedAt = &t
	}
	if err := json.Unmarshal(followUps, &s.FollowUps); err != nil {
		return nil, fmt.Errorf("decode follow-ups: %w", err)
	}
	if err := json.Unmarshal(recals, &s.Recalibrations); err != nil {
		return nil, fmt.Errorf("decode recalibrations: %w", err)
	}
	if s.FollowUps == nil {
		s.FollowUps = make(map[string]int)
	}
	return &s, nil
}

// sessionJSON encodes the session's JSON columns.
func sessionJSON(s *session.AdaptiveSession) (followUps, recals string, err error) {
	fu := s.FollowUps
	if fu == nil {
		fu = map[string]int{}
	}
	b, err := json.Marshal(fu)
	if err != nil {
		return "", "", fmt.Errorf("encode follow-ups: %w", err)
	}
	rc := s.Recalibrations
	if rc == nil {
		rc = []session.Recalibration{}
	}
	c, err := json.Marshal(rc)
	if err != nil {
		return "", "", fmt.Errorf("encode recalibrations: %w", err)
	}
	return string(b), string(c), nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
