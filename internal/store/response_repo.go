package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/abhisek/adaptiq/internal/history"
)

// calibrationSample is how many recent responses feed a calibration window.
const calibrationSample = 20

// responseRepo implements ResponseRepo on the responses and
// calibration_windows tables.
type responseRepo struct {
	store *Store
}

// responseRecord is the validated JSON form of a stored response.
type responseRecord struct {
	UserID           string `json:"user_id"`
	ConceptID        string `json:"concept_id"`
	Type             string `json:"type"`
	Score            int    `json:"score"`
	Difficulty       int    `json:"difficulty"`
	CalibrationDelta int    `json:"calibration_delta"`
}

var responseColumns = []string{colID, colUserID, colConceptID, "type", "score", colDate, "calibration_delta", "difficulty"}

func (r *responseRepo) Append(ctx context.Context, responses ...history.Response) error {
	if len(responses) == 0 {
		return nil
	}
	for i, resp := range responses {
		rec := responseRecord{
			UserID:           resp.UserID,
			ConceptID:        resp.ConceptID,
			Type:             string(resp.Type),
			Score:            resp.Score,
			Difficulty:       resp.Difficulty,
			CalibrationDelta: resp.CalibrationDelta,
		}
		if _, err := validateValue(responseSchema, rec); err != nil {
			return fmt.Errorf("response %d: %w", i, err)
		}
	}

	return r.store.inTx(ctx, func(tx *sql.Tx) error {
		seq, err := r.store.seq.Reserve(ctx, tx, len(responses))
		if err != nil {
			return err
		}
		ins := r.store.builder().Insert(tableResponses).
			Columns(append([]string{colSequence}, responseColumns...)...)
		for i, resp := range responses {
			id := resp.ID
			if id == "" {
				id = uuid.NewString()
			}
			ins.Values(seq+int64(i), id, resp.UserID, resp.ConceptID, string(resp.Type),
				resp.Score, resp.Date.UTC(), resp.CalibrationDelta, resp.Difficulty)
		}
		query, args := ins.Query()
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("save responses: %w", err)
		}
		return nil
	})
}

func (r *responseRepo) RecentResponses(ctx context.Context, userID, conceptID string, limit int) ([]history.Response, error) {
	return r.List(ctx, QueryOpts{UserID: userID, ConceptID: conceptID, Limit: limit})
}

func (r *responseRepo) List(ctx context.Context, opts QueryOpts) ([]history.Response, error) {
	b := r.store.builder()
	sel := b.Select(responseColumns...).From(b.Table(tableResponses))
	if p := opts.predicate(colDate); p != nil {
		sel.Where(p)
	}
	sel.OrderBy(entsql.Desc(colDate), entsql.Desc(colSequence))
	if opts.Limit > 0 {
		sel.Limit(opts.Limit)
	}
	query, args := sel.Query()

	rows, err := r.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query responses: %w", err)
	}
	defer rows.Close()

	var out []history.Response
	for rows.Next() {
		var (
			resp history.Response
			typ  string
		)
		if err := rows.Scan(&resp.ID, &resp.UserID, &resp.ConceptID, &typ,
			&resp.Score, &resp.Date, &resp.CalibrationDelta, &resp.Difficulty); err != nil {
			return nil, fmt.Errorf("scan response: %w", err)
		}
		resp.Type = history.ResponseType(typ)
		out = append(out, resp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate responses: %w", err)
	}
	return out, nil
}

func (r *responseRepo) AppendWindow(ctx context.Context, userID, conceptID string, w history.CalibrationWindow) error {
	if w.Correlation < -1 || w.Correlation > 1 {
		return fmt.Errorf("calibration correlation %v outside [-1, 1]", w.Correlation)
	}
	query, args := r.store.builder().Insert(tableWindows).
		Columns(colUserID, colConceptID, colDate, "correlation").
		Values(userID, conceptID, w.Date.UTC(), w.Correlation).
		Query()
	if _, err := r.store.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("save calibration window: %w", err)
	}
	return nil
}

func (r *responseRepo) CalibrationWindows(ctx context.Context, userID, conceptID string, limit int) ([]history.CalibrationWindow, error) {
	b := r.store.builder()
	sel := b.Select(colDate, "correlation").
		From(b.Table(tableWindows)).
		Where(entsql.And(entsql.EQ(colUserID, userID), entsql.EQ(colConceptID, conceptID))).
		OrderBy(entsql.Desc(colDate), entsql.Desc(colID))
	if limit > 0 {
		sel.Limit(limit)
	}
	query, args := sel.Query()

	rows, err := r.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query calibration windows: %w", err)
	}
	defer rows.Close()

	var out []history.CalibrationWindow
	for rows.Next() {
		var w history.CalibrationWindow
		if err := rows.Scan(&w.Date, &w.Correlation); err != nil {
			return nil, fmt.Errorf("scan calibration window: %w", err)
		}
		out = append(out, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate calibration windows: %w", err)
	}
	return out, nil
}

func (r *responseRepo) RefreshCalibration(ctx context.Context, userID, conceptID string, at time.Time) (*history.CalibrationWindow, error) {
	recent, err := r.RecentResponses(ctx, userID, conceptID, calibrationSample)
	if err != nil {
		return nil, err
	}
	w, ok := history.WindowFrom(recent, at)
	if !ok {
		r.store.logger.Debug("not enough rated responses for calibration",
			zap.String("user", userID),
			zap.String("concept", conceptID),
			zap.Int("responses", len(recent)))
		return nil, nil
	}
	if err := r.AppendWindow(ctx, userID, conceptID, w); err != nil {
		return nil, err
	}
	return &w, nil
}

// predicate builds the WHERE clause for opts, using dateCol for the time
// range. Returns nil when opts has no filters.
func (o QueryOpts) predicate(dateCol string) *entsql.Predicate {
	var preds []*entsql.Predicate
	if o.UserID != "" {
		preds = append(preds, entsql.EQ(colUserID, o.UserID))
	}
	if o.ConceptID != "" {
		preds = append(preds, entsql.EQ(colConceptID, o.ConceptID))
	}
	if !o.From.IsZero() {
		preds = append(preds, entsql.GTE(dateCol, o.From.UTC()))
	}
	if !o.To.IsZero() {
		preds = append(preds, entsql.LTE(dateCol, o.To.UTC()))
	}
	switch len(preds) {
	case 0:
		return nil
	case 1:
		return preds[0]
	default:
		return entsql.And(preds...)
	}
}
