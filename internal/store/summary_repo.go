package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/abhisek/adaptiq/internal/session"
)

// summaryRepo implements SummaryRepo on the session_summaries table. The
// summary itself is a schema-validated JSON document.
type summaryRepo struct {
	store *Store
}

func (r *summaryRepo) Save(ctx context.Context, sum *session.Summary) error {
	raw, err := validateValue(summarySchema, sum)
	if err != nil {
		return fmt.Errorf("save summary: %w", err)
	}

	return r.store.inTx(ctx, func(tx *sql.Tx) error {
		seq, err := r.store.seq.Reserve(ctx, tx, 1)
		if err != nil {
			return err
		}
		query, args := r.store.builder().Insert(tableSummaries).
			Columns(colSequence, colSessionID, colUserID, colConceptID, colCreatedAt, "data").
			Values(seq, sum.SessionID, sum.UserID, sum.ConceptID, sum.EndedAt.UTC(), string(raw)).
			Query()
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("save summary: %w", err)
		}
		return nil
	})
}

func (r *summaryRepo) Get(ctx context.Context, sessionID string) (*session.Summary, error) {
	b := r.store.builder()
	query, args := b.Select("data").
		From(b.Table(tableSummaries)).
		Where(entsql.EQ(colSessionID, sessionID)).
		Query()
	return r.one(ctx, query, args)
}

func (r *summaryRepo) Latest(ctx context.Context, userID string) (*session.Summary, error) {
	b := r.store.builder()
	query, args := b.Select("data").
		From(b.Table(tableSummaries)).
		Where(entsql.EQ(colUserID, userID)).
		OrderBy(entsql.Desc(colSequence)).
		Limit(1).
		Query()
	return r.one(ctx, query, args)
}

func (r *summaryRepo) List(ctx context.Context, opts QueryOpts) ([]*session.Summary, error) {
	b := r.store.builder()
	sel := b.Select("data").From(b.Table(tableSummaries))
	if p := opts.predicate(colCreatedAt); p != nil {
		sel.Where(p)
	}
	sel.OrderBy(entsql.Desc(colSequence))
	if opts.Limit > 0 {
		sel.Limit(opts.Limit)
	}
	query, args := sel.Query()

	rows, err := r.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query summaries: %w", err)
	}
	defer rows.Close()

	var out []*session.Summary
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		sum, err := decodeSummary(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate summaries: %w", err)
	}
	return out, nil
}

// one returns the summary selected by query, or nil if there is none.
func (r *summaryRepo) one(ctx context.Context, query string, args []any) (*session.Summary, error) {
	var raw []byte
	err := r.store.db.QueryRowContext(ctx, query, args...).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query summary: %w", err)
	}
	return decodeSummary(raw)
}

// decodeSummary validates a stored summary document and decodes it.
func decodeSummary(raw []byte) (*session.Summary, error) {
	if err := validateRecord(summarySchema, raw); err != nil {
		return nil, err
	}
	var sum session.Summary
	if err := json.Unmarshal(raw, &sum); err != nil {
		return nil, fmt.Errorf("unmarshal summary: %w", err)
	}
	return &sum, nil
}
