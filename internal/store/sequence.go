package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
)

// sequenceCounter hands out a global monotonic sequence shared by every
// appended row (trajectory entries, responses, summaries). Each lives in its
// own table, so per-table auto-increment IDs cannot order them against each
// other; the shared sequence can.
//
// The mutex serializes within the process; the RETURNING clause makes the
// increment atomic at the database level.
type sequenceCounter struct {
	mu sync.Mutex
}

// rowQueryer is satisfied by *sql.DB and *sql.Tx.
type rowQueryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// newSequenceCounter creates a counter and ensures the tracking table exists.
func newSequenceCounter(db *sql.DB) (*sequenceCounter, error) {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS global_sequence (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		next_val BIGINT NOT NULL DEFAULT 1
	)`)
	if err != nil {
		return nil, fmt.Errorf("create sequence table: %w", err)
	}

	_, err = db.Exec(`INSERT INTO global_sequence (id, next_val) VALUES (1, 1) ON CONFLICT (id) DO NOTHING`)
	if err != nil {
		return nil, fmt.Errorf("seed sequence: %w", err)
	}

	return &sequenceCounter{}, nil
}

// Reserve claims n consecutive sequence numbers through q and returns the
// first. Pass the open transaction as q when inside one so the counter
// update commits or rolls back with the rows that use it.
func (sc *sequenceCounter) Reserve(ctx context.Context, q rowQueryer, n int) (int64, error) {
	if n <= 0 {
		return 0, fmt.Errorf("reserve %d sequence numbers", n)
	}

	sc.mu.Lock()
	defer sc.mu.Unlock()

	var first int64
	err := q.QueryRowContext(ctx,
		fmt.Sprintf(`UPDATE global_sequence SET next_val = next_val + %d WHERE id = 1 RETURNING next_val - %d`, n, n),
	).Scan(&first)
	if err != nil {
		return 0, fmt.Errorf("next sequence: %w", err)
	}
	return first, nil
}
