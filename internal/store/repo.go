package store

import (
	"context"
	"time"

	"github.com/abhisek/adaptiq/internal/history"
	"github.com/abhisek/adaptiq/internal/session"
)

// QueryOpts configures list queries with filtering and pagination.
type QueryOpts struct {
	Limit     int       // max results (0 = unlimited)
	UserID    string    // exact match when set
	ConceptID string    // exact match when set
	From      time.Time // created/dated >= From
	To        time.Time // created/dated <= To
}

// SessionRepo persists adaptive sessions. It satisfies session.Store.
// Trajectory rows are append-only: an update may add entries but never
// rewrite or drop persisted ones.
type SessionRepo interface {
	CreateSession(ctx context.Context, s *session.AdaptiveSession) error
	GetSession(ctx context.Context, id string) (*session.AdaptiveSession, error)
	UpdateSession(ctx context.Context, s *session.AdaptiveSession) error
	SaveSummary(ctx context.Context, sum *session.Summary) error

	// ListSessions returns sessions newest first.
	ListSessions(ctx context.Context, opts QueryOpts) ([]*session.AdaptiveSession, error)
}

// ResponseRepo stores learner response history and calibration windows. It
// satisfies history.Source.
type ResponseRepo interface {
	history.Source

	// Append stores responses. Responses without an ID are assigned one.
	Append(ctx context.Context, responses ...history.Response) error

	// AppendWindow stores a calibration window.
	AppendWindow(ctx context.Context, userID, conceptID string, w history.CalibrationWindow) error

	// RefreshCalibration computes a calibration window from the user's
	// recent rated responses and stores it. Returns nil when no correlation
	// can be computed yet.
	RefreshCalibration(ctx context.Context, userID, conceptID string, at time.Time) (*history.CalibrationWindow, error)

	// List returns responses newest first.
	List(ctx context.Context, opts QueryOpts) ([]history.Response, error)
}

// SummaryRepo stores end-of-session summaries.
type SummaryRepo interface {
	// Save stores a summary. A session has at most one summary.
	Save(ctx context.Context, sum *session.Summary) error

	// Get returns the summary for a session, or nil if none exists.
	Get(ctx context.Context, sessionID string) (*session.Summary, error)

	// Latest returns the user's most recent summary, or nil if none exist.
	Latest(ctx context.Context, userID string) (*session.Summary, error)

	// List returns summaries newest first.
	List(ctx context.Context, opts QueryOpts) ([]*session.Summary, error)
}
