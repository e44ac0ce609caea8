package store

import (
	"context"
	"fmt"

	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

// Table and column names shared by the repositories.
const (
	tableSessions   = "sessions"
	tableTrajectory = "trajectory_entries"
	tableResponses  = "responses"
	tableWindows    = "calibration_windows"
	tableSummaries  = "session_summaries"

	colID        = "id"
	colSequence  = "sequence"
	colUserID    = "user_id"
	colConceptID = "concept_id"
	colSessionID = "session_id"
	colCreatedAt = "created_at"
	colDate      = "date"
	colPosition  = "position"
)

// text is a string column without a length limit on any dialect.
func text(name string) *schema.Column {
	return &schema.Column{
		Name:       name,
		Type:       field.TypeString,
		SchemaType: map[string]string{dialect.Postgres: "text", dialect.MySQL: "text"},
	}
}

var (
	sessionsColumns = []*schema.Column{
		{Name: colID, Type: field.TypeString, Unique: true},
		{Name: colUserID, Type: field.TypeString},
		{Name: colConceptID, Type: field.TypeString},
		{Name: "state", Type: field.TypeString},
		{Name: "initial_difficulty", Type: field.TypeInt},
		{Name: "current_difficulty", Type: field.TypeInt},
		{Name: "question_count", Type: field.TypeInt},
		text("initial_rationale"),
		{Name: "irt_estimate", Type: field.TypeFloat64, Nullable: true},
		{Name: "confidence_interval", Type: field.TypeFloat64, Nullable: true},
		{Name: "follow_ups", Type: field.TypeJSON},
		{Name: "recalibrations", Type: field.TypeJSON},
		{Name: "mastery_candidate", Type: field.TypeBool, Default: false},
		{Name: colCreatedAt, Type: field.TypeTime},
		{Name: "updated_at", Type: field.TypeTime},
		{Name: "ended_at", Type: field.TypeTime, Nullable: true},
	}
	sessionsTable = &schema.Table{
		Name:       tableSessions,
		Columns:    sessionsColumns,
		PrimaryKey: []*schema.Column{sessionsColumns[0]},
		Indexes: []*schema.Index{
			{Name: "session_user_concept", Columns: []*schema.Column{sessionsColumns[1], sessionsColumns[2]}},
		},
	}

	trajectoryColumns = []*schema.Column{
		{Name: colID, Type: field.TypeInt, Increment: true},
		{Name: colSequence, Type: field.TypeInt64},
		{Name: colSessionID, Type: field.TypeString},
		{Name: colPosition, Type: field.TypeInt},
		{Name: "question_id", Type: field.TypeString},
		{Name: "difficulty", Type: field.TypeInt},
		{Name: "score", Type: field.TypeInt},
		{Name: "adjustment", Type: field.TypeInt},
		text("rationale"),
		{Name: "synthetic", Type: field.TypeBool, Default: false},
		{Name: "timestamp", Type: field.TypeTime},
	}
	trajectoryTable = &schema.Table{
		Name:       tableTrajectory,
		Columns:    trajectoryColumns,
		PrimaryKey: []*schema.Column{trajectoryColumns[0]},
		Indexes: []*schema.Index{
			{Name: "trajectory_session_position", Unique: true, Columns: []*schema.Column{trajectoryColumns[2], trajectoryColumns[3]}},
		},
	}

	responsesColumns = []*schema.Column{
		{Name: colID, Type: field.TypeString, Unique: true},
		{Name: colSequence, Type: field.TypeInt64},
		{Name: colUserID, Type: field.TypeString},
		{Name: colConceptID, Type: field.TypeString},
		{Name: "type", Type: field.TypeString},
		{Name: "score", Type: field.TypeInt},
		{Name: colDate, Type: field.TypeTime},
		{Name: "calibration_delta", Type: field.TypeInt, Default: 0},
		{Name: "difficulty", Type: field.TypeInt},
	}
	responsesTable = &schema.Table{
		Name:       tableResponses,
		Columns:    responsesColumns,
		PrimaryKey: []*schema.Column{responsesColumns[0]},
		Indexes: []*schema.Index{
			{Name: "response_user_concept_date", Columns: []*schema.Column{responsesColumns[2], responsesColumns[3], responsesColumns[6]}},
		},
	}

	windowsColumns = []*schema.Column{
		{Name: colID, Type: field.TypeInt, Increment: true},
		{Name: colUserID, Type: field.TypeString},
		{Name: colConceptID, Type: field.TypeString},
		{Name: colDate, Type: field.TypeTime},
		{Name: "correlation", Type: field.TypeFloat64},
	}
	windowsTable = &schema.Table{
		Name:       tableWindows,
		Columns:    windowsColumns,
		PrimaryKey: []*schema.Column{windowsColumns[0]},
		Indexes: []*schema.Index{
			{Name: "window_user_concept_date", Columns: []*schema.Column{windowsColumns[1], windowsColumns[2], windowsColumns[3]}},
		},
	}

	summariesColumns = []*schema.Column{
		{Name: colID, Type: field.TypeInt, Increment: true},
		{Name: colSequence, Type: field.TypeInt64},
		{Name: colSessionID, Type: field.TypeString, Unique: true},
		{Name: colUserID, Type: field.TypeString},
		{Name: colConceptID, Type: field.TypeString},
		{Name: colCreatedAt, Type: field.TypeTime},
		{Name: "data", Type: field.TypeJSON},
	}
	summariesTable = &schema.Table{
		Name:       tableSummaries,
		Columns:    summariesColumns,
		PrimaryKey: []*schema.Column{summariesColumns[0]},
		Indexes: []*schema.Index{
			{Name: "summary_user", Columns: []*schema.Column{summariesColumns[3]}},
		},
	}

	// tables lists every table in migration order.
	tables = []*schema.Table{
		sessionsTable,
		trajectoryTable,
		responsesTable,
		windowsTable,
		summariesTable,
	}
)

// Migrate creates or updates all tables.
func (s *Store) Migrate(ctx context.Context) error {
	m, err := schema.NewMigrate(s.drv)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	if err := m.Create(ctx, tables...); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	return nil
}
