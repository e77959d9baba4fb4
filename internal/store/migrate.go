package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Table names shared by the repositories.
const (
	TableSessions   = "class_sessions"
	TableAttendance = "attendance"
)

const schema = `
CREATE TABLE IF NOT EXISTS class_sessions (
	id           TEXT PRIMARY KEY,
	course_id    TEXT NOT NULL DEFAULT '',
	title        TEXT NOT NULL DEFAULT '',
	start_time   TIMESTAMPTZ NOT NULL,
	end_time     TIMESTAMPTZ NOT NULL,
	meeting_link TEXT NOT NULL DEFAULT '',
	created_by   TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	CONSTRAINT class_sessions_window CHECK (end_time > start_time)
);

CREATE INDEX IF NOT EXISTS idx_class_sessions_start ON class_sessions(start_time);

CREATE TABLE IF NOT EXISTS attendance (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	session_id TEXT NOT NULL REFERENCES class_sessions(id),
	join_time  TIMESTAMPTZ NOT NULL,
	is_present BOOLEAN NOT NULL DEFAULT TRUE,
	CONSTRAINT attendance_user_session UNIQUE (user_id, session_id)
);

CREATE INDEX IF NOT EXISTS idx_attendance_session ON attendance(session_id);
`

// Migrate creates the portal tables if they do not exist.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// NewMemoryRows returns an in-memory store with the same unique constraints as the schema.
func NewMemoryRows() *Memory {
	return NewMemory().
		Unique(TableSessions, "id").
		Unique(TableAttendance, "id").
		Unique(TableAttendance, "user_id", "session_id")
}
