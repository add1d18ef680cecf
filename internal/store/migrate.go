package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Schema for the coordinator. The partial unique indexes carry the
// single-active-session invariants: at most one active session per owner
// and at most one active session per sonic code. Sessions are deactivated,
// never deleted.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS sessions (
		session_id      TEXT PRIMARY KEY,
		sonic_code      TEXT NOT NULL,
		owner_id        TEXT NOT NULL,
		topic           TEXT NOT NULL,
		start_time      TIMESTAMPTZ NOT NULL,
		end_time        TIMESTAMPTZ NOT NULL,
		is_active       BOOLEAN NOT NULL DEFAULT TRUE,
		actual_end_time TIMESTAMPTZ,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uniq_sessions_owner_active
		ON sessions (owner_id) WHERE is_active`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uniq_sessions_code_active
		ON sessions (sonic_code) WHERE is_active`,
	`CREATE TABLE IF NOT EXISTS attendance (
		session_id     TEXT NOT NULL,
		subject_id     TEXT NOT NULL,
		status         TEXT NOT NULL DEFAULT 'PENDING',
		detected_at    TIMESTAMPTZ NOT NULL,
		last_heartbeat TIMESTAMPTZ NOT NULL,
		reason         TEXT,
		PRIMARY KEY (session_id, subject_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_attendance_session
		ON attendance (session_id)`,
}

// Migrate applies the schema. Statements are idempotent, so running at
// every startup is safe.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range migrations {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}
