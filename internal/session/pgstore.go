package session

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// PGStore persists sessions and attendance in Postgres. The single-active
// invariants live in partial unique indexes (see store.Migrate), so the
// check-then-set race on create is resolved by the database.
type PGStore struct {
	db *sql.DB
}

// NewPGStore creates a Postgres-backed store.
func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

// CreateSession inserts an active session row.
func (p *PGStore) CreateSession(ctx context.Context, s Session) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO sessions (session_id, sonic_code, owner_id, topic, start_time, end_time, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, TRUE)
	`, s.ID, s.Code, s.OwnerID, s.Topic, s.StartTime, s.EndTime)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			if strings.Contains(pgErr.ConstraintName, "code") {
				return ErrCodeInUse
			}
			return ErrActiveExists
		}
		return err
	}
	return nil
}

const sessionColumns = `session_id, sonic_code, owner_id, topic, start_time, end_time, is_active, actual_end_time, created_at`

func scanSession(row *sql.Row) (Session, error) {
	var s Session
	err := row.Scan(&s.ID, &s.Code, &s.OwnerID, &s.Topic, &s.StartTime, &s.EndTime, &s.IsActive, &s.ActualEndTime, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, err
	}
	return s, nil
}

// GetSession returns a session by id, active or not.
func (p *PGStore) GetSession(ctx context.Context, id string) (Session, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT `+sessionColumns+` FROM sessions WHERE session_id = $1
	`, id)
	return scanSession(row)
}

// FindActiveByCode resolves the active session under a code. The partial
// index makes duplicates impossible; ORDER BY keeps the contract's
// most-recent rule explicit regardless.
func (p *PGStore) FindActiveByCode(ctx context.Context, code string) (Session, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT `+sessionColumns+` FROM sessions
		WHERE sonic_code = $1 AND is_active
		ORDER BY start_time DESC
		LIMIT 1
	`, code)
	return scanSession(row)
}

// FindActiveByOwner resolves the owner's active session.
func (p *PGStore) FindActiveByOwner(ctx context.Context, ownerID string) (Session, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT `+sessionColumns+` FROM sessions
		WHERE owner_id = $1 AND is_active
		ORDER BY start_time DESC
		LIMIT 1
	`, ownerID)
	return scanSession(row)
}

// CloseSession deactivates a session and stamps the actual end time.
func (p *PGStore) CloseSession(ctx context.Context, id string, at time.Time) (Session, error) {
	row := p.db.QueryRowContext(ctx, `
		UPDATE sessions
		SET is_active = FALSE, actual_end_time = $2
		WHERE session_id = $1
		RETURNING `+sessionColumns+`
	`, id, at)
	return scanSession(row)
}

const recordColumns = `session_id, subject_id, status, detected_at, last_heartbeat, COALESCE(reason, '')`

// UpsertClaim inserts the record or, for an existing PENDING record,
// pushes its heartbeat forward. DetectedAt and terminal statuses are left
// untouched by the conflict arm.
func (p *PGStore) UpsertClaim(ctx context.Context, rec Record) (Record, error) {
	row := p.db.QueryRowContext(ctx, `
		INSERT INTO attendance (session_id, subject_id, status, detected_at, last_heartbeat)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (session_id, subject_id) DO UPDATE
		SET last_heartbeat = GREATEST(attendance.last_heartbeat, EXCLUDED.last_heartbeat)
		WHERE attendance.status = 'PENDING'
		RETURNING `+recordColumns+`
	`, rec.SessionID, rec.SubjectID, rec.Status, rec.DetectedAt, rec.LastHeartbeat)

	stored, err := p.scanRecord(row)
	if errors.Is(err, ErrNotFound) {
		// Conflict arm skipped a terminal record; return it as stored.
		return p.getRecord(ctx, rec.SessionID, rec.SubjectID)
	}
	return stored, err
}

// Heartbeat refreshes last_heartbeat for an existing record.
func (p *PGStore) Heartbeat(ctx context.Context, sessionID, subjectID string, at time.Time) (Record, error) {
	row := p.db.QueryRowContext(ctx, `
		UPDATE attendance
		SET last_heartbeat = GREATEST(last_heartbeat, $3)
		WHERE session_id = $1 AND subject_id = $2
		RETURNING `+recordColumns+`
	`, sessionID, subjectID, at)
	return p.scanRecord(row)
}

// ListBySession returns every record for a session.
func (p *PGStore) ListBySession(ctx context.Context, sessionID string) ([]Record, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+recordColumns+` FROM attendance
		WHERE session_id = $1
		ORDER BY detected_at
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.SessionID, &rec.SubjectID, &rec.Status, &rec.DetectedAt, &rec.LastHeartbeat, &rec.Reason); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// SetStatus transitions a PENDING record to a terminal status. Terminal
// rows do not match the WHERE clause, which keeps the sweep idempotent.
func (p *PGStore) SetStatus(ctx context.Context, sessionID, subjectID string, status Status, reason string) error {
	_, err := p.db.ExecContext(ctx, `
		UPDATE attendance
		SET status = $3, reason = NULLIF($4, '')
		WHERE session_id = $1 AND subject_id = $2 AND status = 'PENDING'
	`, sessionID, subjectID, status, reason)
	return err
}

func (p *PGStore) getRecord(ctx context.Context, sessionID, subjectID string) (Record, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT `+recordColumns+` FROM attendance
		WHERE session_id = $1 AND subject_id = $2
	`, sessionID, subjectID)
	return p.scanRecord(row)
}

func (p *PGStore) scanRecord(row *sql.Row) (Record, error) {
	var rec Record
	err := row.Scan(&rec.SessionID, &rec.SubjectID, &rec.Status, &rec.DetectedAt, &rec.LastHeartbeat, &rec.Reason)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}
