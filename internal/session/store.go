package session

import (
	"context"
	"time"
)

// SessionStore is the session-shaped persistence contract. Implementations
// must enforce at most one active session per owner and at most one active
// session per code at write time, and resolve any duplicate-active
// observation deterministically (most recent start time wins).
type SessionStore interface {
	// CreateSession persists a new active session. Returns ErrActiveExists
	// when the owner already has an active session and ErrCodeInUse when
	// the code collides with another active session. The check-then-set
	// must be atomic relative to concurrent creates.
	CreateSession(ctx context.Context, s Session) error

	// GetSession returns a session by id, active or not. ErrNotFound when absent.
	GetSession(ctx context.Context, id string) (Session, error)

	// FindActiveByCode resolves the unique currently-active session whose
	// code matches. ErrNotFound when none is active under that code.
	FindActiveByCode(ctx context.Context, code string) (Session, error)

	// FindActiveByOwner resolves the owner's active session.
	FindActiveByOwner(ctx context.Context, ownerID string) (Session, error)

	// CloseSession deactivates a session and stamps its actual end time,
	// returning the updated session. ErrNotFound when absent.
	CloseSession(ctx context.Context, id string, at time.Time) (Session, error)
}

// AttendanceStore is the attendance-shaped persistence contract, keyed by
// (session, subject).
type AttendanceStore interface {
	// UpsertClaim creates the record when absent. When present it is an
	// idempotent re-claim: LastHeartbeat may refresh forward, DetectedAt
	// never changes, and a terminal Status is never downgraded. Returns
	// the stored record either way.
	UpsertClaim(ctx context.Context, rec Record) (Record, error)

	// Heartbeat sets LastHeartbeat for an existing record. ErrNotFound
	// when the subject never claimed.
	Heartbeat(ctx context.Context, sessionID, subjectID string, at time.Time) (Record, error)

	// ListBySession returns every record belonging to a session.
	ListBySession(ctx context.Context, sessionID string) ([]Record, error)

	// SetStatus transitions a PENDING record to a terminal status. A record
	// already terminal is left untouched.
	SetStatus(ctx context.Context, sessionID, subjectID string, status Status, reason string) error
}
