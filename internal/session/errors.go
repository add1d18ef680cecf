package session

import "errors"

// Failure kinds surfaced by the coordinator. Handlers map these to HTTP
// statuses; anything not wrapping one of them is a storage-side failure
// that callers may retry.
var (
	// ErrInvalidInput rejects malformed caller requests.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound means no matching session or attendance record.
	ErrNotFound = errors.New("not found")
	// ErrExpired means the session's time window has lapsed. Kept distinct
	// from ErrNotFound so clients can render a different message.
	ErrExpired = errors.New("session expired")
	// ErrActiveExists rejects a create while the owner already has an
	// active session.
	ErrActiveExists = errors.New("active session already exists")
	// ErrCodeInUse signals a generated code collided with another active
	// session; the caller regenerates.
	ErrCodeInUse = errors.New("sonic code already in use")
)
