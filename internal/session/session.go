package session

import "time"

// Status is the lifecycle state of an attendance record.
type Status string

const (
	// StatusPending means the claim was accepted and awaits finalization.
	StatusPending Status = "PENDING"
	// StatusConfirmed is terminal: the record survived the freshness check.
	StatusConfirmed Status = "CONFIRMED"
	// StatusInvalid is terminal: the record's last heartbeat was stale at close.
	StatusInvalid Status = "INVALID"
)

// Terminal reports whether a status can no longer change.
func (s Status) Terminal() bool {
	return s == StatusConfirmed || s == StatusInvalid
}

// Session is one time-bounded presence window owned by an instructor.
// Sessions are deactivated at close, never deleted.
type Session struct {
	ID            string     `json:"session_id"`
	Code          string     `json:"sonic_code"`
	OwnerID       string     `json:"owner_id"`
	Topic         string     `json:"topic"`
	StartTime     time.Time  `json:"start_time"`
	EndTime       time.Time  `json:"end_time"`
	IsActive      bool       `json:"is_active"`
	ActualEndTime *time.Time `json:"actual_end_time,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Expired reports whether the session's window has lapsed at t,
// regardless of whether it has been explicitly closed.
func (s Session) Expired(t time.Time) bool {
	return t.After(s.EndTime)
}

// Record is one student's attendance entry for one session.
// Key is (SessionID, SubjectID); a re-claim never creates a second record.
type Record struct {
	SessionID     string    `json:"session_id"`
	SubjectID     string    `json:"subject_id"`
	Status        Status    `json:"status"`
	DetectedAt    time.Time `json:"detected_at"`
	LastHeartbeat time.Time `json:"last_heartbeat"`
	Reason        string    `json:"reason,omitempty"`
}

// Summary holds the final classification counts for a closed session.
type Summary struct {
	Confirmed int `json:"confirmed"`
	Invalid   int `json:"invalid"`
}
