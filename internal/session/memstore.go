package session

import (
	"context"
	"sync"
	"time"
)

// MemStore is the in-process store implementation, used when no database
// is configured and by tests. A single mutex covers both maps; per-key
// claim/heartbeat atomicity follows directly.
type MemStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
	records  map[string]Record
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		sessions: make(map[string]Session),
		records:  make(map[string]Record),
	}
}

func recordKey(sessionID, subjectID string) string {
	return sessionID + "_" + subjectID
}

// CreateSession persists a session after checking the active-owner and
// active-code invariants inside the lock.
func (m *MemStore) CreateSession(_ context.Context, s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.sessions {
		if !existing.IsActive {
			continue
		}
		if existing.OwnerID == s.OwnerID {
			return ErrActiveExists
		}
		if existing.Code == s.Code {
			return ErrCodeInUse
		}
	}
	m.sessions[s.ID] = s
	return nil
}

// GetSession returns a session by id.
func (m *MemStore) GetSession(_ context.Context, id string) (Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return Session{}, ErrNotFound
	}
	return s, nil
}

// FindActiveByCode scans for the active session under code. Duplicates
// cannot be created here, but the most-recent-start rule is applied anyway
// so the contract stays deterministic.
func (m *MemStore) FindActiveByCode(_ context.Context, code string) (Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pickActive(func(s Session) bool { return s.Code == code })
}

// FindActiveByOwner scans for the owner's active session.
func (m *MemStore) FindActiveByOwner(_ context.Context, ownerID string) (Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pickActive(func(s Session) bool { return s.OwnerID == ownerID })
}

func (m *MemStore) pickActive(match func(Session) bool) (Session, error) {
	var best Session
	found := false
	for _, s := range m.sessions {
		if !s.IsActive || !match(s) {
			continue
		}
		if !found || s.StartTime.After(best.StartTime) {
			best = s
			found = true
		}
	}
	if !found {
		return Session{}, ErrNotFound
	}
	return best, nil
}

// CloseSession deactivates a session and stamps the actual end time.
func (m *MemStore) CloseSession(_ context.Context, id string, at time.Time) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return Session{}, ErrNotFound
	}
	s.IsActive = false
	end := at
	s.ActualEndTime = &end
	m.sessions[id] = s
	return s, nil
}

// UpsertClaim creates or refreshes the (session, subject) record.
func (m *MemStore) UpsertClaim(_ context.Context, rec Record) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := recordKey(rec.SessionID, rec.SubjectID)
	existing, ok := m.records[key]
	if !ok {
		m.records[key] = rec
		return rec, nil
	}
	// Idempotent re-claim: DetectedAt is immutable, terminal status sticks,
	// LastHeartbeat only moves forward.
	if !existing.Status.Terminal() && rec.LastHeartbeat.After(existing.LastHeartbeat) {
		existing.LastHeartbeat = rec.LastHeartbeat
		m.records[key] = existing
	}
	return existing, nil
}

// Heartbeat refreshes LastHeartbeat for an existing record.
func (m *MemStore) Heartbeat(_ context.Context, sessionID, subjectID string, at time.Time) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := recordKey(sessionID, subjectID)
	rec, ok := m.records[key]
	if !ok {
		return Record{}, ErrNotFound
	}
	if at.After(rec.LastHeartbeat) {
		rec.LastHeartbeat = at
		m.records[key] = rec
	}
	return rec, nil
}

// ListBySession returns every record for a session.
func (m *MemStore) ListBySession(_ context.Context, sessionID string) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Record
	for _, rec := range m.records {
		if rec.SessionID == sessionID {
			out = append(out, rec)
		}
	}
	return out, nil
}

// SetStatus transitions a PENDING record to a terminal status.
func (m *MemStore) SetStatus(_ context.Context, sessionID, subjectID string, status Status, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := recordKey(sessionID, subjectID)
	rec, ok := m.records[key]
	if !ok {
		return ErrNotFound
	}
	if rec.Status.Terminal() {
		return nil
	}
	rec.Status = status
	rec.Reason = reason
	m.records[key] = rec
	return nil
}
