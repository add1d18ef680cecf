package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultFreshness is the heartbeat recency a PENDING record needs at
// finalization to be confirmed.
const DefaultFreshness = 5 * time.Minute

// codeAttempts bounds regeneration when a fresh sonic code collides with
// another active session.
const codeAttempts = 5

// Service is the session and presence confirmation coordinator. It owns
// the session lifecycle, presence intake, heartbeat tracking and the
// finalization sweep; persistence is behind the injected store contracts.
type Service struct {
	sessions   SessionStore
	attendance AttendanceStore
	freshness  time.Duration
	log        *zap.Logger
	now        func() time.Time
}

// NewService creates a coordinator over the given stores.
func NewService(sessions SessionStore, attendance AttendanceStore, freshness time.Duration, log *zap.Logger) *Service {
	if freshness <= 0 {
		freshness = DefaultFreshness
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		sessions:   sessions,
		attendance: attendance,
		freshness:  freshness,
		log:        log,
		now:        time.Now,
	}
}

// CreateSession mints a new active session for the owner and returns it
// together with the sonic token for the broadcasting device.
func (s *Service) CreateSession(ctx context.Context, ownerID, topic string, durationMinutes int) (Session, string, error) {
	if ownerID == "" {
		return Session{}, "", fmt.Errorf("%w: owner required", ErrInvalidInput)
	}
	if strings.TrimSpace(topic) == "" {
		return Session{}, "", fmt.Errorf("%w: topic required", ErrInvalidInput)
	}
	if durationMinutes <= 0 {
		return Session{}, "", fmt.Errorf("%w: duration must be positive", ErrInvalidInput)
	}

	now := s.now().UTC()
	sess := Session{
		ID:        newSessionID(now),
		OwnerID:   ownerID,
		Topic:     strings.TrimSpace(topic),
		StartTime: now,
		EndTime:   now.Add(time.Duration(durationMinutes) * time.Minute),
		IsActive:  true,
		CreatedAt: now,
	}

	for attempt := 1; ; attempt++ {
		code, err := newCode()
		if err != nil {
			return Session{}, "", err
		}
		sess.Code = code
		err = s.sessions.CreateSession(ctx, sess)
		if err == nil {
			break
		}
		if errors.Is(err, ErrCodeInUse) && attempt < codeAttempts {
			s.log.Warn("sonic code collision, regenerating",
				zap.String("code", code), zap.Int("attempt", attempt))
			continue
		}
		return Session{}, "", err
	}

	s.log.Info("session started",
		zap.String("session_id", sess.ID),
		zap.String("owner_id", ownerID),
		zap.Time("end_time", sess.EndTime))
	return sess, EncodeSonicToken(sess), nil
}

// GetSession returns a session by id.
func (s *Service) GetSession(ctx context.Context, sessionID string) (Session, error) {
	if sessionID == "" {
		return Session{}, fmt.Errorf("%w: session id required", ErrInvalidInput)
	}
	return s.sessions.GetSession(ctx, sessionID)
}

// SubmitClaim records a student's presence claim against a session
// referenced either by id or by its sonic code. The record stays PENDING
// until the session closes; a repeated claim is idempotent.
func (s *Service) SubmitClaim(ctx context.Context, sessionRef, subjectID string) (Record, error) {
	if sessionRef == "" {
		return Record{}, fmt.Errorf("%w: session id or sonic code required", ErrInvalidInput)
	}
	if subjectID == "" {
		return Record{}, fmt.Errorf("%w: subject required", ErrInvalidInput)
	}

	sess, err := s.resolve(ctx, sessionRef)
	if err != nil {
		return Record{}, err
	}

	now := s.now().UTC()
	if sess.Expired(now) {
		return Record{}, ErrExpired
	}

	rec, err := s.attendance.UpsertClaim(ctx, Record{
		SessionID:     sess.ID,
		SubjectID:     subjectID,
		Status:        StatusPending,
		DetectedAt:    now,
		LastHeartbeat: now,
	})
	if err != nil {
		return Record{}, err
	}
	s.log.Info("presence claim accepted",
		zap.String("session_id", sess.ID),
		zap.String("subject_id", subjectID))
	return rec, nil
}

// resolve fetches by session id first, then falls back to the active-code
// index. Codes are stored uppercase.
func (s *Service) resolve(ctx context.Context, ref string) (Session, error) {
	sess, err := s.sessions.GetSession(ctx, ref)
	if err == nil {
		return sess, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Session{}, err
	}
	return s.sessions.FindActiveByCode(ctx, strings.ToUpper(ref))
}

// RecordHeartbeat refreshes the liveness timestamp for an existing claim.
// Late heartbeats after finalization are accepted but have no effect on
// the already-terminal status.
func (s *Service) RecordHeartbeat(ctx context.Context, sessionID, subjectID string) (Record, error) {
	if sessionID == "" || subjectID == "" {
		return Record{}, fmt.Errorf("%w: session and subject required", ErrInvalidInput)
	}
	return s.attendance.Heartbeat(ctx, sessionID, subjectID, s.now().UTC())
}

// CloseSession deactivates the owner's active session and synchronously
// finalizes its attendance, so the returned summary reflects final counts.
func (s *Service) CloseSession(ctx context.Context, ownerID string) (Session, Summary, error) {
	if ownerID == "" {
		return Session{}, Summary{}, fmt.Errorf("%w: owner required", ErrInvalidInput)
	}
	active, err := s.sessions.FindActiveByOwner(ctx, ownerID)
	if err != nil {
		return Session{}, Summary{}, err
	}
	closed, err := s.sessions.CloseSession(ctx, active.ID, s.now().UTC())
	if err != nil {
		return Session{}, Summary{}, err
	}
	summary, err := s.Finalize(ctx, closed.ID)
	if err != nil {
		return Session{}, Summary{}, err
	}
	s.log.Info("session closed",
		zap.String("session_id", closed.ID),
		zap.Int("confirmed", summary.Confirmed),
		zap.Int("invalid", summary.Invalid))
	return closed, summary, nil
}

// Finalize sweeps every record of a session, classifying PENDING ones by
// heartbeat freshness. Each record's transition depends only on its own
// timestamps, so the sweep is idempotent and safe to re-run after a crash
// mid-sweep. Heartbeats racing the sweep land on either side of the read;
// both outcomes are accepted.
func (s *Service) Finalize(ctx context.Context, sessionID string) (Summary, error) {
	records, err := s.attendance.ListBySession(ctx, sessionID)
	if err != nil {
		return Summary{}, err
	}
	now := s.now().UTC()
	var sum Summary
	for _, rec := range records {
		switch rec.Status {
		case StatusPending:
			if now.Sub(rec.LastHeartbeat) < s.freshness {
				if err := s.attendance.SetStatus(ctx, rec.SessionID, rec.SubjectID, StatusConfirmed, ""); err != nil {
					return Summary{}, err
				}
				sum.Confirmed++
			} else {
				if err := s.attendance.SetStatus(ctx, rec.SessionID, rec.SubjectID, StatusInvalid, "Timeout"); err != nil {
					return Summary{}, err
				}
				sum.Invalid++
			}
		case StatusConfirmed:
			sum.Confirmed++
		case StatusInvalid:
			sum.Invalid++
		}
	}
	return sum, nil
}

// GetStats returns the record count and full record list for a session,
// usable before or after finalization.
func (s *Service) GetStats(ctx context.Context, sessionID string) (int, []Record, error) {
	if sessionID == "" {
		return 0, nil, fmt.Errorf("%w: session id required", ErrInvalidInput)
	}
	records, err := s.attendance.ListBySession(ctx, sessionID)
	if err != nil {
		return 0, nil, err
	}
	return len(records), records, nil
}
