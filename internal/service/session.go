package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/invilign/aligner-tracker/internal/domain"
	"github.com/invilign/aligner-tracker/internal/metrics"
)

// SessionService owns the per-user wear session lifecycle. A user is IDLE
// when no RUNNING log exists and RUNNING when exactly one does; the store is
// the single source of truth, re-derived by query rather than held in memory.
type SessionService struct {
	logs domain.WearLogRepository
	loc  *time.Location
	rec  metrics.Recorder
}

// NewSessionService creates a new SessionService. Calendar-day boundaries are
// computed in loc.
func NewSessionService(logs domain.WearLogRepository, loc *time.Location, rec metrics.Recorder) *SessionService {
	return &SessionService{logs: logs, loc: loc, rec: rec}
}

// Start opens a new RUNNING wear log for the user starting now. The store
// enforces at most one open log per user; a concurrent second start returns
// ErrSessionActive.
func (s *SessionService) Start(ctx context.Context, userID int64) (*domain.WearLog, error) {
	log := &domain.WearLog{
		ID:      uuid.NewString(),
		UserID:  userID,
		StartAt: time.Now().UTC(),
		Status:  domain.StatusRunning,
		Origin:  domain.OriginUser,
	}

	if err := s.logs.Create(ctx, log); err != nil {
		return nil, err
	}

	s.rec.RecordSessionStarted()
	return log, nil
}

// Pause closes the given log now with the given reason and origin tag. It
// does not verify the log is currently RUNNING: pausing an already closed log
// re-stamps its end time to a later instant.
func (s *SessionService) Pause(ctx context.Context, logID, reason, origin string) (*domain.WearLog, error) {
	log, err := s.logs.GetByID(ctx, logID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	log.EndAt = &now
	log.Status = domain.StatusPaused
	log.Reason = reason
	log.Origin = origin

	if err := s.logs.Update(ctx, log); err != nil {
		return nil, fmt.Errorf("close wear log: %w", err)
	}

	s.rec.RecordSessionPaused()
	return log, nil
}

// AddManualEntry inserts an already-closed STOPPED log with the given bounds.
// Bounds must be present and ordered; overlap with existing logs is not
// checked.
func (s *SessionService) AddManualEntry(ctx context.Context, userID int64, start, end time.Time, reason string) (*domain.WearLog, error) {
	if start.IsZero() || end.IsZero() {
		return nil, fmt.Errorf("%w: start and end times are required", domain.ErrInvalidInput)
	}
	if end.Before(start) {
		return nil, fmt.Errorf("%w: end time precedes start time", domain.ErrInvalidInput)
	}

	endUTC := end.UTC()
	log := &domain.WearLog{
		ID:      uuid.NewString(),
		UserID:  userID,
		StartAt: start.UTC(),
		EndAt:   &endUTC,
		Status:  domain.StatusStopped,
		Reason:  reason,
		Origin:  domain.OriginManual,
	}

	if err := s.logs.Create(ctx, log); err != nil {
		return nil, err
	}

	s.rec.RecordManualEntry()
	return log, nil
}

// GetByID returns a wear log by id.
func (s *SessionService) GetByID(ctx context.Context, logID string) (*domain.WearLog, error) {
	return s.logs.GetByID(ctx, logID)
}

// Delete removes a wear log unconditionally.
func (s *SessionService) Delete(ctx context.Context, logID string) error {
	if err := s.logs.Delete(ctx, logID); err != nil {
		return err
	}
	s.rec.RecordLogDeleted()
	return nil
}

// ActiveLog returns the user's RUNNING log, or ErrNotFound when the user is
// idle.
func (s *SessionService) ActiveLog(ctx context.Context, userID int64) (*domain.WearLog, error) {
	return s.logs.ActiveByUser(ctx, userID)
}

// ListDay returns the user's logs whose start time falls on the given
// calendar day, ordered by start time.
func (s *SessionService) ListDay(ctx context.Context, userID int64, date time.Time) ([]domain.WearLog, error) {
	from, to := DayBounds(date, s.loc)
	return s.logs.ListByUserBetween(ctx, userID, from, to)
}

// ListTrailingWeek returns the user's logs starting within the 7 calendar
// days ending on the given anchor day, inclusive.
func (s *SessionService) ListTrailingWeek(ctx context.Context, userID int64, anchor time.Time) ([]domain.WearLog, error) {
	from, _ := DayBounds(anchor.AddDate(0, 0, -6), s.loc)
	_, to := DayBounds(anchor, s.loc)
	return s.logs.ListByUserBetween(ctx, userID, from, to)
}

// DayBounds returns the first and last instant of the calendar day containing
// t, in loc. The last instant is 23:59:59.999, matching the precision the
// stored intervals use.
func DayBounds(t time.Time, loc *time.Location) (time.Time, time.Time) {
	t = t.In(loc)
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	end := time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, int(999*time.Millisecond), loc)
	return start, end
}
