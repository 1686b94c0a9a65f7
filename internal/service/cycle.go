package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/invilign/aligner-tracker/internal/domain"
)

// changeInterval is the period between aligner changes.
const changeInterval = 7 * 24 * time.Hour

// CycleService tracks the 7-day aligner change cycle. It runs independently
// of wear sessions except for one coupling: ending a cycle forces the user's
// open wear session closed.
type CycleService struct {
	cycles   domain.CycleRepository
	sessions *SessionService
}

// NewCycleService creates a new CycleService. The session service is the one
// explicit cross-component dependency; stopping a cycle is the only place the
// scheduler mutates session state.
func NewCycleService(cycles domain.CycleRepository, sessions *SessionService) *CycleService {
	return &CycleService{cycles: cycles, sessions: sessions}
}

// Get returns the user's cycle state, or ErrNotFound when the user never
// started a cycle.
func (s *CycleService) Get(ctx context.Context, userID int64) (*domain.CycleState, error) {
	return s.cycles.Get(ctx, userID)
}

// StartCycle begins tracking with the given explicit start instant: the
// moment the device was first worn, not necessarily now.
func (s *CycleService) StartCycle(ctx context.Context, userID int64, start time.Time) (*domain.CycleState, error) {
	start = start.UTC()
	state := &domain.CycleState{
		UserID:     userID,
		CycleStart: &start,
		IsActive:   true,
	}
	if err := s.cycles.Upsert(ctx, state); err != nil {
		return nil, err
	}
	return state, nil
}

// ConfirmChange records that the user swapped to the next aligner, restarting
// the 7-day window from now. Session state is untouched.
func (s *CycleService) ConfirmChange(ctx context.Context, userID int64, now time.Time) (*domain.CycleState, error) {
	state, err := s.cycles.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !state.IsActive || state.CycleStart == nil {
		return nil, domain.ErrCycleInactive
	}

	start := now.UTC()
	state.CycleStart = &start
	if err := s.cycles.Upsert(ctx, state); err != nil {
		return nil, err
	}
	return state, nil
}

// StopCycle deactivates the user's cycle. If a wear session is currently
// RUNNING it is force-closed with the cycle-ended origin tag.
func (s *CycleService) StopCycle(ctx context.Context, userID int64) error {
	state, err := s.cycles.Get(ctx, userID)
	if err != nil {
		return err
	}

	state.IsActive = false
	if err := s.cycles.Upsert(ctx, state); err != nil {
		return err
	}

	active, err := s.sessions.ActiveLog(ctx, userID)
	if err != nil {
		if err == domain.ErrNotFound {
			return nil
		}
		return fmt.Errorf("check active session: %w", err)
	}
	if _, err := s.sessions.Pause(ctx, active.ID, "", domain.OriginCycleEnd); err != nil {
		return fmt.Errorf("close session on cycle end: %w", err)
	}
	return nil
}

// NextChangeDue returns the instant the next aligner change is due.
func NextChangeDue(cycleStart time.Time) time.Time {
	return cycleStart.Add(changeInterval)
}

// IsOverdue reports whether the change is due at or before now.
func IsOverdue(cycleStart, now time.Time) bool {
	return !now.Before(NextChangeDue(cycleStart))
}

// DaysRemaining returns the number of days until the next change, rounded up.
// It is zero or negative once the change is overdue; the display layer shows
// a fixed "due" indicator instead of a negative count.
func DaysRemaining(cycleStart, now time.Time) int {
	remaining := NextChangeDue(cycleStart).Sub(now)
	return int(math.Ceil(remaining.Hours() / 24))
}
