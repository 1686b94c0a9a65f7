package domain

import (
	"context"
	"time"
)

// WearLog is one recorded or in-progress wear interval for a user's aligner.
// EndAt is nil exactly when Status is StatusRunning.
type WearLog struct {
	ID      string
	UserID  int64
	StartAt time.Time
	EndAt   *time.Time
	Status  string
	Reason  string // user-chosen pause category ("Eating", "Brushing", ...)
	Origin  string // how the log was produced or closed; internal tag, not shown to the user
}

const (
	StatusRunning = "RUNNING"
	StatusPaused  = "PAUSED"
	StatusStopped = "STOPPED"
)

const (
	OriginUser     = "user"
	OriginManual   = "manual"
	OriginSplit    = "day_boundary_split"
	OriginCycleEnd = "cycle_ended"
)

// Closed reports whether the log has an end time. PAUSED and STOPPED are both
// closed; the distinction is presentational.
func (l *WearLog) Closed() bool {
	return l.Status != StatusRunning
}

// Duration returns the log's elapsed time, using now as the end for an open log.
func (l *WearLog) Duration(now time.Time) time.Duration {
	if l.EndAt != nil {
		return l.EndAt.Sub(l.StartAt)
	}
	return now.Sub(l.StartAt)
}

type WearLogRepository interface {
	Create(ctx context.Context, log *WearLog) error
	GetByID(ctx context.Context, id string) (*WearLog, error)
	// ActiveByUser returns the user's RUNNING log, or ErrNotFound.
	ActiveByUser(ctx context.Context, userID int64) (*WearLog, error)
	// ListByUserBetween returns logs whose start time falls in [from, to],
	// ordered by start time ascending.
	ListByUserBetween(ctx context.Context, userID int64, from, to time.Time) ([]WearLog, error)
	// ListRunning returns every RUNNING log across all users.
	ListRunning(ctx context.Context) ([]WearLog, error)
	Update(ctx context.Context, log *WearLog) error
	Delete(ctx context.Context, id string) error
	// Split closes the given log at closeAt and inserts its successor in a
	// single transaction, so a crash can never leave a closed log with no
	// RUNNING successor.
	Split(ctx context.Context, logID string, closeAt time.Time, successor *WearLog) error
}
