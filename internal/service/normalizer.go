package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/invilign/aligner-tracker/internal/domain"
	"github.com/invilign/aligner-tracker/internal/metrics"
)

// Normalizer keeps open intervals from silently spanning calendar days.
// Day-bucketed aggregation keys every log by the calendar day of its start
// time, so a RUNNING log that crossed midnight must be closed at the last
// instant of its start day and replaced by a successor starting today.
type Normalizer struct {
	logs domain.WearLogRepository
	loc  *time.Location
	rec  metrics.Recorder
}

// NewNormalizer creates a new Normalizer.
func NewNormalizer(logs domain.WearLogRepository, loc *time.Location, rec metrics.Recorder) *Normalizer {
	return &Normalizer{logs: logs, loc: loc, rec: rec}
}

// Normalize checks the user's RUNNING log against today's date and splits it
// at the day boundary if it started on an earlier day. It returns the
// successor log when a split happened, or nil when no action was needed.
//
// Only one split happens per invocation: a log left running across several
// offline days is closed at the end of its start day and resumed today, and
// the days in between read as zero wear time. That is documented behavior,
// not something to patch up here.
func (n *Normalizer) Normalize(ctx context.Context, userID int64) (*domain.WearLog, error) {
	log, err := n.logs.ActiveByUser(ctx, userID)
	if err != nil {
		if err == domain.ErrNotFound {
			return nil, nil
		}
		return nil, err
	}
	return n.split(ctx, log, time.Now())
}

// SweepRunning applies Normalize to every RUNNING log in the store. It is
// called from the periodic re-validation ticker. Failures on individual logs
// are logged and skipped; the next sweep re-observes them.
func (n *Normalizer) SweepRunning(ctx context.Context) {
	logs, err := n.logs.ListRunning(ctx)
	if err != nil {
		slog.Error("list running logs for sweep", "error", err)
		return
	}

	now := time.Now()
	for i := range logs {
		if _, err := n.split(ctx, &logs[i], now); err != nil {
			slog.Error("midnight split", "log_id", logs[i].ID, "error", err)
		}
	}
}

func (n *Normalizer) split(ctx context.Context, log *domain.WearLog, now time.Time) (*domain.WearLog, error) {
	startDay, _ := DayBounds(log.StartAt, n.loc)
	today, _ := DayBounds(now, n.loc)
	if !startDay.Before(today) {
		return nil, nil
	}

	_, closeAt := DayBounds(log.StartAt, n.loc)
	successor := &domain.WearLog{
		ID:      uuid.NewString(),
		UserID:  log.UserID,
		StartAt: today,
		Status:  domain.StatusRunning,
		Origin:  domain.OriginSplit,
	}

	if err := n.logs.Split(ctx, log.ID, closeAt, successor); err != nil {
		return nil, err
	}

	n.rec.RecordMidnightSplit()
	slog.Info("wear log split at day boundary", "user_id", log.UserID, "closed", log.ID, "successor", successor.ID)
	return successor, nil
}
