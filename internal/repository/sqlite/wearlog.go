package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/invilign/aligner-tracker/internal/domain"
)

// WearLogRepository implements domain.WearLogRepository using SQLite.
type WearLogRepository struct {
	db *sql.DB
}

// NewWearLogRepository creates a new SQLite-backed WearLogRepository.
func NewWearLogRepository(db *DB) *WearLogRepository {
	return &WearLogRepository{db: db.SqlDB}
}

const wearLogColumns = "id, user_id, start_time, end_time, status, reason, origin"

func (r *WearLogRepository) Create(ctx context.Context, log *domain.WearLog) error {
	log.StartAt = log.StartAt.UTC()
	if log.EndAt != nil {
		t := log.EndAt.UTC()
		log.EndAt = &t
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO wear_logs (id, user_id, start_time, end_time, status, reason, origin)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		log.ID, log.UserID, log.StartAt, log.EndAt, log.Status, log.Reason, log.Origin,
	)
	if err != nil {
		// The partial unique index rejects a second RUNNING log for the user.
		if log.Status == domain.StatusRunning && isUniqueConstraintError(err, "") {
			return domain.ErrSessionActive
		}
		return fmt.Errorf("insert wear log: %w", err)
	}
	return nil
}

func (r *WearLogRepository) GetByID(ctx context.Context, id string) (*domain.WearLog, error) {
	log := &domain.WearLog{}
	err := r.db.QueryRowContext(ctx,
		`SELECT `+wearLogColumns+` FROM wear_logs WHERE id = ?`, id,
	).Scan(&log.ID, &log.UserID, &log.StartAt, &log.EndAt, &log.Status, &log.Reason, &log.Origin)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get wear log: %w", err)
	}
	return log, nil
}

func (r *WearLogRepository) ActiveByUser(ctx context.Context, userID int64) (*domain.WearLog, error) {
	log := &domain.WearLog{}
	err := r.db.QueryRowContext(ctx,
		`SELECT `+wearLogColumns+` FROM wear_logs
		 WHERE user_id = ? AND status = ? LIMIT 1`,
		userID, domain.StatusRunning,
	).Scan(&log.ID, &log.UserID, &log.StartAt, &log.EndAt, &log.Status, &log.Reason, &log.Origin)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get active wear log: %w", err)
	}
	return log, nil
}

func (r *WearLogRepository) ListByUserBetween(ctx context.Context, userID int64, from, to time.Time) ([]domain.WearLog, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+wearLogColumns+` FROM wear_logs
		 WHERE user_id = ? AND start_time >= ? AND start_time <= ?
		 ORDER BY start_time ASC`,
		userID, from.UTC(), to.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("list wear logs: %w", err)
	}
	defer rows.Close()

	return scanWearLogs(rows)
}

func (r *WearLogRepository) ListRunning(ctx context.Context) ([]domain.WearLog, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+wearLogColumns+` FROM wear_logs WHERE status = ? ORDER BY start_time ASC`,
		domain.StatusRunning,
	)
	if err != nil {
		return nil, fmt.Errorf("list running wear logs: %w", err)
	}
	defer rows.Close()

	return scanWearLogs(rows)
}

func (r *WearLogRepository) Update(ctx context.Context, log *domain.WearLog) error {
	log.StartAt = log.StartAt.UTC()
	if log.EndAt != nil {
		t := log.EndAt.UTC()
		log.EndAt = &t
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE wear_logs SET start_time = ?, end_time = ?, status = ?, reason = ?, origin = ?
		 WHERE id = ?`,
		log.StartAt, log.EndAt, log.Status, log.Reason, log.Origin, log.ID,
	)
	if err != nil {
		return fmt.Errorf("update wear log: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *WearLogRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM wear_logs WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete wear log: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Split closes the given log at closeAt and inserts its successor in one
// transaction. Either both writes land or neither does.
func (r *WearLogRepository) Split(ctx context.Context, logID string, closeAt time.Time, successor *domain.WearLog) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin split: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE wear_logs SET end_time = ?, status = ?, origin = ? WHERE id = ?`,
		closeAt.UTC(), domain.StatusPaused, domain.OriginSplit, logID,
	)
	if err != nil {
		return fmt.Errorf("close wear log: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrNotFound
	}

	successor.StartAt = successor.StartAt.UTC()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO wear_logs (id, user_id, start_time, end_time, status, reason, origin)
		 VALUES (?, ?, ?, NULL, ?, ?, ?)`,
		successor.ID, successor.UserID, successor.StartAt, successor.Status, successor.Reason, successor.Origin,
	); err != nil {
		return fmt.Errorf("insert successor: %w", err)
	}

	return tx.Commit()
}

func scanWearLogs(rows *sql.Rows) ([]domain.WearLog, error) {
	var logs []domain.WearLog
	for rows.Next() {
		var log domain.WearLog
		if err := rows.Scan(&log.ID, &log.UserID, &log.StartAt, &log.EndAt, &log.Status, &log.Reason, &log.Origin); err != nil {
			return nil, fmt.Errorf("scan wear log: %w", err)
		}
		logs = append(logs, log)
	}
	return logs, rows.Err()
}
