package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/invilign/aligner-tracker/internal/domain"
)

// CycleRepository implements domain.CycleRepository using SQLite.
type CycleRepository struct {
	db *sql.DB
}

// NewCycleRepository creates a new SQLite-backed CycleRepository.
func NewCycleRepository(db *DB) *CycleRepository {
	return &CycleRepository{db: db.SqlDB}
}

func (r *CycleRepository) Get(ctx context.Context, userID int64) (*domain.CycleState, error) {
	state := &domain.CycleState{}
	err := r.db.QueryRowContext(ctx,
		`SELECT user_id, cycle_start, is_active, updated_at FROM cycle_states WHERE user_id = ?`,
		userID,
	).Scan(&state.UserID, &state.CycleStart, &state.IsActive, &state.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get cycle state: %w", err)
	}
	return state, nil
}

func (r *CycleRepository) Upsert(ctx context.Context, state *domain.CycleState) error {
	now := time.Now().UTC()
	state.UpdatedAt = now
	if state.CycleStart != nil {
		t := state.CycleStart.UTC()
		state.CycleStart = &t
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO cycle_states (user_id, cycle_start, is_active, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
		   cycle_start = excluded.cycle_start,
		   is_active = excluded.is_active,
		   updated_at = excluded.updated_at`,
		state.UserID, state.CycleStart, state.IsActive, now,
	)
	if err != nil {
		return fmt.Errorf("upsert cycle state: %w", err)
	}
	return nil
}
