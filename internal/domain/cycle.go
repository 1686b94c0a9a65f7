package domain

import (
	"context"
	"time"
)

// CycleState tracks a user's 7-day aligner change cycle, independent of wear
// sessions. CycleStart is nil before the user has ever started a cycle.
type CycleState struct {
	UserID     int64
	CycleStart *time.Time
	IsActive   bool
	UpdatedAt  time.Time
}

type CycleRepository interface {
	// Get returns the user's cycle state, or ErrNotFound if none was ever stored.
	Get(ctx context.Context, userID int64) (*CycleState, error)
	// Upsert inserts or replaces the user's cycle state.
	Upsert(ctx context.Context, state *CycleState) error
}
