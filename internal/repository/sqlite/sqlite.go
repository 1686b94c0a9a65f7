package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/invilign/aligner-tracker/internal/repository/sqlite/migrations"
)

// DB wraps the SQLite connection and hands out repositories.
type DB struct {
	SqlDB *sql.DB
}

// New opens a SQLite database at the given path and configures it for use.
// It enables WAL mode and foreign keys.
func New(dbPath string) (*DB, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	// Enable foreign key enforcement.
	if _, err := db.ExecContext(context.Background(), "PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	// SQLite allows a single writer; serialize access through one connection.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &DB{SqlDB: db}, nil
}

// Migrate applies all pending schema migrations.
func (db *DB) Migrate(ctx context.Context) error {
	return migrations.Run(ctx, db.SqlDB)
}

// Close closes the underlying connection.
func (db *DB) Close() error {
	return db.SqlDB.Close()
}

// Users returns the user repository.
func (db *DB) Users() *UserRepository { return NewUserRepository(db) }

// WearLogs returns the wear log repository.
func (db *DB) WearLogs() *WearLogRepository { return NewWearLogRepository(db) }

// Cycles returns the cycle state repository.
func (db *DB) Cycles() *CycleRepository { return NewCycleRepository(db) }

// Assignments returns the assignment repository.
func (db *DB) Assignments() *AssignmentRepository { return NewAssignmentRepository(db) }

// isUniqueConstraintError checks if the error is a SQLite unique constraint
// violation mentioning the given column hint.
func isUniqueConstraintError(err error, hint string) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	if !strings.Contains(msg, "UNIQUE constraint failed") && !strings.Contains(msg, "unique constraint") {
		return false
	}
	return hint == "" || strings.Contains(msg, hint)
}
