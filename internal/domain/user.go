package domain

import (
	"context"
	"time"
)

// User represents an account: a patient wearing aligners or a clinician
// supervising patients.
type User struct {
	ID           int64
	Email        string
	DisplayName  string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

const (
	RolePatient   = "patient"
	RoleClinician = "clinician"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context) ([]User, error)
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
}
