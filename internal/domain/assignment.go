package domain

import (
	"context"
	"time"
)

// Assignment links a patient to the clinician who monitors them.
// A given pair may only be linked once.
type Assignment struct {
	ID          int64
	PatientID   int64
	ClinicianID int64
	CreatedAt   time.Time
}

type AssignmentRepository interface {
	Create(ctx context.Context, a *Assignment) error
	// PatientsByClinician returns the patients assigned to a clinician.
	PatientsByClinician(ctx context.Context, clinicianID int64) ([]User, error)
}
