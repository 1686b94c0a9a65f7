package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/invilign/aligner-tracker/internal/domain"
)

// AssignmentRepository implements domain.AssignmentRepository using SQLite.
type AssignmentRepository struct {
	db *sql.DB
}

// NewAssignmentRepository creates a new SQLite-backed AssignmentRepository.
func NewAssignmentRepository(db *DB) *AssignmentRepository {
	return &AssignmentRepository{db: db.SqlDB}
}

func (r *AssignmentRepository) Create(ctx context.Context, a *domain.Assignment) error {
	now := time.Now().UTC()
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO assignments (patient_id, clinician_id, created_at) VALUES (?, ?, ?)`,
		a.PatientID, a.ClinicianID, now,
	)
	if err != nil {
		if isUniqueConstraintError(err, "assignments") {
			return domain.ErrDuplicateAssignment
		}
		return fmt.Errorf("insert assignment: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}

	a.ID = id
	a.CreatedAt = now
	return nil
}

func (r *AssignmentRepository) PatientsByClinician(ctx context.Context, clinicianID int64) ([]domain.User, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT u.id, u.email, u.display_name, u.password_hash, u.role, u.created_at, u.updated_at
		 FROM users u
		 JOIN assignments a ON a.patient_id = u.id
		 WHERE a.clinician_id = ?
		 ORDER BY u.display_name ASC`,
		clinicianID,
	)
	if err != nil {
		return nil, fmt.Errorf("list assigned patients: %w", err)
	}
	defer rows.Close()

	var patients []domain.User
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.Email, &u.DisplayName, &u.PasswordHash, &u.Role, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan patient: %w", err)
		}
		patients = append(patients, u)
	}
	return patients, rows.Err()
}
