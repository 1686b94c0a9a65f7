package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/invilign/aligner-tracker/internal/domain"
	"github.com/invilign/aligner-tracker/internal/service"
)

// AdminHandler handles the provisioning surface: creating accounts and
// assigning patients to clinicians. All routes sit behind the admin gate.
type AdminHandler struct {
	auth        *service.AuthService
	users       domain.UserRepository
	assignments domain.AssignmentRepository
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(auth *service.AuthService, users domain.UserRepository, assignments domain.AssignmentRepository) *AdminHandler {
	return &AdminHandler{auth: auth, users: users, assignments: assignments}
}

// HandleCreateUser provisions a new account. No session is issued for it.
// POST /api/admin/users
// Request: {"email":"...","displayName":"...","password":"...","role":"patient"}
func (h *AdminHandler) HandleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email       string `json:"email"`
		DisplayName string `json:"displayName"`
		Password    string `json:"password"`
		Role        string `json:"role"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	user, err := h.auth.Provision(r.Context(), req.Email, req.DisplayName, req.Password, req.Role)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		if errors.Is(err, domain.ErrDuplicateEmail) {
			writeError(w, http.StatusConflict, "An account with this email already exists.")
			return
		}
		slog.Error("provision user", "error", err)
		writeError(w, http.StatusInternalServerError, "An unexpected error occurred.")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"user": toUserDTO(user)})
}

// HandleListUsers returns all accounts.
// GET /api/admin/users
func (h *AdminHandler) HandleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		slog.Error("list users", "error", err)
		writeError(w, http.StatusInternalServerError, "An unexpected error occurred.")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"users": toUserDTOs(users)})
}

// HandleCreateAssignment links a patient to a clinician.
// POST /api/admin/assignments
// Request: {"patientId":1,"clinicianId":2}
func (h *AdminHandler) HandleCreateAssignment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PatientID   int64 `json:"patientId"`
		ClinicianID int64 `json:"clinicianId"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	if req.PatientID == 0 || req.ClinicianID == 0 {
		writeError(w, http.StatusUnprocessableEntity, "patientId and clinicianId are required.")
		return
	}

	patient, err := h.users.GetByID(r.Context(), req.PatientID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusUnprocessableEntity, "Patient not found.")
			return
		}
		slog.Error("get patient for assignment", "error", err)
		writeError(w, http.StatusInternalServerError, "An unexpected error occurred.")
		return
	}
	clinician, err := h.users.GetByID(r.Context(), req.ClinicianID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusUnprocessableEntity, "Clinician not found.")
			return
		}
		slog.Error("get clinician for assignment", "error", err)
		writeError(w, http.StatusInternalServerError, "An unexpected error occurred.")
		return
	}
	if patient.Role != domain.RolePatient || clinician.Role != domain.RoleClinician {
		writeError(w, http.StatusUnprocessableEntity, "Assignment must link a patient to a clinician.")
		return
	}

	assignment := &domain.Assignment{PatientID: req.PatientID, ClinicianID: req.ClinicianID}
	if err := h.assignments.Create(r.Context(), assignment); err != nil {
		if errors.Is(err, domain.ErrDuplicateAssignment) {
			writeError(w, http.StatusConflict, "This patient is already assigned to this clinician.")
			return
		}
		slog.Error("create assignment", "error", err)
		writeError(w, http.StatusInternalServerError, "An unexpected error occurred.")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"assignment": map[string]any{
			"id":          assignment.ID,
			"patientId":   assignment.PatientID,
			"clinicianId": assignment.ClinicianID,
		},
	})
}
