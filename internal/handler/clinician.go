package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/invilign/aligner-tracker/internal/domain"
	"github.com/invilign/aligner-tracker/internal/service"
)

// ClinicianHandler serves the clinician dashboard: assigned patients with
// their trailing-week wear series and compliance signal.
type ClinicianHandler struct {
	assignments domain.AssignmentRepository
	sessions    *service.SessionService
	loc         *time.Location
}

// NewClinicianHandler creates a new ClinicianHandler.
func NewClinicianHandler(assignments domain.AssignmentRepository, sessions *service.SessionService, loc *time.Location) *ClinicianHandler {
	return &ClinicianHandler{assignments: assignments, sessions: sessions, loc: loc}
}

// HandlePatients returns every patient assigned to the requesting clinician,
// each with a freshly computed weekly series and compliance level.
// GET /api/clinician/patients
func (h *ClinicianHandler) HandlePatients(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Not authenticated.")
		return
	}

	patients, err := h.assignments.PatientsByClinician(r.Context(), user.ID)
	if err != nil {
		slog.Error("list assigned patients", "clinician_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "An unexpected error occurred.")
		return
	}

	now := time.Now()
	summaries := make([]PatientSummaryDTO, 0, len(patients))
	for i := range patients {
		patient := &patients[i]
		logs, err := h.sessions.ListTrailingWeek(r.Context(), patient.ID, now)
		if err != nil {
			slog.Error("list patient week", "patient_id", patient.ID, "error", err)
			writeError(w, http.StatusInternalServerError, "An unexpected error occurred.")
			return
		}

		series := service.WeeklySeries(logs, now, now, h.loc)
		hours := service.WeeklyHours(series)
		summaries = append(summaries, PatientSummaryDTO{
			ID:          patient.ID,
			DisplayName: patient.DisplayName,
			Email:       patient.Email,
			Compliance:  string(service.Classify(hours)),
			AvgHours:    service.WeeklyAverage(hours),
			Week:        toDayTotalDTOs(series),
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{"patients": summaries})
}
