package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/invilign/aligner-tracker/internal/domain"
	"github.com/invilign/aligner-tracker/internal/service"
)

// CycleHandler handles aligner change-cycle HTTP requests.
type CycleHandler struct {
	cycles *service.CycleService
}

// NewCycleHandler creates a new CycleHandler.
func NewCycleHandler(cycles *service.CycleService) *CycleHandler {
	return &CycleHandler{cycles: cycles}
}

// HandleGet returns the user's current cycle status. A user who never started
// a cycle gets an inactive status rather than 404.
// GET /api/cycle
func (h *CycleHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Not authenticated.")
		return
	}

	state, err := h.cycles.Get(r.Context(), user.ID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeJSON(w, http.StatusOK, CycleStatusDTO{IsActive: false})
			return
		}
		slog.Error("get cycle", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "An unexpected error occurred.")
		return
	}

	writeJSON(w, http.StatusOK, toCycleStatusDTO(state, time.Now()))
}

// HandleStart begins cycle tracking from an explicit start instant, defaulting
// to now when the body omits it.
// POST /api/cycle/start
// Request: {"startAt":"2026-01-15T09:00:00Z"} (optional)
func (h *CycleHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Not authenticated.")
		return
	}

	start := time.Now()
	if r.ContentLength > 0 {
		var req struct {
			StartAt string `json:"startAt"`
		}
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body.")
			return
		}
		if req.StartAt != "" {
			parsed, err := time.Parse(time.RFC3339, req.StartAt)
			if err != nil {
				writeError(w, http.StatusUnprocessableEntity, "startAt must be an RFC 3339 timestamp.")
				return
			}
			start = parsed
		}
	}

	state, err := h.cycles.StartCycle(r.Context(), user.ID, start)
	if err != nil {
		slog.Error("start cycle", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "An unexpected error occurred.")
		return
	}

	writeJSON(w, http.StatusCreated, toCycleStatusDTO(state, time.Now()))
}

// HandleConfirm records an aligner change, restarting the 7-day window.
// POST /api/cycle/confirm
func (h *CycleHandler) HandleConfirm(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Not authenticated.")
		return
	}

	now := time.Now()
	state, err := h.cycles.ConfirmChange(r.Context(), user.ID, now)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrCycleInactive) {
			writeError(w, http.StatusConflict, "No active cycle to confirm.")
			return
		}
		slog.Error("confirm cycle change", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "An unexpected error occurred.")
		return
	}

	writeJSON(w, http.StatusOK, toCycleStatusDTO(state, now))
}

// HandleStop ends cycle tracking and force-closes any running wear session.
// POST /api/cycle/stop
func (h *CycleHandler) HandleStop(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Not authenticated.")
		return
	}

	if err := h.cycles.StopCycle(r.Context(), user.ID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusConflict, "No cycle to stop.")
			return
		}
		slog.Error("stop cycle", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "An unexpected error occurred.")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
