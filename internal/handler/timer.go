package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/invilign/aligner-tracker/internal/domain"
	"github.com/invilign/aligner-tracker/internal/service"
)

// TimerHandler handles wear-session lifecycle HTTP requests.
type TimerHandler struct {
	sessions   *service.SessionService
	normalizer *service.Normalizer
}

// NewTimerHandler creates a new TimerHandler.
func NewTimerHandler(sessions *service.SessionService, normalizer *service.Normalizer) *TimerHandler {
	return &TimerHandler{sessions: sessions, normalizer: normalizer}
}

// HandleActive returns the user's open wear log, normalized first: if the log
// crossed a day boundary while the client was away, it is split and the
// successor is what the client resumes against. 204 when the user is idle.
// GET /api/timer/active
func (h *TimerHandler) HandleActive(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Not authenticated.")
		return
	}

	successor, err := h.normalizer.Normalize(r.Context(), user.ID)
	if err != nil {
		slog.Error("normalize active log", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "An unexpected error occurred.")
		return
	}
	if successor != nil {
		writeJSON(w, http.StatusOK, map[string]any{"log": toWearLogDTO(successor)})
		return
	}

	log, err := h.sessions.ActiveLog(r.Context(), user.ID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		slog.Error("get active log", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "An unexpected error occurred.")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"log": toWearLogDTO(log)})
}

// HandleStart opens a new wear session.
// POST /api/timer/start
func (h *TimerHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Not authenticated.")
		return
	}

	log, err := h.sessions.Start(r.Context(), user.ID)
	if err != nil {
		if errors.Is(err, domain.ErrSessionActive) {
			writeError(w, http.StatusConflict, "A wear session is already running.")
			return
		}
		slog.Error("start session", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "An unexpected error occurred.")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"log": toWearLogDTO(log)})
}

// HandlePause closes the user's open wear session.
// POST /api/timer/pause
// Request: {"reason":"eating"} (reason optional)
func (h *TimerHandler) HandlePause(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Not authenticated.")
		return
	}

	var req struct {
		Reason string `json:"reason"`
	}
	if r.ContentLength > 0 {
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body.")
			return
		}
	}

	active, err := h.sessions.ActiveLog(r.Context(), user.ID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusConflict, "No wear session is running.")
			return
		}
		slog.Error("get active log", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "An unexpected error occurred.")
		return
	}

	log, err := h.sessions.Pause(r.Context(), active.ID, req.Reason, domain.OriginUser)
	if err != nil {
		slog.Error("pause session", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "An unexpected error occurred.")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"log": toWearLogDTO(log)})
}

// HandleManual records an already-completed wear interval.
// POST /api/timer/manual
// Request: {"startAt":"...","endAt":"...","reason":"forgot to start timer"}
func (h *TimerHandler) HandleManual(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Not authenticated.")
		return
	}

	var req struct {
		StartAt string `json:"startAt"`
		EndAt   string `json:"endAt"`
		Reason  string `json:"reason"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	start, err := time.Parse(time.RFC3339, req.StartAt)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "startAt must be an RFC 3339 timestamp.")
		return
	}
	end, err := time.Parse(time.RFC3339, req.EndAt)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "endAt must be an RFC 3339 timestamp.")
		return
	}

	log, err := h.sessions.AddManualEntry(r.Context(), user.ID, start, end, req.Reason)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		slog.Error("add manual entry", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "An unexpected error occurred.")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"log": toWearLogDTO(log)})
}
