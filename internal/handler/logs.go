package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/invilign/aligner-tracker/internal/domain"
	"github.com/invilign/aligner-tracker/internal/service"
)

// LogsHandler handles wear-log history and aggregation HTTP requests.
type LogsHandler struct {
	sessions *service.SessionService
	loc      *time.Location
}

// NewLogsHandler creates a new LogsHandler.
func NewLogsHandler(sessions *service.SessionService, loc *time.Location) *LogsHandler {
	return &LogsHandler{sessions: sessions, loc: loc}
}

// HandleDelete removes a wear log the user owns.
// DELETE /api/logs/{id}
func (h *LogsHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Not authenticated.")
		return
	}

	logID := r.PathValue("id")
	log, err := h.sessions.GetByID(r.Context(), logID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Log not found.")
			return
		}
		slog.Error("get log for delete", "log_id", logID, "error", err)
		writeError(w, http.StatusInternalServerError, "An unexpected error occurred.")
		return
	}
	if log.UserID != user.ID {
		writeError(w, http.StatusNotFound, "Log not found.")
		return
	}

	if err := h.sessions.Delete(r.Context(), logID); err != nil {
		slog.Error("delete log", "log_id", logID, "error", err)
		writeError(w, http.StatusInternalServerError, "An unexpected error occurred.")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleDaily returns the user's logs and total wear time for one calendar
// day. The date query parameter defaults to today.
// GET /api/logs/daily?date=2026-01-15
func (h *LogsHandler) HandleDaily(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Not authenticated.")
		return
	}

	now := time.Now()
	date := now
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.ParseInLocation("2006-01-02", raw, h.loc)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "date must be formatted YYYY-MM-DD.")
			return
		}
		date = parsed
	}

	logs, err := h.sessions.ListDay(r.Context(), user.ID, date)
	if err != nil {
		slog.Error("list day logs", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "An unexpected error occurred.")
		return
	}

	total := service.DailyTotal(date, logs, now, h.loc)
	writeJSON(w, http.StatusOK, map[string]any{
		"date":       date.In(h.loc).Format("2006-01-02"),
		"totalHours": total.Hours(),
		"logs":       toWearLogDTOs(logs),
	})
}

// HandleWeekly returns the trailing 7-day series ending today, plus the
// derived compliance signal.
// GET /api/logs/weekly
func (h *LogsHandler) HandleWeekly(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Not authenticated.")
		return
	}

	now := time.Now()
	logs, err := h.sessions.ListTrailingWeek(r.Context(), user.ID, now)
	if err != nil {
		slog.Error("list week logs", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "An unexpected error occurred.")
		return
	}

	series := service.WeeklySeries(logs, now, now, h.loc)
	hours := service.WeeklyHours(series)
	writeJSON(w, http.StatusOK, map[string]any{
		"week":       toDayTotalDTOs(series),
		"avgHours":   service.WeeklyAverage(hours),
		"compliance": string(service.Classify(hours)),
	})
}
