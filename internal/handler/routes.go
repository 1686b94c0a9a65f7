package handler

import (
	"net/http"

	"github.com/invilign/aligner-tracker/internal/domain"
	"github.com/invilign/aligner-tracker/internal/service"
)

// Handlers bundles every handler plus the cross-cutting dependencies the
// router needs to wrap them in middleware.
type Handlers struct {
	Auth      *AuthHandler
	Timer     *TimerHandler
	Logs      *LogsHandler
	Cycle     *CycleHandler
	Clinician *ClinicianHandler
	Admin     *AdminHandler
	Health    *HealthHandler

	AuthService *service.AuthService
	AdminSecret string
	Metrics     http.Handler
}

// RegisterRoutes wires all application routes onto the mux.
func RegisterRoutes(mux *http.ServeMux, h *Handlers) {
	// Auth.
	mux.HandleFunc("POST /api/auth/login", h.Auth.HandleLogin)
	mux.HandleFunc("POST /api/auth/logout", h.Auth.HandleLogout)
	mux.Handle("GET /api/auth/me", RequireAuth(h.AuthService, http.HandlerFunc(h.Auth.HandleMe)))
	mux.Handle("POST /api/auth/password", RequireAuth(h.AuthService, http.HandlerFunc(h.Auth.HandleUpdatePassword)))

	// Wear session lifecycle.
	mux.Handle("GET /api/timer/active", RequireAuth(h.AuthService, http.HandlerFunc(h.Timer.HandleActive)))
	mux.Handle("POST /api/timer/start", RequireAuth(h.AuthService, http.HandlerFunc(h.Timer.HandleStart)))
	mux.Handle("POST /api/timer/pause", RequireAuth(h.AuthService, http.HandlerFunc(h.Timer.HandlePause)))
	mux.Handle("POST /api/timer/manual", RequireAuth(h.AuthService, http.HandlerFunc(h.Timer.HandleManual)))

	// Wear log history and aggregates.
	mux.Handle("DELETE /api/logs/{id}", RequireAuth(h.AuthService, http.HandlerFunc(h.Logs.HandleDelete)))
	mux.Handle("GET /api/logs/daily", RequireAuth(h.AuthService, http.HandlerFunc(h.Logs.HandleDaily)))
	mux.Handle("GET /api/logs/weekly", RequireAuth(h.AuthService, http.HandlerFunc(h.Logs.HandleWeekly)))

	// Change cycle.
	mux.Handle("GET /api/cycle", RequireAuth(h.AuthService, http.HandlerFunc(h.Cycle.HandleGet)))
	mux.Handle("POST /api/cycle/start", RequireAuth(h.AuthService, http.HandlerFunc(h.Cycle.HandleStart)))
	mux.Handle("POST /api/cycle/confirm", RequireAuth(h.AuthService, http.HandlerFunc(h.Cycle.HandleConfirm)))
	mux.Handle("POST /api/cycle/stop", RequireAuth(h.AuthService, http.HandlerFunc(h.Cycle.HandleStop)))

	// Clinician dashboard.
	mux.Handle("GET /api/clinician/patients", RequireRole(h.AuthService, domain.RoleClinician, http.HandlerFunc(h.Clinician.HandlePatients)))

	// Admin provisioning surface.
	mux.Handle("POST /api/admin/users", AdminGate(h.AdminSecret, http.HandlerFunc(h.Admin.HandleCreateUser)))
	mux.Handle("GET /api/admin/users", AdminGate(h.AdminSecret, http.HandlerFunc(h.Admin.HandleListUsers)))
	mux.Handle("POST /api/admin/assignments", AdminGate(h.AdminSecret, http.HandlerFunc(h.Admin.HandleCreateAssignment)))

	// Operational endpoints.
	mux.HandleFunc("GET /healthz", h.Health.HandleHealthz)
	mux.Handle("GET /metrics", h.Metrics)
}
