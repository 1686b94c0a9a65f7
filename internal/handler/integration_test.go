package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/invilign/aligner-tracker/internal/domain"
	"github.com/invilign/aligner-tracker/internal/handler"
	"github.com/invilign/aligner-tracker/internal/metrics"
	"github.com/invilign/aligner-tracker/internal/repository/sqlite"
	"github.com/invilign/aligner-tracker/internal/service"
)

const (
	testJWTSecret   = "test-secret-key-for-handler-tests-1"
	testAdminSecret = "test-admin-secret"
)

func newTestServer(t *testing.T) (*httptest.Server, *sqlite.DB) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := sqlite.New(dbPath)
	if err != nil {
		t.Fatalf("New DB: %v", err)
	}
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	authService := service.NewAuthService(db.Users(), testJWTSecret, 4)
	sessionService := service.NewSessionService(db.WearLogs(), time.UTC, collector)
	normalizer := service.NewNormalizer(db.WearLogs(), time.UTC, collector)
	cycleService := service.NewCycleService(db.Cycles(), sessionService)
	loginLimiter := service.NewTokenBucket(100, 100)

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux, &handler.Handlers{
		Auth:      handler.NewAuthHandler(authService, loginLimiter, false),
		Timer:     handler.NewTimerHandler(sessionService, normalizer),
		Logs:      handler.NewLogsHandler(sessionService, time.UTC),
		Cycle:     handler.NewCycleHandler(cycleService),
		Clinician: handler.NewClinicianHandler(db.Assignments(), sessionService, time.UTC),
		Admin:     handler.NewAdminHandler(authService, db.Users(), db.Assignments()),
		Health:    handler.NewHealthHandler(db.SqlDB),

		AuthService: authService,
		AdminSecret: testAdminSecret,
		Metrics:     metrics.Handler(registry),
	})

	srv := httptest.NewServer(handler.SecurityHeaders(mux))
	t.Cleanup(srv.Close)
	return srv, db
}

func newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("create cookie jar: %v", err)
	}
	return &http.Client{Jar: jar}
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, dst any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func provisionUser(t *testing.T, srvURL, email, password, role string) {
	t.Helper()
	resp := doJSON(t, http.DefaultClient, http.MethodPost, srvURL+"/api/admin/users", map[string]string{
		"email":       email,
		"displayName": "Test " + role,
		"password":    password,
		"role":        role,
	}, map[string]string{"X-Admin-Secret": testAdminSecret})
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("provision %s: expected 201, got %d", email, resp.StatusCode)
	}
}

func login(t *testing.T, client *http.Client, srvURL, email, password string) {
	t.Helper()
	resp := doJSON(t, client, http.MethodPost, srvURL+"/api/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login %s: expected 200, got %d", email, resp.StatusCode)
	}
}

func TestIntegration_PatientTimerFlow(t *testing.T) {
	srv, _ := newTestServer(t)
	provisionUser(t, srv.URL, "patient@example.com", "password123", "patient")

	client := newClient(t)
	login(t, client, srv.URL, "patient@example.com", "password123")

	// Verify auth_token cookie was set.
	srvURL, _ := url.Parse(srv.URL)
	var hasAuthToken bool
	for _, c := range client.Jar.Cookies(srvURL) {
		if c.Name == "auth_token" {
			hasAuthToken = true
		}
	}
	if !hasAuthToken {
		t.Fatal("expected auth_token cookie to be set after login")
	}

	// No active session yet.
	resp, err := client.Get(srv.URL + "/api/timer/active")
	if err != nil {
		t.Fatalf("GET /api/timer/active: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("active: expected 204 while idle, got %d", resp.StatusCode)
	}

	// Start a session.
	resp = doJSON(t, client, http.MethodPost, srv.URL+"/api/timer/start", nil, nil)
	var started struct {
		Log handler.WearLogDTO `json:"log"`
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("start: expected 201, got %d", resp.StatusCode)
	}
	decodeBody(t, resp, &started)
	if started.Log.Status != "RUNNING" {
		t.Fatalf("expected RUNNING log, got %s", started.Log.Status)
	}

	// A second start conflicts.
	resp = doJSON(t, client, http.MethodPost, srv.URL+"/api/timer/start", nil, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("double start: expected 409, got %d", resp.StatusCode)
	}

	// The active endpoint now returns the log.
	resp, err = client.Get(srv.URL + "/api/timer/active")
	if err != nil {
		t.Fatalf("GET /api/timer/active: %v", err)
	}
	var active struct {
		Log handler.WearLogDTO `json:"log"`
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("active: expected 200, got %d", resp.StatusCode)
	}
	decodeBody(t, resp, &active)
	if active.Log.ID != started.Log.ID {
		t.Fatalf("expected active log %s, got %s", started.Log.ID, active.Log.ID)
	}

	// Pause with a reason.
	resp = doJSON(t, client, http.MethodPost, srv.URL+"/api/timer/pause", map[string]string{"reason": "eating"}, nil)
	var paused struct {
		Log handler.WearLogDTO `json:"log"`
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("pause: expected 200, got %d", resp.StatusCode)
	}
	decodeBody(t, resp, &paused)
	if paused.Log.Status != "PAUSED" || paused.Log.EndAt == nil {
		t.Fatalf("expected closed PAUSED log, got %+v", paused.Log)
	}
	if paused.Log.Reason != "eating" {
		t.Fatalf("expected reason eating, got %q", paused.Log.Reason)
	}

	// Pausing again without a session conflicts.
	resp = doJSON(t, client, http.MethodPost, srv.URL+"/api/timer/pause", nil, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("pause while idle: expected 409, got %d", resp.StatusCode)
	}

	// The day's total reflects the session.
	resp, err = client.Get(srv.URL + "/api/logs/daily")
	if err != nil {
		t.Fatalf("GET /api/logs/daily: %v", err)
	}
	var daily struct {
		Date       string               `json:"date"`
		TotalHours float64              `json:"totalHours"`
		Logs       []handler.WearLogDTO `json:"logs"`
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("daily: expected 200, got %d", resp.StatusCode)
	}
	decodeBody(t, resp, &daily)
	if len(daily.Logs) != 1 {
		t.Fatalf("expected 1 log today, got %d", len(daily.Logs))
	}
}

func TestIntegration_ManualEntryAndDelete(t *testing.T) {
	srv, _ := newTestServer(t)
	provisionUser(t, srv.URL, "manual@example.com", "password123", "patient")

	client := newClient(t)
	login(t, client, srv.URL, "manual@example.com", "password123")

	start := time.Now().UTC().Add(-3 * time.Hour).Format(time.RFC3339)
	end := time.Now().UTC().Add(-90 * time.Minute).Format(time.RFC3339)
	resp := doJSON(t, client, http.MethodPost, srv.URL+"/api/timer/manual", map[string]string{
		"startAt": start,
		"endAt":   end,
		"reason":  "forgot to start timer",
	}, nil)
	var created struct {
		Log handler.WearLogDTO `json:"log"`
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("manual: expected 201, got %d", resp.StatusCode)
	}
	decodeBody(t, resp, &created)
	if created.Log.Status != "STOPPED" {
		t.Fatalf("expected STOPPED, got %s", created.Log.Status)
	}
	if created.Log.Origin != "manual" {
		t.Fatalf("expected origin manual, got %s", created.Log.Origin)
	}

	// Reversed bounds are rejected.
	resp = doJSON(t, client, http.MethodPost, srv.URL+"/api/timer/manual", map[string]string{
		"startAt": end,
		"endAt":   start,
	}, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("reversed bounds: expected 422, got %d", resp.StatusCode)
	}

	// Delete the entry.
	resp = doJSON(t, client, http.MethodDelete, srv.URL+"/api/logs/"+created.Log.ID, nil, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", resp.StatusCode)
	}

	// Deleting it again is a 404.
	resp = doJSON(t, client, http.MethodDelete, srv.URL+"/api/logs/"+created.Log.ID, nil, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("second delete: expected 404, got %d", resp.StatusCode)
	}
}

func TestIntegration_DeleteForeignLogRejected(t *testing.T) {
	srv, _ := newTestServer(t)
	provisionUser(t, srv.URL, "owner@example.com", "password123", "patient")
	provisionUser(t, srv.URL, "intruder@example.com", "password123", "patient")

	owner := newClient(t)
	login(t, owner, srv.URL, "owner@example.com", "password123")

	start := time.Now().UTC().Add(-2 * time.Hour).Format(time.RFC3339)
	end := time.Now().UTC().Add(-time.Hour).Format(time.RFC3339)
	resp := doJSON(t, owner, http.MethodPost, srv.URL+"/api/timer/manual", map[string]string{
		"startAt": start, "endAt": end,
	}, nil)
	var created struct {
		Log handler.WearLogDTO `json:"log"`
	}
	decodeBody(t, resp, &created)

	intruder := newClient(t)
	login(t, intruder, srv.URL, "intruder@example.com", "password123")

	resp = doJSON(t, intruder, http.MethodDelete, srv.URL+"/api/logs/"+created.Log.ID, nil, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("foreign delete: expected 404, got %d", resp.StatusCode)
	}
}

func TestIntegration_WeeklyAndCompliance(t *testing.T) {
	srv, _ := newTestServer(t)
	provisionUser(t, srv.URL, "weekly@example.com", "password123", "patient")

	client := newClient(t)
	login(t, client, srv.URL, "weekly@example.com", "password123")

	resp, err := client.Get(srv.URL + "/api/logs/weekly")
	if err != nil {
		t.Fatalf("GET /api/logs/weekly: %v", err)
	}
	var weekly struct {
		Week       []handler.DayTotalDTO `json:"week"`
		AvgHours   float64               `json:"avgHours"`
		Compliance string                `json:"compliance"`
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("weekly: expected 200, got %d", resp.StatusCode)
	}
	decodeBody(t, resp, &weekly)
	if len(weekly.Week) != 7 {
		t.Fatalf("expected 7 buckets, got %d", len(weekly.Week))
	}
	// A brand-new patient has empty days everywhere.
	if weekly.Compliance != "RED" {
		t.Fatalf("expected RED for empty week, got %s", weekly.Compliance)
	}
}

func TestIntegration_CycleFlow(t *testing.T) {
	srv, _ := newTestServer(t)
	provisionUser(t, srv.URL, "cycle@example.com", "password123", "patient")

	client := newClient(t)
	login(t, client, srv.URL, "cycle@example.com", "password123")

	// Never started: inactive status.
	resp, err := client.Get(srv.URL + "/api/cycle")
	if err != nil {
		t.Fatalf("GET /api/cycle: %v", err)
	}
	var status handler.CycleStatusDTO
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("cycle: expected 200, got %d", resp.StatusCode)
	}
	decodeBody(t, resp, &status)
	if status.IsActive {
		t.Fatal("expected inactive cycle before start")
	}

	// Confirm without an active cycle conflicts.
	resp = doJSON(t, client, http.MethodPost, srv.URL+"/api/cycle/confirm", nil, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("confirm without cycle: expected 409, got %d", resp.StatusCode)
	}

	// Start with an explicit past instant, 8 days ago: already overdue.
	past := time.Now().UTC().AddDate(0, 0, -8).Format(time.RFC3339)
	resp = doJSON(t, client, http.MethodPost, srv.URL+"/api/cycle/start", map[string]string{"startAt": past}, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("cycle start: expected 201, got %d", resp.StatusCode)
	}
	decodeBody(t, resp, &status)
	if !status.IsActive {
		t.Fatal("expected active cycle")
	}
	if !status.IsOverdue {
		t.Fatal("expected overdue cycle started 8 days ago")
	}
	if status.DaysRemaining > 0 {
		t.Fatalf("expected non-positive days remaining, got %d", status.DaysRemaining)
	}

	// Confirming the change restarts the window.
	resp = doJSON(t, client, http.MethodPost, srv.URL+"/api/cycle/confirm", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("confirm: expected 200, got %d", resp.StatusCode)
	}
	decodeBody(t, resp, &status)
	if status.IsOverdue {
		t.Fatal("expected not overdue after confirm")
	}
	if status.DaysRemaining != 7 {
		t.Fatalf("expected 7 days remaining, got %d", status.DaysRemaining)
	}

	// Stop the cycle while a session is running: the session closes too.
	resp = doJSON(t, client, http.MethodPost, srv.URL+"/api/timer/start", nil, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("timer start: expected 201, got %d", resp.StatusCode)
	}

	resp = doJSON(t, client, http.MethodPost, srv.URL+"/api/cycle/stop", nil, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("cycle stop: expected 204, got %d", resp.StatusCode)
	}

	resp, err = client.Get(srv.URL + "/api/timer/active")
	if err != nil {
		t.Fatalf("GET /api/timer/active: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected session closed after cycle stop, got %d", resp.StatusCode)
	}
}

func TestIntegration_ClinicianDashboard(t *testing.T) {
	srv, db := newTestServer(t)
	provisionUser(t, srv.URL, "doc@example.com", "password123", "clinician")
	provisionUser(t, srv.URL, "pat@example.com", "password123", "patient")

	ctx := context.Background()
	clinician, err := db.Users().GetByEmail(ctx, "doc@example.com")
	if err != nil {
		t.Fatalf("get clinician: %v", err)
	}
	patient, err := db.Users().GetByEmail(ctx, "pat@example.com")
	if err != nil {
		t.Fatalf("get patient: %v", err)
	}

	// Assign the patient via the admin surface.
	resp := doJSON(t, http.DefaultClient, http.MethodPost, srv.URL+"/api/admin/assignments", map[string]int64{
		"patientId":   patient.ID,
		"clinicianId": clinician.ID,
	}, map[string]string{"X-Admin-Secret": testAdminSecret})
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("assignment: expected 201, got %d", resp.StatusCode)
	}

	// A duplicate assignment conflicts.
	resp = doJSON(t, http.DefaultClient, http.MethodPost, srv.URL+"/api/admin/assignments", map[string]int64{
		"patientId":   patient.ID,
		"clinicianId": clinician.ID,
	}, map[string]string{"X-Admin-Secret": testAdminSecret})
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate assignment: expected 409, got %d", resp.StatusCode)
	}

	// A patient may not open the clinician dashboard.
	patientClient := newClient(t)
	login(t, patientClient, srv.URL, "pat@example.com", "password123")
	resp, err = patientClient.Get(srv.URL + "/api/clinician/patients")
	if err != nil {
		t.Fatalf("GET /api/clinician/patients as patient: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for patient, got %d", resp.StatusCode)
	}

	// The clinician sees the assigned patient with a compliance signal.
	docClient := newClient(t)
	login(t, docClient, srv.URL, "doc@example.com", "password123")
	resp, err = docClient.Get(srv.URL + "/api/clinician/patients")
	if err != nil {
		t.Fatalf("GET /api/clinician/patients: %v", err)
	}
	var dashboard struct {
		Patients []handler.PatientSummaryDTO `json:"patients"`
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("dashboard: expected 200, got %d", resp.StatusCode)
	}
	decodeBody(t, resp, &dashboard)
	if len(dashboard.Patients) != 1 {
		t.Fatalf("expected 1 patient, got %d", len(dashboard.Patients))
	}
	summary := dashboard.Patients[0]
	if summary.ID != patient.ID {
		t.Fatalf("expected patient %d, got %d", patient.ID, summary.ID)
	}
	if summary.Compliance != "RED" {
		t.Fatalf("expected RED for patient with no wear time, got %s", summary.Compliance)
	}
	if len(summary.Week) != 7 {
		t.Fatalf("expected 7 buckets, got %d", len(summary.Week))
	}
}

func TestIntegration_ActiveNormalizesOnReconnect(t *testing.T) {
	srv, db := newTestServer(t)
	provisionUser(t, srv.URL, "night@example.com", "password123", "patient")

	ctx := context.Background()
	user, err := db.Users().GetByEmail(ctx, "night@example.com")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}

	// Simulate a session left running across midnight: insert it directly
	// with yesterday's start time.
	yesterday := time.Now().UTC().AddDate(0, 0, -1)
	stale := &domain.WearLog{
		ID:      "stale-log",
		UserID:  user.ID,
		StartAt: time.Date(yesterday.Year(), yesterday.Month(), yesterday.Day(), 22, 0, 0, 0, time.UTC),
		Status:  domain.StatusRunning,
		Origin:  domain.OriginUser,
	}
	if err := db.WearLogs().Create(ctx, stale); err != nil {
		t.Fatalf("create stale log: %v", err)
	}

	client := newClient(t)
	login(t, client, srv.URL, "night@example.com", "password123")

	resp, err := client.Get(srv.URL + "/api/timer/active")
	if err != nil {
		t.Fatalf("GET /api/timer/active: %v", err)
	}
	var active struct {
		Log handler.WearLogDTO `json:"log"`
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("active: expected 200, got %d", resp.StatusCode)
	}
	decodeBody(t, resp, &active)

	// The reconnect returns the split successor, not the stale log.
	if active.Log.ID == "stale-log" {
		t.Fatal("expected the day-boundary successor, got the stale log")
	}
	if active.Log.Origin != "day_boundary_split" {
		t.Fatalf("expected split origin, got %q", active.Log.Origin)
	}
	if active.Log.Status != "RUNNING" {
		t.Fatalf("expected RUNNING successor, got %s", active.Log.Status)
	}
}

func TestIntegration_LogoutClearsSession(t *testing.T) {
	srv, _ := newTestServer(t)
	provisionUser(t, srv.URL, "bye@example.com", "password123", "patient")

	client := newClient(t)
	login(t, client, srv.URL, "bye@example.com", "password123")

	resp, err := client.Get(srv.URL + "/api/auth/me")
	if err != nil {
		t.Fatalf("GET /api/auth/me: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("me: expected 200, got %d", resp.StatusCode)
	}

	resp = doJSON(t, client, http.MethodPost, srv.URL+"/api/auth/logout", nil, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("logout: expected 204, got %d", resp.StatusCode)
	}

	resp, err = client.Get(srv.URL + "/api/auth/me")
	if err != nil {
		t.Fatalf("GET /api/auth/me after logout: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("me after logout: expected 401, got %d", resp.StatusCode)
	}
}
