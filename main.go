package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/invilign/aligner-tracker/internal/config"
	"github.com/invilign/aligner-tracker/internal/handler"
	"github.com/invilign/aligner-tracker/internal/metrics"
	"github.com/invilign/aligner-tracker/internal/repository/sqlite"
	"github.com/invilign/aligner-tracker/internal/service"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "path", *configPath, "error", err)
		os.Exit(1)
	}

	loc, err := cfg.Location()
	if err != nil {
		slog.Error("failed to resolve timezone", "error", err)
		os.Exit(1)
	}

	db, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Migrate(context.Background()); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("database migrations applied")

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	authService := service.NewAuthService(db.Users(), cfg.Auth.JWTSecret, cfg.Auth.BcryptCost)
	sessionService := service.NewSessionService(db.WearLogs(), loc, collector)
	normalizer := service.NewNormalizer(db.WearLogs(), loc, collector)
	cycleService := service.NewCycleService(db.Cycles(), sessionService)
	loginLimiter := service.NewTokenBucket(0.1, 5) // 5 attempts, one refill per 10s

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux, &handler.Handlers{
		Auth:      handler.NewAuthHandler(authService, loginLimiter, cfg.Server.CookieSecure),
		Timer:     handler.NewTimerHandler(sessionService, normalizer),
		Logs:      handler.NewLogsHandler(sessionService, loc),
		Cycle:     handler.NewCycleHandler(cycleService),
		Clinician: handler.NewClinicianHandler(db.Assignments(), sessionService, loc),
		Admin:     handler.NewAdminHandler(authService, db.Users(), db.Assignments()),
		Health:    handler.NewHealthHandler(db.SqlDB),

		AuthService: authService,
		AdminSecret: cfg.Auth.AdminSecret,
		Metrics:     metrics.Handler(registry),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           handler.SecurityHeaders(mux),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1MB
	}

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Day-boundary sweep: close RUNNING logs that crossed midnight and reopen
	// them on the current day, so aggregates never see a multi-day interval.
	go func() {
		ticker := time.NewTicker(cfg.Tracking.SplitCheckInterval.Std())
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				normalizer.SweepRunning(ctx)
			}
		}
	}()

	go func() {
		slog.Info("server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}
