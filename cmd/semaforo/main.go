// Semáforo - Traffic light evaluation for clinical actions.
// Copyright (c) 2025 opensource.health
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/opensource-health/semaforo/internal/api"
	"github.com/opensource-health/semaforo/internal/audit"
	"github.com/opensource-health/semaforo/internal/bus"
	"github.com/opensource-health/semaforo/internal/cache"
	"github.com/opensource-health/semaforo/internal/domain"
	"github.com/opensource-health/semaforo/internal/engine"
	"github.com/opensource-health/semaforo/internal/patient"
	"github.com/opensource-health/semaforo/internal/repository"
	"github.com/opensource-health/semaforo/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// Initialize structured logger
	logLevel := slog.LevelInfo
	if os.Getenv("SEMAFORO_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Log startup
	slog.Info("starting semaforo",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	// Load configuration
	cfg := domain.DefaultConfig()

	// Check for Pro tier via environment
	if os.Getenv("SEMAFORO_TIER") == "pro" {
		cfg = domain.ProConfig()
		slog.Info("running in Pro tier mode")
	}

	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Initialize Repository
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	// Initialize Cache
	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Initialize patient context loader
	loader := patient.NewLoader(repo, patient.WithCache(cacheImpl, cfg.Cache.PatientContextTTL))
	slog.Info("patient loader initialized")

	// Initialize audit capture sink (fire-and-forget through the bus)
	sink := audit.NewBusSink(busImpl)

	// Initialize evaluation engine
	eng, err := engine.New(
		engine.WithLoader(loader),
		engine.WithSink(sink),
		engine.WithRepository(repo),
		engine.WithMaxWorkers(cfg.Engine.MaxWorkers),
	)
	if err != nil {
		slog.Error("failed to initialize engine", "error", err)
		os.Exit(1)
	}

	// Load clinic-defined expression rules on top of the builtin catalogs
	if err := eng.Reload(ctx); err != nil {
		slog.Warn("failed to load expression rules, continuing with builtins", "error", err)
	}
	slog.Info("engine initialized", "rules_count", eng.Registry().Count())

	// Start the audit persistence worker
	auditWorker := worker.NewWorker(busImpl, repo)

	clinicIDs := []string{}
	if envClinics := os.Getenv("SEMAFORO_CLINICS"); envClinics != "" {
		clinicIDs = strings.Split(envClinics, ",")
	}

	if err := auditWorker.Start(worker.Config{ClinicIDs: clinicIDs}); err != nil {
		slog.Error("failed to start audit worker", "error", err)
	} else {
		slog.Info("audit worker started", "clinic_count", len(clinicIDs))
	}

	// Initialize Server
	srv := api.NewServer(cfg.Server, repo, cacheImpl, busImpl, eng, loader, Version)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("semaforo is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	// Stop audit worker first
	if err := auditWorker.Stop(); err != nil {
		slog.Error("failed to stop audit worker", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("semaforo shutdown complete")
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  ==============================================")
	fmt.Println("               SEMAFORO")
	fmt.Println("     Clinical Traffic Light Engine")
	fmt.Println("     Every action gets a color.")
	fmt.Println("  ==============================================")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /evaluate               - Evaluate a clinical action")
	fmt.Println("    GET  /patients/{id}/context  - Inspect a patient context")
	fmt.Println("    GET  /audit/{id}             - Get audit capture by ID")
	fmt.Println("    GET  /rules                  - List all rules")
	fmt.Println("    GET  /rules/{id}             - Get rule by ID")
	fmt.Println("    POST /rules                  - Create an expression rule")
	fmt.Println("    POST /rules/reload           - Hot-reload rules")
	fmt.Println("    GET  /health                 - Health check")
	fmt.Println("    GET  /metrics                - Prometheus metrics")
	fmt.Println()
}
