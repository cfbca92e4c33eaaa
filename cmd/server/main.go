package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/JonMunkholm/catalogsync/internal/application"
	"github.com/JonMunkholm/catalogsync/internal/config"
	"github.com/JonMunkholm/catalogsync/internal/core"
	"github.com/JonMunkholm/catalogsync/internal/logging"
	"github.com/JonMunkholm/catalogsync/internal/web"
)

func main() {
	envFile := flag.String("env-file", "", "env file to load before the environment")
	envName := flag.String("env", os.Getenv("XA_ENV"), "environment name selecting data/.env.xa.<env>")
	flag.Parse()

	if path, err := config.LoadEnvFiles(*envFile, *envName); err != nil {
		slog.Error("failed to load env file", "error", err)
		os.Exit(1)
	} else if path != "" {
		slog.Info("loaded env file", "path", path)
	}

	// Load and validate configuration
	cfg, err := config.Load()
	if err == nil {
		err = cfg.ValidateServer()
	}
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.Setup(cfg.Logging.Level, cfg.Logging.Format, nil)

	logger.Info("configuration loaded",
		"port", cfg.Server.Port,
		"catalog", cfg.Sync.CatalogPath,
		"concurrency", cfg.Ingest.Concurrency,
		"bucket", cfg.Bucket.Name,
		"history", cfg.Database.Enabled(),
	)

	ctx := context.Background()
	app, err := application.Build(ctx, cfg, application.Options{History: true, Sync: true, Logger: logger})
	if err != nil {
		logger.Error("failed to create service", "error", err)
		os.Exit(1)
	}
	defer app.Close()
	service := app.Service

	server := web.NewServer(service, cfg)

	// Create cancellable context for background jobs
	jobCtx, cancelJobs := context.WithCancel(context.Background())
	go service.StartSyncScheduler(jobCtx, core.SyncSchedule{Interval: cfg.Sync.Interval})

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		logger.Info("shutting down...")

		// Stop background jobs
		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Wait for in-flight uploads so the upload state is saved
		if status := service.Limiter().Status(); status.Active > 0 {
			logger.Info("waiting for uploads to complete", "active", status.Active)
			if err := service.Limiter().WaitForDrain(shutdownCtx); err != nil {
				logger.Warn("uploads did not complete in time", "error", err)
			} else {
				logger.Info("all uploads completed")
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}
