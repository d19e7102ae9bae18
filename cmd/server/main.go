package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/dataglance/dataglance/internal/analysis"
	"github.com/dataglance/dataglance/internal/config"
	"github.com/dataglance/dataglance/internal/dataset"
	"github.com/dataglance/dataglance/internal/event"
	"github.com/dataglance/dataglance/internal/ingest"
	"github.com/dataglance/dataglance/internal/logging"
	"github.com/dataglance/dataglance/internal/web"
)

func main() {
	// Load .env if present (Overload overwrites existing env vars).
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"upload_max_concurrent", cfg.Upload.MaxConcurrent,
		"analysis_enabled", cfg.AnalysisEnabled(),
		"rate_limit_enabled", cfg.Rate.Enabled,
	)

	bus := event.NewBus(64)
	store := dataset.NewStore()

	pipeline := ingest.NewPipeline(
		ingest.NewValidator(cfg.Upload.MaxFileSize, cfg.Upload.AllowedExtensions),
		ingest.NewProfiler(cfg.Upload.SampleSize),
	)
	limiter := ingest.NewLimiter(cfg.Upload.MaxConcurrent, cfg.Upload.MaxWaitTime)
	ingests := ingest.NewService(pipeline, store, bus, limiter, cfg.Upload.Timeout, cfg.Upload.Retention)

	// Background jobs stop first on shutdown.
	jobCtx, cancelJobs := context.WithCancel(context.Background())
	defer cancelJobs()

	var poller *analysis.Poller
	if cfg.AnalysisEnabled() {
		client := analysis.NewClient(cfg.Analysis.BaseURL, cfg.Analysis.RequestTimeout)
		poller = analysis.NewPoller(client, bus, store, cfg.Analysis.PollInterval, cfg.Analysis.PollTimeout)
		go poller.Run(jobCtx)
		slog.Info("analysis poller started", "poll_interval", cfg.Analysis.PollInterval)
	}

	server := web.NewServer(cfg, ingests, store, poller, bus)

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Let running ingestions finish before cutting connections, so
		// progress streams deliver their terminal updates.
		if status := ingests.LimiterStatus(); status.Active > 0 {
			slog.Info("waiting for ingestions to complete", "active", status.Active)
			if err := ingests.WaitForDrain(shutdownCtx); err != nil {
				slog.Warn("ingestions did not complete in time", "error", err)
			} else {
				slog.Info("all ingestions completed")
			}
		}

		// Closing the bus ends the event streams so Shutdown can drain.
		bus.Close()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}
