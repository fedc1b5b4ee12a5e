package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/JonMunkholm/sheetqr/internal/config"
	"github.com/JonMunkholm/sheetqr/internal/core"
	"github.com/JonMunkholm/sheetqr/internal/logging"
	"github.com/JonMunkholm/sheetqr/internal/store"
	"github.com/JonMunkholm/sheetqr/internal/web"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
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
		"max_file_size", cfg.Upload.MaxFileSize,
		"max_concurrent_batches", cfg.Upload.MaxConcurrent,
		"workers", cfg.Render.Workers,
		"archive_store", cfg.Storage.Backend,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)

	ctx := context.Background()
	archives, err := store.New(ctx, cfg.Storage)
	if err != nil {
		slog.Error("failed to set up archive store", "error", err)
		os.Exit(1)
	}
	if c, ok := archives.(io.Closer); ok {
		defer c.Close()
	}
	if archives != nil {
		slog.Info("archive export enabled", "backend", cfg.Storage.Backend, "bucket", cfg.Storage.Bucket)
	}

	service, err := core.NewService(serviceOptions(cfg, archives))
	if err != nil {
		slog.Error("failed to create service", "error", err)
		os.Exit(1)
	}

	server := web.NewServer(service, cfg)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Let running batches finish packing before the listener closes.
		if st := service.LimiterStatus(); st.Active > 0 {
			slog.Info("waiting for batches to complete", "active", st.Active)
			if err := service.WaitForBatches(shutdownCtx); err != nil {
				slog.Warn("batches did not complete in time", "error", err)
			} else {
				slog.Info("all batches completed")
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	slog.Info("server starting", "addr", cfg.Server.Addr())
	if err := server.Start(); err != nil {
		slog.Info("server stopped", "error", err)
	}
}

func serviceOptions(cfg *config.Config, archives core.ArchiveStore) core.ServiceOptions {
	return core.ServiceOptions{
		MaxFileSize:          cfg.Upload.MaxFileSize,
		MaxSessions:          cfg.Session.MaxSessions,
		MaxConcurrentBatches: cfg.Upload.MaxConcurrent,
		MaxWaitTime:          cfg.Upload.MaxWaitTime,
		BatchTimeout:         cfg.Upload.Timeout,
		Workers:              cfg.Render.Workers,
		SampleRows:           cfg.Render.SampleRows,
		DefaultRender: core.RenderSpec{
			ModuleSize:       cfg.Render.ModuleSize,
			Border:           cfg.Render.Border,
			OutputResolution: cfg.Render.OutputResolution,
		},
		Store: archives,
	}
}
