// kakeibo-remote serves the record-store side of the sync contract:
// a single endpoint answering GET fetches and POST mutations, backed
// by memory or Google Sheets.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"kakeibo/internal/cli"
	"kakeibo/internal/remote"
	"kakeibo/internal/remote/memory"
	"kakeibo/internal/remote/sheets"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()
	cfg := cli.LoadAndValidateConfig(logger)

	var store remote.RecordStore
	switch cfg.RemoteBackend {
	case "sheets":
		s, err := sheets.NewFromEnv(context.Background())
		if err != nil {
			logger.Error("Failed to initialize Google Sheets backend", "error", err)
			os.Exit(1)
		}
		store = s
		logger.Info("Initialized Google Sheets backend", "sheet", cfg.GoogleSheetName)
	default:
		store = memory.New()
		logger.Info("Initialized memory backend")
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           remote.NewHandler(store),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ctx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
	})

	logger.Info("Starting kakeibo-remote server", "port", cfg.Port, "backend", cfg.RemoteBackend)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
