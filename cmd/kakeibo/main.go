package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"kakeibo/internal/cli"
	"kakeibo/internal/event"
	apphttp "kakeibo/internal/http"
	"kakeibo/internal/remote"
	"kakeibo/internal/services"
	"kakeibo/internal/storage"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()
	cfg := cli.LoadAndValidateConfig(logger)

	logger.Info("Starting kakeibo server")

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	startCtx := context.Background()

	// The persisted sync configuration wins; environment values only
	// seed it the first time the database comes up empty.
	syncCfg, err := repo.GetSyncConfig(startCtx)
	if err != nil {
		logger.Error("Failed to read sync configuration", "error", err)
		os.Exit(1)
	}
	if syncCfg.Endpoint == "" && !syncCfg.Enabled && cfg.RemoteEndpoint != "" {
		syncCfg = storage.SyncConfig{Endpoint: cfg.RemoteEndpoint, Enabled: cfg.RemoteSyncEnabled}
		if err := repo.SaveSyncConfig(startCtx, syncCfg); err != nil {
			logger.Error("Failed to seed sync configuration", "error", err)
			os.Exit(1)
		}
		logger.Info("Seeded sync configuration from environment", "enabled", syncCfg.Enabled)
	}

	bridge := remote.NewBridge(remote.Config{Enabled: syncCfg.Enabled, Endpoint: syncCfg.Endpoint})

	// Mutation events are optional; a broker outage must never block
	// local bookkeeping.
	var events *event.Client
	if cfg.AMQPURL != "" {
		events, err = event.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPRoutingKey)
		if err != nil {
			logger.Warn("AMQP unavailable, continuing without mutation events", "error", err)
			events = nil
		} else {
			defer events.Close()
			logger.Info("Mutation event publishing enabled", "exchange", cfg.AMQPExchange)
		}
	}

	expenses := services.NewExpenseService(repo, bridge, events)
	categories := services.NewCategoryService(repo)
	syncs := services.NewSyncService(repo, bridge)

	if cfg.PullOnStart {
		if n, err := syncs.PullAll(startCtx); err != nil {
			logger.Warn("Startup pull failed, keeping local records", "error", err)
		} else {
			logger.Info("Startup pull complete", "count", n)
		}
	}

	srv := apphttp.NewServer(":"+cfg.Port, expenses, categories, syncs)
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	ctx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
	})

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
