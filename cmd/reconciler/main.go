package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ewhitmore/gpubill/internal/compute"
	"github.com/ewhitmore/gpubill/internal/config"
	"github.com/ewhitmore/gpubill/internal/notify"
	"github.com/ewhitmore/gpubill/internal/reconcile"
	"github.com/ewhitmore/gpubill/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if cfg.DatabaseURL == "" || cfg.ComputeURL == "" || cfg.ComputeAPIKey == "" {
		logger.Error("database_url, compute_url and compute_api_key are required")
		os.Exit(1)
	}

	logger.Info("connecting to database")
	st, err := store.NewStore(cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := st.Ping(pingCtx); err != nil {
		cancel()
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}
	cancel()

	provider := compute.NewClient(cfg.ComputeURL, cfg.ComputeAPIKey)
	notifier := notify.New(cfg.NotifyURL, cfg.NotifyAPIKey, logger)

	r := reconcile.New(reconcile.DefaultConfig(), st.Debits, provider, notifier, logger)

	ctx, stop := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := r.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("reconciler error", "error", err)
		}
	}()

	logger.Info("reconciler started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down reconciler")
	stop()
	<-done

	logger.Info("shutdown complete")
}
