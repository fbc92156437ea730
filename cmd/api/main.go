package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ewhitmore/gpubill/internal/api"
	"github.com/ewhitmore/gpubill/internal/auth"
	"github.com/ewhitmore/gpubill/internal/billing"
	"github.com/ewhitmore/gpubill/internal/compute"
	"github.com/ewhitmore/gpubill/internal/config"
	"github.com/ewhitmore/gpubill/internal/notify"
	"github.com/ewhitmore/gpubill/internal/payments"
	"github.com/ewhitmore/gpubill/internal/pricing"
	"github.com/ewhitmore/gpubill/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger.Info("connecting to database")
	st, err := store.NewStore(cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	logger.Info("running database migrations")
	if err := st.Migrate(context.Background()); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	authority, err := auth.NewAuthority(cfg.JWTPrivateKey, cfg.JWTPublicKey,
		time.Duration(cfg.JWTExpiryHours)*time.Hour)
	if err != nil {
		logger.Error("failed to load signing keys", "error", err)
		os.Exit(1)
	}

	provider := compute.NewClient(cfg.ComputeURL, cfg.ComputeAPIKey)
	paymentsClient := payments.NewClient(cfg.PaymentsURL)

	rateSource := pricing.NewCoinGeckoSource(cfg.RateCoinID)
	rates := pricing.NewRateCache(rateSource, time.Duration(cfg.RateCacheTTLSec)*time.Second)

	var table pricing.Table
	if cfg.PriceTableFile != "" {
		static, err := pricing.LoadStaticTable(cfg.PriceTableFile)
		if err != nil {
			logger.Error("failed to load price table", "error", err, "path", cfg.PriceTableFile)
			os.Exit(1)
		}
		logger.Info("using static price table", "path", cfg.PriceTableFile)
		table = static
	} else {
		table = pricing.NewProviderTable(provider)
	}

	calculator, err := pricing.NewCalculator(table, rates, cfg.SafetyBuffer)
	if err != nil {
		logger.Error("invalid pricing configuration", "error", err)
		os.Exit(1)
	}

	ledger := billing.NewLedger(paymentsClient, st.Debits, logger)
	notifier := notify.New(cfg.NotifyURL, cfg.NotifyAPIKey, logger)
	admitter := billing.NewAdmitter(calculator, ledger, provider, notifier, cfg.BillingEnabled, logger)

	serverCfg := api.DefaultServerConfig()
	serverCfg.Port = cfg.Port
	serverCfg.AdminAPIKey = cfg.AdminAPIKey
	serverCfg.AllowedOrigins = cfg.AllowedOrigins

	server := api.NewServer(serverCfg, &api.Deps{
		Store:     st,
		Authority: authority,
		Admitter:  admitter,
		Ledger:    ledger,
		Rates:     rates,
		Payments:  paymentsClient,
		Provider:  provider,
	})

	logger.Info("server configured",
		"port", serverCfg.Port,
		"billing_enabled", cfg.BillingEnabled,
		"cors_origins", serverCfg.AllowedOrigins,
	)

	go func() {
		if err := server.Start(); err != nil {
			logger.Error("server stopped", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), serverCfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("forced shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server exited")
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
