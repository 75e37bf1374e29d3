package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"fincal/internal/cli"
	"fincal/internal/config"
	apphttp "fincal/internal/http"
	"fincal/internal/log"
	"fincal/internal/metrics"
)

const cacheCleanupInterval = 5 * time.Minute

func main() {
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		log.New(log.DefaultConfig()).Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	logger := cli.SetupLogger(cfg, log.ComponentApp, os.Stdout)

	if err := run(cfg, logger); err != nil {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	m := metrics.New()
	sess, err := cli.OpenService(context.Background(), cfg, logger, m)
	if err != nil {
		return err
	}
	defer func() {
		if err := sess.Close(); err != nil {
			logger.Error("Failed to release resources", "error", err)
		}
	}()

	defer m.ObserveLedger(sess.Service.Ledger())()
	sess.CacheManager.StartCleanup(cacheCleanupInterval)

	srv, err := apphttp.NewServer(":"+cfg.Port, apphttp.Options{
		Service:            sess.Service,
		Metrics:            m,
		ExposeMetrics:      cfg.MetricsEnabled,
		Logger:             logger,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		TrustedProxies:     cfg.TrustedProxies,
	})
	if err != nil {
		return err
	}

	ctx, stop := cli.SignalContext()
	defer stop()

	logger.Info("Starting fincal server",
		log.FieldOperation, log.OpStartup,
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"events", sess.Publisher != nil,
		"metrics", cfg.MetricsEnabled)

	return cli.RunUntilDone(ctx, logger, cfg.ShutdownTimeout,
		func(context.Context) error {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
		srv.Shutdown,
	)
}
