// Package cli holds the start-up steps shared by cmd/fincal,
// cmd/fincal-worker and cmd/fincalctl, and the fincalctl command tree.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"fincal/internal/amqp"
	"fincal/internal/backend"
	"fincal/internal/cache"
	"fincal/internal/config"
	"fincal/internal/log"
	"fincal/internal/metrics"
	"fincal/internal/services"
)

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration from the environment and
// validates it.
func LoadAndValidateConfig() (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SetupLogger builds the logger described by cfg, writes it to w and makes
// it the slog default.
func SetupLogger(cfg *config.Config, component string, w io.Writer) *slog.Logger {
	lc := cfg.LoggerConfig(component)
	lc.Writer = w
	logger := log.New(lc)
	slog.SetDefault(logger)
	return logger
}

// Session is an opened ledger service with the resources behind it.
type Session struct {
	Service      *services.LedgerService
	Backend      *backend.Result
	Publisher    *amqp.Client
	CacheManager *cache.Manager
}

// Close releases the publisher, cache cleanup and backend, in that order.
func (s *Session) Close() error {
	var errs []error
	if s.CacheManager != nil {
		s.CacheManager.Stop()
	}
	if s.Publisher != nil {
		errs = append(errs, s.Publisher.Close())
	}
	errs = append(errs, s.Backend.Close())
	return errors.Join(errs...)
}

// OpenService creates the configured backend and the service on top of it.
// When AMQP is configured but unreachable the service runs without events.
// m may be nil.
func OpenService(ctx context.Context, cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) (*Session, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	weekStart, err := cfg.WeekStartDay()
	if err != nil {
		return nil, err
	}

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	res, err := backend.NewFactory(log.WithComponent(logger, log.ComponentBackend)).CreateBackend(ctx, bcfg)
	if err != nil {
		return nil, err
	}

	sess := &Session{
		Backend:      res,
		CacheManager: cache.NewManager(log.WithComponent(logger, log.ComponentCache)),
	}

	var pub services.Publisher
	if cfg.AMQPEnabled() {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, log.WithComponent(logger, log.ComponentAMQP))
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without events", "error", err)
		} else {
			logger.Info("Initialized AMQP client", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
			sess.Publisher = client
			pub = client
		}
	}

	sess.Service = services.NewLedgerService(res.Ledger, services.Options{
		Repository:   res.Repository,
		Publisher:    pub,
		Metrics:      m,
		Logger:       log.WithComponent(logger, log.ComponentLedger),
		CacheManager: sess.CacheManager,
		Location:     loc,
		WeekStart:    weekStart,
		CacheSize:    cfg.ViewCacheSize,
		CacheTTL:     cfg.ViewCacheTTL,
	})
	return sess, nil
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// RunUntilDone runs serve until it returns or ctx is cancelled, then calls
// shutdown with a context bounded by timeout. serve should return nil on a
// normal stop.
func RunUntilDone(ctx context.Context, logger *slog.Logger, timeout time.Duration, serve func(context.Context) error, shutdown func(context.Context) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer cancel()
		return serve(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutdown initiated", log.FieldOperation, log.OpShutdown)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				logger.Warn("Shutdown timeout reached", "timeout", timeout)
			}
			return fmt.Errorf("shutdown: %w", err)
		}
		logger.Info("Shutdown complete")
		return nil
	})

	return g.Wait()
}
