// Package http serves the ledger as a JSON API.
package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"fincal/internal/log"
	"fincal/internal/metrics"
	"fincal/internal/middleware/ratelimit"
	"fincal/internal/middleware/security"
	"fincal/internal/middleware/trace"
	"fincal/internal/services"
)

type Options struct {
	Service *services.LedgerService
	// Metrics may be nil. With ExposeMetrics set it is served on /metrics.
	Metrics       *metrics.Metrics
	ExposeMetrics bool
	Logger        *slog.Logger

	// RateLimitPerMinute caps writes per client. Zero uses the limiter default.
	RateLimitPerMinute int
	// TrustedProxies are CIDRs allowed to set X-Forwarded-For, in addition
	// to loopback and the private ranges.
	TrustedProxies []string
}

type Server struct {
	http.Server
	svc     *services.LedgerService
	limiter *ratelimit.Limiter
	logger  *slog.Logger

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, opts Options) (*Server, error) {
	if opts.Service == nil {
		return nil, fmt.Errorf("ledger service is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	opts.Logger = log.WithComponent(opts.Logger, log.ComponentHTTP)

	resolver, err := security.NewClientIPResolver(opts.TrustedProxies...)
	if err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}

	limiterCfg := ratelimit.DefaultConfig()
	if opts.RateLimitPerMinute > 0 {
		limiterCfg.RequestsPerMinute = opts.RateLimitPerMinute
	}
	limiterCfg.OnReject = opts.Metrics.RateLimitHit

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		svc:     opts.Service,
		limiter: ratelimit.NewLimiter(limiterCfg),
		logger:  opts.Logger,
	}

	var observer trace.Observer
	if opts.Metrics != nil {
		observer = opts.Metrics
	}
	tracer := trace.NewMiddleware(opts.Logger, resolver.ExtractClientIP, observer)
	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())

	r := chi.NewRouter()
	r.Use(tracer.Handler)
	r.Use(chimw.Recoverer)
	r.Use(headers.Middleware)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		NotFoundError("not found").Write(w)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		MethodNotAllowedError().Write(w)
	})

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	if opts.ExposeMetrics && opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(s.limiter.Middleware(resolver.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
			TooManyRequestsError().Write(w)
		}))

		r.Get("/summary", s.handleSummary)
		r.Get("/balance", s.handleBalance)
		r.Get("/calendar", s.handleCalendar)

		r.Route("/bills", func(r chi.Router) {
			r.Get("/", s.handleListBills)
			r.Post("/", s.handleAddBill)
			r.Get("/monthly", s.handleMonthlyBills)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetBill)
				r.Patch("/", s.handleUpdateBill)
				r.Delete("/", s.handleDeleteBill)
				r.Post("/toggle", s.handleToggleBill)
			})
		})

		r.Route("/income", func(r chi.Router) {
			r.Get("/", s.handleListIncome)
			r.Post("/", s.handleAddIncome)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetIncome)
				r.Patch("/", s.handleUpdateIncome)
				r.Delete("/", s.handleDeleteIncome)
			})
		})
	})

	s.Handler = r
	return s, nil
}

// Shutdown stops the rate limiter and gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
