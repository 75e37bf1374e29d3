// Package metrics exposes the Prometheus collectors for the ledger, the HTTP
// API and the view cache. All methods are safe on a nil *Metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fincal/internal/core"
	"fincal/internal/ledger"
)

const namespace = "fincal"

type Metrics struct {
	Registry *prometheus.Registry

	Mutations    *prometheus.CounterVec
	Balance      prometheus.Gauge
	Entries      *prometheus.GaugeVec
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
	ViewCache    *prometheus.CounterVec
	Published    *prometheus.CounterVec
	RateLimited  prometheus.Counter
}

// New registers every collector on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_mutations_total",
			Help:      "Effective ledger mutations by operation and entity.",
		}, []string{"op", "entity"}),
		Balance: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "balance_cents",
			Help:      "Total income minus paid bills, in cents.",
		}),
		Entries: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ledger_entries",
			Help:      "Number of stored entries by entity.",
		}, []string{"entity"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route pattern and status code.",
		}, []string{"method", "route", "code"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		ViewCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "view_cache_requests_total",
			Help:      "Month view cache lookups by result.",
		}, []string{"result"}),
		Published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Ledger change events handed to the broker, by outcome.",
		}, []string{"result"}),
		RateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_rate_limited_total",
			Help:      "Requests rejected by the per-client rate limiter.",
		}),
	}
	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.Mutations, m.Balance, m.Entries,
		m.HTTPRequests, m.HTTPDuration,
		m.ViewCache, m.Published, m.RateLimited,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

// ObserveLedger keeps the ledger gauges current and counts mutations. The
// returned function unsubscribes.
func (m *Metrics) ObserveLedger(l *ledger.Ledger) (cancel func()) {
	if m == nil {
		return func() {}
	}
	m.recordSnapshot(l.Snapshot())
	return l.Subscribe(func(c ledger.Change) {
		m.Mutations.WithLabelValues(string(c.Op), string(c.Entity)).Inc()
		m.recordSnapshot(l.Snapshot())
	})
}

// recordSnapshot sets every ledger gauge from the one snapshot.
func (m *Metrics) recordSnapshot(s ledger.Snapshot) {
	m.Balance.Set(float64(core.Balance(s.Bills, s.Income).Cents))
	m.Entries.WithLabelValues(string(ledger.EntityBill)).Set(float64(len(s.Bills)))
	m.Entries.WithLabelValues(string(ledger.EntityIncome)).Set(float64(len(s.Income)))
}

func (m *Metrics) ObserveHTTP(method, route string, code int, elapsed time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func (m *Metrics) CacheHit() {
	if m != nil {
		m.ViewCache.WithLabelValues("hit").Inc()
	}
}

func (m *Metrics) CacheMiss() {
	if m != nil {
		m.ViewCache.WithLabelValues("miss").Inc()
	}
}

// RateLimitHit counts one rejected request.
func (m *Metrics) RateLimitHit() {
	if m != nil {
		m.RateLimited.Inc()
	}
}

// EventPublished records the outcome of one publish attempt.
func (m *Metrics) EventPublished(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.Published.WithLabelValues(result).Inc()
}
