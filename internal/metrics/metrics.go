package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Guard decision outcomes
const (
	OutcomeAllowed     = "allowed"
	OutcomeDenied      = "denied"
	OutcomeNoIdentity  = "no_identity"
	OutcomeLookupError = "lookup_error"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	GuardDecisionsTotal   *prometheus.CounterVec
	RoleLookupDuration    prometheus.Histogram
	StockMutationsTotal   *prometheus.CounterVec
	StockMutationDuration *prometheus.HistogramVec
	EventsPublishedTotal  *prometheus.CounterVec
	WebsocketClients      prometheus.Gauge
}

// New creates and registers all metrics on a fresh registry
func New() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "labinventory_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "labinventory_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		GuardDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "labinventory_guard_decisions_total",
				Help: "Authorization guard decisions by required permission and outcome",
			},
			[]string{"permission", "outcome"},
		),
		RoleLookupDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "labinventory_role_lookup_duration_seconds",
				Help:    "Time spent resolving the caller's current role",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
		),
		StockMutationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "labinventory_stock_mutations_total",
				Help: "Stock ledger mutations by source type and result",
			},
			[]string{"source_type", "result"},
		),
		StockMutationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "labinventory_stock_mutation_duration_seconds",
				Help:    "Duration of stock ledger transactions",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"source_type"},
		),
		EventsPublishedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "labinventory_events_published_total",
				Help: "Inventory events published by transport and result",
			},
			[]string{"transport", "result"},
		),
		WebsocketClients: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "labinventory_websocket_clients",
				Help: "Currently connected websocket clients",
			},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.GuardDecisionsTotal,
		m.RoleLookupDuration,
		m.StockMutationsTotal,
		m.StockMutationDuration,
		m.EventsPublishedTotal,
		m.WebsocketClients,
	)
	return m
}

// Registry exposes the underlying registry, mainly for tests
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and latency per route
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		m.HTTPRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// RecordGuardDecision counts one guard decision. Safe on a nil receiver.
func (m *Metrics) RecordGuardDecision(permission, outcome string) {
	if m == nil {
		return
	}
	m.GuardDecisionsTotal.WithLabelValues(permission, outcome).Inc()
}

func (m *Metrics) ObserveRoleLookup(d time.Duration) {
	if m == nil {
		return
	}
	m.RoleLookupDuration.Observe(d.Seconds())
}

func (m *Metrics) RecordStockMutation(sourceType, result string, d time.Duration) {
	if m == nil {
		return
	}
	m.StockMutationsTotal.WithLabelValues(sourceType, result).Inc()
	m.StockMutationDuration.WithLabelValues(sourceType).Observe(d.Seconds())
}

func (m *Metrics) RecordEventPublished(transport, result string) {
	if m == nil {
		return
	}
	m.EventsPublishedTotal.WithLabelValues(transport, result).Inc()
}

func (m *Metrics) SetWebsocketClients(n int) {
	if m == nil {
		return
	}
	m.WebsocketClients.Set(float64(n))
}
