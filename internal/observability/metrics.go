package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects the Prometheus collectors served by the API.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	saves           prometheus.Counter
	savedLineItems  prometheus.Counter
	projectCost     prometheus.Histogram
	damageCharges   prometheus.Counter
}

// NewMetrics builds a private registry with HTTP and unit-turn collectors.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "turnkey_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "turnkey_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	saves := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "turnkey_unit_turn_saves_total",
		Help: "Unit turn drafts persisted as instances.",
	})
	lines := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "turnkey_unit_turn_line_items_saved_total",
		Help: "Active line items persisted across all saves.",
	})
	cost := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "turnkey_unit_turn_project_cost_dollars",
		Help:    "Total project cost of saved unit turns.",
		Buckets: []float64{100, 500, 1000, 2500, 5000, 10000, 25000},
	})
	damages := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "turnkey_unit_turn_damage_charges_dollars_total",
		Help: "Damage charges recorded on saved unit turns, billed separately from project cost.",
	})
	registry.MustRegister(requests, duration, saves, lines, cost, damages)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		saves:           saves,
		savedLineItems:  lines,
		projectCost:     cost,
		damageCharges:   damages,
	}
}

// Handler returns the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records request counts and latency per chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// RecordUnitTurnSave tracks a persisted unit turn.
func (m *Metrics) RecordUnitTurnSave(lineItems int, projectCost, damageCharges float64) {
	if m == nil {
		return
	}
	m.saves.Inc()
	if lineItems > 0 {
		m.savedLineItems.Add(float64(lineItems))
	}
	m.projectCost.Observe(projectCost)
	if damageCharges > 0 {
		m.damageCharges.Add(damageCharges)
	}
}

// Registerer exposes the registry for additional collectors.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
