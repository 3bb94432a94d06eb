package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Evaluation metrics
	EvaluationsTotal   *prometheus.CounterVec
	EvaluationDuration *prometheus.HistogramVec
	BatchSize          prometheus.Histogram

	// Decision cache metrics
	CacheHitsTotal          *prometheus.CounterVec
	CacheMissesTotal        *prometheus.CounterVec
	CacheInvalidationsTotal *prometheus.CounterVec
	CacheErrorsTotal        *prometheus.CounterVec

	// Audit metrics
	AuditEnqueuedTotal prometheus.Counter
	AuditDroppedTotal  prometheus.Counter
	AuditFailedTotal   prometheus.Counter
	AuditQueueDepth    prometheus.Gauge

	// Catalog metrics
	CatalogReloadsTotal *prometheus.CounterVec
	CatalogRoles        prometheus.Gauge

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		EvaluationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warden_evaluations_total",
				Help: "Total number of permission evaluations",
			},
			[]string{"outcome", "code"},
		),
		EvaluationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "warden_evaluation_duration_seconds",
				Help:    "Permission evaluation duration in seconds",
				Buckets: []float64{.00001, .00005, .0001, .0005, .001, .005, .01, .05},
			},
			[]string{"cached"},
		),
		BatchSize: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "warden_batch_size",
				Help:    "Number of requests per batch evaluation",
				Buckets: prometheus.ExponentialBuckets(1, 2, 8),
			},
		),

		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warden_cache_hits_total",
				Help: "Total number of decision cache hits",
			},
			[]string{"backend"},
		),
		CacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warden_cache_misses_total",
				Help: "Total number of decision cache misses",
			},
			[]string{"backend"},
		),
		CacheInvalidationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warden_cache_invalidations_total",
				Help: "Total number of decision cache invalidations",
			},
			[]string{"backend", "reason"},
		),
		CacheErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warden_cache_errors_total",
				Help: "Total number of decision cache backend errors",
			},
			[]string{"backend", "operation"},
		),

		AuditEnqueuedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "warden_audit_enqueued_total",
				Help: "Total number of audit records accepted by the queue",
			},
		),
		AuditDroppedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "warden_audit_dropped_total",
				Help: "Total number of audit records dropped because the queue was full",
			},
		),
		AuditFailedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "warden_audit_failed_total",
				Help: "Total number of audit records the sink failed to write",
			},
		),
		AuditQueueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "warden_audit_queue_depth",
				Help: "Current number of queued audit records",
			},
		),

		CatalogReloadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warden_catalog_reloads_total",
				Help: "Total number of role catalog reload attempts",
			},
			[]string{"status"},
		),
		CatalogRoles: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "warden_catalog_roles",
				Help: "Number of roles in the active catalog",
			},
		),

		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warden_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "warden_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}

	registry.MustRegister(
		m.EvaluationsTotal,
		m.EvaluationDuration,
		m.BatchSize,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.CacheInvalidationsTotal,
		m.CacheErrorsTotal,
		m.AuditEnqueuedTotal,
		m.AuditDroppedTotal,
		m.AuditFailedTotal,
		m.AuditQueueDepth,
		m.CatalogReloadsTotal,
		m.CatalogRoles,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
	)

	return m
}

// ObserveEvaluation records one evaluation outcome. Safe on a nil receiver.
func (m *Metrics) ObserveEvaluation(allowed bool, code string, cached bool, duration time.Duration) {
	if m == nil {
		return
	}
	outcome := "deny"
	if allowed {
		outcome = "allow"
	}
	m.EvaluationsTotal.WithLabelValues(outcome, code).Inc()
	m.EvaluationDuration.WithLabelValues(strconv.FormatBool(cached)).Observe(duration.Seconds())
}

// ObserveCatalogReload records a reload attempt. Safe on a nil receiver.
func (m *Metrics) ObserveCatalogReload(err error, roles int) {
	if m == nil {
		return
	}
	if err != nil {
		m.CatalogReloadsTotal.WithLabelValues("failure").Inc()
		return
	}
	m.CatalogReloadsTotal.WithLabelValues("success").Inc()
	m.CatalogRoles.Set(float64(roles))
}

// ObserveCacheLookup records a decision cache hit or miss. Safe on a nil receiver.
func (m *Metrics) ObserveCacheLookup(backend string, hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheHitsTotal.WithLabelValues(backend).Inc()
		return
	}
	m.CacheMissesTotal.WithLabelValues(backend).Inc()
}

// ObserveCacheInvalidation records an invalidation sweep. Safe on a nil receiver.
func (m *Metrics) ObserveCacheInvalidation(backend, reason string) {
	if m == nil {
		return
	}
	m.CacheInvalidationsTotal.WithLabelValues(backend, reason).Inc()
}

// ObserveCacheError records a backend failure. Safe on a nil receiver.
func (m *Metrics) ObserveCacheError(backend, operation string) {
	if m == nil {
		return
	}
	m.CacheErrorsTotal.WithLabelValues(backend, operation).Inc()
}

// ObserveAudit records the result of handing one record to the audit
// recorder: "enqueued", "dropped" or "failed". Safe on a nil receiver.
func (m *Metrics) ObserveAudit(result string, queueDepth int) {
	if m == nil {
		return
	}
	switch result {
	case "enqueued":
		m.AuditEnqueuedTotal.Inc()
	case "dropped":
		m.AuditDroppedTotal.Inc()
	case "failed":
		m.AuditFailedTotal.Inc()
	}
	m.AuditQueueDepth.Set(float64(queueDepth))
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// RouteFunc names the route of a request for metric labels
type RouteFunc func(r *http.Request) string

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics.
// A nil route func labels by URL path.
func HTTPMetricsMiddleware(metrics *Metrics, route RouteFunc) func(http.Handler) http.Handler {
	if route == nil {
		route = func(r *http.Request) string { return r.URL.Path }
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			name := route(r)
			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, name, strconv.Itoa(rw.statusCode)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, name).Observe(time.Since(start).Seconds())
		})
	}
}

// MetricsHandler serves the registry in Prometheus exposition format
func MetricsHandler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
