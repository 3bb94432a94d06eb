package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/warden/pkg/admin"
	"github.com/platinummonkey/warden/pkg/httputil"
	"github.com/platinummonkey/warden/pkg/observability"
	"github.com/platinummonkey/warden/pkg/rbac"
)

// ActorHeader names the header carrying the acting user id. It is set by the
// authentication gateway in front of warden.
const ActorHeader = "X-Actor-User-ID"

// Server exposes the evaluator and the admin service over HTTP
type Server struct {
	router         *mux.Router
	evaluator      *rbac.Evaluator
	admin          *admin.Service
	permissions    *PermissionMiddleware
	logger         *observability.Logger
	metrics        *observability.Metrics
	health         *observability.HealthChecker
	metricsHandler http.Handler
}

// Option configures a Server
type Option func(*Server)

// WithLogger sets the request logger
func WithLogger(l *observability.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics records HTTP request metrics
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithHealthChecker mounts /health, /health/live and /health/ready
func WithHealthChecker(h *observability.HealthChecker) Option {
	return func(s *Server) { s.health = h }
}

// WithMetricsHandler mounts h at /metrics
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metricsHandler = h }
}

// NewServer creates a new API server. svc may be nil, in which case the admin
// routes are not mounted.
func NewServer(evaluator *rbac.Evaluator, svc *admin.Service, opts ...Option) *Server {
	s := &Server{
		router:    mux.NewRouter(),
		evaluator: evaluator,
		admin:     svc,
		logger:    observability.NewLogger(observability.InfoLevel, nil),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.permissions = NewPermissionMiddleware(evaluator, s.logger)

	s.setupRoutes()
	return s
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes() {
	s.router.Use(
		httputil.RequestIDMiddleware,
		httputil.RecoveryMiddleware(s.logger),
		httputil.LoggingMiddleware(s.logger),
	)
	if s.metrics != nil {
		s.router.Use(observability.HTTPMetricsMiddleware(s.metrics, routeTemplate))
	}

	if s.health != nil {
		observability.RegisterHealthRoutes(s.router, s.health)
	}
	if s.metricsHandler != nil {
		s.router.Handle("/metrics", s.metricsHandler).Methods(http.MethodGet)
	}

	v1 := s.router.PathPrefix("/v1").Subrouter()
	v1.Use(httputil.ContentTypeMiddleware)

	evaluations := NewEvaluationHandlers(s.evaluator, s.logger)
	evaluations.RegisterRoutes(v1, s.permissions)

	if s.admin != nil {
		adm := v1.PathPrefix("/admin").Subrouter()
		adm.Use(s.permissions.RequireActor)
		NewAdminHandlers(s.admin, s.logger).RegisterRoutes(adm)
	}
}

// Router returns the underlying router
func (s *Server) Router() *mux.Router {
	return s.router
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// routeTemplate labels metrics by route pattern so ids do not explode
// cardinality
func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return "unmatched"
}
