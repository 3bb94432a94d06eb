// Package observability provides structured logging, Prometheus metrics, health checks,
// and OpenTelemetry tracing for the warden service.
//
// # Overview
//
// Every long-lived component (the evaluator, the decision cache, the audit recorder, the
// catalog watcher and the directory syncer) takes its logger and metrics from this package,
// so log fields and metric names stay consistent across the service.
//
// # Structured Logging
//
// Create logger:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("role", "supervisor").Info("Evaluated request")
//
// Request-scoped logging:
//
//	ctx = observability.WithRequestID(ctx, reqID)
//	observability.FromContext(ctx).Warn("Denied")
//
// # Prometheus Metrics
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	metrics.ObserveEvaluation(false, "cross_tenant", false, elapsed)
//	router.Handle("/metrics", observability.MetricsHandler(registry))
//
// All metric methods are safe on a nil *Metrics.
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(db, redisClient, version)
//	checker.AddCheck("catalog", catalogLoaded)
//	observability.RegisterHealthRoutes(router, checker)
//
// # OpenTelemetry
//
//	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
//		Enabled:     true,
//		Endpoint:    "otel-collector:4317",
//		ServiceName: "warden",
//		Insecure:    true,
//	}, logger)
//	defer observability.ShutdownOTel(ctx, providers, logger)
//
// # Related Packages
//
//   - pkg/config: Observability configuration
//   - pkg/rbac: Evaluation spans and metrics
//   - pkg/api: HTTP request metrics
package observability
