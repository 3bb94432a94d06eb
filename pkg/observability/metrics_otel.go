package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OTelMetrics holds OpenTelemetry metric instruments mirroring the core
// Prometheus series for OTLP collectors
type OTelMetrics struct {
	evaluations        metric.Int64Counter
	evaluationDuration metric.Float64Histogram
	cacheLookups       metric.Int64Counter
	auditDropped       metric.Int64Counter
}

// NewOTelMetrics creates instruments on the global meter provider
func NewOTelMetrics() (*OTelMetrics, error) {
	return NewOTelMetricsWithMeter(otel.Meter(InstrumentationName))
}

// NewOTelMetricsWithMeter creates instruments on the given meter
func NewOTelMetricsWithMeter(meter metric.Meter) (*OTelMetrics, error) {
	m := &OTelMetrics{}
	var err error

	m.evaluations, err = meter.Int64Counter(
		"warden.evaluations",
		metric.WithDescription("Permission evaluations by outcome"),
		metric.WithUnit("{evaluation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create evaluations counter: %w", err)
	}

	m.evaluationDuration, err = meter.Float64Histogram(
		"warden.evaluation.duration",
		metric.WithDescription("Permission evaluation duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create evaluation duration histogram: %w", err)
	}

	m.cacheLookups, err = meter.Int64Counter(
		"warden.cache.lookups",
		metric.WithDescription("Decision cache lookups by result"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache lookups counter: %w", err)
	}

	m.auditDropped, err = meter.Int64Counter(
		"warden.audit.dropped",
		metric.WithDescription("Audit records dropped because the queue was full"),
		metric.WithUnit("{record}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create audit dropped counter: %w", err)
	}

	return m, nil
}

// RecordEvaluation records an evaluation outcome. Safe on a nil receiver.
func (m *OTelMetrics) RecordEvaluation(ctx context.Context, allowed bool, code string, cached bool, duration time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.Bool("allowed", allowed),
		attribute.String("code", code),
		attribute.Bool("cached", cached),
	)
	m.evaluations.Add(ctx, 1, attrs)
	m.evaluationDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordCacheLookup records a decision cache hit or miss. Safe on a nil receiver.
func (m *OTelMetrics) RecordCacheLookup(ctx context.Context, backend string, hit bool) {
	if m == nil {
		return
	}
	m.cacheLookups.Add(ctx, 1, metric.WithAttributes(
		attribute.String("backend", backend),
		attribute.Bool("hit", hit),
	))
}

// RecordAuditDropped records a dropped audit record. Safe on a nil receiver.
func (m *OTelMetrics) RecordAuditDropped(ctx context.Context) {
	if m == nil {
		return
	}
	m.auditDropped.Add(ctx, 1)
}
