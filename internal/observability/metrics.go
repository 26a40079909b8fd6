package observability

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Metrics holds the OTel instruments of the service. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	provider *sdkmetric.MeterProvider
	registry *prometheus.Registry

	authenticationsTotal otelmetric.Int64Counter
	authorizationsTotal  otelmetric.Int64Counter
	auditDroppedTotal    otelmetric.Int64Counter
	httpRequestsTotal    otelmetric.Int64Counter
	httpRequestDuration  otelmetric.Float64Histogram
}

// NewMetrics creates a meter provider exporting to its own Prometheus
// registry and registers all instruments.
func NewMetrics(serviceName string) (*Metrics, error) {
	registry := prometheus.NewRegistry()
	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("creating prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	meter := provider.Meter(serviceName)
	m := &Metrics{provider: provider, registry: registry}

	latencyBuckets := otelmetric.WithExplicitBucketBoundaries(
		0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0,
	)

	if m.authenticationsTotal, err = meter.Int64Counter("websecurity_authentications_total",
		otelmetric.WithDescription("Authentication attempts by outcome")); err != nil {
		return nil, fmt.Errorf("creating authentications_total: %w", err)
	}
	if m.authorizationsTotal, err = meter.Int64Counter("websecurity_authorizations_total",
		otelmetric.WithDescription("Authorization decisions")); err != nil {
		return nil, fmt.Errorf("creating authorizations_total: %w", err)
	}
	if m.auditDroppedTotal, err = meter.Int64Counter("websecurity_audit_dropped_total",
		otelmetric.WithDescription("Login audit events dropped because the buffer was full")); err != nil {
		return nil, fmt.Errorf("creating audit_dropped_total: %w", err)
	}
	if m.httpRequestsTotal, err = meter.Int64Counter("websecurity_http_requests_total",
		otelmetric.WithDescription("Total HTTP requests")); err != nil {
		return nil, fmt.Errorf("creating http_requests_total: %w", err)
	}
	if m.httpRequestDuration, err = meter.Float64Histogram("websecurity_http_request_duration_seconds",
		otelmetric.WithDescription("HTTP request duration"), otelmetric.WithUnit("s"), latencyBuckets); err != nil {
		return nil, fmt.Errorf("creating http_request_duration: %w", err)
	}

	return m, nil
}

// Handler returns an http.Handler that serves the Prometheus metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Shutdown flushes and releases the meter provider.
func (m *Metrics) Shutdown(ctx context.Context) error {
	if m == nil {
		return nil
	}
	return m.provider.Shutdown(ctx)
}

// RecordAuthentication records the outcome label of an authentication attempt.
func (m *Metrics) RecordAuthentication(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.authenticationsTotal.Add(ctx, 1, otelmetric.WithAttributes(resultAttr(outcome)))
}

// RecordAuthorization records an authorization decision for a requirement.
func (m *Metrics) RecordAuthorization(ctx context.Context, decision, requirement string) {
	if m == nil {
		return
	}
	m.authorizationsTotal.Add(ctx, 1, otelmetric.WithAttributes(
		decisionAttr(decision),
		requirementAttr(requirement),
	))
}

// RecordAuditDropped records a login audit event that could not be queued.
func (m *Metrics) RecordAuditDropped(ctx context.Context) {
	if m == nil {
		return
	}
	m.auditDroppedTotal.Add(ctx, 1)
}

// RecordHTTPRequest records an HTTP request metric.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, route string, status int, durationSec float64) {
	if m == nil {
		return
	}
	attrs := otelmetric.WithAttributes(
		methodAttr(method),
		routeAttr(route),
		statusAttr(status),
	)
	m.httpRequestsTotal.Add(ctx, 1, attrs)
	m.httpRequestDuration.Record(ctx, durationSec, attrs)
}
