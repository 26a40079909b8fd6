// Package observability provides structured logging and metrics for the
// authentication service.
//
// This package implements:
//   - zap logger construction from level and format settings
//   - OpenTelemetry instruments exported in Prometheus format
//   - Counters for authentication outcomes and authorization decisions
//   - HTTP request counters and latency histograms
package observability
