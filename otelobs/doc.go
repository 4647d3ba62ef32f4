// Package otelobs provides OpenTelemetry implementations of the storage
// package's observability interfaces.
//
// NewSlogBridgeLogger returns a logger whose records flow through the
// OpenTelemetry slog bridge, so data-layer log lines carry trace
// correlation when a tracer is configured. NewMetricsCollector maps the
// storage.MetricsCollector calls onto OpenTelemetry instruments:
// durations become histograms, counters become counters.
//
// Both constructors work against the global OpenTelemetry providers
// unless an explicit meter or logger is supplied.
package otelobs
