package storage

import "time"

// Logger interface for SQL query logging, operational summaries, warnings,
// and error reporting. log/slog satisfies it directly.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// MetricsCollector collects data-layer performance metrics. Implementations
// map the calls onto their backend's instruments; the otelobs package ships
// an OpenTelemetry implementation.
type MetricsCollector interface {
	RecordDuration(metric string, duration time.Duration, labels map[string]string)
	IncrementCounter(metric string, labels map[string]string)
}
