package otelobs

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel/log"

	"github.com/drblury/jsonapiweaver/storage"
)

// NewSlogBridgeLogger returns a *slog.Logger backed by the OpenTelemetry
// slog bridge. It satisfies storage.Logger directly and emits records via
// the global LoggerProvider, which gives data-layer logs automatic trace
// correlation once a provider is installed.
func NewSlogBridgeLogger(name string) *slog.Logger {
	return otelslog.NewLogger(name)
}

var _ storage.Logger = (*slog.Logger)(nil)

// APILogger implements storage.Logger on the OpenTelemetry logging API
// directly, for callers that manage log.Logger instances themselves
// instead of going through the slog bridge.
type APILogger struct {
	logger log.Logger
}

// NewAPILogger wraps an OpenTelemetry log.Logger as a storage.Logger.
func NewAPILogger(logger log.Logger) *APILogger {
	return &APILogger{logger: logger}
}

func (l *APILogger) Debug(msg string, args ...any) {
	l.emit(log.SeverityDebug, msg, args...)
}

func (l *APILogger) Info(msg string, args ...any) {
	l.emit(log.SeverityInfo, msg, args...)
}

func (l *APILogger) Warn(msg string, args ...any) {
	l.emit(log.SeverityWarn, msg, args...)
}

func (l *APILogger) Error(msg string, args ...any) {
	l.emit(log.SeverityError, msg, args...)
}

// emit builds a log record from slog-style key/value pairs. Keys that are
// not strings, and trailing values without a key, are dropped.
func (l *APILogger) emit(severity log.Severity, msg string, args ...any) {
	record := log.Record{}
	record.SetSeverity(severity)
	record.SetBody(log.StringValue(msg))

	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			continue
		}
		record.AddAttributes(log.KeyValue{Key: key, Value: attrValue(args[i+1])})
	}

	l.logger.Emit(context.Background(), record)
}

func attrValue(v any) log.Value {
	switch val := v.(type) {
	case string:
		return log.StringValue(val)
	case int:
		return log.Int64Value(int64(val))
	case int64:
		return log.Int64Value(val)
	case float64:
		return log.Float64Value(val)
	case bool:
		return log.BoolValue(val)
	default:
		return log.StringValue(slog.AnyValue(v).String())
	}
}

var _ storage.Logger = (*APILogger)(nil)
