package otelobs

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/drblury/jsonapiweaver/storage"
)

// MetricsCollector implements storage.MetricsCollector on OpenTelemetry
// instruments. RecordDuration maps to a float64 histogram measured in
// seconds, IncrementCounter to an int64 counter. Instruments are created
// lazily on first use and cached per metric name.
type MetricsCollector struct {
	meter metric.Meter

	mu         sync.Mutex
	histograms map[string]metric.Float64Histogram
	counters   map[string]metric.Int64Counter
}

// NewMetricsCollector creates a collector on the given meter. The meter
// should come from the application's MeterProvider.
func NewMetricsCollector(meter metric.Meter) *MetricsCollector {
	return &MetricsCollector{
		meter:      meter,
		histograms: make(map[string]metric.Float64Histogram),
		counters:   make(map[string]metric.Int64Counter),
	}
}

// RecordDuration records the duration in seconds on a histogram named
// after the metric.
func (m *MetricsCollector) RecordDuration(name string, duration time.Duration, labels map[string]string) {
	histogram := m.histogram(name)
	if histogram == nil {
		return
	}
	histogram.Record(context.Background(), duration.Seconds(), metric.WithAttributes(attrs(labels)...))
}

// IncrementCounter adds one to the counter named after the metric.
func (m *MetricsCollector) IncrementCounter(name string, labels map[string]string) {
	counter := m.counter(name)
	if counter == nil {
		return
	}
	counter.Add(context.Background(), 1, metric.WithAttributes(attrs(labels)...))
}

func (m *MetricsCollector) histogram(name string) metric.Float64Histogram {
	m.mu.Lock()
	defer m.mu.Unlock()

	if histogram, ok := m.histograms[name]; ok {
		return histogram
	}
	histogram, err := m.meter.Float64Histogram(
		name,
		metric.WithDescription("data layer operation duration"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil
	}
	m.histograms[name] = histogram
	return histogram
}

func (m *MetricsCollector) counter(name string) metric.Int64Counter {
	m.mu.Lock()
	defer m.mu.Unlock()

	if counter, ok := m.counters[name]; ok {
		return counter
	}
	counter, err := m.meter.Int64Counter(
		name,
		metric.WithDescription("data layer operation count"),
	)
	if err != nil {
		return nil
	}
	m.counters[name] = counter
	return counter
}

func attrs(labels map[string]string) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(labels))
	for key, value := range labels {
		out = append(out, attribute.String(key, value))
	}
	return out
}

var _ storage.MetricsCollector = (*MetricsCollector)(nil)
