package otelobs_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/drblury/jsonapiweaver/otelobs"
)

func TestMetricsCollectorRecordDuration(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := provider.Meter("test")

	collector := otelobs.NewMetricsCollector(meter)
	collector.RecordDuration("datalayer_query_duration_seconds", 150*time.Millisecond, map[string]string{
		"resource": "articles",
		"action":   "collection",
	})

	var resourceMetrics metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &resourceMetrics))

	histogram := findHistogram(t, resourceMetrics, "datalayer_query_duration_seconds")
	require.Len(t, histogram.DataPoints, 1)

	dataPoint := histogram.DataPoints[0]
	assert.Equal(t, uint64(1), dataPoint.Count)
	assert.InDelta(t, 0.15, dataPoint.Sum, 0.001)

	expected := attribute.NewSet(
		attribute.String("resource", "articles"),
		attribute.String("action", "collection"),
	)
	assert.True(t, dataPoint.Attributes.Equals(&expected))
}

func TestMetricsCollectorIncrementCounter(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := provider.Meter("test")

	collector := otelobs.NewMetricsCollector(meter)
	labels := map[string]string{"resource": "articles"}
	collector.IncrementCounter("datalayer_query_errors_total", labels)
	collector.IncrementCounter("datalayer_query_errors_total", labels)
	collector.IncrementCounter("datalayer_query_errors_total", labels)

	var resourceMetrics metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &resourceMetrics))

	counter := findCounter(t, resourceMetrics, "datalayer_query_errors_total")
	require.Len(t, counter.DataPoints, 1)
	assert.Equal(t, int64(3), counter.DataPoints[0].Value)
}

func TestMetricsCollectorReusesInstruments(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := provider.Meter("test")

	collector := otelobs.NewMetricsCollector(meter)
	collector.RecordDuration("datalayer_query_duration_seconds", 10*time.Millisecond, nil)
	collector.RecordDuration("datalayer_query_duration_seconds", 20*time.Millisecond, nil)

	var resourceMetrics metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &resourceMetrics))

	histogram := findHistogram(t, resourceMetrics, "datalayer_query_duration_seconds")
	require.Len(t, histogram.DataPoints, 1)
	assert.Equal(t, uint64(2), histogram.DataPoints[0].Count)
}

func findHistogram(t *testing.T, rm metricdata.ResourceMetrics, name string) metricdata.Histogram[float64] {
	t.Helper()

	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name != name {
				continue
			}
			histogram, ok := m.Data.(metricdata.Histogram[float64])
			require.True(t, ok, "metric %q is not a float64 histogram", name)
			return histogram
		}
	}
	t.Fatalf("histogram %q not found", name)
	return metricdata.Histogram[float64]{}
}

func findCounter(t *testing.T, rm metricdata.ResourceMetrics, name string) metricdata.Sum[int64] {
	t.Helper()

	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, "metric %q is not an int64 sum", name)
			return sum
		}
	}
	t.Fatalf("counter %q not found", name)
	return metricdata.Sum[int64]{}
}
