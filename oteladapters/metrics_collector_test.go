package oteladapters_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/AntonStoeckl/dynamic-plugins-go/oteladapters"
)

func newMeteredCollector() (*oteladapters.MetricsCollector, *sdkmetric.ManualReader) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	return oteladapters.NewMetricsCollector(provider.Meter("test")), reader
}

func Test_MetricsCollector_RecordDuration(t *testing.T) {
	// arrange
	collector, reader := newMeteredCollector()
	labels := map[string]string{"method": "Query", "status": "success"}

	// act
	collector.RecordDuration("executor_call_duration_seconds", 150*time.Millisecond, labels)

	// assert
	histogram := findMetric[metricdata.Histogram[float64]](t, reader, "executor_call_duration_seconds")
	require.Len(t, histogram.DataPoints, 1)
	assert.Equal(t, uint64(1), histogram.DataPoints[0].Count)
	assert.InDelta(t, 0.15, histogram.DataPoints[0].Sum, 0.001)

	expected := attribute.NewSet(attribute.String("method", "Query"), attribute.String("status", "success"))
	assert.True(t, histogram.DataPoints[0].Attributes.Equals(&expected))
}

func Test_MetricsCollector_IncrementCounter(t *testing.T) {
	// arrange
	collector, reader := newMeteredCollector()
	labels := map[string]string{"method": "Update", "error.type": "execution"}

	// act
	collector.IncrementCounter("executor_call_errors_total", labels)
	collector.IncrementCounterContext(context.Background(), "executor_call_errors_total", labels)
	collector.IncrementCounter("executor_call_errors_total", labels)

	// assert
	sum := findMetric[metricdata.Sum[int64]](t, reader, "executor_call_errors_total")
	require.Len(t, sum.DataPoints, 1)
	assert.Equal(t, int64(3), sum.DataPoints[0].Value)
}

func Test_MetricsCollector_RecordValue(t *testing.T) {
	// arrange
	collector, reader := newMeteredCollector()

	// act
	collector.RecordValue("executor_result_count", 4, nil)
	collector.RecordValueContext(context.Background(), "executor_result_count", 7, nil)

	// assert
	gauge := findMetric[metricdata.Gauge[float64]](t, reader, "executor_result_count")
	require.Len(t, gauge.DataPoints, 1)
	assert.InDelta(t, 7.0, gauge.DataPoints[0].Value, 0.0001)
	assert.Equal(t, 0, gauge.DataPoints[0].Attributes.Len())
}

func Test_MetricsCollector_NilMeter(t *testing.T) {
	collector := oteladapters.NewMetricsCollector(nil)

	assert.NotPanics(t, func() {
		collector.RecordDuration("d", time.Second, nil)
		collector.IncrementCounter("c", nil)
		collector.RecordValue("v", 1, nil)
	})
}

func Test_MetricsCollector_ConcurrentUse(t *testing.T) {
	// arrange
	collector, reader := newMeteredCollector()
	done := make(chan struct{})

	// act
	for range 8 {
		go func() {
			defer func() { done <- struct{}{} }()
			for range 25 {
				collector.IncrementCounter("calls_total", map[string]string{"method": "Query"})
			}
		}()
	}
	for range 8 {
		<-done
	}

	// assert
	sum := findMetric[metricdata.Sum[int64]](t, reader, "calls_total")
	require.Len(t, sum.DataPoints, 1)
	assert.Equal(t, int64(200), sum.DataPoints[0].Value)
}

func findMetric[T any](t *testing.T, reader *sdkmetric.ManualReader, name string) T {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			data, ok := m.Data.(T)
			require.True(t, ok, "metric %s has data of type %T", name, m.Data)
			return data
		}
	}

	require.Failf(t, "metric not found", "metric %s", name)

	var zero T
	return zero
}
