package oteladapters_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/AntonStoeckl/dynamic-plugins-go/oteladapters"
	"github.com/AntonStoeckl/dynamic-plugins-go/testutil/helper"
)

func newTracedCollector() (*oteladapters.TracingCollector, *tracetest.InMemoryExporter) {
	exporter := tracetest.NewInMemoryExporter()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))

	return oteladapters.NewTracingCollector(provider.Tracer("test")), exporter
}

func Test_TracingCollector_StartAndFinishSpan(t *testing.T) {
	// arrange
	collector, exporter := newTracedCollector()

	// act
	ctx, spanCtx := collector.StartSpan(context.Background(), "executor.query", map[string]string{
		"statement.id": "books.all",
	})
	collector.FinishSpan(spanCtx, "success", map[string]string{"result.count": "2"})

	// assert
	assert.True(t, trace.SpanFromContext(ctx).SpanContext().IsValid())

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "executor.query", spans[0].Name)
	assert.Equal(t, codes.Ok, spans[0].Status.Code)
	assert.Contains(t, spans[0].Attributes, attribute.String("statement.id", "books.all"))
	assert.Contains(t, spans[0].Attributes, attribute.String("result.count", "2"))
}

func Test_TracingCollector_FinishSpan_Statuses(t *testing.T) {
	testCases := []struct {
		status      string
		code        codes.Code
		description string
	}{
		{status: "success", code: codes.Ok},
		{status: "error", code: codes.Error, description: "call failed"},
		{status: "canceled", code: codes.Error, description: "call canceled"},
		{status: "timeout", code: codes.Error, description: "call timed out"},
		{status: "partial", code: codes.Unset},
	}

	for _, tc := range testCases {
		t.Run(tc.status, func(t *testing.T) {
			// arrange
			collector, exporter := newTracedCollector()
			_, spanCtx := collector.StartSpan(context.Background(), "executor.update", nil)

			// act
			collector.FinishSpan(spanCtx, tc.status, nil)

			// assert
			spans := exporter.GetSpans()
			require.Len(t, spans, 1)
			assert.Equal(t, tc.code, spans[0].Status.Code)
			assert.Equal(t, tc.description, spans[0].Status.Description)
			if tc.code == codes.Unset {
				assert.Contains(t, spans[0].Attributes, attribute.String("status", tc.status))
			}
		})
	}
}

func Test_TracingCollector_NestsSpans(t *testing.T) {
	// arrange
	collector, exporter := newTracedCollector()

	// act
	outerCtx, outer := collector.StartSpan(context.Background(), "executor.query", nil)
	_, inner := collector.StartSpan(outerCtx, "statement.prepare", nil)
	collector.FinishSpan(inner, "success", nil)
	collector.FinishSpan(outer, "success", nil)

	// assert
	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, spans[1].SpanContext.SpanID(), spans[0].Parent.SpanID())
	assert.Equal(t, spans[1].SpanContext.TraceID(), spans[0].SpanContext.TraceID())
}

func Test_TracingCollector_FinishSpan_IgnoresForeignSpanContext(t *testing.T) {
	// arrange
	collector, exporter := newTracedCollector()
	foreign := &helper.SpySpanContext{}

	// act
	assert.NotPanics(t, func() {
		collector.FinishSpan(foreign, "success", map[string]string{"result.count": "2"})
	})

	// assert
	assert.Empty(t, exporter.GetSpans())
	assert.Empty(t, foreign.GetStatus())
	assert.Empty(t, foreign.GetAttributes())
}

func Test_OTelSpanContext_AddAttribute(t *testing.T) {
	// arrange
	collector, exporter := newTracedCollector()
	_, spanCtx := collector.StartSpan(context.Background(), "executor.query", nil)

	// act
	spanCtx.AddAttribute("invocation.id", "abc")
	collector.FinishSpan(spanCtx, "success", nil)

	// assert
	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Contains(t, spans[0].Attributes, attribute.String("invocation.id", "abc"))
}
