package tracelog

import (
	"context"
	"math"
	"time"

	"github.com/AntonStoeckl/dynamic-plugins-go/interceptor"
)

type (
	Logger                     = interceptor.Logger
	ContextualLogger           = interceptor.ContextualLogger
	MetricsCollector           = interceptor.MetricsCollector
	ContextualMetricsCollector = interceptor.ContextualMetricsCollector
	SpanContext                = interceptor.SpanContext
	TracingCollector           = interceptor.TracingCollector
)

// logDebug logs at debug level, preferring the contextual logger.
func (i *Interceptor) logDebug(ctx context.Context, msg string, args ...any) {
	switch {
	case i.contextualLogger != nil:
		i.contextualLogger.DebugContext(ctx, msg, args...)
	case i.logger != nil:
		i.logger.Debug(msg, args...)
	}
}

// logError logs a failed call at error level, preferring the contextual logger.
func (i *Interceptor) logError(ctx context.Context, err error, args ...any) {
	allArgs := []any{logAttrError, err.Error()}
	allArgs = append(allArgs, args...)

	switch {
	case i.contextualLogger != nil:
		i.contextualLogger.ErrorContext(ctx, logMsgFailed, allArgs...)
	case i.logger != nil:
		i.logger.Error(logMsgFailed, allArgs...)
	}
}

// recordDuration records the call duration with context if the collector supports it.
func (i *Interceptor) recordDuration(ctx context.Context, duration time.Duration, labels map[string]string) {
	if i.metricsCollector == nil {
		return
	}

	if contextualCollector, ok := i.metricsCollector.(ContextualMetricsCollector); ok {
		contextualCollector.RecordDurationContext(ctx, metricCallDuration, duration, labels)
	} else {
		i.metricsCollector.RecordDuration(metricCallDuration, duration, labels)
	}
}

// recordValue records a result size with context if the collector supports it.
func (i *Interceptor) recordValue(ctx context.Context, metric string, value float64, labels map[string]string) {
	if i.metricsCollector == nil {
		return
	}

	if contextualCollector, ok := i.metricsCollector.(ContextualMetricsCollector); ok {
		contextualCollector.RecordValueContext(ctx, metric, value, labels)
	} else {
		i.metricsCollector.RecordValue(metric, value, labels)
	}
}

// incrementErrors counts a failed call with context if the collector supports it.
func (i *Interceptor) incrementErrors(ctx context.Context, labels map[string]string, errorType string) {
	if i.metricsCollector == nil {
		return
	}

	labels[spanAttrErrorType] = errorType

	if contextualCollector, ok := i.metricsCollector.(ContextualMetricsCollector); ok {
		contextualCollector.IncrementCounterContext(ctx, metricCallErrors, labels)
	} else {
		i.metricsCollector.IncrementCounter(metricCallErrors, labels)
	}
}

// toMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func toMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}
