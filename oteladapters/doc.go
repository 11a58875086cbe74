// Package oteladapters connects the interceptor observability interfaces to OpenTelemetry.
//
// SlogBridgeLogger and OTelLogger implement interceptor.ContextualLogger,
// MetricsCollector implements interceptor.ContextualMetricsCollector
// and TracingCollector implements interceptor.TracingCollector.
// Plugins such as tracelog accept them through their options or through config.Observability.
package oteladapters
