// Package tracelog provides an interceptor that observes executor calls.
//
// It registers for executor.Executor.Query and executor.Executor.Update and, around the single
// Proceed of each call, writes a before and an after log record keyed by a time-ordered invocation
// id, records durations, result sizes and errors as metrics and wraps the call in a tracing span
// whose context replaces the call's context argument.
//
// Configuration properties: "renderParameters" (default "true") and "maxParameterLength" (default "512").
package tracelog
