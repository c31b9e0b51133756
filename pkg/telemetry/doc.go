// Package telemetry provides the ambient observability stack for runbook:
// structured logging via zerolog, Prometheus metrics for task and pipeline
// execution, and OpenTelemetry tracing with stdout or OTLP export.
//
// Metrics and Tracer methods are safe on a nil receiver so callers can wire
// instrumentation unconditionally and let configuration decide.
package telemetry
