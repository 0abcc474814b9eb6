// Package observability provides an OpenTelemetry metrics extension for
// jobhost. The MetricsExtension implements lifecycle hooks to record
// dispatcher-wide counters for ticks, skips, job results and lease events.
//
// For per-execution tracing and metrics, see the middleware package:
// middleware.Tracing() and middleware.Metrics().
package observability
