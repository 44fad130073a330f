// Package observability provides an OpenTelemetry metrics extension for
// Eventbus. The MetricsExtension implements lifecycle hooks to record
// system-wide counters for published, received, completed, failed,
// retried and dead-lettered events, plus end-to-end delivery latency.
//
// For per-handler tracing and metrics, see the middleware package:
// middleware.Tracing() and middleware.Metrics().
package observability
