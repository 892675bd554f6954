// Package observability provides structured logging and metrics for the
// generation engine.
//
// Logging is zap-based and configured from LOG_LEVEL and LOG_FORMAT. Metrics
// are Prometheus collectors on a private registry covering provider request
// outcomes, latencies, generation cost and units, and circuit breaker state.
package observability
