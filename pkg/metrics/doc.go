// Package metrics defines Prometheus metrics for bulkmail, covering readiness
// probes, batch dispatch outcomes, pipeline runs, backend mail delivery,
// rate limiting, and audit sinks.
package metrics
