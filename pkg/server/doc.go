// Package server exposes the observability HTTP surface: liveness and
// readiness endpoints backed by the pipeline's merged health report, and
// the Prometheus metrics endpoint.
//
// # Routes
//
//   - GET /healthz - Liveness probe (always returns 200 while the process is up)
//   - GET /readyz  - Readiness probe: the merged health report as JSON;
//     unhealthy maps to 503, degraded still returns 200
//   - GET /metrics - Prometheus exposition, when a registry is wired
//
// # Graceful Shutdown
//
// Start blocks until its context is cancelled or the listener fails, then
// drains in-flight requests for up to the configured shutdown timeout.
package server
