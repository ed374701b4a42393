// Package api hosts the ops HTTP server that runs next to a verification run.
// Routes:
//   - GET /healthz and /readyz for liveness and readiness probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/run for the live counters of the current run.
package api
