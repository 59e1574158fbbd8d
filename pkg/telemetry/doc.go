// Package telemetry groups the agent's observability concerns.
//
//   - logging: structured slog configuration
//   - metrics: Prometheus enforcement metrics
//   - health: liveness and readiness probes
package telemetry
