// Package telemetry provides observability for the gateway.
//
// Components:
//
//   - logging: structured logging with credential redaction
//   - metrics: Prometheus metrics collection
//   - health: liveness, readiness, and version endpoints
package telemetry
