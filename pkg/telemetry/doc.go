// Package telemetry groups Ganymede's observability packages.
//
// # Components
//
//   - logging: structured slog logging with JSON, text and console formats
//   - metrics: request tracing, rolling aggregation, threshold alerting,
//     health evaluation and Prometheus export
package telemetry
