// Package otel publishes goToken engine metrics through OpenTelemetry.
//
// [NewOTelExporter] registers an Int64ObservableCounter for each engine counter, an
// Int64ObservableGauge per latency bucket and one for the revocation cache size. A
// single callback reads [goToken.Engine.MetricsSnapshot] on each collection cycle.
//
// # What this package must NOT do
//
//   - Own the OTel MeterProvider — callers supply the Meter.
//   - Mutate engine state.
package otel
