// Package prometheus renders goToken engine metrics in Prometheus text
// exposition format.
//
// [NewPrometheusExporter] accepts a [goToken.Engine] and exposes an [http.Handler].
// Counter names are prefixed gotoken_*_total; the validation latency histogram is
// gotoken_validate_latency_seconds and the revocation cache size is the
// gotoken_revoked_tokens gauge.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry — callers mount the Handler.
//   - Mutate engine state.
package prometheus
