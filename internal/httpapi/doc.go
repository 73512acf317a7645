// Package httpapi exposes a goToken engine over HTTP/JSON.
//
// Routes (see NewRouter):
//
//	POST /api/v1/auth/login    credentials -> access + refresh token
//	POST /api/v1/auth/refresh  refresh token (and optional access token) -> rotated pair
//	POST /api/v1/auth/logout   bearer access token + optional refresh token
//	GET  /api/v1/auth/me       guarded; caller claims
//	GET  /health
//	GET  /metrics              Prometheus text, when an exporter is supplied
//
// Token failures are answered with 401 and a fixed message; the cause is
// only logged.
package httpapi
