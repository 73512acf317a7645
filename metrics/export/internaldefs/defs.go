package internaldefs

import (
	goToken "github.com/MrEthical07/goToken"
)

// CounterDef maps an engine counter to its exported name.
type CounterDef struct {
	ID   goToken.MetricID
	Name string
	Help string
}

type HistogramDef struct {
	ID   goToken.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in render order.
var CounterDefs = []CounterDef{
	{ID: goToken.MetricLoginSuccess, Name: "gotoken_login_success_total", Help: "Successful login attempts."},
	{ID: goToken.MetricLoginFailure, Name: "gotoken_login_failure_total", Help: "Failed login attempts."},
	{ID: goToken.MetricLoginLockedOut, Name: "gotoken_login_locked_out_total", Help: "Login attempts rejected because the account is locked."},
	{ID: goToken.MetricLoginNotFound, Name: "gotoken_login_not_found_total", Help: "Login attempts for unknown accounts."},
	{ID: goToken.MetricLoginNotAllowed, Name: "gotoken_login_not_allowed_total", Help: "Login attempts for disabled accounts."},
	{ID: goToken.MetricRefreshSuccess, Name: "gotoken_refresh_success_total", Help: "Successful refresh rotations."},
	{ID: goToken.MetricRefreshFailure, Name: "gotoken_refresh_failure_total", Help: "Failed refresh operations."},
	{ID: goToken.MetricRefreshRejected, Name: "gotoken_refresh_rejected_total", Help: "Refresh values rejected as unknown, replayed, expired or foreign."},
	{ID: goToken.MetricValidateFailure, Name: "gotoken_validate_failure_total", Help: "Access tokens rejected as invalid or expired."},
	{ID: goToken.MetricRevokedTokenRejected, Name: "gotoken_revoked_token_rejected_total", Help: "Access tokens rejected because they were revoked."},
	{ID: goToken.MetricTokenInvalidated, Name: "gotoken_token_invalidated_total", Help: "Access tokens added to the revocation cache."},
	{ID: goToken.MetricRefreshTokenCreated, Name: "gotoken_refresh_token_created_total", Help: "Refresh tokens issued."},
	{ID: goToken.MetricRefreshTokenInvalidated, Name: "gotoken_refresh_token_invalidated_total", Help: "Refresh tokens deleted by logout or revocation."},
	{ID: goToken.MetricLogout, Name: "gotoken_logout_total", Help: "Logout operations."},
	{ID: goToken.MetricRevocationSwept, Name: "gotoken_revocation_swept_total", Help: "Revocation cache entries evicted at natural expiry."},
}

var HistogramDefs = []HistogramDef{
	{ID: goToken.MetricValidateLatency, Name: "gotoken_validate_latency_seconds", Help: "Access token validation latency."},
}

// Names of metrics that do not come from the counter snapshot.
const (
	AuditDroppedName  = "gotoken_audit_dropped_total"
	AuditDroppedHelp  = "Dropped audit events due to dispatcher backpressure."
	RevokedTokensName = "gotoken_revoked_tokens"
	RevokedTokensHelp = "Entries currently held in the revocation cache."
)

// HistogramBounds are the upper bounds, in seconds, of the engine's
// latency buckets.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix is HistogramBounds in a form usable in instrument names.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed array, zero-filling missing
// buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
