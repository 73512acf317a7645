package goToken

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/MrEthical07/goToken/identity"
	internalaudit "github.com/MrEthical07/goToken/internal/audit"
	"github.com/MrEthical07/goToken/internal/flows"
	"github.com/MrEthical07/goToken/jwt"
	"github.com/MrEthical07/goToken/refresh"
	"github.com/MrEthical07/goToken/revocation"
)

// Engine issues, validates, revokes and rotates tokens. It is safe for
// concurrent use; build it with New().Build() and release it with Close.
type Engine struct {
	config   Config
	codec    *jwt.Codec
	revoked  *revocation.Cache
	refresh  *refresh.Store
	provider identity.Provider
	claims   identity.ClaimsResolver
	audit    *internalaudit.Dispatcher
	metrics  *Metrics
	logger   *slog.Logger
	now      func() time.Time
	flows    flows.Deps
}

func (e *Engine) ready() bool {
	return e != nil && e.codec != nil && e.revoked != nil && e.refresh != nil
}

func (e *Engine) buildFlowDeps() flows.Deps {
	validate := flows.ValidateDeps{
		IsRevoked: e.revoked.IsInvalid,
		Decode:    e.codec.Decode,
	}
	return flows.Deps{
		Validate: validate,
		Login: flows.LoginDeps{
			Provider:     e.provider,
			Claims:       e.claimsFor,
			IssueAccess:  e.issueAccess,
			RefreshStore: e.refresh,
		},
		Refresh: flows.RefreshDeps{
			RefreshStore: e.refresh,
			Claims:       e.claimsFor,
			IssueAccess:  e.issueAccess,
			Validate:     validate,
			RevokeAccess: e.revokeUntil,
			Warn:         e.logger.Warn,
		},
		Logout: flows.LogoutDeps{
			RefreshStore: e.refresh,
			Validate:     validate,
			RevokeAccess: e.revokeUntil,
		},
	}
}

// GenerateAccessToken signs claims into an access token that expires after
// JWT.AccessTTL, or JWT.RememberMeTTL when rememberMe is set.
func (e *Engine) GenerateAccessToken(claims ClaimSet, rememberMe bool) (AccessToken, error) {
	if !e.ready() {
		return AccessToken{}, ErrEngineNotReady
	}
	issued, err := e.issueAccess(claims, rememberMe)
	if err != nil {
		return AccessToken{}, err
	}
	return accessFromFlow(issued), nil
}

func (e *Engine) issueAccess(claims jwt.ClaimSet, rememberMe bool) (flows.IssuedAccess, error) {
	ttl := e.config.JWT.AccessTTL
	if rememberMe {
		ttl = e.config.JWT.RememberMeTTL
	}

	now := e.now().UTC()
	// exp is encoded with second precision.
	expiresAt := now.Add(ttl).Truncate(time.Second)

	token, err := e.codec.Issue(claims, expiresAt)
	if err != nil {
		return flows.IssuedAccess{}, err
	}
	return flows.IssuedAccess{Token: token, IssuedAt: now, ExpiresAt: expiresAt}, nil
}

func accessFromFlow(issued flows.IssuedAccess) AccessToken {
	return AccessToken{
		Token:     issued.Token,
		IssuedAt:  issued.IssuedAt,
		ExpiresAt: issued.ExpiresAt,
		Kind:      TokenKindAccess,
	}
}

// GenerateRefreshToken creates and persists a refresh token for userID.
func (e *Engine) GenerateRefreshToken(ctx context.Context, userID string) (RefreshToken, error) {
	if !e.ready() {
		return RefreshToken{}, ErrEngineNotReady
	}
	rt, err := e.refresh.Create(ctx, userID)
	if err != nil {
		return RefreshToken{}, err
	}
	e.metricInc(MetricRefreshTokenCreated)
	return rt, nil
}

// FindRefreshToken looks up a refresh value. Unknown and expired values
// report false with a nil error.
func (e *Engine) FindRefreshToken(ctx context.Context, value string) (RefreshToken, bool, error) {
	if !e.ready() {
		return RefreshToken{}, false, ErrEngineNotReady
	}
	return e.refresh.FindByValue(ctx, value)
}

// InvalidateRefreshToken deletes the refresh token with the given id.
// Unknown ids are ignored.
func (e *Engine) InvalidateRefreshToken(ctx context.Context, id string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	if err := e.refresh.Invalidate(ctx, id); err != nil {
		return err
	}
	if id != "" {
		e.metricInc(MetricRefreshTokenInvalidated)
	}
	return nil
}

// InvalidateUserRefreshTokens deletes every refresh token owned by userID
// and returns how many were removed.
func (e *Engine) InvalidateUserRefreshTokens(ctx context.Context, userID string) (int, error) {
	if !e.ready() {
		return 0, ErrEngineNotReady
	}
	n, err := e.refresh.InvalidateUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	e.metricAdd(MetricRefreshTokenInvalidated, n)
	if n > 0 {
		e.emitAudit(ctx, auditEventRefreshTokensPurged, true, userID, "", "", func() map[string]string {
			return map[string]string{"removed": fmt.Sprint(n)}
		})
	}
	return n, nil
}

// PurgeExpiredRefreshTokens deletes expired refresh records.
func (e *Engine) PurgeExpiredRefreshTokens(ctx context.Context) (int, error) {
	if !e.ready() {
		return 0, ErrEngineNotReady
	}
	return e.refresh.Purge(ctx)
}

// ValidateAccessToken returns the claims of a valid, unexpired and
// unrevoked access token.
func (e *Engine) ValidateAccessToken(ctx context.Context, token string) (ClaimSet, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	var start time.Time
	if e.metrics.LatencyEnabled() {
		start = time.Now()
	}
	res := flows.RunValidate(token, true, e.flows.Validate)
	if e.metrics.LatencyEnabled() {
		e.metrics.Observe(MetricValidateLatency, time.Since(start))
	}

	if err := e.validateError(res); err != nil {
		return nil, err
	}
	return res.Claims, nil
}

// GetUserIDFromAccessToken returns the uid claim, or sub when uid is
// absent, of a correctly signed token. Expiry is not enforced so that a
// client can be identified from a lapsed token; revoked tokens are still
// rejected.
func (e *Engine) GetUserIDFromAccessToken(ctx context.Context, token string) (string, error) {
	if !e.ready() {
		return "", ErrEngineNotReady
	}

	res := flows.RunValidate(token, false, e.flows.Validate)
	if err := e.validateError(res); err != nil {
		return "", err
	}

	userID, ok := flows.UserIDFromClaims(res.Claims)
	if !ok {
		return "", fmt.Errorf("%w: missing user id", ErrInvalidToken)
	}
	return userID, nil
}

func (e *Engine) validateError(res flows.ValidateResult) error {
	switch res.Failure {
	case flows.ValidateFailureNone:
		return nil
	case flows.ValidateFailureRevoked:
		e.metricInc(MetricRevokedTokenRejected)
		return ErrRevokedToken
	case flows.ValidateFailureEmpty:
		e.metricInc(MetricValidateFailure)
		return fmt.Errorf("%w: empty token", ErrInvalidToken)
	default:
		e.metricInc(MetricValidateFailure)
		return res.Err
	}
}

// Invalidate records token in the revocation cache until its natural
// expiry. A blank token is ignored. Already expired tokens are kept for
// Revocation.MinTTL; tokens whose expiry cannot be read are kept for
// Revocation.FallbackTTL.
func (e *Engine) Invalidate(ctx context.Context, token string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	if strings.TrimSpace(token) == "" {
		return nil
	}

	var inserted bool
	if _, expiresAt, err := e.codec.Decode(token, false); err == nil {
		inserted = e.revokeUntil(token, expiresAt)
	} else {
		inserted = e.revokeFor(token, e.config.Revocation.FallbackTTL)
	}

	if inserted {
		e.emitAudit(ctx, auditEventTokenInvalidated, true, "", "", "", nil)
	}
	return nil
}

// IsInvalid reports whether token is revoked. A blank token is always
// reported as invalid.
func (e *Engine) IsInvalid(token string) bool {
	if strings.TrimSpace(token) == "" || !e.ready() {
		return true
	}
	return e.revoked.IsInvalid(token)
}

func (e *Engine) revokeUntil(token string, expiresAt time.Time) bool {
	return e.revokeFor(token, expiresAt.Sub(e.now()))
}

func (e *Engine) revokeFor(token string, ttl time.Duration) bool {
	if ttl < e.config.Revocation.MinTTL {
		ttl = e.config.Revocation.MinTTL
	}
	inserted := e.revoked.Invalidate(token, ttl)
	if inserted {
		e.metricInc(MetricTokenInvalidated)
	}
	return inserted
}

func (e *Engine) claimsFor(ctx context.Context, userID string) (jwt.ClaimSet, error) {
	if e.claims == nil {
		return jwt.ClaimSet{
			{Type: jwt.ClaimSubject, Value: userID},
			{Type: jwt.ClaimUserID, Value: userID},
		}, nil
	}
	return e.claims.Claims(ctx, userID)
}

// RevokedCount returns the number of entries in the revocation cache.
func (e *Engine) RevokedCount() int {
	if !e.ready() {
		return 0
	}
	return e.revoked.Len()
}

func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil {
		return (*Metrics)(nil).Snapshot()
	}
	return e.metrics.Snapshot()
}

// AuditDropped returns the number of audit events discarded under
// backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

// Close stops the revocation sweeper and flushes buffered audit events.
// It is safe to call more than once.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.revoked.Close()
	e.audit.Close()
}

func (e *Engine) metricInc(id MetricID) {
	e.metrics.Inc(id)
}

func (e *Engine) metricAdd(id MetricID, n int) {
	if n > 0 {
		e.metrics.Add(id, uint64(n))
	}
}
