package goToken

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/goToken/identity"
	"github.com/MrEthical07/goToken/internal/flows"
)

// Login authenticates req against the identity provider and, on success,
// issues an access token and a refresh token.
//
// Credential outcomes are reported through LoginResult.Status with a nil
// error; the error is reserved for backend and signing failures.
func (e *Engine) Login(ctx context.Context, req LoginRequest) (LoginResult, error) {
	if !e.ready() || e.provider == nil {
		return LoginResult{}, ErrEngineNotReady
	}

	res := flows.RunLogin(ctx, req.UserName, req.Password, req.RememberMe, e.flows.Login)

	var status LoginStatus
	switch res.Failure {
	case flows.LoginFailureNone:
		e.metricInc(MetricLoginSuccess)
		e.metricInc(MetricRefreshTokenCreated)
		e.emitAudit(ctx, auditEventLoginSuccess, true, res.UserID, res.Refresh.ID, "", func() map[string]string {
			return map[string]string{"remember_me": fmt.Sprint(req.RememberMe)}
		})
		return LoginResult{
			Status:       LoginSuccess,
			UserID:       res.UserID,
			AccessToken:  accessFromFlow(res.Access),
			RefreshToken: res.Refresh,
		}, nil
	case flows.LoginFailureNotFound:
		status = LoginNotFound
		e.metricInc(MetricLoginNotFound)
	case flows.LoginFailureNotAllowed:
		status = LoginNotAllowed
		e.metricInc(MetricLoginNotAllowed)
	case flows.LoginFailureLockedOut:
		status = LoginLockedOut
		e.metricInc(MetricLoginLockedOut)
	case flows.LoginFailureInvalidCredentials:
		status = LoginInvalidCredentials
	default:
		err := e.loginError(res)
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, res.UserID, "", auditErrorCode(err), nil)
		return LoginResult{}, err
	}

	e.metricInc(MetricLoginFailure)
	e.emitAudit(ctx, auditEventLoginFailure, false, res.UserID, "", loginAuditCode(status), nil)
	return LoginResult{Status: status, UserID: res.UserID}, nil
}

func (e *Engine) loginError(res flows.LoginResult) error {
	switch res.Failure {
	case flows.LoginFailureIdentity, flows.LoginFailureClaims:
		return fmt.Errorf("%w: %v", ErrIdentityUnavailable, res.Err)
	default:
		return res.Err
	}
}

// Refresh rotates refreshValue and issues a new access token for its
// owner. The presented value is consumed even when issuing the access
// token fails afterwards.
func (e *Engine) Refresh(ctx context.Context, refreshValue string) (AccessToken, RefreshToken, error) {
	if !e.ready() {
		return AccessToken{}, RefreshToken{}, ErrEngineNotReady
	}

	res := flows.RunRefresh(ctx, refreshValue, e.flows.Refresh)
	return e.finishRefresh(ctx, res)
}

// RefreshWithAccessToken identifies the user from accessToken, which may
// be expired but must be correctly signed and not revoked, and rotates
// refreshValue when it belongs to the same user. The presented access
// token is revoked on success.
func (e *Engine) RefreshWithAccessToken(ctx context.Context, accessToken, refreshValue string) (AccessToken, RefreshToken, error) {
	if !e.ready() {
		return AccessToken{}, RefreshToken{}, ErrEngineNotReady
	}

	res := flows.RunRefreshWithAccess(ctx, accessToken, refreshValue, e.flows.Refresh)
	return e.finishRefresh(ctx, res)
}

func (e *Engine) finishRefresh(ctx context.Context, res flows.RefreshResult) (AccessToken, RefreshToken, error) {
	if res.Failure == flows.RefreshFailureNone {
		e.metricInc(MetricRefreshSuccess)
		e.metricInc(MetricRefreshTokenCreated)
		e.emitAudit(ctx, auditEventRefreshSuccess, true, res.UserID, res.Refresh.ID, "", nil)
		return accessFromFlow(res.Access), res.Refresh, nil
	}

	err := e.refreshError(res)
	e.metricInc(MetricRefreshFailure)
	e.emitAudit(ctx, auditEventRefreshFailure, false, res.UserID, "", auditErrorCode(err), nil)
	return AccessToken{}, RefreshToken{}, err
}

func (e *Engine) refreshError(res flows.RefreshResult) error {
	switch res.Failure {
	case flows.RefreshFailureRejected, flows.RefreshFailureUserMismatch:
		e.metricInc(MetricRefreshRejected)
		return res.Err
	case flows.RefreshFailureAccessRevoked:
		e.metricInc(MetricRevokedTokenRejected)
		return ErrRevokedToken
	case flows.RefreshFailureClaims:
		if errors.Is(res.Err, identity.ErrUserNotFound) || errors.Is(res.Err, identity.ErrUserDisabled) {
			e.metricInc(MetricRefreshRejected)
			return fmt.Errorf("%w: %v", ErrInvalidRefreshToken, res.Err)
		}
		return fmt.Errorf("%w: %v", ErrIdentityUnavailable, res.Err)
	default:
		return res.Err
	}
}

// Logout revokes accessToken and deletes the refresh token for
// refreshValue when it is still stored. refreshValue may be empty. A
// refresh token owned by a different user is left untouched and reported
// as ErrInvalidRefreshToken.
func (e *Engine) Logout(ctx context.Context, accessToken, refreshValue string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}

	res := flows.RunLogout(ctx, accessToken, refreshValue, e.flows.Logout)
	switch res.Failure {
	case flows.LogoutFailureNone:
	case flows.LogoutFailureUserMismatch:
		e.metricInc(MetricRefreshRejected)
		e.emitAudit(ctx, auditEventLogout, false, res.UserID, "", auditErrorCode(res.Err), nil)
		return res.Err
	default:
		e.emitAudit(ctx, auditEventLogout, false, res.UserID, "", auditErrorCode(res.Err), nil)
		return res.Err
	}

	e.metricInc(MetricLogout)
	if res.RefreshTokenID != "" {
		e.metricInc(MetricRefreshTokenInvalidated)
	}
	e.emitAudit(ctx, auditEventLogout, true, res.UserID, res.RefreshTokenID, "", nil)
	return nil
}
