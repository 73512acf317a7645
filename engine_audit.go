package goToken

import (
	"context"
	"errors"
)

const (
	auditEventLoginSuccess        = "login_success"
	auditEventLoginFailure        = "login_failure"
	auditEventRefreshSuccess      = "refresh_success"
	auditEventRefreshFailure      = "refresh_failure"
	auditEventTokenInvalidated    = "token_invalidated"
	auditEventRefreshTokensPurged = "refresh_tokens_revoked"
	auditEventLogout              = "logout"
)

// AuditErrorCode is the stable failure label written to AuditEvent.Error.
type AuditErrorCode string

const (
	auditErrInvalidCredentials  AuditErrorCode = "invalid_credentials"
	auditErrUserNotFound        AuditErrorCode = "user_not_found"
	auditErrAccountDisabled     AuditErrorCode = "account_disabled"
	auditErrAccountLocked       AuditErrorCode = "account_locked"
	auditErrInvalidToken        AuditErrorCode = "invalid_token"
	auditErrTokenExpired        AuditErrorCode = "token_expired"
	auditErrRevokedToken        AuditErrorCode = "revoked_token"
	auditErrInvalidRefreshToken AuditErrorCode = "invalid_refresh_token"
	auditErrEncoding            AuditErrorCode = "encoding_failed"
	auditErrUnavailable         AuditErrorCode = "backend_unavailable"
	auditErrInternal            AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	tokenID string,
	code AuditErrorCode,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	e.audit.Emit(ctx, AuditEvent{
		Timestamp: e.now().UTC(),
		EventType: eventType,
		UserID:    userID,
		TokenID:   tokenID,
		IP:        clientIPFromContext(ctx),
		UserAgent: userAgentFromContext(ctx),
		Success:   success,
		Error:     string(code),
		Metadata:  metadata,
	})
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrRevokedToken):
		return auditErrRevokedToken
	case errors.Is(err, ErrTokenExpired):
		return auditErrTokenExpired
	case errors.Is(err, ErrInvalidToken):
		return auditErrInvalidToken
	case errors.Is(err, ErrInvalidRefreshToken):
		return auditErrInvalidRefreshToken
	case errors.Is(err, ErrEncoding):
		return auditErrEncoding
	case errors.Is(err, ErrStoreUnavailable),
		errors.Is(err, ErrIdentityUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}

func loginAuditCode(status LoginStatus) AuditErrorCode {
	switch status {
	case LoginNotFound:
		return auditErrUserNotFound
	case LoginNotAllowed:
		return auditErrAccountDisabled
	case LoginLockedOut:
		return auditErrAccountLocked
	case LoginInvalidCredentials:
		return auditErrInvalidCredentials
	default:
		return ""
	}
}
