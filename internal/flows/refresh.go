package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goToken/jwt"
	"github.com/MrEthical07/goToken/refresh"
)

// RefreshFailureKind classifies refresh flow failures for root-level mapping.
type RefreshFailureKind int

const (
	RefreshFailureNone RefreshFailureKind = iota
	RefreshFailureRejected
	RefreshFailureStore
	RefreshFailureAccessRevoked
	RefreshFailureAccessInvalid
	RefreshFailureUserMismatch
	RefreshFailureClaims
	RefreshFailureIssueAccess
)

// RefreshResult carries either the rotated pair or failure metadata.
type RefreshResult struct {
	Failure RefreshFailureKind
	Err     error
	UserID  string
	Access  IssuedAccess
	Refresh refresh.Token

	// RevokedAccess reports whether the presented access token was placed
	// in the revocation cache (RunRefreshWithAccess only).
	RevokedAccess bool
}

// RefreshDeps captures refresh flow dependencies.
type RefreshDeps struct {
	RefreshStore RefreshStore
	Claims       ClaimsFunc
	IssueAccess  IssueAccessFunc
	Validate     ValidateDeps
	RevokeAccess func(token string, expiresAt time.Time) bool
	Warn         func(msg string, args ...any)
}

// RunRefresh rotates refreshValue and issues a fresh access token for the
// owning user.
//
// Once rotation has consumed the old value it cannot be undone; if the
// access token cannot be issued the replacement refresh token is deleted
// too so the caller holds nothing half-valid.
func RunRefresh(ctx context.Context, refreshValue string, deps RefreshDeps) RefreshResult {
	next, err := deps.RefreshStore.Rotate(ctx, refreshValue)
	if err != nil {
		return rotateFailure(err)
	}
	return issueAfterRotate(ctx, next, deps)
}

// RunRefreshWithAccess identifies the user from a possibly expired access
// token, requires refreshValue to belong to that user, rotates it and
// revokes the presented access token.
func RunRefreshWithAccess(ctx context.Context, accessToken, refreshValue string, deps RefreshDeps) RefreshResult {
	validated := RunValidate(accessToken, false, deps.Validate)
	switch validated.Failure {
	case ValidateFailureNone:
	case ValidateFailureRevoked:
		return RefreshResult{Failure: RefreshFailureAccessRevoked}
	default:
		return RefreshResult{Failure: RefreshFailureAccessInvalid, Err: validated.Err}
	}

	userID, ok := UserIDFromClaims(validated.Claims)
	if !ok {
		return RefreshResult{Failure: RefreshFailureAccessInvalid, Err: jwt.ErrInvalidToken}
	}

	current, found, err := deps.RefreshStore.FindByValue(ctx, refreshValue)
	if err != nil {
		return RefreshResult{Failure: RefreshFailureStore, Err: err, UserID: userID}
	}
	if !found {
		return RefreshResult{Failure: RefreshFailureRejected, Err: refresh.ErrInvalidRefreshToken, UserID: userID}
	}
	if current.UserID != userID {
		return RefreshResult{Failure: RefreshFailureUserMismatch, Err: refresh.ErrInvalidRefreshToken, UserID: userID}
	}

	next, err := deps.RefreshStore.Rotate(ctx, refreshValue)
	if err != nil {
		res := rotateFailure(err)
		res.UserID = userID
		return res
	}

	res := issueAfterRotate(ctx, next, deps)
	if res.Failure != RefreshFailureNone {
		return res
	}
	if deps.RevokeAccess != nil {
		res.RevokedAccess = deps.RevokeAccess(accessToken, validated.ExpiresAt)
	}
	return res
}

func rotateFailure(err error) RefreshResult {
	if errors.Is(err, refresh.ErrInvalidRefreshToken) {
		return RefreshResult{Failure: RefreshFailureRejected, Err: err}
	}
	return RefreshResult{Failure: RefreshFailureStore, Err: err}
}

func issueAfterRotate(ctx context.Context, next refresh.Token, deps RefreshDeps) RefreshResult {
	claims, err := deps.Claims(ctx, next.UserID)
	if err != nil {
		discard(ctx, next, deps)
		return RefreshResult{Failure: RefreshFailureClaims, Err: err, UserID: next.UserID}
	}

	access, err := deps.IssueAccess(claims, false)
	if err != nil {
		discard(ctx, next, deps)
		return RefreshResult{Failure: RefreshFailureIssueAccess, Err: err, UserID: next.UserID}
	}

	return RefreshResult{
		Failure: RefreshFailureNone,
		UserID:  next.UserID,
		Access:  access,
		Refresh: next,
	}
}

func discard(ctx context.Context, next refresh.Token, deps RefreshDeps) {
	if err := deps.RefreshStore.Invalidate(ctx, next.ID); err != nil && deps.Warn != nil {
		deps.Warn("goToken: discarding rotated refresh token failed", "token_id", next.ID, "error", err)
	}
}
