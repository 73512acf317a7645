package flows

import (
	"context"
	"time"

	"github.com/MrEthical07/goToken/refresh"
)

// LogoutFailureKind classifies logout flow failures for root-level mapping.
type LogoutFailureKind int

const (
	LogoutFailureNone LogoutFailureKind = iota
	LogoutFailureAccessInvalid
	LogoutFailureUserMismatch
	LogoutFailureStore
)

// LogoutResult reports what logout removed.
type LogoutResult struct {
	Failure        LogoutFailureKind
	Err            error
	UserID         string
	RefreshTokenID string
}

// LogoutDeps captures logout dependencies.
type LogoutDeps struct {
	RefreshStore RefreshStore
	Validate     ValidateDeps
	RevokeAccess func(token string, expiresAt time.Time) bool
}

// RunLogout revokes accessToken and deletes the refresh record for
// refreshValue when it still exists. An expired access token is accepted
// so clients can log out after the token has lapsed; an already revoked
// one makes the call idempotent.
func RunLogout(ctx context.Context, accessToken, refreshValue string, deps LogoutDeps) LogoutResult {
	validated := RunValidate(accessToken, false, deps.Validate)
	switch validated.Failure {
	case ValidateFailureNone:
	case ValidateFailureRevoked:
		return LogoutResult{}
	default:
		return LogoutResult{Failure: LogoutFailureAccessInvalid, Err: validated.Err}
	}

	userID, _ := UserIDFromClaims(validated.Claims)
	res := LogoutResult{UserID: userID}

	if refreshValue != "" {
		current, found, err := deps.RefreshStore.FindByValue(ctx, refreshValue)
		if err != nil {
			res.Failure, res.Err = LogoutFailureStore, err
			return res
		}
		if found {
			if current.UserID != userID {
				res.Failure, res.Err = LogoutFailureUserMismatch, refresh.ErrInvalidRefreshToken
				return res
			}
			if err := deps.RefreshStore.Invalidate(ctx, current.ID); err != nil {
				res.Failure, res.Err = LogoutFailureStore, err
				return res
			}
			res.RefreshTokenID = current.ID
		}
	}

	deps.RevokeAccess(accessToken, validated.ExpiresAt)
	return res
}
