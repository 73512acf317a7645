package flows

import (
	"context"

	"github.com/MrEthical07/goToken/identity"
	"github.com/MrEthical07/goToken/refresh"
)

// LoginFailureKind classifies login flow failures for root-level mapping.
type LoginFailureKind int

const (
	LoginFailureNone LoginFailureKind = iota
	LoginFailureNotFound
	LoginFailureNotAllowed
	LoginFailureLockedOut
	LoginFailureInvalidCredentials
	LoginFailureIdentity
	LoginFailureClaims
	LoginFailureIssueAccess
	LoginFailureIssueRefresh
)

// LoginResult carries the issued pair or failure metadata.
type LoginResult struct {
	Failure LoginFailureKind
	Err     error
	UserID  string
	Access  IssuedAccess
	Refresh refresh.Token
}

// LoginDeps captures login dependencies.
type LoginDeps struct {
	Provider     identity.Provider
	Claims       ClaimsFunc
	IssueAccess  IssueAccessFunc
	RefreshStore RefreshStore
}

// RunLogin authenticates login and password and issues an access/refresh
// pair on success. Credential outcomes are reported as failure kinds with a
// nil Err; Err is set only for infrastructure failures.
func RunLogin(ctx context.Context, login, password string, rememberMe bool, deps LoginDeps) LoginResult {
	outcome, err := deps.Provider.Authenticate(ctx, login, password)
	if err != nil {
		return LoginResult{Failure: LoginFailureIdentity, Err: err}
	}

	switch outcome.Status {
	case identity.StatusSuccess:
	case identity.StatusNotFound:
		return LoginResult{Failure: LoginFailureNotFound}
	case identity.StatusNotAllowed:
		return LoginResult{Failure: LoginFailureNotAllowed, UserID: outcome.UserID}
	case identity.StatusLockedOut:
		return LoginResult{Failure: LoginFailureLockedOut, UserID: outcome.UserID}
	default:
		return LoginResult{Failure: LoginFailureInvalidCredentials, UserID: outcome.UserID}
	}

	claims, err := deps.Claims(ctx, outcome.UserID)
	if err != nil {
		return LoginResult{Failure: LoginFailureClaims, Err: err, UserID: outcome.UserID}
	}

	access, err := deps.IssueAccess(claims, rememberMe)
	if err != nil {
		return LoginResult{Failure: LoginFailureIssueAccess, Err: err, UserID: outcome.UserID}
	}

	rt, err := deps.RefreshStore.Create(ctx, outcome.UserID)
	if err != nil {
		return LoginResult{Failure: LoginFailureIssueRefresh, Err: err, UserID: outcome.UserID}
	}

	return LoginResult{
		Failure: LoginFailureNone,
		UserID:  outcome.UserID,
		Access:  access,
		Refresh: rt,
	}
}
