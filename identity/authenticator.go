package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/goToken/jwt"
)

// Status is the result of a credential check.
type Status int

const (
	StatusSuccess Status = iota
	StatusNotFound
	StatusNotAllowed
	StatusLockedOut
	StatusInvalidCredentials
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusNotFound:
		return "not_found"
	case StatusNotAllowed:
		return "not_allowed"
	case StatusLockedOut:
		return "locked_out"
	case StatusInvalidCredentials:
		return "invalid_credentials"
	default:
		return "unknown"
	}
}

// Outcome is returned by Provider.Authenticate. UserID is set whenever an
// account was found.
type Outcome struct {
	Status Status
	UserID string
}

// Provider checks a login (user name or e-mail) and password. Errors are
// reserved for backend failures; credential problems are reported in the
// Outcome.
type Provider interface {
	Authenticate(ctx context.Context, login, password string) (Outcome, error)
}

// ClaimsResolver returns the caller claims embedded in a user's access
// tokens. ErrUserNotFound and ErrUserDisabled end the user's refresh chain.
type ClaimsResolver interface {
	Claims(ctx context.Context, userID string) (jwt.ClaimSet, error)
}

// PasswordVerifier is satisfied by *password.Hasher.
type PasswordVerifier interface {
	Verify(password, encoded string) (bool, error)
}

// Authenticator implements Provider and ClaimsResolver.
type Authenticator struct {
	users    Users
	lockout  Lockout
	verifier PasswordVerifier
}

// NewAuthenticator wires the collaborators. A nil lockout uses an in-memory
// lockout with default threshold and duration.
func NewAuthenticator(users Users, lockout Lockout, verifier PasswordVerifier) *Authenticator {
	if lockout == nil {
		lockout = NewMemoryLockout(LockoutConfig{}, nil)
	}
	return &Authenticator{users: users, lockout: lockout, verifier: verifier}
}

// Authenticate resolves login by user name, then by e-mail. A locked
// account is rejected before its password is checked.
func (a *Authenticator) Authenticate(ctx context.Context, login, password string) (Outcome, error) {
	u, err := a.lookup(ctx, login)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return Outcome{Status: StatusNotFound}, nil
		}
		return Outcome{}, err
	}

	if u.Disabled {
		return Outcome{Status: StatusNotAllowed, UserID: u.ID}, nil
	}

	locked, err := a.lockout.IsLocked(ctx, u.ID)
	if err != nil {
		return Outcome{}, err
	}
	if locked {
		return Outcome{Status: StatusLockedOut, UserID: u.ID}, nil
	}

	ok, err := a.verifier.Verify(password, u.PasswordHash)
	if err != nil {
		return Outcome{}, fmt.Errorf("verify password for %s: %w", u.ID, err)
	}
	if !ok {
		locked, err := a.lockout.RecordFailure(ctx, u.ID)
		if err != nil {
			return Outcome{}, err
		}
		if locked {
			return Outcome{Status: StatusLockedOut, UserID: u.ID}, nil
		}
		return Outcome{Status: StatusInvalidCredentials, UserID: u.ID}, nil
	}

	if err := a.lockout.Reset(ctx, u.ID); err != nil {
		return Outcome{}, err
	}
	return Outcome{Status: StatusSuccess, UserID: u.ID}, nil
}

func (a *Authenticator) lookup(ctx context.Context, login string) (User, error) {
	u, err := a.users.FindByUserName(ctx, login)
	if err == nil || !errors.Is(err, ErrUserNotFound) {
		return u, err
	}
	return a.users.FindByEmail(ctx, login)
}

// Claims loads userID and returns its claim set. Disabled accounts get
// ErrUserDisabled.
func (a *Authenticator) Claims(ctx context.Context, userID string) (jwt.ClaimSet, error) {
	u, err := a.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u.Disabled {
		return nil, fmt.Errorf("%w: %s", ErrUserDisabled, u.ID)
	}
	return ClaimsFor(u), nil
}

// ClaimsFor builds the claim set of u: sub is the user name, or the e-mail
// when the name is empty; uid is the account id.
func ClaimsFor(u User) jwt.ClaimSet {
	subject := u.UserName
	if subject == "" {
		subject = u.Email
	}

	claims := jwt.ClaimSet{
		{Type: jwt.ClaimSubject, Value: subject},
		{Type: jwt.ClaimUserID, Value: u.ID},
	}
	if u.Email != "" {
		claims = claims.Add(jwt.ClaimEmail, u.Email)
	}
	return claims
}
