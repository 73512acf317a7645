package goToken

import (
	"time"

	"github.com/MrEthical07/goToken/jwt"
	"github.com/MrEthical07/goToken/refresh"
)

// Claim is one (type, value) assertion carried by an access token.
type Claim = jwt.Claim

// ClaimSet is the ordered claim collection signed into an access token.
type ClaimSet = jwt.ClaimSet

// Well-known claim types.
const (
	ClaimSubject = jwt.ClaimSubject
	ClaimUserID  = jwt.ClaimUserID
	ClaimEmail   = jwt.ClaimEmail
)

// TokenKind labels issued credentials.
type TokenKind string

const (
	TokenKindAccess  TokenKind = "access_token"
	TokenKindRefresh TokenKind = "refresh_token"
)

// AccessToken is a signed access token and its lifetime. Two values are
// the same token when their Token strings match.
type AccessToken struct {
	Token     string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Kind      TokenKind
}

// Equal reports whether a and other carry the same token string.
func (a AccessToken) Equal(other AccessToken) bool {
	return a.Token == other.Token
}

// RefreshToken is an opaque, single-use refresh credential.
type RefreshToken = refresh.Token

// LoginRequest is the input to Engine.Login.
type LoginRequest struct {
	UserName   string
	Password   string
	RememberMe bool
}

// LoginStatus is the credential outcome of a login attempt.
type LoginStatus int

const (
	LoginSuccess LoginStatus = iota
	LoginLockedOut
	LoginNotFound
	LoginNotAllowed
	LoginInvalidCredentials
)

func (s LoginStatus) String() string {
	switch s {
	case LoginSuccess:
		return "success"
	case LoginLockedOut:
		return "locked_out"
	case LoginNotFound:
		return "not_found"
	case LoginNotAllowed:
		return "not_allowed"
	case LoginInvalidCredentials:
		return "invalid_credentials"
	default:
		return "unknown"
	}
}

// LoginResult is returned by Engine.Login. AccessToken and RefreshToken are
// populated only when Status is LoginSuccess.
type LoginResult struct {
	Status       LoginStatus
	UserID       string
	AccessToken  AccessToken
	RefreshToken RefreshToken
}

