package goToken

import (
	"errors"

	"github.com/MrEthical07/goToken/jwt"
	"github.com/MrEthical07/goToken/refresh"
)

var (
	// ErrEncoding is returned when an access token cannot be produced from
	// the configured key or the supplied claims.
	ErrEncoding = jwt.ErrEncoding
	// ErrInvalidToken is returned for any access token that must not be
	// trusted: bad signature, wrong algorithm, malformed, issuer or
	// audience mismatch, or a missing user id.
	ErrInvalidToken = jwt.ErrInvalidToken
	// ErrTokenExpired is always reported together with ErrInvalidToken.
	ErrTokenExpired = jwt.ErrTokenExpired
	// ErrRevokedToken is returned for tokens present in the revocation cache.
	ErrRevokedToken = errors.New("token revoked")

	// ErrInvalidRefreshToken is returned when a refresh value is unknown,
	// already rotated, expired, or owned by another user.
	ErrInvalidRefreshToken = refresh.ErrInvalidRefreshToken
	// ErrStoreUnavailable wraps refresh repository failures.
	ErrStoreUnavailable = refresh.ErrStoreUnavailable

	// ErrConfiguration is returned by Config.Validate and Builder.Build.
	ErrConfiguration = errors.New("invalid configuration")
	// ErrEngineNotReady is returned when an operation needs a collaborator
	// the engine was built without.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrIdentityUnavailable wraps identity provider failures.
	ErrIdentityUnavailable = errors.New("identity provider unavailable")
)
