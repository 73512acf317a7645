package flows

import (
	"errors"
	"strings"
	"time"

	"github.com/MrEthical07/goToken/jwt"
)

// ValidateFailureKind classifies access token validation failures.
type ValidateFailureKind int

const (
	ValidateFailureNone ValidateFailureKind = iota
	ValidateFailureEmpty
	ValidateFailureRevoked
	ValidateFailureExpired
	ValidateFailureInvalid
)

// ValidateResult carries decoded claims or failure metadata.
type ValidateResult struct {
	Failure   ValidateFailureKind
	Err       error
	Claims    jwt.ClaimSet
	ExpiresAt time.Time
}

// ValidateDeps captures validation dependencies.
type ValidateDeps struct {
	IsRevoked func(token string) bool
	Decode    func(token string, enforceExpiry bool) (jwt.ClaimSet, time.Time, error)
}

// RunValidate checks the revocation cache before the signature so that a
// revoked token is reported as revoked even when it is also expired.
func RunValidate(token string, enforceExpiry bool, deps ValidateDeps) ValidateResult {
	if strings.TrimSpace(token) == "" {
		return ValidateResult{Failure: ValidateFailureEmpty, Err: jwt.ErrInvalidToken}
	}
	if deps.IsRevoked != nil && deps.IsRevoked(token) {
		return ValidateResult{Failure: ValidateFailureRevoked}
	}

	claims, exp, err := deps.Decode(token, enforceExpiry)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ValidateResult{Failure: ValidateFailureExpired, Err: err}
		}
		return ValidateResult{Failure: ValidateFailureInvalid, Err: err}
	}

	return ValidateResult{Claims: claims, ExpiresAt: exp}
}

// UserIDFromClaims returns the uid claim, falling back to sub.
func UserIDFromClaims(claims jwt.ClaimSet) (string, bool) {
	if uid, ok := claims.First(jwt.ClaimUserID); ok && uid != "" {
		return uid, true
	}
	if sub, ok := claims.First(jwt.ClaimSubject); ok && sub != "" {
		return sub, true
	}
	return "", false
}
