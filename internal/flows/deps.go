package flows

import (
	"context"
	"time"

	"github.com/MrEthical07/goToken/jwt"
	"github.com/MrEthical07/goToken/refresh"
)

// IssuedAccess is the flow-local view of an issued access token.
type IssuedAccess struct {
	Token     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// IssueAccessFunc signs claims into an access token.
type IssueAccessFunc func(claims jwt.ClaimSet, rememberMe bool) (IssuedAccess, error)

// ClaimsFunc rebuilds the claim set for a user.
type ClaimsFunc func(ctx context.Context, userID string) (jwt.ClaimSet, error)

// RefreshStore is the subset of refresh.Store used by flows.
type RefreshStore interface {
	Create(ctx context.Context, userID string) (refresh.Token, error)
	FindByValue(ctx context.Context, value string) (refresh.Token, bool, error)
	Invalidate(ctx context.Context, id string) error
	Rotate(ctx context.Context, oldValue string) (refresh.Token, error)
}

// Deps groups flow dependency sets. The root engine builds this once and
// delegates request methods to the matching flow implementation.
type Deps struct {
	Validate ValidateDeps
	Login    LoginDeps
	Refresh  RefreshDeps
	Logout   LogoutDeps
}
