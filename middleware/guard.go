package middleware

import (
	"context"
	"net/http"
	"strings"

	goToken "github.com/MrEthical07/goToken"
)

// AuthResult is stored in the request context by Guard.
type AuthResult struct {
	UserID string
	Claims goToken.ClaimSet
	Token  string
}

type authResultContextKey struct{}

func AuthResultFromContext(ctx context.Context) (*AuthResult, bool) {
	res, ok := ctx.Value(authResultContextKey{}).(*AuthResult)
	return res, ok
}

type guardOptions struct {
	renew      bool
	rememberMe bool
	onReject   func(r *http.Request, err error)
}

// Option configures Guard.
type Option func(*guardOptions)

// WithRenewal makes Guard issue a fresh access token with the same claims
// on every accepted request and return it in the Authorization response
// header.
func WithRenewal() Option {
	return func(o *guardOptions) { o.renew = true }
}

// WithRememberMeRenewal is WithRenewal using the remember-me lifetime.
func WithRememberMeRenewal() Option {
	return func(o *guardOptions) {
		o.renew = true
		o.rememberMe = true
	}
}

// WithRejectHook is called with the validation error of every rejected
// request, for logging.
func WithRejectHook(fn func(r *http.Request, err error)) Option {
	return func(o *guardOptions) { o.onReject = fn }
}

// Guard rejects requests without a valid, unrevoked bearer token with 401
// and stores an AuthResult for accepted ones.
func Guard(engine *goToken.Engine, opts ...Option) func(http.Handler) http.Handler {
	var o guardOptions
	for _, opt := range opts {
		opt(&o)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				reject(w, r, o, goToken.ErrEngineNotReady)
				return
			}

			token, ok := BearerToken(r.Header.Get("Authorization"))
			if !ok {
				reject(w, r, o, goToken.ErrInvalidToken)
				return
			}

			claims, err := engine.ValidateAccessToken(r.Context(), token)
			if err != nil {
				reject(w, r, o, err)
				return
			}

			userID, _ := claims.First(goToken.ClaimUserID)
			if userID == "" {
				userID, _ = claims.First(goToken.ClaimSubject)
			}

			if o.renew {
				if renewed, err := engine.GenerateAccessToken(claims, o.rememberMe); err == nil {
					w.Header().Set("Authorization", "Bearer "+renewed.Token)
					w.Header().Add("Access-Control-Expose-Headers", "Authorization")
				}
			}

			res := &AuthResult{UserID: userID, Claims: claims, Token: token}
			ctx := context.WithValue(r.Context(), authResultContextKey{}, res)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func reject(w http.ResponseWriter, r *http.Request, o guardOptions, err error) {
	if o.onReject != nil {
		o.onReject(r, err)
	}
	http.Error(w, "unauthorized", http.StatusUnauthorized)
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}
