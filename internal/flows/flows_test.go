package flows

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/goToken/identity"
	"github.com/MrEthical07/goToken/jwt"
	"github.com/MrEthical07/goToken/refresh"
)

type fakeProvider struct {
	outcome identity.Outcome
	err     error
}

func (p fakeProvider) Authenticate(context.Context, string, string) (identity.Outcome, error) {
	return p.outcome, p.err
}

func userClaims(_ context.Context, userID string) (jwt.ClaimSet, error) {
	return jwt.ClaimSet{{Type: jwt.ClaimSubject, Value: "name-" + userID}, {Type: jwt.ClaimUserID, Value: userID}}, nil
}

func issueStub(claims jwt.ClaimSet, rememberMe bool) (IssuedAccess, error) {
	uid, _ := claims.First(jwt.ClaimUserID)
	ttl := 30 * time.Minute
	if rememberMe {
		ttl = 30 * 24 * time.Hour
	}
	now := time.Now()
	return IssuedAccess{Token: "access-" + uid, IssuedAt: now, ExpiresAt: now.Add(ttl)}, nil
}

func newStore() *refresh.Store {
	return refresh.NewStore(refresh.NewMemoryRepository(), refresh.Config{})
}

func TestRunLoginStatuses(t *testing.T) {
	cases := []struct {
		status identity.Status
		want   LoginFailureKind
	}{
		{identity.StatusNotFound, LoginFailureNotFound},
		{identity.StatusNotAllowed, LoginFailureNotAllowed},
		{identity.StatusLockedOut, LoginFailureLockedOut},
		{identity.StatusInvalidCredentials, LoginFailureInvalidCredentials},
	}
	for _, tc := range cases {
		t.Run(tc.status.String(), func(t *testing.T) {
			res := RunLogin(context.Background(), "alice", "pw", false, LoginDeps{
				Provider:     fakeProvider{outcome: identity.Outcome{Status: tc.status, UserID: "u1"}},
				Claims:       userClaims,
				IssueAccess:  issueStub,
				RefreshStore: newStore(),
			})
			if res.Failure != tc.want {
				t.Fatalf("expected failure %d, got %d", tc.want, res.Failure)
			}
			if res.Err != nil || res.Access.Token != "" || res.Refresh.Value != "" {
				t.Fatalf("expected no tokens and nil error, got %+v", res)
			}
		})
	}
}

func TestRunLoginSuccessIssuesPair(t *testing.T) {
	store := newStore()
	res := RunLogin(context.Background(), "alice", "pw", true, LoginDeps{
		Provider:     fakeProvider{outcome: identity.Outcome{Status: identity.StatusSuccess, UserID: "u1"}},
		Claims:       userClaims,
		IssueAccess:  issueStub,
		RefreshStore: store,
	})
	if res.Failure != LoginFailureNone || res.Err != nil {
		t.Fatalf("expected success, got %+v", res)
	}
	if res.Access.Token != "access-u1" || res.Refresh.UserID != "u1" {
		t.Fatalf("unexpected pair: %+v", res)
	}
	if got := res.Access.ExpiresAt.Sub(res.Access.IssuedAt); got != 30*24*time.Hour {
		t.Fatalf("expected remember-me lifetime, got %v", got)
	}
	if _, ok, _ := store.FindByValue(context.Background(), res.Refresh.Value); !ok {
		t.Fatal("expected refresh token persisted")
	}
}

func TestRunLoginIdentityError(t *testing.T) {
	boom := errors.New("users down")
	res := RunLogin(context.Background(), "alice", "pw", false, LoginDeps{
		Provider: fakeProvider{err: boom},
	})
	if res.Failure != LoginFailureIdentity || !errors.Is(res.Err, boom) {
		t.Fatalf("expected identity failure, got %+v", res)
	}
}

func TestRunRefreshRotates(t *testing.T) {
	ctx := context.Background()
	store := newStore()
	r1, err := store.Create(ctx, "u1")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	deps := RefreshDeps{RefreshStore: store, Claims: userClaims, IssueAccess: issueStub}
	res := RunRefresh(ctx, r1.Value, deps)
	if res.Failure != RefreshFailureNone {
		t.Fatalf("expected success, got %+v", res)
	}
	if res.Refresh.Value == r1.Value || res.UserID != "u1" || res.Access.Token != "access-u1" {
		t.Fatalf("unexpected rotation result: %+v", res)
	}

	again := RunRefresh(ctx, r1.Value, deps)
	if again.Failure != RefreshFailureRejected || !errors.Is(again.Err, refresh.ErrInvalidRefreshToken) {
		t.Fatalf("expected replay rejected, got %+v", again)
	}
}

func TestRunRefreshDiscardsReplacementWhenClaimsFail(t *testing.T) {
	ctx := context.Background()
	store := newStore()
	r1, _ := store.Create(ctx, "u1")

	var warned bool
	res := RunRefresh(ctx, r1.Value, RefreshDeps{
		RefreshStore: store,
		Claims: func(context.Context, string) (jwt.ClaimSet, error) {
			return nil, identity.ErrUserNotFound
		},
		IssueAccess: issueStub,
		Warn:        func(string, ...any) { warned = true },
	})
	if res.Failure != RefreshFailureClaims {
		t.Fatalf("expected claims failure, got %+v", res)
	}
	if warned {
		t.Fatal("memory invalidate should not warn")
	}
	if _, ok, _ := store.FindByValue(ctx, r1.Value); ok {
		t.Fatal("old value must stay consumed")
	}
}

func TestRunValidateOrdersRevocationFirst(t *testing.T) {
	decoded := false
	res := RunValidate("tok", true, ValidateDeps{
		IsRevoked: func(string) bool { return true },
		Decode: func(string, bool) (jwt.ClaimSet, time.Time, error) {
			decoded = true
			return nil, time.Time{}, nil
		},
	})
	if res.Failure != ValidateFailureRevoked || decoded {
		t.Fatalf("expected revoked without decoding, got %+v decoded=%v", res, decoded)
	}

	res = RunValidate("", true, ValidateDeps{})
	if res.Failure != ValidateFailureEmpty || !errors.Is(res.Err, jwt.ErrInvalidToken) {
		t.Fatalf("expected empty token rejected, got %+v", res)
	}
}

func TestRunValidateClassifiesExpiry(t *testing.T) {
	expired := errors.Join(jwt.ErrInvalidToken, jwt.ErrTokenExpired)
	res := RunValidate("tok", true, ValidateDeps{
		Decode: func(string, bool) (jwt.ClaimSet, time.Time, error) {
			return nil, time.Time{}, expired
		},
	})
	if res.Failure != ValidateFailureExpired {
		t.Fatalf("expected expired, got %+v", res)
	}
}

func TestUserIDFromClaimsFallsBackToSubject(t *testing.T) {
	if id, ok := UserIDFromClaims(jwt.ClaimSet{{Type: jwt.ClaimSubject, Value: "alice"}}); !ok || id != "alice" {
		t.Fatalf("expected sub fallback, got %q %v", id, ok)
	}
	if _, ok := UserIDFromClaims(jwt.ClaimSet{{Type: "role", Value: "admin"}}); ok {
		t.Fatal("expected no user id")
	}
}

func accessDecoder(userID string, exp time.Time) ValidateDeps {
	return ValidateDeps{
		IsRevoked: func(string) bool { return false },
		Decode: func(string, bool) (jwt.ClaimSet, time.Time, error) {
			return jwt.ClaimSet{{Type: jwt.ClaimUserID, Value: userID}}, exp, nil
		},
	}
}

func TestRunRefreshWithAccessRequiresSameUser(t *testing.T) {
	ctx := context.Background()
	store := newStore()
	bobs, _ := store.Create(ctx, "bob")

	revoked := false
	res := RunRefreshWithAccess(ctx, "alice-access", bobs.Value, RefreshDeps{
		RefreshStore: store,
		Claims:       userClaims,
		IssueAccess:  issueStub,
		Validate:     accessDecoder("alice", time.Now().Add(-time.Minute)),
		RevokeAccess: func(string, time.Time) bool { revoked = true; return true },
	})
	if res.Failure != RefreshFailureUserMismatch || revoked {
		t.Fatalf("expected mismatch without revocation, got %+v revoked=%v", res, revoked)
	}
	if _, ok, _ := store.FindByValue(ctx, bobs.Value); !ok {
		t.Fatal("mismatched refresh token must not be consumed")
	}
}

func TestRunRefreshWithAccessRevokesPresentedToken(t *testing.T) {
	ctx := context.Background()
	store := newStore()
	r1, _ := store.Create(ctx, "alice")
	exp := time.Now().Add(-time.Minute)

	var revokedToken string
	var revokedExp time.Time
	res := RunRefreshWithAccess(ctx, "alice-access", r1.Value, RefreshDeps{
		RefreshStore: store,
		Claims:       userClaims,
		IssueAccess:  issueStub,
		Validate:     accessDecoder("alice", exp),
		RevokeAccess: func(token string, at time.Time) bool {
			revokedToken, revokedExp = token, at
			return true
		},
	})
	if res.Failure != RefreshFailureNone || !res.RevokedAccess {
		t.Fatalf("expected success with revocation, got %+v", res)
	}
	if revokedToken != "alice-access" || !revokedExp.Equal(exp) {
		t.Fatalf("unexpected revocation %q at %v", revokedToken, revokedExp)
	}
}

func TestRunLogout(t *testing.T) {
	ctx := context.Background()
	store := newStore()
	r1, _ := store.Create(ctx, "alice")

	revocations := 0
	deps := LogoutDeps{
		RefreshStore: store,
		Validate:     accessDecoder("alice", time.Now().Add(time.Minute)),
		RevokeAccess: func(string, time.Time) bool { revocations++; return true },
	}
	res := RunLogout(ctx, "alice-access", r1.Value, deps)
	if res.Failure != LogoutFailureNone || res.RefreshTokenID != r1.ID || res.UserID != "alice" {
		t.Fatalf("unexpected logout result: %+v", res)
	}
	if revocations != 1 {
		t.Fatalf("expected one revocation, got %d", revocations)
	}
	if _, ok, _ := store.FindByValue(ctx, r1.Value); ok {
		t.Fatal("expected refresh token removed")
	}

	bobs, _ := store.Create(ctx, "bob")
	res = RunLogout(ctx, "alice-access", bobs.Value, deps)
	if res.Failure != LogoutFailureUserMismatch {
		t.Fatalf("expected mismatch, got %+v", res)
	}
}
