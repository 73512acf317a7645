package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	goToken "github.com/MrEthical07/goToken"
)

func newEngine(t *testing.T) *goToken.Engine {
	t.Helper()

	cfg := goToken.DefaultConfig()
	cfg.JWT.SecretKey = []byte("0123456789abcdef0123456789abcdef")
	engine, err := goToken.New().WithConfig(cfg).Build()
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine
}

func issue(t *testing.T, engine *goToken.Engine) string {
	t.Helper()

	access, err := engine.GenerateAccessToken(goToken.ClaimSet{
		{Type: goToken.ClaimSubject, Value: "alice"},
		{Type: goToken.ClaimUserID, Value: "u1"},
	}, false)
	if err != nil {
		t.Fatalf("GenerateAccessToken failed: %v", err)
	}
	return access.Token
}

func protected(t *testing.T, engine *goToken.Engine, opts ...Option) (http.Handler, *AuthResult) {
	t.Helper()

	var seen AuthResult
	h := Guard(engine, opts...)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		res, ok := AuthResultFromContext(r.Context())
		if !ok {
			t.Error("expected auth result in context")
			return
		}
		seen = *res
		w.WriteHeader(http.StatusNoContent)
	}))
	return h, &seen
}

func TestGuardAcceptsValidToken(t *testing.T) {
	engine := newEngine(t)
	token := issue(t, engine)
	h, seen := protected(t, engine)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if seen.UserID != "u1" || seen.Token != token {
		t.Fatalf("unexpected auth result: %+v", seen)
	}
	if rec.Header().Get("Authorization") != "" {
		t.Fatal("renewal header set without WithRenewal")
	}
}

func TestGuardRejects(t *testing.T) {
	engine := newEngine(t)
	revoked := issue(t, engine)
	if err := engine.Invalidate(context.Background(), revoked); err != nil {
		t.Fatalf("Invalidate failed: %v", err)
	}

	var rejections []error
	h, _ := protected(t, engine, WithRejectHook(func(_ *http.Request, err error) {
		rejections = append(rejections, err)
	}))

	for name, header := range map[string]string{
		"missing": "",
		"scheme":  "Basic abc",
		"empty":   "Bearer ",
		"garbage": "Bearer not.a.jwt",
		"revoked": "Bearer " + revoked,
	} {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401, got %d", name, rec.Code)
		}
	}

	sawRevoked := false
	for _, err := range rejections {
		if errors.Is(err, goToken.ErrRevokedToken) {
			sawRevoked = true
		}
	}
	if len(rejections) != 5 || !sawRevoked {
		t.Fatalf("expected 5 rejections including a revoked one, got %v", rejections)
	}
}

func TestGuardRenewal(t *testing.T) {
	engine := newEngine(t)
	token := issue(t, engine)
	h, _ := protected(t, engine, WithRenewal())

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	renewed, ok := BearerToken(rec.Header().Get("Authorization"))
	if !ok || renewed == token {
		t.Fatalf("expected a fresh token in the response header, got %q", rec.Header().Get("Authorization"))
	}
	claims, err := engine.ValidateAccessToken(context.Background(), renewed)
	if err != nil {
		t.Fatalf("renewed token invalid: %v", err)
	}
	if uid, _ := claims.First(goToken.ClaimUserID); uid != "u1" {
		t.Fatalf("renewed token lost claims: %v", claims)
	}
}
