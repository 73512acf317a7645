package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	goToken "github.com/MrEthical07/goToken"
	"github.com/MrEthical07/goToken/internal/rate"
	"github.com/MrEthical07/goToken/middleware"
	"github.com/go-playground/validator/v10"
)

const maxBodyBytes = 1 << 20

// LoginThrottle limits failed logins per client address. *rate.Limiter
// satisfies it.
type LoginThrottle interface {
	Check(ctx context.Context, ip string) error
	Fail(ctx context.Context, ip string) error
	Reset(ctx context.Context, ip string) error
}

type Handler struct {
	engine   *goToken.Engine
	throttle LoginThrottle
	validate *validator.Validate
	logger   *slog.Logger
}

func NewHandler(engine *goToken.Engine, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		engine:   engine,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger.With("component", "httpapi"),
	}
}

// WithLoginThrottle enables per-address login throttling. Throttle backend
// failures are logged and the login proceeds.
func (h *Handler) WithLoginThrottle(t LoginThrottle) *Handler {
	h.throttle = t
	return h
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	return h.validate.Struct(dst)
}

type loginRequest struct {
	UserName   string `json:"username" validate:"required,max=320"`
	Password   string `json:"password" validate:"required,max=1024"`
	RememberMe bool   `json:"remember_me"`
}

type tokenResponse struct {
	UserID           string    `json:"user_id,omitempty"`
	TokenType        string    `json:"token_type"`
	AccessToken      string    `json:"access_token"`
	ExpiresAt        time.Time `json:"expires_at"`
	RefreshToken     string    `json:"refresh_token"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

func newTokenResponse(userID string, access goToken.AccessToken, refresh goToken.RefreshToken) tokenResponse {
	return tokenResponse{
		UserID:           userID,
		TokenType:        "Bearer",
		AccessToken:      access.Token,
		ExpiresAt:        access.ExpiresAt,
		RefreshToken:     refresh.Value,
		RefreshExpiresAt: refresh.ExpiresAt,
	}
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := h.decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	ip := clientIP(r)
	if h.throttle != nil {
		if err := h.throttle.Check(r.Context(), ip); err != nil {
			if errors.Is(err, rate.ErrRateLimited) {
				h.logger.Info("login throttled", "ip", ip)
				writeError(w, http.StatusTooManyRequests, "Too many attempts")
				return
			}
			h.logger.Warn("login throttle check failed", "error", err)
		}
	}

	res, err := h.engine.Login(r.Context(), goToken.LoginRequest{
		UserName:   req.UserName,
		Password:   req.Password,
		RememberMe: req.RememberMe,
	})
	if err != nil {
		h.logger.Error("login failed", "error", err)
		if errors.Is(err, goToken.ErrIdentityUnavailable) || errors.Is(err, goToken.ErrStoreUnavailable) {
			writeError(w, http.StatusServiceUnavailable, "Service unavailable")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to login")
		return
	}

	h.recordAttempt(r.Context(), ip, res.Status == goToken.LoginSuccess)

	switch res.Status {
	case goToken.LoginSuccess:
		writeJSON(w, http.StatusOK, newTokenResponse(res.UserID, res.AccessToken, res.RefreshToken))
	case goToken.LoginLockedOut:
		h.logger.Info("login rejected", "status", res.Status.String(), "user_id", res.UserID)
		writeError(w, http.StatusLocked, "Account temporarily locked")
	case goToken.LoginNotAllowed:
		h.logger.Info("login rejected", "status", res.Status.String(), "user_id", res.UserID)
		writeError(w, http.StatusForbidden, "Account disabled")
	default:
		// not found and bad password share one answer
		h.logger.Info("login rejected", "status", res.Status.String())
		writeError(w, http.StatusUnauthorized, "Invalid username or password")
	}
}

func (h *Handler) recordAttempt(ctx context.Context, ip string, success bool) {
	if h.throttle == nil {
		return
	}
	var err error
	if success {
		err = h.throttle.Reset(ctx, ip)
	} else {
		err = h.throttle.Fail(ctx, ip)
	}
	if err != nil {
		h.logger.Warn("login throttle update failed", "error", err)
	}
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required,max=512"`
	AccessToken  string `json:"access_token" validate:"omitempty,max=8192"`
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := h.decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	var (
		access  goToken.AccessToken
		refresh goToken.RefreshToken
		err     error
	)
	if req.AccessToken != "" {
		access, refresh, err = h.engine.RefreshWithAccessToken(r.Context(), req.AccessToken, req.RefreshToken)
	} else {
		access, refresh, err = h.engine.Refresh(r.Context(), req.RefreshToken)
	}
	if err != nil {
		h.writeTokenError(w, "refresh", err)
		return
	}

	writeJSON(w, http.StatusOK, newTokenResponse(refresh.UserID, access, refresh))
}

type logoutRequest struct {
	RefreshToken string `json:"refresh_token" validate:"omitempty,max=512"`
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	token, ok := middleware.BearerToken(r.Header.Get("Authorization"))
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req logoutRequest
	if r.ContentLength != 0 {
		if err := h.decode(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	if err := h.engine.Logout(r.Context(), token, req.RefreshToken); err != nil {
		h.writeTokenError(w, "logout", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type claimResponse struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type meResponse struct {
	UserID string          `json:"user_id"`
	Claims []claimResponse `json:"claims"`
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	auth, ok := middleware.AuthResultFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	resp := meResponse{UserID: auth.UserID, Claims: make([]claimResponse, 0, len(auth.Claims))}
	for _, c := range auth.Claims {
		resp.Claims = append(resp.Claims, claimResponse{Type: c.Type, Value: c.Value})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) writeTokenError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, goToken.ErrInvalidRefreshToken),
		errors.Is(err, goToken.ErrInvalidToken),
		errors.Is(err, goToken.ErrRevokedToken):
		h.logger.Info(op+" rejected", "kind", errorKind(err))
		writeError(w, http.StatusUnauthorized, "Unauthorized")
	case errors.Is(err, goToken.ErrStoreUnavailable), errors.Is(err, goToken.ErrIdentityUnavailable):
		h.logger.Error(op+" failed", "kind", errorKind(err), "error", err)
		writeError(w, http.StatusServiceUnavailable, "Service unavailable")
	default:
		h.logger.Error(op+" failed", "kind", errorKind(err), "error", err)
		writeError(w, http.StatusInternalServerError, "Internal error")
	}
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, goToken.ErrRevokedToken):
		return "revoked"
	case errors.Is(err, goToken.ErrTokenExpired):
		return "expired"
	case errors.Is(err, goToken.ErrInvalidToken):
		return "invalid_token"
	case errors.Is(err, goToken.ErrInvalidRefreshToken):
		return "invalid_refresh_token"
	case errors.Is(err, goToken.ErrStoreUnavailable):
		return "store_unavailable"
	case errors.Is(err, goToken.ErrIdentityUnavailable):
		return "identity_unavailable"
	default:
		return "internal"
	}
}
