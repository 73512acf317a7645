package httpapi

import (
	"net"
	"net/http"

	goToken "github.com/MrEthical07/goToken"
	"github.com/MrEthical07/goToken/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type RouterConfig struct {
	AllowedOrigins []string
	// Metrics serves GET /metrics when non-nil.
	Metrics http.Handler
	// Renewal makes the guarded routes return a fresh access token in the
	// Authorization response header.
	Renewal bool
}

func NewRouter(handler *Handler, cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(clientMetadata)
	if len(cfg.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			ExposedHeaders:   []string{"Authorization"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("OK"))
	})
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}

	guardOpts := []middleware.Option{
		middleware.WithRejectHook(func(r *http.Request, err error) {
			handler.logger.Info("request rejected", "path", r.URL.Path, "kind", errorKind(err))
		}),
	}
	if cfg.Renewal {
		guardOpts = append(guardOpts, middleware.WithRenewal())
	}

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Post("/login", handler.Login)
		r.Post("/refresh", handler.Refresh)
		r.Post("/logout", handler.Logout)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Guard(handler.engine, guardOpts...))
			r.Get("/me", handler.Me)
		})
	})

	return r
}

// clientMetadata copies the caller address and user agent into the
// request context for audit events.
func clientMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := goToken.WithClientIP(r.Context(), clientIP(r))
		ctx = goToken.WithUserAgent(ctx, r.UserAgent())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
