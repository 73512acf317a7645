// Command gotoken-server serves the goToken HTTP API.
//
// Configuration is read from the file named by -config (optional) and from
// GOTOKEN_ environment variables, e.g.
//
//	GOTOKEN_JWT_SECRET=... GOTOKEN_SEED_USER_NAME=admin GOTOKEN_SEED_PASSWORD=... gotoken-server
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrEthical07/goToken/internal/config"
	"github.com/MrEthical07/goToken/internal/httpapi"
	"github.com/MrEthical07/goToken/metrics/export/prometheus"
)

func main() {
	configPath := flag.String("config", "", "path to a config file (yaml, json or toml)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(2)
	}

	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := newApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	routerCfg := httpapi.RouterConfig{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Renewal:        cfg.Server.Renewal,
	}
	if cfg.Server.Metrics {
		routerCfg.Metrics = prometheus.NewPrometheusExporter(app.engine).Handler()
	}
	handler := httpapi.NewHandler(app.engine, logger)
	if app.throttle != nil {
		handler.WithLoginThrottle(app.throttle)
	}
	router := httpapi.NewRouter(handler, routerCfg)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	if cfg.Refresh.PurgeInterval > 0 {
		go app.purgeLoop(ctx, cfg.Refresh.PurgeInterval)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", cfg.Server.Addr, "backend", cfg.Storage.Backend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			logger.Error("server failed", "error", err)
		}
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("forced shutdown", "error", err)
	}
	logger.Info("server stopped")
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
