package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	goToken "github.com/MrEthical07/goToken"
	"github.com/MrEthical07/goToken/identity"
	"github.com/MrEthical07/goToken/internal/config"
	"github.com/MrEthical07/goToken/internal/rate"
	"github.com/MrEthical07/goToken/migrations"
	"github.com/MrEthical07/goToken/password"
	"github.com/MrEthical07/goToken/refresh"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
)

type app struct {
	engine   *goToken.Engine
	throttle *rate.Limiter
	logger   *slog.Logger
	closers  []func()
}

// userStore is the Users repository of the selected backend plus the
// ability to seed an account.
type userStore interface {
	identity.Users
	create(ctx context.Context, u identity.User) error
}

type memoryUserStore struct{ *identity.MemoryUsers }

func (s memoryUserStore) create(_ context.Context, u identity.User) error { return s.Add(u) }

type postgresUserStore struct{ *identity.PostgresUsers }

func (s postgresUserStore) create(ctx context.Context, u identity.User) error { return s.Create(ctx, u) }

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *app, err error) {
	a := &app{logger: logger}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	hasher, err := password.NewHasher(password.DefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("password hasher: %w", err)
	}
	lockoutCfg := identity.LockoutConfig{Threshold: cfg.Lockout.Threshold, Duration: cfg.Lockout.Duration}

	builder := goToken.New().WithConfig(cfg.EngineConfig()).WithLogger(logger)
	if cfg.Audit.Enabled {
		builder.WithAuditSink(goToken.NewSlogSink(logger.With("stream", "audit")))
	}

	var (
		users   userStore
		lockout identity.Lockout
	)

	if cfg.Storage.RedisAddr != "" {
		client := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    []string{cfg.Storage.RedisAddr},
			Password: cfg.Storage.RedisPassword,
			DB:       cfg.Storage.RedisDB,
		})
		a.closers = append(a.closers, func() { _ = client.Close() })
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		lockout = identity.NewRedisLockout(client, lockoutCfg)
		if cfg.Server.LoginRateLimit > 0 {
			a.throttle = rate.New(client, rate.Config{MaxAttempts: cfg.Server.LoginRateLimit, Window: time.Minute})
		}
		if cfg.Storage.Backend == "redis" {
			builder.WithRedis(client)
		}
	}
	if lockout == nil {
		lockout = identity.NewMemoryLockout(lockoutCfg, nil)
	}

	switch cfg.Storage.Backend {
	case "postgres":
		db, err := sql.Open("pgx", cfg.Storage.DatabaseDSN)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		a.closers = append(a.closers, func() { _ = db.Close() })
		if err := migrations.Up(ctx, db); err != nil {
			return nil, err
		}
		builder.WithRefreshRepository(refresh.NewPostgresRepository(db))

		pool, err := connectPool(ctx, cfg.Storage.DatabaseDSN, logger)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, pool.Close)
		users = postgresUserStore{identity.NewPostgresUsers(pool)}
	default:
		users = memoryUserStore{identity.NewMemoryUsers()}
	}

	if err := seedUser(ctx, cfg.Seed, users, hasher, logger); err != nil {
		return nil, err
	}

	engine, err := builder.WithIdentityProvider(identity.NewAuthenticator(users, lockout, hasher)).Build()
	if err != nil {
		return nil, fmt.Errorf("build engine: %w", err)
	}
	a.engine = engine
	a.closers = append(a.closers, engine.Close)
	return a, nil
}

// connectPool retries while the database comes up.
func connectPool(ctx context.Context, dsn string, logger *slog.Logger) (*pgxpool.Pool, error) {
	var lastErr error
	for attempt := 1; attempt <= 5; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		pool, err := pgxpool.New(attemptCtx, dsn)
		if err == nil {
			if err = pool.Ping(attemptCtx); err == nil {
				cancel()
				return pool, nil
			}
			pool.Close()
		}
		cancel()
		lastErr = err
		logger.Warn("database not ready", "attempt", attempt, "error", err)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(attempt) * 2 * time.Second):
		}
	}
	return nil, fmt.Errorf("connect database: %w", lastErr)
}

func seedUser(ctx context.Context, seed config.SeedConfig, users userStore, hasher *password.Hasher, logger *slog.Logger) error {
	if seed.UserName == "" {
		return nil
	}

	hash, err := hasher.Hash(seed.Password)
	if err != nil {
		return fmt.Errorf("hash seed password: %w", err)
	}
	err = users.create(ctx, identity.User{
		ID:           uuid.NewString(),
		UserName:     seed.UserName,
		Email:        seed.Email,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	})
	switch {
	case errors.Is(err, identity.ErrUserExists):
		logger.Info("seed user already present", "user_name", seed.UserName)
	case err != nil:
		return fmt.Errorf("seed user: %w", err)
	default:
		logger.Info("seed user created", "user_name", seed.UserName)
	}
	return nil
}

func (a *app) purgeLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := a.engine.PurgeExpiredRefreshTokens(ctx)
			if err != nil {
				a.logger.Warn("purge expired refresh tokens failed", "error", err)
				continue
			}
			if n > 0 {
				a.logger.Debug("purged expired refresh tokens", "count", n)
			}
		}
	}
}

// Close releases resources in reverse acquisition order.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
