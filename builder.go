package goToken

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MrEthical07/goToken/identity"
	internalaudit "github.com/MrEthical07/goToken/internal/audit"
	"github.com/MrEthical07/goToken/jwt"
	"github.com/MrEthical07/goToken/refresh"
	"github.com/MrEthical07/goToken/revocation"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an Engine. Configure it during initialization and call
// Build exactly once.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	repository refresh.Repository
	provider   identity.Provider
	claims     identity.ClaimsResolver
	auditSink  AuditSink
	logger     *slog.Logger
	now        func() time.Time

	built bool
}

func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis stores refresh tokens in Redis under Config.Refresh.RedisPrefix.
// WithRefreshRepository takes precedence.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

func (b *Builder) WithRefreshRepository(repo refresh.Repository) *Builder {
	b.repository = repo
	return b
}

// WithIdentityProvider sets the login collaborator. When p also implements
// identity.ClaimsResolver and no resolver was set explicitly, it is used to
// rebuild claims on refresh.
func (b *Builder) WithIdentityProvider(p identity.Provider) *Builder {
	b.provider = p
	return b
}

func (b *Builder) WithClaimsResolver(r identity.ClaimsResolver) *Builder {
	b.claims = r
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// WithClock replaces time.Now for the codec, the revocation cache and the
// refresh store.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Build validates the configuration and starts the engine's background
// workers. The returned engine must be closed.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	now := b.now
	if now == nil {
		now = time.Now
	}
	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "goToken")

	codec, err := jwt.NewCodec(jwt.Config{
		Secret:             cfg.JWT.SecretKey,
		Issuer:             cfg.JWT.Issuer,
		Audience:           cfg.JWT.Audience,
		ValidateIssuer:     cfg.JWT.ValidateIssuer,
		ValidateAudience:   cfg.JWT.ValidateAudience,
		ValidateSigningKey: cfg.JWT.ValidateSigningKey,
		Now:                now,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	repo := b.repository
	switch {
	case repo != nil:
	case b.redis != nil:
		repo = refresh.NewRedisRepository(b.redis, cfg.Refresh.RedisPrefix)
	default:
		logger.Warn("no refresh repository configured, refresh tokens are kept in process memory")
		repo = refresh.NewMemoryRepository()
	}

	claims := b.claims
	if claims == nil {
		if resolver, ok := b.provider.(identity.ClaimsResolver); ok {
			claims = resolver
		}
	}

	metrics := NewMetrics(cfg.Metrics)

	e := &Engine{
		config:   cfg,
		codec:    codec,
		provider: b.provider,
		claims:   claims,
		metrics:  metrics,
		logger:   logger,
		now:      now,
	}
	e.refresh = refresh.NewStore(repo, refresh.Config{TTL: cfg.Refresh.TTL, Now: now})
	e.revoked = revocation.New(revocation.Config{
		Shards:        cfg.Revocation.Shards,
		SweepInterval: cfg.Revocation.SweepInterval,
		Now:           now,
		OnSweep: func(removed int) {
			metrics.Add(MetricRevocationSwept, uint64(removed))
		},
	})
	e.audit = internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Audit.Enabled || b.auditSink != nil,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink)
	e.flows = e.buildFlowDeps()

	b.built = true
	return e, nil
}
