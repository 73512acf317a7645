// Package config loads the gotoken-server configuration from an optional
// file and GOTOKEN_ environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	goToken "github.com/MrEthical07/goToken"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

const envPrefix = "GOTOKEN"

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Storage    StorageConfig    `mapstructure:"storage"`
	JWT        JWTConfig        `mapstructure:"jwt"`
	Refresh    RefreshConfig    `mapstructure:"refresh"`
	Revocation RevocationConfig `mapstructure:"revocation"`
	Lockout    LockoutConfig    `mapstructure:"lockout"`
	Audit      AuditConfig      `mapstructure:"audit"`
	Seed       SeedConfig       `mapstructure:"seed"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr" validate:"required,hostname_port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gte=0"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	LogLevel        string        `mapstructure:"log_level" validate:"oneof=debug info warn error"`
	Renewal         bool          `mapstructure:"renewal"`
	// LoginRateLimit is the failed-login budget per client address per
	// minute. It applies only when Redis is configured; 0 disables it.
	LoginRateLimit  int           `mapstructure:"login_rate_limit" validate:"gte=0"`
	Metrics         bool          `mapstructure:"metrics"`
}

type StorageConfig struct {
	Backend       string `mapstructure:"backend" validate:"oneof=memory redis postgres"`
	RedisAddr     string `mapstructure:"redis_addr" validate:"required_if=Backend redis,omitempty,hostname_port"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db" validate:"gte=0,lte=16"`
	DatabaseDSN   string `mapstructure:"database_dsn" validate:"required_if=Backend postgres"`
}

type JWTConfig struct {
	Secret        string        `mapstructure:"secret" validate:"required,min=32"`
	Issuer        string        `mapstructure:"issuer"`
	Audience      string        `mapstructure:"audience"`
	AccessTTL     time.Duration `mapstructure:"access_ttl" validate:"gt=0"`
	RememberMeTTL time.Duration `mapstructure:"remember_me_ttl" validate:"gtefield=AccessTTL"`
}

type RefreshConfig struct {
	TTL         time.Duration `mapstructure:"ttl" validate:"gt=0"`
	RedisPrefix string        `mapstructure:"redis_prefix" validate:"required,excludesall={}"`
	// PurgeInterval drives the expired-token purge loop; 0 disables it.
	PurgeInterval time.Duration `mapstructure:"purge_interval" validate:"gte=0"`
}

type RevocationConfig struct {
	SweepInterval time.Duration `mapstructure:"sweep_interval" validate:"gt=0"`
	Shards        int           `mapstructure:"shards" validate:"gt=0,lte=4096"`
}

type LockoutConfig struct {
	Threshold int           `mapstructure:"threshold" validate:"gt=0"`
	Duration  time.Duration `mapstructure:"duration" validate:"gt=0"`
}

type AuditConfig struct {
	Enabled    bool `mapstructure:"enabled"`
	BufferSize int  `mapstructure:"buffer_size" validate:"gt=0"`
}

// SeedConfig creates one account at startup. It is meant for the memory
// backend and local development.
type SeedConfig struct {
	UserName string `mapstructure:"user_name"`
	Email    string `mapstructure:"email" validate:"omitempty,email"`
	Password string `mapstructure:"password" validate:"required_with=UserName,omitempty,min=8"`
}

func setDefaults(v *viper.Viper) {
	engine := goToken.DefaultConfig()

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.renewal", false)
	v.SetDefault("server.metrics", true)
	v.SetDefault("server.login_rate_limit", 20)

	v.SetDefault("storage.backend", "memory")
	v.SetDefault("storage.redis_addr", "")
	v.SetDefault("storage.redis_password", "")
	v.SetDefault("storage.redis_db", 0)
	v.SetDefault("storage.database_dsn", "")

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.issuer", "")
	v.SetDefault("jwt.audience", "")
	v.SetDefault("jwt.access_ttl", engine.JWT.AccessTTL)
	v.SetDefault("jwt.remember_me_ttl", engine.JWT.RememberMeTTL)

	v.SetDefault("refresh.ttl", engine.Refresh.TTL)
	v.SetDefault("refresh.redis_prefix", engine.Refresh.RedisPrefix)
	v.SetDefault("refresh.purge_interval", time.Hour)

	v.SetDefault("revocation.sweep_interval", engine.Revocation.SweepInterval)
	v.SetDefault("revocation.shards", engine.Revocation.Shards)

	v.SetDefault("lockout.threshold", 7)
	v.SetDefault("lockout.duration", 5*time.Minute)

	v.SetDefault("audit.enabled", false)
	v.SetDefault("audit.buffer_size", engine.Audit.BufferSize)

	v.SetDefault("seed.user_name", "")
	v.SetDefault("seed.email", "")
	v.SetDefault("seed.password", "")
}

// Load reads path when it is not empty, applies GOTOKEN_ environment
// overrides (GOTOKEN_JWT_SECRET, GOTOKEN_STORAGE_BACKEND, ...) and
// validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return nil, fmt.Errorf("invalid config: %s", describe(verrs))
		}
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func describe(errs validator.ValidationErrors) string {
	parts := make([]string, 0, len(errs))
	for _, fe := range errs {
		parts = append(parts, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}

// EngineConfig maps the server configuration onto the library one.
func (c *Config) EngineConfig() goToken.Config {
	cfg := goToken.DefaultConfig()

	cfg.JWT.SecretKey = []byte(c.JWT.Secret)
	cfg.JWT.Issuer = c.JWT.Issuer
	cfg.JWT.Audience = c.JWT.Audience
	cfg.JWT.ValidateIssuer = c.JWT.Issuer != ""
	cfg.JWT.ValidateAudience = c.JWT.Audience != ""
	cfg.JWT.AccessTTL = c.JWT.AccessTTL
	cfg.JWT.RememberMeTTL = c.JWT.RememberMeTTL

	cfg.Refresh.TTL = c.Refresh.TTL
	cfg.Refresh.RedisPrefix = c.Refresh.RedisPrefix

	cfg.Revocation.SweepInterval = c.Revocation.SweepInterval
	cfg.Revocation.Shards = c.Revocation.Shards

	cfg.Audit.Enabled = c.Audit.Enabled
	cfg.Audit.BufferSize = c.Audit.BufferSize

	cfg.Metrics.Enabled = c.Server.Metrics
	cfg.Metrics.EnableLatencyHistograms = c.Server.Metrics
	return cfg
}
