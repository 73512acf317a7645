package goToken

import (
	"fmt"
	"time"

	"github.com/MrEthical07/goToken/jwt"
	"github.com/MrEthical07/goToken/refresh"
	"github.com/MrEthical07/goToken/revocation"
)

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig holds the symmetric signing key, the claim validation toggles
// and the access token lifetimes.
type JWTConfig struct {
	SecretKey          []byte
	Issuer             string
	Audience           string
	ValidateIssuer     bool
	ValidateAudience   bool
	ValidateSigningKey bool

	AccessTTL     time.Duration
	RememberMeTTL time.Duration
}

/*
====================================
REFRESH CONFIG
====================================
*/

// RefreshConfig controls refresh token lifetime and the Redis key prefix
// used when the builder creates the repository from a Redis client.
type RefreshConfig struct {
	TTL         time.Duration
	RedisPrefix string
}

/*
====================================
REVOCATION CONFIG
====================================
*/

// RevocationConfig controls the in-process revocation cache.
//
// MinTTL is the retention applied to tokens that are already past their
// expiry when invalidated. FallbackTTL is used when the expiry of an
// invalidated token cannot be read.
type RevocationConfig struct {
	SweepInterval time.Duration
	Shards        int
	MinTTL        time.Duration
	FallbackTTL   time.Duration
}

/*
====================================
AUDIT CONFIG
====================================
*/

type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

/*
====================================
METRICS CONFIG
====================================
*/

type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
ROOT CONFIG
====================================
*/

// Config is the complete engine configuration. Start from DefaultConfig
// and override fields; Builder.Build validates it once.
type Config struct {
	JWT        JWTConfig
	Refresh    RefreshConfig
	Revocation RevocationConfig
	Audit      AuditConfig
	Metrics    MetricsConfig
}

// DefaultConfig returns the defaults: 30 minute access tokens, 30 day
// remember-me tokens, 7 day refresh tokens and a 60 second sweep. The
// signing key is left empty and must be supplied.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			ValidateSigningKey: true,
			AccessTTL:          30 * time.Minute,
			RememberMeTTL:      30 * 24 * time.Hour,
		},
		Refresh: RefreshConfig{
			TTL:         refresh.DefaultTTL,
			RedisPrefix: refresh.DefaultRedisPrefix,
		},
		Revocation: RevocationConfig{
			SweepInterval: revocation.DefaultSweepInterval,
			Shards:        revocation.DefaultShards,
			MinTTL:        time.Minute,
			FallbackTTL:   30 * time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: false,
		},
	}
}

// Validate reports the first problem found in c, wrapped in
// ErrConfiguration.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: nil config", ErrConfiguration)
	}

	if len(c.JWT.SecretKey) == 0 {
		return fmt.Errorf("%w: JWT.SecretKey is required", ErrConfiguration)
	}
	if c.JWT.ValidateSigningKey && len(c.JWT.SecretKey) < jwt.MinSigningKeyLength {
		return fmt.Errorf("%w: JWT.SecretKey must be at least %d bytes", ErrConfiguration, jwt.MinSigningKeyLength)
	}
	if c.JWT.ValidateIssuer && c.JWT.Issuer == "" {
		return fmt.Errorf("%w: JWT.Issuer is required when ValidateIssuer is set", ErrConfiguration)
	}
	if c.JWT.ValidateAudience && c.JWT.Audience == "" {
		return fmt.Errorf("%w: JWT.Audience is required when ValidateAudience is set", ErrConfiguration)
	}
	if c.JWT.AccessTTL <= 0 {
		return fmt.Errorf("%w: JWT.AccessTTL must be > 0", ErrConfiguration)
	}
	if c.JWT.RememberMeTTL <= 0 {
		return fmt.Errorf("%w: JWT.RememberMeTTL must be > 0", ErrConfiguration)
	}

	if c.Refresh.TTL <= 0 {
		return fmt.Errorf("%w: Refresh.TTL must be > 0", ErrConfiguration)
	}

	if c.Revocation.SweepInterval <= 0 {
		return fmt.Errorf("%w: Revocation.SweepInterval must be > 0", ErrConfiguration)
	}
	if c.Revocation.Shards < 0 {
		return fmt.Errorf("%w: Revocation.Shards must be >= 0", ErrConfiguration)
	}
	if c.Revocation.MinTTL <= 0 || c.Revocation.FallbackTTL <= 0 {
		return fmt.Errorf("%w: Revocation.MinTTL and FallbackTTL must be > 0", ErrConfiguration)
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return fmt.Errorf("%w: Audit.BufferSize must be > 0 when audit is enabled", ErrConfiguration)
	}

	return nil
}

func cloneConfig(c Config) Config {
	out := c
	if c.JWT.SecretKey != nil {
		out.JWT.SecretKey = append([]byte(nil), c.JWT.SecretKey...)
	}
	return out
}
