package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestLoadDefaultsWithEnvSecret(t *testing.T) {
	t.Setenv("GOTOKEN_JWT_SECRET", testSecret)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "memory", cfg.Storage.Backend)
	assert.Equal(t, 30*time.Minute, cfg.JWT.AccessTTL)
	assert.Equal(t, 30*24*time.Hour, cfg.JWT.RememberMeTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.Refresh.TTL)
	assert.Equal(t, 7, cfg.Lockout.Threshold)

	engine := cfg.EngineConfig()
	require.NoError(t, engine.Validate())
	assert.Equal(t, []byte(testSecret), engine.JWT.SecretKey)
	assert.False(t, engine.JWT.ValidateIssuer)
}

func TestLoadFileWithEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gotoken.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: "127.0.0.1:9090"
  log_level: debug
storage:
  backend: redis
  redis_addr: "localhost:6379"
jwt:
  secret: "`+testSecret+`"
  issuer: gotoken
  access_ttl: 15m
`), 0o600))
	t.Setenv("GOTOKEN_JWT_ISSUER", "from-env")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9090", cfg.Server.Addr)
	assert.Equal(t, "debug", cfg.Server.LogLevel)
	assert.Equal(t, "redis", cfg.Storage.Backend)
	assert.Equal(t, 15*time.Minute, cfg.JWT.AccessTTL)
	assert.Equal(t, "from-env", cfg.JWT.Issuer)
	assert.True(t, cfg.EngineConfig().JWT.ValidateIssuer)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing secret", map[string]string{}},
		{"short secret", map[string]string{"GOTOKEN_JWT_SECRET": "short"}},
		{"unknown backend", map[string]string{"GOTOKEN_JWT_SECRET": testSecret, "GOTOKEN_STORAGE_BACKEND": "mongo"}},
		{"redis without addr", map[string]string{"GOTOKEN_JWT_SECRET": testSecret, "GOTOKEN_STORAGE_BACKEND": "redis"}},
		{"postgres without dsn", map[string]string{"GOTOKEN_JWT_SECRET": testSecret, "GOTOKEN_STORAGE_BACKEND": "postgres"}},
		{"braced redis prefix", map[string]string{"GOTOKEN_JWT_SECRET": testSecret, "GOTOKEN_REFRESH_REDIS_PREFIX": "{art}"}},
		{"seed without password", map[string]string{"GOTOKEN_JWT_SECRET": testSecret, "GOTOKEN_SEED_USER_NAME": "admin"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load("")
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Setenv("GOTOKEN_JWT_SECRET", testSecret)

	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
