package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.ServerPort)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "HS256", cfg.Auth.Algorithm)
	assert.Equal(t, 30*time.Minute, cfg.Auth.TokenTTL)
	assert.Equal(t, 10, cfg.Auth.BcryptCost)
	assert.Equal(t, "local", cfg.Storage.Backend)
	assert.Equal(t, "site-notifications", cfg.MQ.Channel)
	assert.True(t, cfg.MQ.RabbitMQ.DeadLetter)
	assert.Equal(t, 5, cfg.MQ.PubSub.MaxDeliveryAttempts)
	assert.Equal(t, "public, max-age=86400", cfg.Storage.GCS.CacheControl)
	assert.NotEmpty(t, cfg.CORSOrigins)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "env-secret")
	t.Setenv("JWT_ALGORITHM", "hs512")
	t.Setenv("JWT_TTL", "2h")
	t.Setenv("DB_DRIVER", "POSTGRES")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "env-secret", cfg.Auth.JWTSecret)
	assert.Equal(t, "HS512", cfg.Auth.Algorithm)
	assert.Equal(t, 2*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 9090, cfg.ServerPort)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "site.yaml")
	content := []byte("jwt:\n  secret: from-file\nstorage:\n  backend: minio\n")
	require.NoError(t, os.WriteFile(path, content, 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.Auth.JWTSecret)
	assert.Equal(t, "minio", cfg.Storage.Backend)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := Config{
		Database: DatabaseConfig{Driver: "sqlite"},
		Auth:     AuthConfig{JWTSecret: "x", Algorithm: "HS256", TokenTTL: time.Minute},
	}
	require.NoError(t, base.Validate())

	noSecret := base
	noSecret.Auth.JWTSecret = ""
	assert.ErrorContains(t, noSecret.Validate(), "JWT_SECRET")

	badAlg := base
	badAlg.Auth.Algorithm = "RS256"
	assert.ErrorContains(t, badAlg.Validate(), "JWT_ALGORITHM")

	badDriver := base
	badDriver.Database.Driver = "mysql"
	assert.ErrorContains(t, badDriver.Validate(), "DB_DRIVER")
}
