package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Address())
	assert.Equal(t, BlobBackendMinIO, cfg.Storage.BlobBackend)
	assert.Equal(t, int64(100*1024*1024), cfg.Storage.MaxUploadBytes)
	assert.Equal(t, "/metrics", cfg.Metrics.PrometheusPath)
	assert.Equal(t, 12, cfg.Auth.BcryptCost)
	assert.True(t, cfg.Postgres.AutoMigrate)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("TREEDRIVE_API_PORT", "9090")
	t.Setenv("TREEDRIVE_BLOB_BACKEND", "LOCAL")
	t.Setenv("TREEDRIVE_UPLOAD_DIR", "/var/lib/treedrive")
	t.Setenv("TREEDRIVE_PRESIGN_TTL", "2m")
	t.Setenv("TREEDRIVE_CORS_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("TREEDRIVE_AUTH_BCRYPT_COST", "99")
	t.Setenv("POSTGRES_AUTO_MIGRATE", "no")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, BlobBackendLocal, cfg.Storage.BlobBackend)
	assert.Equal(t, "/var/lib/treedrive", cfg.Storage.UploadDir)
	assert.Equal(t, 2*time.Minute, cfg.Storage.PresignTTL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, 12, cfg.Auth.BcryptCost, "out-of-range cost falls back to default")
	assert.False(t, cfg.Postgres.AutoMigrate)
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	t.Setenv("TREEDRIVE_BLOB_BACKEND", "ftp")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown blob backend")
}

func TestValidateRequiresSecrets(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	cfg.Auth.AccessTokenSecret = ""
	assert.Error(t, cfg.Validate())
}

func TestPostgresDSN(t *testing.T) {
	p := PostgresConfig{Host: "db", Port: 5433, User: "u", Password: "p", Database: "d", SSLMode: "require"}
	assert.Equal(t, "postgres://u:p@db:5433/d?sslmode=require", p.DSN())
}
