package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firmdocs/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Port)
	assert.Equal(t, "s3", cfg.Storage.Provider)
	assert.Equal(t, int64(25<<20), cfg.Storage.MaxFileSizeBytes())
	assert.Contains(t, cfg.Storage.AllowedMimeTypes, "application/pdf")
	assert.Equal(t, 24*time.Hour, cfg.Idempotency.TokenTTL)
	assert.Equal(t, 2*time.Minute, cfg.Idempotency.DuplicateWindow)
	assert.Equal(t, 3, cfg.Audit.AppendRetries)
	assert.Equal(t, 100, cfg.Audit.PageSize)
	assert.Equal(t, 50, cfg.Versions.PageSize)
	assert.Equal(t, "noop", cfg.Alert.Provider)
	assert.Empty(t, cfg.Alert.Recipients)
	assert.False(t, cfg.Retention.Enabled)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("FIRMDOCS_STORAGE_PROVIDER", "MinIO")
	t.Setenv("FIRMDOCS_AUDIT_APPEND_RETRIES", "5")
	t.Setenv("FIRMDOCS_IDEMPOTENCY_DUPLICATE_WINDOW", "30s")
	t.Setenv("FIRMDOCS_ALERT_RECIPIENTS", "ops@firm.example, ,cto@firm.example")
	t.Setenv("FIRMDOCS_SERVER_CORS_ORIGINS", "https://app.firm.example")
	t.Setenv("FIRMDOCS_VERSIONS_PAGE_SIZE", "10")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "minio", cfg.Storage.Provider)
	assert.Equal(t, 5, cfg.Audit.AppendRetries)
	assert.Equal(t, 30*time.Second, cfg.Idempotency.DuplicateWindow)
	assert.Equal(t, []string{"ops@firm.example", "cto@firm.example"}, cfg.Alert.Recipients)
	assert.Equal(t, []string{"https://app.firm.example"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 10, cfg.Versions.PageSize)
	assert.Equal(t, 100, cfg.Audit.PageSize)
}

func TestLoad_PortFallback(t *testing.T) {
	t.Setenv("PORT", "9000")
	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Server.Port)

	t.Setenv("FIRMDOCS_SERVER_PORT", ":7000")
	cfg, err = config.Load()
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.Server.Port)
}

func TestLoad_Rejects(t *testing.T) {
	t.Run("storage provider", func(t *testing.T) {
		t.Setenv("FIRMDOCS_STORAGE_PROVIDER", "gcs")
		_, err := config.Load()
		assert.ErrorContains(t, err, "gcs")
	})
	t.Run("audit retries", func(t *testing.T) {
		t.Setenv("FIRMDOCS_AUDIT_APPEND_RETRIES", "0")
		_, err := config.Load()
		assert.ErrorContains(t, err, "append_retries")
	})
	t.Run("versions page size", func(t *testing.T) {
		t.Setenv("FIRMDOCS_VERSIONS_PAGE_SIZE", "0")
		_, err := config.Load()
		assert.ErrorContains(t, err, "versions.page_size")
	})
}

func TestDBConfig_DSN(t *testing.T) {
	d := config.DBConfig{Host: "db", Port: 5432, User: "u", Password: "p", Name: "n", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p@db:5432/n?sslmode=disable", d.DSN())
}
