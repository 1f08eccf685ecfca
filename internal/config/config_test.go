package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5000, cfg.Server.Port)
	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, 50, cfg.Database.HistoryLimit)
	assert.Equal(t, filepath.Join("data", "chat_history.db"), filepath.Clean(cfg.Database.SQLitePath()))
	assert.Equal(t, "anthropic", cfg.LLM.DefaultProvider)
	assert.Equal(t, 4096, cfg.LLM.MaxTokens)
	assert.Equal(t, "claude-3-7-sonnet-20250219", cfg.LLM.Anthropic.Model)
	assert.Equal(t, int64(32<<20), cfg.Upload.MaxBytes)
	assert.Contains(t, cfg.Upload.AllowedExtensions, "docx")
	assert.Len(t, cfg.Upload.AllowedExtensions, 15)
	assert.Equal(t, 300*time.Second, cfg.Backup.Interval)
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := []byte(`
server:
  port: 8080
  env: development
database:
  driver: postgres
  history_limit: 20
backup:
  backend: local
  interval: 1m
`)
	require.NoError(t, os.WriteFile(path, yaml, 0o600))

	t.Setenv("CONFIG_PATH", path)
	t.Setenv("ANTHROPIC_API_KEY", "sk-test")
	t.Setenv("GCS_BUCKET_NAME", "chat-backups")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.False(t, cfg.Server.Production())
	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, 20, cfg.Database.HistoryLimit)
	assert.Equal(t, "local", cfg.Backup.Backend)
	assert.Equal(t, time.Minute, cfg.Backup.Interval)
	assert.Equal(t, "sk-test", cfg.LLM.Anthropic.APIKey)
	assert.Equal(t, "chat-backups", cfg.Backup.Bucket)
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			Database: DatabaseConfig{Driver: DriverSQLite, HistoryLimit: 50},
			Backup:   BackupConfig{Backend: "gcs"},
		}
	}

	cfg := base()
	assert.NoError(t, cfg.Validate())

	cfg = base()
	cfg.Database.Driver = "oracle"
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Backup.Backend = "s3"
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Database.HistoryLimit = 0
	assert.Error(t, cfg.Validate())
}

func TestPostgresDSN(t *testing.T) {
	c := PostgresConfig{User: "u", Password: "p", Host: "h", Port: 5432, Database: "d", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p@h:5432/d?sslmode=disable", c.DSN())
}
