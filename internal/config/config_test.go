package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
  host: "0.0.0.0"
  allowed_origins: ["https://app.example.com"]

database:
  url: "postgres://localhost/paybench?sslmode=disable"
  max_open_conns: 20

redis:
  url: "redis://localhost:6379/0"

ingest:
  session_ttl_hours: 48
  lock_ttl_minutes: 5
  max_rows: 10000

inbox:
  enabled: true
  bucket: "paybench-inbox"
  prefix: "drops/"

taxonomy:
  path: "/etc/paybench/reference.yaml"

logging:
  level: debug
  redact: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, []string{"https://app.example.com"}, cfg.Server.AllowedOrigins)

	assert.Equal(t, "postgres://localhost/paybench?sslmode=disable", cfg.Database.URL)
	assert.Equal(t, 20, cfg.Database.MaxOpenConns)
	assert.Equal(t, 5, cfg.Database.MaxIdleConns)

	assert.Equal(t, "redis://localhost:6379/0", cfg.Redis.URL)

	assert.Equal(t, 48*time.Hour, cfg.Ingest.SessionTTL())
	assert.Equal(t, 5*time.Minute, cfg.Ingest.LockTTL())
	assert.Equal(t, 10000, cfg.Ingest.MaxRows)

	assert.True(t, cfg.Inbox.Enabled)
	assert.Equal(t, "paybench-inbox", cfg.Inbox.Bucket)
	assert.Equal(t, "drops/", cfg.Inbox.Prefix)
	assert.Equal(t, 5*time.Minute, cfg.Inbox.Interval())

	assert.Equal(t, "/etc/paybench/reference.yaml", cfg.Taxonomy.Path)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Redact)
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "logging:\n  redact: false\n"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 20, cfg.Server.MaxUploadMB)
	assert.Equal(t, 24*time.Hour, cfg.Ingest.SessionTTL())
	assert.Equal(t, 10*time.Minute, cfg.Ingest.LockTTL())
	assert.Equal(t, 50000, cfg.Ingest.MaxRows)
	assert.False(t, cfg.Inbox.Enabled)
	assert.Equal(t, "inbox/", cfg.Inbox.Prefix)
	assert.Equal(t, "info", cfg.Logging.Level)

	assert.Equal(t, cfg, Default())
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"inbox without bucket": "inbox:\n  enabled: true\n",
		"row cap too high":     "ingest:\n  max_rows: 60000\n",
		"unknown log level":    "logging:\n  level: chatty\n",
		"bad port":             "server:\n  port: 70000\n",
		"bad redis url":        "redis:\n  url: \"not a url\"\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, content))
			assert.Error(t, err)
		})
	}
}

func TestLoadFromEnv(t *testing.T) {
	path := writeConfig(t, "database:\n  url: \"postgres://file\"\n")

	t.Setenv("DATABASE_URL", "postgres://env")
	t.Setenv("REDIS_URL", "redis://env:6379")
	t.Setenv("PORT", "9999")
	t.Setenv("INBOX_S3_BUCKET", "env-bucket")

	cfg, err := LoadFromEnv(path)
	require.NoError(t, err)

	// Environment variables should override file values
	assert.Equal(t, "postgres://env", cfg.Database.URL)
	assert.Equal(t, "redis://env:6379", cfg.Redis.URL)
	assert.Equal(t, 9999, cfg.Server.Port)
	assert.True(t, cfg.Inbox.Enabled)
	assert.Equal(t, "env-bucket", cfg.Inbox.Bucket)
}

func TestLoadFromEnvWithoutFile(t *testing.T) {
	t.Setenv("LOG_LEVEL", "warn")
	cfg, err := LoadFromEnv("")
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoadFileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	assert.Error(t, err)
}

func TestServerAddr(t *testing.T) {
	t.Setenv("ECS_CONTAINER_METADATA_URI", "")
	t.Setenv("KUBERNETES_SERVICE_HOST", "")
	assert.Equal(t, "localhost:8080", ServerConfig{Port: 8080}.Addr())
	assert.Equal(t, "127.0.0.1:1", ServerConfig{Host: "127.0.0.1", Port: 1}.Addr())
}
