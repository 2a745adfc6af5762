package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{EnvCalendarURL, EnvRedisURL, EnvAIAPIKey, EnvAIBaseURL, EnvAIModel, EnvRevalidateURL} {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

func TestLoad_FirstRunWritesDefaults(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "America/Los_Angeles", cfg.Timezone)
	assert.Equal(t, "2025-08-11", cfg.SchoolYear.Start)
	assert.Equal(t, 5, cfg.AI.MaxRetries)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	again, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, again)
}

func TestLoad_PartialFileAndEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
listen: ":9000"
calendar_url: https://example.test/file.ics
school_year:
  start: "2026-08-10"
  end: "2027-06-11"
  end_inclusive: true
ai:
  timeout: 30s
log:
  level: DEBUG
  format: yaml
`), 0o600))

	t.Setenv(EnvCalendarURL, "https://calendar.test/private.ics")
	t.Setenv(EnvAIAPIKey, "sk-env")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Listen)
	assert.Equal(t, "https://calendar.test/private.ics", cfg.CalendarURL)
	assert.Equal(t, "sk-env", cfg.AI.APIKey)
	assert.Equal(t, 30*time.Second, cfg.AI.Timeout)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	require.NoError(t, cfg.Validate())

	year, err := cfg.SchoolYearWindow()
	require.NoError(t, err)
	assert.True(t, year.ContainsDate("2027-06-11"))
	assert.False(t, year.ContainsDate("2026-08-09"))
}

func TestLoad_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen: [\n"), 0o600))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timezone = "Mars/Olympus_Mons"
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.SchoolYear.End = "2024-01-01"
	assert.Error(t, cfg.Validate())
}

func TestLoadEnvFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	require.NoError(t, LoadEnvFile(filepath.Join(dir, "missing.env")))

	envPath := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envPath, []byte("REDIS_URL=redis://localhost:6379/2\nAI_MODEL=\"test-model\"\n"), 0o600))
	t.Setenv(EnvAIModel, "already-set")
	require.NoError(t, LoadEnvFile(envPath))

	assert.Equal(t, "redis://localhost:6379/2", os.Getenv(EnvRedisURL))
	assert.Equal(t, "already-set", os.Getenv(EnvAIModel))
}
