package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_FirstRunWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	again, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, again)
}

func TestLoad_PartialFileIsNormalized(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
listen: ":9000"
pin: "6110"
token_ttl: 30m
log_level: loud
holidays:
  refresh: "*/30 * * * *"
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Listen)
	assert.Equal(t, "6110", cfg.PIN)
	assert.Equal(t, 30*time.Minute, cfg.TokenTTL)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "Asia/Tokyo", cfg.Timezone)
	assert.Equal(t, DefaultHolidayURL, cfg.Holidays.URL)
	assert.Equal(t, "*/30 * * * *", cfg.Holidays.Refresh)
	assert.Equal(t, defaultHorizonDays, cfg.ExportHorizonDays)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen: [unterminated"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_EmptyPath(t *testing.T) {
	_, err := Load("")
	assert.Error(t, err)
}

func TestSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := DefaultConfig()
	cfg.MaskNames = true
	cfg.TokenTTL = 2 * time.Hour
	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestApplyEnvAndDotenv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("VISITCAL_PIN=1234\nVISITCAL_TOKEN_SECRET=s3cret\n"), 0o600))

	t.Setenv(EnvPIN, "")
	t.Setenv(EnvTokenSecret, "")
	t.Setenv(EnvListen, ":7777")
	require.NoError(t, os.Unsetenv(EnvPIN))
	require.NoError(t, os.Unsetenv(EnvTokenSecret))

	require.NoError(t, LoadDotenv(envFile, filepath.Join(dir, "missing.env")))

	cfg := DefaultConfig()
	cfg.ApplyEnv()
	assert.Equal(t, "1234", cfg.PIN)
	assert.Equal(t, "s3cret", cfg.TokenSecret)
	assert.Equal(t, ":7777", cfg.Listen)
}

func TestLoadDotenv_NothingToLoad(t *testing.T) {
	assert.NoError(t, LoadDotenv(filepath.Join(t.TempDir(), "none.env")))
}

func TestLocation(t *testing.T) {
	cfg := DefaultConfig()
	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Asia/Tokyo", loc.String())

	cfg.Timezone = "Mars/Olympus"
	loc, err = cfg.Location()
	assert.Error(t, err)
	assert.Equal(t, time.Local, loc)
}
