package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg := Load()
	assert.Equal(t, "tally.db", cfg.DB)
	assert.Equal(t, ":8888", cfg.Addr)
	assert.Empty(t, cfg.WebhookURL)
}

func TestLoadEnvOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("TALLY_DB", "/var/lib/tally/prod.db")
	t.Setenv("TALLY_WEBHOOK_URL", "https://hooks.example.com/tally")
	t.Setenv("TALLY_WEBHOOK_SECRET", "shh")

	cfg := Load()
	assert.Equal(t, "/var/lib/tally/prod.db", cfg.DB)
	assert.Equal(t, "https://hooks.example.com/tally", cfg.WebhookURL)
	assert.Equal(t, "shh", cfg.WebhookSecret)
}

func TestLoadDotEnvFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("addr=:9999\n"), 0o644))
	chdir(t, dir)

	cfg := Load()
	assert.Equal(t, ":9999", cfg.Addr)
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
}
