package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFileDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9100\n"), 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, "local", cfg.Embedding.Provider)
	assert.Equal(t, 10000, cfg.Analytics.HistoryCapacity)
	assert.Equal(t, 1000, cfg.Analytics.RollingWindow)
	assert.Equal(t, 3, cfg.Knowledge.TopK)
	assert.Equal(t, 1000, cfg.Validation.MaxQueryLength)
}

func TestLoadFileEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: info\n"), 0o644))
	t.Setenv("SUPPORT_ROUTER_LOGGING_LEVEL", "debug")

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestValidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("embedding:\n  provider: openai\n"), 0o644))

	_, err := LoadFile(path)
	assert.ErrorContains(t, err, "apiKey")

	require.NoError(t, os.WriteFile(path, []byte("embedding:\n  provider: bert\n"), 0o644))
	_, err = LoadFile(path)
	assert.ErrorContains(t, err, "unknown embedding provider")
}
