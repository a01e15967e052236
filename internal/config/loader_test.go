package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	loader := NewLoader(filepath.Join(t.TempDir(), "veles.json"))

	cfg, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, "all", cfg.TurnQueue.SteeringMode)
	assert.Equal(t, 8080, cfg.Gateway.Port)
	assert.NotEmpty(t, cfg.Session.Dir)
	assert.NotEmpty(t, cfg.Logging.File)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "veles.json")
	content := `{
		"turn_queue": {"steering_mode": "one-at-a-time", "follow_up_mode": "all"},
		"gateway": {"port": 9999},
		"agent": {"model": "gpt-4-turbo"}
	}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := NewLoader(path).Load()
	require.NoError(t, err)
	assert.Equal(t, "one-at-a-time", cfg.TurnQueue.SteeringMode)
	assert.Equal(t, "all", cfg.TurnQueue.FollowUpMode)
	assert.Equal(t, 9999, cfg.Gateway.Port)
	assert.Equal(t, "gpt-4-turbo", cfg.Agent.Model)
	// Untouched sections keep defaults.
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "veles.json")
	loader := NewLoader(path)

	cfg := DefaultConfig()
	cfg.TurnQueue.FollowUpMode = "one-at-a-time"
	cfg.Telegram.BotToken = "123:abc"
	require.NoError(t, loader.Save(cfg))

	loaded, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, "one-at-a-time", loaded.TurnQueue.FollowUpMode)
	assert.Equal(t, "123:abc", loaded.Telegram.BotToken)
}
