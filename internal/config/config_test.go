package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.Channels.Telegram.Enabled = false
	cfg.AI.Profiles = []AIProfile{
		{ID: "main", Provider: "anthropic", APIKey: "sk-test"},
	}
	return cfg
}

func TestValidateAcceptsDefaultsWithProfile(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidateRejectsMissingProfiles(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Channels.Telegram.Enabled = false
	assert.ErrorContains(t, cfg.Validate(), "AI profile")
}

func TestValidateRejectsBadProvider(t *testing.T) {
	cfg := validConfig()
	cfg.AI.Profiles[0].Provider = "smoke-signals"
	assert.ErrorContains(t, cfg.Validate(), "invalid provider")
}

func TestValidateRejectsBadQueueMode(t *testing.T) {
	cfg := validConfig()
	cfg.TurnQueue.FollowUpMode = "sometimes"
	assert.ErrorContains(t, cfg.Validate(), "turn queue mode")
}

func TestValidateRejectsOutOfRangeSampleRatio(t *testing.T) {
	cfg := validConfig()
	cfg.Tracing.SampleRatio = 1.5
	assert.ErrorContains(t, cfg.Validate(), "sample ratio")

	cfg.Tracing.SampleRatio = -0.1
	assert.ErrorContains(t, cfg.Validate(), "sample ratio")

	cfg.Tracing.SampleRatio = 0.25
	assert.NoError(t, cfg.Validate())
}

func TestValidateRequiresTelegramToken(t *testing.T) {
	cfg := validConfig()
	cfg.Channels.Telegram.Enabled = true
	assert.ErrorContains(t, cfg.Validate(), "telegram bot token")

	cfg.Telegram.BotToken = "123:abc"
	assert.NoError(t, cfg.Validate())
}

func TestProfilePicksHighestPriority(t *testing.T) {
	cfg := validConfig()
	cfg.AI.Profiles = []AIProfile{
		{ID: "backup", Provider: "openai", APIKey: "k1", Priority: 1},
		{ID: "main", Provider: "anthropic", APIKey: "k2", Priority: 5},
	}
	cfg.Agent.Model = "claude-sonnet-4"

	profile, err := cfg.Profile()
	require.NoError(t, err)
	assert.Equal(t, "anthropic", profile.Provider)
	assert.Equal(t, "k2", profile.APIKey)
	assert.Equal(t, "claude-sonnet-4", profile.Model)
}
