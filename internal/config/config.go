package config

import (
	"encoding/json"
	"fmt"

	"github.com/velesbot/veles/pkg/agentloop"
)

// Config is the main Veles configuration.
type Config struct {
	Telegram TelegramConfig `json:"telegram" mapstructure:"telegram"`
	Channels ChannelsConfig `json:"channels" mapstructure:"channels"`
	Agent    AgentConfig    `json:"agent" mapstructure:"agent"`
	AI       AIConfig       `json:"ai" mapstructure:"ai"`

	TurnQueue TurnQueueConfig `json:"turn_queue" mapstructure:"turn_queue"`
	Session   SessionConfig   `json:"session" mapstructure:"session"`
	Gateway   GatewayConfig   `json:"gateway" mapstructure:"gateway"`
	Logging   LoggingConfig   `json:"logging" mapstructure:"logging"`
	Tracing   TracingConfig   `json:"tracing" mapstructure:"tracing"`

	// DataDir defaults to ~/.veles.
	DataDir string `json:"data_dir" mapstructure:"data_dir"`
}

// TelegramConfig holds Telegram bot configuration.
type TelegramConfig struct {
	BotToken  string  `json:"bot_token" mapstructure:"bot_token"`
	Allowlist []int64 `json:"allowlist" mapstructure:"allowlist"`
}

// ChannelsConfig toggles the inbound transports.
type ChannelsConfig struct {
	Telegram ChannelConfig `json:"telegram" mapstructure:"telegram"`
	Gateway  ChannelConfig `json:"gateway" mapstructure:"gateway"`
}

// ChannelConfig represents one channel toggle.
type ChannelConfig struct {
	Enabled bool `json:"enabled" mapstructure:"enabled"`
}

// AgentConfig holds the per-turn completion settings.
type AgentConfig struct {
	Model         string  `json:"model" mapstructure:"model"`
	SystemPrompt  string  `json:"system_prompt" mapstructure:"system_prompt"`
	Temperature   float64 `json:"temperature" mapstructure:"temperature"`
	MaxTokens     int     `json:"max_tokens" mapstructure:"max_tokens"`
	HistoryWindow int     `json:"history_window" mapstructure:"history_window"`
}

// AIConfig holds the LLM provider profiles, highest priority first.
type AIConfig struct {
	Profiles []AIProfile `json:"profiles" mapstructure:"profiles"`
}

// AIProfile authenticates one LLM provider.
type AIProfile struct {
	ID       string `json:"id" mapstructure:"id"`
	Provider string `json:"provider" mapstructure:"provider"` // anthropic, openai
	APIKey   string `json:"api_key" mapstructure:"api_key"`
	Priority int    `json:"priority" mapstructure:"priority"`
}

// TurnQueueConfig controls backlog merging for busy sessions. Modes are
// "one-at-a-time" or "all", per kind.
type TurnQueueConfig struct {
	SteeringMode    string `json:"steering_mode" mapstructure:"steering_mode"`
	FollowUpMode    string `json:"follow_up_mode" mapstructure:"follow_up_mode"`
	DisableSteering bool   `json:"disable_steering" mapstructure:"disable_steering"`
}

// SessionConfig controls history persistence.
type SessionConfig struct {
	Dir               string `json:"dir" mapstructure:"dir"`
	CleanupMaxAgeDays int    `json:"cleanup_max_age_days" mapstructure:"cleanup_max_age_days"`
}

// GatewayConfig holds the HTTP gateway settings.
type GatewayConfig struct {
	Host         string `json:"host" mapstructure:"host"`
	Port         int    `json:"port" mapstructure:"port"`
	SharedSecret string `json:"shared_secret" mapstructure:"shared_secret"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	MaxSize   int    `json:"max_size" mapstructure:"max_size"` // MB
	MaxAge    int    `json:"max_age" mapstructure:"max_age"`   // days
	Compress  bool   `json:"compress" mapstructure:"compress"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
}

// TracingConfig controls span sampling.
type TracingConfig struct {
	// SampleRatio is the head sampling ratio in [0, 1].
	SampleRatio float64 `json:"sample_ratio" mapstructure:"sample_ratio"`
}

// DefaultConfig returns a config with default values.
func DefaultConfig() *Config {
	return &Config{
		Channels: ChannelsConfig{
			Telegram: ChannelConfig{Enabled: true},
			Gateway:  ChannelConfig{Enabled: true},
		},
		Agent: AgentConfig{
			Model:         "claude-sonnet-4",
			Temperature:   0.7,
			MaxTokens:     4096,
			HistoryWindow: 50,
		},
		TurnQueue: TurnQueueConfig{
			SteeringMode: "all",
			FollowUpMode: "all",
		},
		Session: SessionConfig{
			CleanupMaxAgeDays: 30,
		},
		Gateway: GatewayConfig{
			Host: "127.0.0.1",
			Port: 8080,
		},
		Logging: LoggingConfig{
			Level:     "info",
			MaxSize:   100,
			MaxAge:    7,
			Compress:  true,
			Redaction: true,
		},
		Tracing: TracingConfig{
			SampleRatio: 1,
		},
	}
}

// String returns a JSON representation of the config.
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// Profile returns the highest-priority AI profile.
func (c *Config) Profile() (agentloop.Profile, error) {
	if len(c.AI.Profiles) == 0 {
		return agentloop.Profile{}, fmt.Errorf("no AI credentials configured")
	}
	best := c.AI.Profiles[0]
	for _, p := range c.AI.Profiles[1:] {
		if p.Priority > best.Priority {
			best = p
		}
	}
	return agentloop.Profile{
		Provider: best.Provider,
		APIKey:   best.APIKey,
		Model:    c.Agent.Model,
	}, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if len(c.AI.Profiles) == 0 {
		return fmt.Errorf("no AI credentials configured: at least one AI profile is required")
	}

	for i, profile := range c.AI.Profiles {
		if profile.ID == "" {
			return fmt.Errorf("AI profile %d: ID is required", i)
		}
		if profile.APIKey == "" {
			return fmt.Errorf("AI profile %s: api_key is required", profile.ID)
		}
		if profile.Provider != "anthropic" && profile.Provider != "openai" {
			return fmt.Errorf("AI profile %s: invalid provider %s (must be: anthropic, openai)", profile.ID, profile.Provider)
		}
	}

	if c.Agent.Model == "" {
		return fmt.Errorf("agent model is required")
	}

	for _, mode := range []string{c.TurnQueue.SteeringMode, c.TurnQueue.FollowUpMode} {
		if mode != "" && mode != "one-at-a-time" && mode != "all" {
			return fmt.Errorf("invalid turn queue mode %q (must be: one-at-a-time, all)", mode)
		}
	}

	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return fmt.Errorf("invalid tracing sample ratio: %g (must be within [0, 1])", c.Tracing.SampleRatio)
	}

	if c.Channels.Telegram.Enabled && c.Telegram.BotToken == "" {
		return fmt.Errorf("telegram bot token is required when Telegram channel is enabled")
	}

	if c.Channels.Gateway.Enabled && (c.Gateway.Port <= 0 || c.Gateway.Port > 65535) {
		return fmt.Errorf("invalid gateway port: %d", c.Gateway.Port)
	}

	return nil
}
