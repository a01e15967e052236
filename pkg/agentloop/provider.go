package agentloop

import (
	"context"
	"fmt"
)

// Turn is one entry of the completion context sent to a provider.
type Turn struct {
	Role    string
	Content string
}

// Request is a provider-agnostic completion request.
type Request struct {
	Model        string
	SystemPrompt string
	Temperature  float64
	MaxTokens    int
	Turns        []Turn
}

// Usage reports token consumption for one completion.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Response is a provider-agnostic completion result.
type Response struct {
	Content string
	Usage   Usage
}

// Provider produces a completion for a conversation.
type Provider interface {
	Complete(ctx context.Context, req Request) (*Response, error)
	Name() string
}

// Profile selects and authenticates a provider.
type Profile struct {
	Provider string `mapstructure:"provider" json:"provider"`
	APIKey   string `mapstructure:"api_key" json:"api_key"`
	Model    string `mapstructure:"model" json:"model"`
}

// NewProvider builds a provider from an auth profile.
func NewProvider(profile Profile) (Provider, error) {
	switch profile.Provider {
	case "anthropic":
		return NewAnthropicProvider(profile.APIKey), nil
	case "openai":
		return NewOpenAIProvider(profile.APIKey), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", profile.Provider)
	}
}
