package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/velesbot/veles/internal/config"
)

var (
	configureTelegramToken string
	configureAnthropicKey  string
	configureOpenAIKey     string
	configureModel         string
)

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Write Veles configuration",
	Long: `Write Veles configuration from flags, creating or updating the config
file. At least one AI provider key is required before the daemon can start.`,
	RunE: runConfigure,
}

func init() {
	configureCmd.Flags().StringVar(&configureTelegramToken, "telegram-token", "", "Telegram bot token")
	configureCmd.Flags().StringVar(&configureAnthropicKey, "anthropic-key", "", "Anthropic API key")
	configureCmd.Flags().StringVar(&configureOpenAIKey, "openai-key", "", "OpenAI API key")
	configureCmd.Flags().StringVar(&configureModel, "model", "", "model to use for agent turns")
	rootCmd.AddCommand(configureCmd)
}

func runConfigure(cmd *cobra.Command, args []string) error {
	loader := config.NewLoader(cfgFile)
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if configureAnthropicKey != "" {
		upsertProfile(cfg, "anthropic", configureAnthropicKey, 2)
	}
	if configureOpenAIKey != "" {
		upsertProfile(cfg, "openai", configureOpenAIKey, 1)
	}
	if configureModel != "" {
		cfg.Agent.Model = configureModel
	}
	if configureTelegramToken != "" {
		cfg.Telegram.BotToken = configureTelegramToken
	}
	cfg.Channels.Telegram.Enabled = cfg.Telegram.BotToken != ""

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := loader.Save(cfg); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	fmt.Printf("Configuration saved to: %s\n", loader.GetConfigPath())
	fmt.Println("You can now start Veles with: veles start")
	return nil
}

// upsertProfile updates the API key for a provider's profile, creating the
// profile when it does not exist yet.
func upsertProfile(cfg *config.Config, provider, apiKey string, priority int) {
	for i := range cfg.AI.Profiles {
		if cfg.AI.Profiles[i].Provider == provider {
			cfg.AI.Profiles[i].APIKey = apiKey
			return
		}
	}
	cfg.AI.Profiles = append(cfg.AI.Profiles, config.AIProfile{
		ID:       provider,
		Provider: provider,
		APIKey:   apiKey,
		Priority: priority,
	})
}
