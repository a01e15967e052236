package telegram

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/velesbot/veles/internal/config"
)

// ChannelName tags messages that arrive over Telegram.
const ChannelName = "telegram"

// MessageHandler handles incoming non-command messages.
type MessageHandler interface {
	HandleMessage(update tgbotapi.Update) error
}

// CommandHandler handles bot commands.
type CommandHandler interface {
	HandleCommand(update tgbotapi.Update) error
}

// Sender delivers outbound messages. Implemented by Bot; narrowed out as an
// interface so command and ingress logic is testable without the API.
type Sender interface {
	SendMessage(chatID int64, text string) error
	SendMessageWithReply(chatID int64, text string, replyToMessageID int) error
}

// Bot wraps the Telegram Bot API with allowlist filtering and handler
// dispatch.
type Bot struct {
	api    *tgbotapi.BotAPI
	config *config.TelegramConfig
	logger zerolog.Logger

	messageHandler MessageHandler
	commandHandler CommandHandler

	running bool
	updates tgbotapi.UpdatesChannel
}

// New creates a bot instance and authenticates against the Telegram API.
func New(cfg *config.TelegramConfig, logger zerolog.Logger) (*Bot, error) {
	if cfg == nil {
		return nil, fmt.Errorf("telegram config is required")
	}
	if cfg.BotToken == "" {
		return nil, fmt.Errorf("bot token is required")
	}

	api, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot API: %w", err)
	}

	bot := &Bot{
		api:    api,
		config: cfg,
		logger: logger.With().Str("component", "telegram").Logger(),
	}

	bot.logger.Info().
		Str("username", api.Self.UserName).
		Int64("id", api.Self.ID).
		Msg("Telegram bot authenticated")

	return bot, nil
}

// Start begins long polling for updates.
func (b *Bot) Start() error {
	if b.running {
		return fmt.Errorf("bot is already running")
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	b.updates = b.api.GetUpdatesChan(u)
	b.running = true
	go b.processUpdates()

	b.logger.Info().Msg("Telegram bot started")
	return nil
}

// Stop stops receiving updates.
func (b *Bot) Stop() error {
	if !b.running {
		return fmt.Errorf("bot is not running")
	}

	b.running = false
	b.api.StopReceivingUpdates()

	b.logger.Info().Msg("Telegram bot stopped")
	return nil
}

// IsRunning reports whether the bot is polling.
func (b *Bot) IsRunning() bool {
	return b.running
}

func (b *Bot) processUpdates() {
	for update := range b.updates {
		if !b.running {
			break
		}
		if err := b.handleUpdate(update); err != nil {
			b.logger.Error().
				Err(err).
				Int("update_id", update.UpdateID).
				Msg("Failed to handle update")
		}
	}
}

func (b *Bot) handleUpdate(update tgbotapi.Update) error {
	if update.Message == nil {
		return nil
	}

	if update.Message.From != nil && !b.allowed(update.Message.From.ID) {
		b.logger.Warn().
			Int64("user_id", update.Message.From.ID).
			Msg("Message from user outside allowlist dropped")
		return nil
	}

	if update.Message.IsCommand() && b.commandHandler != nil {
		return b.commandHandler.HandleCommand(update)
	}
	if b.messageHandler != nil {
		return b.messageHandler.HandleMessage(update)
	}
	return nil
}

// allowed checks the allowlist. An empty allowlist admits everyone.
func (b *Bot) allowed(userID int64) bool {
	if len(b.config.Allowlist) == 0 {
		return true
	}
	for _, id := range b.config.Allowlist {
		if id == userID {
			return true
		}
	}
	return false
}

// SendMessage sends a text message.
func (b *Bot) SendMessage(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// SendMessageWithReply sends a text message as a reply.
func (b *Bot) SendMessageWithReply(chatID int64, text string, replyToMessageID int) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyToMessageID = replyToMessageID
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("failed to send reply: %w", err)
	}
	return nil
}

// SetMessageHandler sets the message handler.
func (b *Bot) SetMessageHandler(handler MessageHandler) {
	b.messageHandler = handler
}

// SetCommandHandler sets the command handler.
func (b *Bot) SetCommandHandler(handler CommandHandler) {
	b.commandHandler = handler
}
