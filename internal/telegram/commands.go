package telegram

import (
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// Commands routes bot commands to registered handlers.
type Commands struct {
	sender   Sender
	logger   zerolog.Logger
	handlers map[string]CommandFunc
}

// CommandFunc handles one command invocation.
type CommandFunc func(CommandContext) error

// CommandContext contains command metadata.
type CommandContext struct {
	ChatID    int64
	MessageID int
	UserID    int64
	Username  string
	Command   string
	Args      []string
}

// NewCommands creates a command router with the default command set.
func NewCommands(sender Sender, dispatcher Dispatcher, logger zerolog.Logger) *Commands {
	c := &Commands{
		sender:   sender,
		logger:   logger.With().Str("component", "telegram.commands").Logger(),
		handlers: make(map[string]CommandFunc),
	}

	c.Register("start", func(ctx CommandContext) error {
		return c.sender.SendMessageWithReply(ctx.ChatID,
			"Hi! Send me a message and I'll get to work. Use /stop to halt a running conversation.",
			ctx.MessageID)
	})

	c.Register("stop", func(ctx CommandContext) error {
		dispatcher.RequestStop(ChannelName, strconv.FormatInt(ctx.ChatID, 10))
		return c.sender.SendMessageWithReply(ctx.ChatID,
			"Stopping. The current step will finish, queued messages are saved to history, and your next message starts fresh.",
			ctx.MessageID)
	})

	return c
}

// HandleCommand processes one incoming command update.
func (c *Commands) HandleCommand(update tgbotapi.Update) error {
	msg := update.Message
	if msg == nil || !msg.IsCommand() {
		return nil
	}

	ctx := CommandContext{
		ChatID:    msg.Chat.ID,
		MessageID: msg.MessageID,
		Command:   msg.Command(),
		Args:      strings.Fields(msg.CommandArguments()),
	}
	if msg.From != nil {
		ctx.UserID = msg.From.ID
		ctx.Username = msg.From.UserName
	}

	c.logger.Debug().
		Int64("chat_id", ctx.ChatID).
		Str("command", ctx.Command).
		Msg("Command received")

	handler, exists := c.handlers[ctx.Command]
	if !exists {
		text := fmt.Sprintf("Unknown command: /%s", ctx.Command)
		return c.sender.SendMessageWithReply(ctx.ChatID, text, ctx.MessageID)
	}
	return handler(ctx)
}

// Register registers a command handler.
func (c *Commands) Register(command string, handler CommandFunc) {
	c.handlers[command] = handler
}

// RegisteredCommands returns all registered command names.
func (c *Commands) RegisteredCommands() []string {
	commands := make([]string, 0, len(c.handlers))
	for cmd := range c.handlers {
		commands = append(commands, cmd)
	}
	return commands
}
