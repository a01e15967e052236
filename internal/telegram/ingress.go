package telegram

import (
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/velesbot/veles/internal/observability"
	"github.com/velesbot/veles/pkg/session"
)

// Dispatcher accepts inbound work for the run coordinator.
type Dispatcher interface {
	Enqueue(msg session.Message)
	RequestStop(channel, chatID string)
}

// Ingress converts Telegram text messages into coordinator work. Delivery
// is fire-and-forget; the assistant reply comes back through the responder
// wired into the agent loop.
type Ingress struct {
	dispatcher Dispatcher
	logger     zerolog.Logger
}

// NewIngress creates the message handler.
func NewIngress(dispatcher Dispatcher, logger zerolog.Logger) *Ingress {
	return &Ingress{
		dispatcher: dispatcher,
		logger:     logger.With().Str("component", "telegram.ingress").Logger(),
	}
}

// HandleMessage enqueues one inbound text message.
func (i *Ingress) HandleMessage(update tgbotapi.Update) error {
	msg := update.Message
	if msg == nil || msg.Text == "" {
		return nil
	}

	inbound := session.Message{
		ID:        uuid.New().String(),
		Role:      "user",
		Content:   msg.Text,
		Channel:   ChannelName,
		ChatID:    strconv.FormatInt(msg.Chat.ID, 10),
		Timestamp: time.Now(),
	}
	if msg.From != nil {
		inbound.SenderID = strconv.FormatInt(msg.From.ID, 10)
	}

	i.dispatcher.Enqueue(inbound)
	observability.RecordIngress(ChannelName, "accepted")

	i.logger.Debug().
		Str("chat_id", inbound.ChatID).
		Int("length", len(msg.Text)).
		Msg("Message enqueued")
	return nil
}
