package agentloop

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"

	"github.com/velesbot/veles/internal/tracing"
	"github.com/velesbot/veles/pkg/session"
)

const tracerName = "veles/agentloop"

// DefaultHistoryWindow bounds how many history entries are sent to the
// provider per turn.
const DefaultHistoryWindow = 50

// Responder delivers the assistant reply back to the channel the inbound
// message came from.
type Responder interface {
	Reply(ctx context.Context, inbound session.Message, reply string) error
}

// ResponderFunc adapts a function to the Responder interface.
type ResponderFunc func(ctx context.Context, inbound session.Message, reply string) error

func (f ResponderFunc) Reply(ctx context.Context, inbound session.Message, reply string) error {
	return f(ctx, inbound, reply)
}

// Config holds the per-turn completion settings.
type Config struct {
	Model         string
	SystemPrompt  string
	Temperature   float64
	MaxTokens     int
	HistoryWindow int
}

// Loop executes agent turns over a session store.
type Loop struct {
	provider  Provider
	store     *session.Store
	responder Responder
	cfg       Config
}

// New creates a loop. The responder may be nil, in which case replies are
// only recorded in history.
func New(provider Provider, store *session.Store, responder Responder, cfg Config) *Loop {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4096
	}
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = DefaultHistoryWindow
	}
	return &Loop{
		provider:  provider,
		store:     store,
		responder: responder,
		cfg:       cfg,
	}
}

// ProcessMessage runs one turn for the inbound message.
func (l *Loop) ProcessMessage(ctx context.Context, msg session.Message) error {
	ctx, span := tracing.StartSpan(ctx, tracerName, "agentloop.process",
		attribute.String("session.channel", msg.Channel),
		attribute.String("provider", l.provider.Name()),
	)
	defer span.End()

	sess := l.store.GetOrCreate(msg.Channel, msg.ChatID)
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	sess.AddMessage(msg)

	resp, err := l.provider.Complete(ctx, l.buildRequest(sess))
	if err != nil {
		if saveErr := l.store.Save(sess); saveErr != nil {
			log.Warn().Err(saveErr).Str("session_key", sess.Key()).Msg("Failed to persist session after turn error")
		}
		return fmt.Errorf("completion failed: %w", err)
	}

	reply := session.Message{
		ID:        uuid.New().String(),
		Role:      "assistant",
		Content:   resp.Content,
		Channel:   msg.Channel,
		ChatID:    msg.ChatID,
		Timestamp: time.Now(),
	}
	sess.AddMessage(reply)

	if err := l.store.Save(sess); err != nil {
		log.Warn().Err(err).Str("session_key", sess.Key()).Msg("Failed to persist session history")
	}

	log.Debug().
		Str("session_key", sess.Key()).
		Str("provider", l.provider.Name()).
		Int("input_tokens", resp.Usage.InputTokens).
		Int("output_tokens", resp.Usage.OutputTokens).
		Msg("Turn completed")

	if l.responder != nil && resp.Content != "" {
		if err := l.responder.Reply(ctx, msg, resp.Content); err != nil {
			return fmt.Errorf("failed to deliver reply: %w", err)
		}
	}
	return nil
}

// buildRequest converts the tail of the session history into a completion
// request. Roles other than assistant are presented as user turns, which
// covers flushed backlog entries as well.
func (l *Loop) buildRequest(sess *session.Session) Request {
	history := sess.Messages()
	if len(history) > l.cfg.HistoryWindow {
		history = history[len(history)-l.cfg.HistoryWindow:]
	}

	turns := make([]Turn, 0, len(history))
	for _, msg := range history {
		if msg.Content == "" {
			continue
		}
		role := "user"
		if msg.Role == "assistant" {
			role = "assistant"
		}
		turns = append(turns, Turn{Role: role, Content: msg.Content})
	}

	return Request{
		Model:        l.cfg.Model,
		SystemPrompt: l.cfg.SystemPrompt,
		Temperature:  l.cfg.Temperature,
		MaxTokens:    l.cfg.MaxTokens,
		Turns:        turns,
	}
}
