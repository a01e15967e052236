package events

import (
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Runtime event types emitted by the coordinator and channel adapters.
const (
	TypeTurnStarted            = "turn.started"
	TypeTurnCompleted          = "turn.completed"
	TypeTurnFailed             = "turn.failed"
	TypeTurnInterruptRequested = "turn.interrupt_requested"
	TypeBacklogFlushed         = "turn.backlog_flushed"
	TypeQueueOverflow          = "turn.queue_overflow"
)

// Event is one runtime notification scoped to a session.
type Event struct {
	ID         string                 `json:"id"`
	Type       string                 `json:"type"`
	SessionKey string                 `json:"session_key"`
	Timestamp  time.Time              `json:"timestamp"`
	Payload    map[string]interface{} `json:"payload,omitempty"`
}

func newEvent(sessionKey, eventType string, payload map[string]interface{}) Event {
	id, err := gonanoid.New()
	if err != nil {
		id = time.Now().Format("20060102150405.000000000")
	}
	return Event{
		ID:         id,
		Type:       eventType,
		SessionKey: sessionKey,
		Timestamp:  time.Now(),
		Payload:    payload,
	}
}
