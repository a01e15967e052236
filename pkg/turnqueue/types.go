package turnqueue

import (
	"context"
	"fmt"
	"strings"

	"github.com/velesbot/veles/pkg/session"
)

// Message metadata keys understood by the coordinator.
const (
	// MetaQueueKind tags a message with its queue kind. Absent or
	// unrecognized values classify as follow-up.
	MetaQueueKind = "turn_queue_kind"

	// MetaInterruptRequested is set on session metadata when the user asks
	// the session to stop, and cleared when the next turn starts.
	MetaInterruptRequested = "turn_interrupt_requested"
)

// Kind is the queue kind of a pending message.
type Kind string

const (
	KindSteering Kind = "steering"
	KindFollowUp Kind = "follow-up"
)

// ParseKind maps a metadata value to a queue kind, failing open to
// follow-up on anything it does not recognize.
func ParseKind(v interface{}) Kind {
	s, ok := v.(string)
	if !ok {
		return KindFollowUp
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "steering":
		return KindSteering
	default:
		return KindFollowUp
	}
}

// SessionKey identifies one session by value.
type SessionKey struct {
	Channel string
	ChatID  string
}

func (k SessionKey) String() string {
	return fmt.Sprintf("%s:%s", k.Channel, k.ChatID)
}

// AgentLoop executes one agent turn. Calls may take seconds to minutes; the
// coordinator catches errors and panics and never lets them escape.
type AgentLoop interface {
	ProcessMessage(ctx context.Context, msg session.Message) error
}

// SessionPort resolves the conversation object the coordinator flushes
// backlog into, and persists it after a flush.
type SessionPort interface {
	GetOrCreate(channel, chatID string) *session.Session
	Save(s *session.Session) error
}

// EventService receives best-effort runtime notifications. Failures inside
// the implementation must not affect scheduling.
type EventService interface {
	EmitForSession(sess *session.Session, eventType string, payload map[string]interface{})
}
