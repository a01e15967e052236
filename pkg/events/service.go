package events

import (
	"github.com/rs/zerolog/log"

	"github.com/velesbot/veles/internal/observability"
	"github.com/velesbot/veles/pkg/session"
)

// Service emits runtime events for sessions. Emission is best-effort and
// never fails the caller; a broken subscriber or a nil session is tolerated
// silently.
type Service struct {
	hub *Hub
}

func NewService(hub *Hub) *Service {
	if hub == nil {
		hub = NewHub()
	}
	return &Service{hub: hub}
}

// Hub exposes the underlying hub so transports can subscribe.
func (s *Service) Hub() *Hub {
	return s.hub
}

// EmitForSession publishes one event scoped to the session.
func (s *Service) EmitForSession(sess *session.Session, eventType string, payload map[string]interface{}) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("event_type", eventType).Msg("Runtime event emission panicked")
		}
	}()

	if sess == nil || eventType == "" {
		return
	}

	evt := newEvent(sess.Key(), eventType, payload)
	observability.RecordRuntimeEvent(eventType)
	log.Debug().
		Str("event_id", evt.ID).
		Str("event_type", evt.Type).
		Str("session_key", evt.SessionKey).
		Msg("Runtime event emitted")

	s.hub.Publish(evt)
}
