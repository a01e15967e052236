package events

import (
	"strings"
	"sync"
)

// wildcardKey subscribes to every session's events.
const wildcardKey = "*"

// Hub fans runtime events out to subscribers. Delivery is best-effort: a
// subscriber whose buffer is full misses the event rather than blocking the
// publisher.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]map[uint64]chan Event
	nextID      uint64
}

func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[string]map[uint64]chan Event),
	}
}

// Subscribe registers a subscriber for one session key, or for all sessions
// when sessionKey is "*" or empty. The returned cancel func is idempotent.
func (h *Hub) Subscribe(sessionKey string, buffer int) (<-chan Event, func()) {
	sessionKey = strings.TrimSpace(sessionKey)
	if sessionKey == "" {
		sessionKey = wildcardKey
	}
	if buffer <= 0 {
		buffer = 64
	}

	ch := make(chan Event, buffer)

	h.mu.Lock()
	h.nextID++
	subID := h.nextID
	if _, exists := h.subscribers[sessionKey]; !exists {
		h.subscribers[sessionKey] = make(map[uint64]chan Event)
	}
	h.subscribers[sessionKey][subID] = ch
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		subs, ok := h.subscribers[sessionKey]
		if !ok {
			return
		}
		sub, exists := subs[subID]
		if !exists {
			return
		}
		delete(subs, subID)
		if len(subs) == 0 {
			delete(h.subscribers, sessionKey)
		}
		close(sub)
	}

	return ch, cancel
}

// Publish delivers an event to the session's subscribers and to wildcard
// subscribers.
func (h *Hub) Publish(evt Event) {
	if evt.SessionKey == "" {
		return
	}

	h.mu.RLock()
	for _, sub := range h.subscribers[evt.SessionKey] {
		select {
		case sub <- evt:
		default:
		}
	}
	for _, sub := range h.subscribers[wildcardKey] {
		select {
		case sub <- evt:
		default:
		}
	}
	h.mu.RUnlock()
}
