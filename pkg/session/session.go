package session

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Session is a (channel, chat id)-addressed conversation. All mutation goes
// through its methods; the embedded mutex makes it safe to share between the
// run coordinator and channel adapters.
type Session struct {
	ID      string
	Channel string
	ChatID  string

	mu       sync.RWMutex
	messages []Message
	metadata map[string]interface{}
}

func newSession(channel, chatID string) *Session {
	return &Session{
		ID:       uuid.New().String(),
		Channel:  channel,
		ChatID:   chatID,
		metadata: make(map[string]interface{}),
	}
}

// Key returns the stable identity used for file names and event routing.
func (s *Session) Key() string {
	return fmt.Sprintf("%s:%s", s.Channel, s.ChatID)
}

// AddMessage appends a message to the conversation history.
func (s *Session) AddMessage(msg Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
}

// Messages returns a copy of the conversation history.
func (s *Session) Messages() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Len returns the number of messages in the history.
func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// SetMeta sets a session metadata value.
func (s *Session) SetMeta(key string, value interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metadata[key] = value
}

// Meta returns a session metadata value and whether it was present.
func (s *Session) Meta(key string) (interface{}, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.metadata[key]
	return v, ok
}

// ClearMeta removes a session metadata value.
func (s *Session) ClearMeta(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.metadata, key)
}

func (s *Session) restore(messages []Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = messages
}
