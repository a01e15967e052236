package session

import (
	"time"
)

// Message is a single conversation entry. Inbound messages arrive from a
// channel adapter; flushed and assistant messages are appended by the
// runtime.
type Message struct {
	ID        string                 `json:"id,omitempty"`
	Role      string                 `json:"role"`
	Content   string                 `json:"content"`
	Channel   string                 `json:"channel"`
	ChatID    string                 `json:"chat_id"`
	SenderID  string                 `json:"sender_id,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// Meta returns a metadata value, or nil when the map is absent.
func (m Message) Meta(key string) interface{} {
	if m.Metadata == nil {
		return nil
	}
	return m.Metadata[key]
}

// WithMeta returns a copy of the message with key set in a copied metadata
// map. The original message is not mutated.
func (m Message) WithMeta(key string, value interface{}) Message {
	meta := make(map[string]interface{}, len(m.Metadata)+1)
	for k, v := range m.Metadata {
		meta[k] = v
	}
	meta[key] = value
	m.Metadata = meta
	return m
}
