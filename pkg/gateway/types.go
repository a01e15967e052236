package gateway

import (
	"github.com/velesbot/veles/pkg/session"
)

// ChannelName tags messages that arrive over the HTTP gateway.
const ChannelName = "gateway"

// Dispatcher accepts inbound work for the run coordinator.
type Dispatcher interface {
	Enqueue(msg session.Message)
	RequestStop(channel, chatID string)
}

// EnqueueRequest is the body of POST /v1/messages.
type EnqueueRequest struct {
	Channel  string `json:"channel,omitempty"`
	ChatID   string `json:"chat_id"`
	SenderID string `json:"sender_id,omitempty"`
	Content  string `json:"content"`
	// QueueKind optionally tags the message "steering" or "follow-up".
	QueueKind string `json:"queue_kind,omitempty"`
}

// EnqueueResponse acknowledges an accepted message.
type EnqueueResponse struct {
	Accepted  bool   `json:"accepted"`
	MessageID string `json:"message_id"`
}

// StopResponse acknowledges a stop request.
type StopResponse struct {
	Accepted bool `json:"accepted"`
}

// HistoryResponse lists a session's conversation history.
type HistoryResponse struct {
	SessionKey string            `json:"session_key"`
	Messages   []session.Message `json:"messages"`
}

// ErrorResponse is the error body for all endpoints.
type ErrorResponse struct {
	Error string `json:"error"`
}
