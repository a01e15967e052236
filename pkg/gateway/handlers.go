package gateway

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/velesbot/veles/internal/observability"
	"github.com/velesbot/veles/pkg/session"
	"github.com/velesbot/veles/pkg/turnqueue"
)

// handleEnqueue accepts one inbound message. The response only acknowledges
// acceptance; the turn itself runs asynchronously.
func (s *Server) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	var req EnqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid JSON body"})
		return
	}

	if strings.TrimSpace(req.ChatID) == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "chat_id is required"})
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "content is required"})
		return
	}

	channel := req.Channel
	if channel == "" {
		channel = ChannelName
	}

	msg := session.Message{
		ID:        uuid.New().String(),
		Role:      "user",
		Content:   req.Content,
		Channel:   channel,
		ChatID:    req.ChatID,
		SenderID:  req.SenderID,
		Timestamp: time.Now(),
	}
	if req.QueueKind != "" {
		msg = msg.WithMeta(turnqueue.MetaQueueKind, req.QueueKind)
	}

	s.dispatcher.Enqueue(msg)
	observability.RecordIngress(channel, "accepted")

	writeJSON(w, http.StatusAccepted, EnqueueResponse{Accepted: true, MessageID: msg.ID})
}

// handleStop forwards a stop request for one session.
func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	channel := r.PathValue("channel")
	chatID := r.PathValue("chatID")
	if channel == "" || chatID == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "channel and chat id are required"})
		return
	}

	s.dispatcher.RequestStop(channel, chatID)
	writeJSON(w, http.StatusAccepted, StopResponse{Accepted: true})
}

// handleHistory returns the conversation history for one session.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	channel := r.PathValue("channel")
	chatID := r.PathValue("chatID")
	if channel == "" || chatID == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "channel and chat id are required"})
		return
	}

	sess := s.store.GetOrCreate(channel, chatID)
	messages := sess.Messages()
	if messages == nil {
		messages = []session.Message{}
	}
	writeJSON(w, http.StatusOK, HistoryResponse{SessionKey: sess.Key(), Messages: messages})
}

// handleEvents streams runtime events over a websocket. A session_key query
// parameter scopes the stream; absent, the client sees all sessions.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		writeJSON(w, http.StatusNotImplemented, ErrorResponse{Error: "event streaming is disabled"})
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	sessionKey := r.URL.Query().Get("session_key")
	ch, cancel := s.hub.Subscribe(sessionKey, 64)
	defer cancel()

	// Drain client frames to notice disconnects.
	disconnected := make(chan struct{})
	go func() {
		defer close(disconnected)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case evt, ok := <-ch:
			if !ok {
				return
			}
			if err := conn.WriteJSON(evt); err != nil {
				return
			}
		case <-disconnected:
			return
		}
	}
}
