package telegram

import (
	"context"
	"fmt"
	"strconv"

	"github.com/velesbot/veles/pkg/session"
)

// Responder delivers assistant replies back to the originating chat. It
// implements the agent loop's responder contract.
type Responder struct {
	sender Sender
}

// NewResponder creates a responder over a sender.
func NewResponder(sender Sender) *Responder {
	return &Responder{sender: sender}
}

// Reply sends the assistant reply to the inbound message's chat. Messages
// from other channels are ignored.
func (r *Responder) Reply(_ context.Context, inbound session.Message, reply string) error {
	if inbound.Channel != ChannelName {
		return nil
	}

	chatID, err := strconv.ParseInt(inbound.ChatID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid telegram chat id %q: %w", inbound.ChatID, err)
	}
	return r.sender.SendMessage(chatID, reply)
}
