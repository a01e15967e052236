package telegram

import (
	"context"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/velesbot/veles/pkg/session"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []string
}

func (s *fakeSender) SendMessage(chatID int64, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, text)
	return nil
}

func (s *fakeSender) SendMessageWithReply(chatID int64, text string, _ int) error {
	return s.SendMessage(chatID, text)
}

type fakeDispatcher struct {
	mu       sync.Mutex
	enqueued []session.Message
	stops    []string
}

func (d *fakeDispatcher) Enqueue(msg session.Message) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.enqueued = append(d.enqueued, msg)
}

func (d *fakeDispatcher) RequestStop(channel, chatID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stops = append(d.stops, channel+":"+chatID)
}

func textUpdate(chatID int64, userID int64, text string) tgbotapi.Update {
	return tgbotapi.Update{
		Message: &tgbotapi.Message{
			MessageID: 7,
			Chat:      &tgbotapi.Chat{ID: chatID},
			From:      &tgbotapi.User{ID: userID, UserName: "tester"},
			Text:      text,
		},
	}
}

func commandUpdate(chatID int64, text string) tgbotapi.Update {
	update := textUpdate(chatID, 1, text)
	update.Message.Entities = []tgbotapi.MessageEntity{
		{Type: "bot_command", Offset: 0, Length: len(text)},
	}
	return update
}

func TestIngressEnqueuesInboundText(t *testing.T) {
	dispatcher := &fakeDispatcher{}
	ingress := NewIngress(dispatcher, zerolog.Nop())

	require.NoError(t, ingress.HandleMessage(textUpdate(42, 100, "hello")))

	require.Len(t, dispatcher.enqueued, 1)
	msg := dispatcher.enqueued[0]
	assert.Equal(t, ChannelName, msg.Channel)
	assert.Equal(t, "42", msg.ChatID)
	assert.Equal(t, "100", msg.SenderID)
	assert.Equal(t, "hello", msg.Content)
	assert.Equal(t, "user", msg.Role)
	assert.NotEmpty(t, msg.ID)
}

func TestIngressIgnoresEmptyText(t *testing.T) {
	dispatcher := &fakeDispatcher{}
	ingress := NewIngress(dispatcher, zerolog.Nop())

	require.NoError(t, ingress.HandleMessage(tgbotapi.Update{}))
	require.NoError(t, ingress.HandleMessage(textUpdate(42, 100, "")))
	assert.Empty(t, dispatcher.enqueued)
}

func TestStopCommandRequestsStop(t *testing.T) {
	sender := &fakeSender{}
	dispatcher := &fakeDispatcher{}
	commands := NewCommands(sender, dispatcher, zerolog.Nop())

	require.NoError(t, commands.HandleCommand(commandUpdate(42, "/stop")))

	assert.Equal(t, []string{"telegram:42"}, dispatcher.stops)
	require.Len(t, sender.sent, 1)
	assert.Contains(t, sender.sent[0], "Stopping")
}

func TestUnknownCommandResponds(t *testing.T) {
	sender := &fakeSender{}
	commands := NewCommands(sender, &fakeDispatcher{}, zerolog.Nop())

	require.NoError(t, commands.HandleCommand(commandUpdate(42, "/dance")))
	require.Len(t, sender.sent, 1)
	assert.Contains(t, sender.sent[0], "Unknown command")
}

func TestResponderRepliesToOriginChat(t *testing.T) {
	sender := &fakeSender{}
	responder := NewResponder(sender)

	inbound := session.Message{Channel: ChannelName, ChatID: "42"}
	require.NoError(t, responder.Reply(context.Background(), inbound, "done"))
	assert.Equal(t, []string{"done"}, sender.sent)
}

func TestResponderIgnoresOtherChannels(t *testing.T) {
	sender := &fakeSender{}
	responder := NewResponder(sender)

	inbound := session.Message{Channel: "gateway", ChatID: "42"}
	require.NoError(t, responder.Reply(context.Background(), inbound, "done"))
	assert.Empty(t, sender.sent)
}

func TestResponderRejectsBadChatID(t *testing.T) {
	responder := NewResponder(&fakeSender{})

	inbound := session.Message{Channel: ChannelName, ChatID: "not-a-number"}
	assert.Error(t, responder.Reply(context.Background(), inbound, "done"))
}
