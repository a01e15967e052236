package agentloop

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/velesbot/veles/pkg/session"
)

type scriptedProvider struct {
	requests []Request
	reply    string
	err      error
}

func (p *scriptedProvider) Complete(_ context.Context, req Request) (*Response, error) {
	p.requests = append(p.requests, req)
	if p.err != nil {
		return nil, p.err
	}
	return &Response{Content: p.reply, Usage: Usage{InputTokens: 10, OutputTokens: 5}}, nil
}

func (p *scriptedProvider) Name() string { return "scripted" }

func inbound(content string) session.Message {
	return session.Message{
		Role:      "user",
		Content:   content,
		Channel:   "test",
		ChatID:    "chat-1",
		Timestamp: time.Now(),
	}
}

func TestProcessMessageAppendsHistoryAndReplies(t *testing.T) {
	store, err := session.NewStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	provider := &scriptedProvider{reply: "hi there"}
	var delivered []string
	responder := ResponderFunc(func(_ context.Context, _ session.Message, reply string) error {
		delivered = append(delivered, reply)
		return nil
	})

	loop := New(provider, store, responder, Config{Model: "test-model", SystemPrompt: "be brief"})
	require.NoError(t, loop.ProcessMessage(context.Background(), inbound("hello")))

	sess := store.GetOrCreate("test", "chat-1")
	require.Equal(t, 2, sess.Len())
	assert.Equal(t, "hello", sess.Messages()[0].Content)
	assert.Equal(t, "assistant", sess.Messages()[1].Role)
	assert.Equal(t, "hi there", sess.Messages()[1].Content)
	assert.Equal(t, []string{"hi there"}, delivered)

	require.Len(t, provider.requests, 1)
	req := provider.requests[0]
	assert.Equal(t, "test-model", req.Model)
	assert.Equal(t, "be brief", req.SystemPrompt)
	require.Len(t, req.Turns, 1)
	assert.Equal(t, Turn{Role: "user", Content: "hello"}, req.Turns[0])
}

func TestProcessMessageSendsPriorHistory(t *testing.T) {
	store, err := session.NewStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	provider := &scriptedProvider{reply: "ack"}
	loop := New(provider, store, nil, Config{Model: "test-model"})

	require.NoError(t, loop.ProcessMessage(context.Background(), inbound("first")))
	require.NoError(t, loop.ProcessMessage(context.Background(), inbound("second")))

	require.Len(t, provider.requests, 2)
	turns := provider.requests[1].Turns
	require.Len(t, turns, 3)
	assert.Equal(t, Turn{Role: "user", Content: "first"}, turns[0])
	assert.Equal(t, Turn{Role: "assistant", Content: "ack"}, turns[1])
	assert.Equal(t, Turn{Role: "user", Content: "second"}, turns[2])
}

func TestProcessMessageHistoryWindow(t *testing.T) {
	store, err := session.NewStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	provider := &scriptedProvider{reply: "ack"}
	loop := New(provider, store, nil, Config{Model: "test-model", HistoryWindow: 3})

	for _, content := range []string{"a", "b", "c"} {
		require.NoError(t, loop.ProcessMessage(context.Background(), inbound(content)))
	}

	last := provider.requests[len(provider.requests)-1]
	require.Len(t, last.Turns, 3)
	assert.Equal(t, Turn{Role: "user", Content: "b"}, last.Turns[0])
	assert.Equal(t, Turn{Role: "assistant", Content: "ack"}, last.Turns[1])
	assert.Equal(t, Turn{Role: "user", Content: "c"}, last.Turns[2])
}

func TestProcessMessageProviderError(t *testing.T) {
	store, err := session.NewStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	provider := &scriptedProvider{err: errors.New("rate limited")}
	loop := New(provider, store, nil, Config{Model: "test-model"})

	err = loop.ProcessMessage(context.Background(), inbound("hello"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")

	// The inbound message is still recorded.
	assert.Equal(t, 1, store.GetOrCreate("test", "chat-1").Len())
}

func TestNewProviderFromProfile(t *testing.T) {
	p, err := NewProvider(Profile{Provider: "anthropic", APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, "anthropic", p.Name())

	p, err = NewProvider(Profile{Provider: "openai", APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, "openai", p.Name())

	_, err = NewProvider(Profile{Provider: "carrier-pigeon"})
	assert.Error(t, err)
}
