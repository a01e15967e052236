package session

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionMetadata(t *testing.T) {
	s := newSession("test", "chat-1")

	_, ok := s.Meta("flag")
	assert.False(t, ok)

	s.SetMeta("flag", true)
	v, ok := s.Meta("flag")
	require.True(t, ok)
	assert.Equal(t, true, v)

	s.ClearMeta("flag")
	_, ok = s.Meta("flag")
	assert.False(t, ok)
}

func TestMessagesReturnsCopy(t *testing.T) {
	s := newSession("test", "chat-1")
	s.AddMessage(Message{Content: "one"})

	got := s.Messages()
	got[0].Content = "mutated"

	assert.Equal(t, "one", s.Messages()[0].Content)
}

func TestSessionConcurrentAccess(t *testing.T) {
	s := newSession("test", "chat-1")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				s.AddMessage(Message{Content: "x"})
				s.SetMeta("k", j)
				_ = s.Messages()
				_, _ = s.Meta("k")
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 400, s.Len())
}

func TestMessageWithMetaDoesNotMutate(t *testing.T) {
	m := Message{Content: "x", Metadata: map[string]interface{}{"a": 1}}
	tagged := m.WithMeta("b", 2)

	assert.Nil(t, m.Metadata["b"])
	assert.Equal(t, 2, tagged.Metadata["b"])
	assert.Equal(t, 1, tagged.Metadata["a"])
	assert.Equal(t, 1, tagged.Meta("a"))
	assert.Nil(t, Message{}.Meta("missing"))
}
