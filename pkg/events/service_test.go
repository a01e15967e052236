package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/velesbot/veles/pkg/session"
)

func TestServiceEmitForSession(t *testing.T) {
	store, err := session.NewStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	svc := NewService(nil)
	ch, cancel := svc.Hub().Subscribe("test:chat-1", 4)
	defer cancel()

	sess := store.GetOrCreate("test", "chat-1")
	svc.EmitForSession(sess, TypeTurnInterruptRequested, map[string]interface{}{"source": "command.stop"})

	select {
	case evt := <-ch:
		assert.Equal(t, TypeTurnInterruptRequested, evt.Type)
		assert.Equal(t, "test:chat-1", evt.SessionKey)
		assert.Equal(t, "command.stop", evt.Payload["source"])
		assert.False(t, evt.Timestamp.IsZero())
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestServiceToleratesNilSession(t *testing.T) {
	svc := NewService(NewHub())
	assert.NotPanics(t, func() {
		svc.EmitForSession(nil, TypeTurnStarted, nil)
		svc.EmitForSession(nil, "", nil)
	})
}
