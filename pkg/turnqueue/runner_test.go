package turnqueue

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/velesbot/veles/pkg/session"
)

func entryMsg(content string) session.Message {
	return session.Message{Content: content, Channel: "test", ChatID: "chat-1"}
}

func TestRunnerPushReplacesUnderOneAtATime(t *testing.T) {
	r := newSessionRunner(SessionKey{Channel: "test", ChatID: "chat-1"})

	assert.Equal(t, 0, r.push(entryMsg("F1"), KindFollowUp, ModeOneAtATime))
	assert.Equal(t, 1, r.push(entryMsg("F2"), KindFollowUp, ModeOneAtATime))
	require.Len(t, r.followUp, 1)
	assert.Equal(t, "F2", r.followUp[0].msg.Content)

	// Replacement is scoped to the kind.
	r.push(entryMsg("S1"), KindSteering, ModeOneAtATime)
	assert.Len(t, r.followUp, 1)
	assert.Len(t, r.steering, 1)
}

func TestRunnerPushAppendsUnderAll(t *testing.T) {
	r := newSessionRunner(SessionKey{Channel: "test", ChatID: "chat-1"})

	for i := 1; i <= 3; i++ {
		assert.Equal(t, 0, r.push(entryMsg(fmt.Sprintf("F%d", i)), KindFollowUp, ModeAll))
	}
	require.Len(t, r.followUp, 3)
	assert.Equal(t, uint64(0), r.followUp[0].seq)
	assert.Equal(t, uint64(2), r.followUp[2].seq)
}

func TestRunnerDropOldestSpansKinds(t *testing.T) {
	r := newSessionRunner(SessionKey{Channel: "test", ChatID: "chat-1"})

	r.push(entryMsg("F1"), KindFollowUp, ModeAll)
	r.push(entryMsg("S1"), KindSteering, ModeAll)
	r.push(entryMsg("F2"), KindFollowUp, ModeAll)
	r.push(entryMsg("S2"), KindSteering, ModeAll)

	assert.Equal(t, 2, r.dropOldest(2))
	require.Len(t, r.followUp, 1)
	require.Len(t, r.steering, 1)
	assert.Equal(t, "F2", r.followUp[0].msg.Content)
	assert.Equal(t, "S2", r.steering[0].msg.Content)
}

func TestRunnerDrainPreservesArrivalOrder(t *testing.T) {
	r := newSessionRunner(SessionKey{Channel: "test", ChatID: "chat-1"})

	r.push(entryMsg("F1"), KindFollowUp, ModeAll)
	r.push(entryMsg("S1"), KindSteering, ModeAll)
	r.push(entryMsg("S2"), KindSteering, ModeAll)
	r.push(entryMsg("F2"), KindFollowUp, ModeAll)

	drained := r.drain()
	require.Len(t, drained, 4)
	var contents []string
	for _, entry := range drained {
		contents = append(contents, entry.msg.Content)
	}
	assert.Equal(t, []string{"F1", "S1", "S2", "F2"}, contents)
	assert.Equal(t, 0, r.pendingLen())

	assert.Nil(t, r.drain())
}
