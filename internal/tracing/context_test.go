package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextRoundTrip(t *testing.T) {
	ctx := context.Background()
	ctx = WithTraceID(ctx, "trace-123")
	ctx = WithRunID(ctx, "run-456")
	ctx = WithComponent(ctx, "turnqueue")
	ctx = WithSessionKey(ctx, "telegram:42")

	assert.Equal(t, "trace-123", GetTraceID(ctx))
	assert.Equal(t, "run-456", GetRunID(ctx))
	assert.Equal(t, "turnqueue", GetComponent(ctx))
	assert.Equal(t, "telegram:42", GetSessionKey(ctx))
}

func TestGettersReturnEmptyOnBareContext(t *testing.T) {
	ctx := context.Background()

	assert.Empty(t, GetTraceID(ctx))
	assert.Empty(t, GetRunID(ctx))
	assert.Empty(t, GetComponent(ctx))
	assert.Empty(t, GetSessionKey(ctx))
}

func TestFromContext(t *testing.T) {
	ctx := WithTraceID(context.Background(), "trace-123")
	ctx = WithSessionKey(ctx, "gateway:7")

	tc := FromContext(ctx)
	assert.Equal(t, "trace-123", tc.TraceID)
	assert.Equal(t, "gateway:7", tc.SessionKey)
	assert.Empty(t, tc.RunID)
}

func TestNewRequestContextAssignsTraceID(t *testing.T) {
	ctx := NewRequestContext(context.Background())
	assert.NotEmpty(t, GetTraceID(ctx))
}

func TestNewAgentRunContext(t *testing.T) {
	ctx := NewAgentRunContext(context.Background(), "turnqueue")

	assert.NotEmpty(t, GetRunID(ctx))
	assert.Equal(t, "turnqueue", GetComponent(ctx))
}

func TestNewAgentRunContextFreshRunIDs(t *testing.T) {
	first := NewAgentRunContext(context.Background(), "turnqueue")
	second := NewAgentRunContext(context.Background(), "turnqueue")

	assert.NotEqual(t, GetRunID(first), GetRunID(second))
}
