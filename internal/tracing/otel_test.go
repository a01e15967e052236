package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSampleRatioClampsIntoRange(t *testing.T) {
	assert.Equal(t, 1.0, sampleRatio(0))
	assert.Equal(t, 1.0, sampleRatio(-0.5))
	assert.Equal(t, 1.0, sampleRatio(3))
	assert.Equal(t, 0.25, sampleRatio(0.25))
	assert.Equal(t, 1.0, sampleRatio(1))
}

func TestInitIsIdempotent(t *testing.T) {
	require.NoError(t, Init(Config{ServiceName: "veles-test", SampleRatio: 0.5}))
	require.NoError(t, Init(Config{ServiceName: "something-else"}))
}

func TestStartSpanAssignsTraceID(t *testing.T) {
	require.NoError(t, Init(Config{ServiceName: "veles-test"}))

	ctx, span := StartSpan(context.Background(), "veles/test", "test.op")
	defer span.End()

	assert.NotEmpty(t, GetTraceID(ctx))
}

func TestStartSpanKeepsExistingTraceID(t *testing.T) {
	require.NoError(t, Init(Config{ServiceName: "veles-test"}))

	ctx := WithTraceID(context.Background(), "trace-existing")
	ctx, span := StartSpan(ctx, "veles/test", "test.op")
	defer span.End()

	assert.Equal(t, "trace-existing", GetTraceID(ctx))
}

func TestShutdownFlushesProvider(t *testing.T) {
	require.NoError(t, Init(Config{ServiceName: "veles-test"}))
	assert.NoError(t, Shutdown(context.Background()))
}
