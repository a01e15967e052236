package observability

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/velesbot/veles/internal/tracing"
)

func initTestAuditLog(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audit.log")
	require.NoError(t, InitAuditLogger(path))
	return path
}

func TestAuditLoggerWritesToFile(t *testing.T) {
	path := initTestAuditLog(t)

	GetAuditLogger().Record(AuditEvent{
		Actor:  "telegram:42",
		Action: "stop_requested",
		Status: "success",
	})

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"action":"stop_requested"`)
	assert.Contains(t, string(data), `"actor":"telegram:42"`)
}

func TestRecordStopAuditIncludesFlushCountAndTrace(t *testing.T) {
	path := initTestAuditLog(t)

	ctx := tracing.WithTraceID(context.Background(), "trace-abc")
	RecordStopAudit(ctx, "telegram:42", 3)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"flushed":3`)
	assert.Contains(t, string(data), `"trace_id":"trace-abc"`)
}

func TestRecordTurnAuditStatus(t *testing.T) {
	path := initTestAuditLog(t)

	RecordTurnAudit(context.Background(), "gateway:7", true)
	RecordTurnAudit(context.Background(), "gateway:7", false)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"status":"success"`)
	assert.Contains(t, string(data), `"status":"failure"`)
}

func TestGetAuditLoggerDefaultsWithoutInit(t *testing.T) {
	assert.NotNil(t, GetAuditLogger())
}
