package observability

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureRegisteredIsIdempotent(t *testing.T) {
	assert.NotPanics(t, func() {
		EnsureRegistered()
		EnsureRegistered()
	})
}

func TestRecordersDoNotPanic(t *testing.T) {
	assert.NotPanics(t, func() {
		SetActiveRunners(3)
		SetRunsInFlight(1)
		RecordTurn("telegram", 120*time.Millisecond, true)
		RecordTurn("telegram", 5*time.Second, false)
		RecordEnqueue("telegram", "started")
		RecordEnqueue("gateway", "queued")
		RecordPendingDrop("telegram", "overflow")
		RecordPendingDrop("telegram", "replaced")
		RecordPendingMerge("telegram", "steering", 2)
		RecordStopRequest("telegram")
		RecordFlush("telegram", 4)
		SetActiveSessions(2)
		RecordSessionLoad(3 * time.Millisecond)
		RecordSessionSave(2 * time.Millisecond)
		RecordIngress("gateway", "accepted")
		RecordRuntimeEvent("turn.started")
	})
}

func TestMetricsHandlerExposesCoordinatorSeries(t *testing.T) {
	RecordTurn("telegram", time.Second, true)
	RecordEnqueue("telegram", "started")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	MetricsHandler().ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "turns_total")
	assert.Contains(t, body, "turn_enqueue_total")
	assert.Contains(t, body, "turn_duration_seconds")
}
