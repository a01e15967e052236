package observability

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/velesbot/veles/internal/tracing"
)

// AuditEvent is a structured record of a user-visible runtime action, kept
// separate from operational logs so it can be retained longer.
type AuditEvent struct {
	Timestamp time.Time              `json:"timestamp"`
	Actor     string                 `json:"actor,omitempty"` // session key or channel
	Action    string                 `json:"action"`          // e.g. "turn_started", "stop_requested"
	Status    string                 `json:"status"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	TraceID   string                 `json:"trace_id,omitempty"`
}

// AuditLogger records audit events to a dedicated append-only file.
type AuditLogger struct {
	logger zerolog.Logger
	mu     sync.Mutex
	file   *os.File
}

var (
	auditOnce sync.Once
	auditInst *AuditLogger
)

// GetAuditLogger returns the global audit logger, defaulting to stderr until
// InitAuditLogger is called.
func GetAuditLogger() *AuditLogger {
	auditOnce.Do(func() {
		if auditInst == nil {
			auditInst = &AuditLogger{
				logger: zerolog.New(os.Stderr).With().Timestamp().Logger(),
			}
		}
	})
	return auditInst
}

// InitAuditLogger points the global audit logger at a file.
func InitAuditLogger(path string) error {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}

	auditInst = &AuditLogger{
		logger: zerolog.New(file).With().Timestamp().Logger(),
		file:   file,
	}
	return nil
}

// Record writes one audit event.
func (a *AuditLogger) Record(evt AuditEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}

	a.logger.Log().
		Str("actor", evt.Actor).
		Str("action", evt.Action).
		Str("status", evt.Status).
		Str("trace_id", evt.TraceID).
		Interface("metadata", evt.Metadata).
		Time("timestamp", evt.Timestamp).
		Send()
}

// Close closes the underlying file, if any.
func (a *AuditLogger) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.file != nil {
		return a.file.Close()
	}
	return nil
}

// RecordStopAudit records a user stop request against a session.
func RecordStopAudit(ctx context.Context, sessionKey string, flushed int) {
	GetAuditLogger().Record(AuditEvent{
		Actor:   sessionKey,
		Action:  "stop_requested",
		Status:  "success",
		TraceID: tracing.GetTraceID(ctx),
		Metadata: map[string]interface{}{
			"flushed": flushed,
		},
	})
}

// RecordTurnAudit records completion of one agent turn.
func RecordTurnAudit(ctx context.Context, sessionKey string, success bool) {
	status := "failure"
	if success {
		status = "success"
	}
	GetAuditLogger().Record(AuditEvent{
		Actor:   sessionKey,
		Action:  "turn_completed",
		Status:  status,
		TraceID: tracing.GetTraceID(ctx),
	})
}
