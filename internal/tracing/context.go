package tracing

import (
	"context"

	"github.com/google/uuid"
)

// ContextKey is the type for context keys.
type ContextKey string

const (
	// TraceIDKey is the context key for trace ID.
	TraceIDKey ContextKey = "trace_id"
	// RunIDKey is the context key for run ID.
	RunIDKey ContextKey = "run_id"
	// ComponentKey is the context key for the component driving a run.
	ComponentKey ContextKey = "component"
	// SessionKeyKey is the context key for session key.
	SessionKeyKey ContextKey = "session_key"
)

// TraceContext holds tracing information.
type TraceContext struct {
	TraceID    string
	RunID      string
	Component  string
	SessionKey string
}

// NewTraceID generates a new trace ID.
func NewTraceID() string {
	return uuid.New().String()
}

// NewRunID generates a new run ID.
func NewRunID() string {
	return uuid.New().String()
}

// WithTraceID adds a trace ID to the context.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// WithRunID adds a run ID to the context.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, RunIDKey, runID)
}

// WithComponent tags the context with the component driving the run.
func WithComponent(ctx context.Context, component string) context.Context {
	return context.WithValue(ctx, ComponentKey, component)
}

// WithSessionKey adds a session key to the context.
func WithSessionKey(ctx context.Context, sessionKey string) context.Context {
	return context.WithValue(ctx, SessionKeyKey, sessionKey)
}

// GetTraceID retrieves the trace ID from the context.
func GetTraceID(ctx context.Context) string {
	if traceID, ok := ctx.Value(TraceIDKey).(string); ok {
		return traceID
	}
	return ""
}

// GetRunID retrieves the run ID from the context.
func GetRunID(ctx context.Context) string {
	if runID, ok := ctx.Value(RunIDKey).(string); ok {
		return runID
	}
	return ""
}

// GetComponent retrieves the component from the context.
func GetComponent(ctx context.Context) string {
	if component, ok := ctx.Value(ComponentKey).(string); ok {
		return component
	}
	return ""
}

// GetSessionKey retrieves the session key from the context.
func GetSessionKey(ctx context.Context) string {
	if sessionKey, ok := ctx.Value(SessionKeyKey).(string); ok {
		return sessionKey
	}
	return ""
}

// FromContext extracts all tracing information from the context.
func FromContext(ctx context.Context) *TraceContext {
	return &TraceContext{
		TraceID:    GetTraceID(ctx),
		RunID:      GetRunID(ctx),
		Component:  GetComponent(ctx),
		SessionKey: GetSessionKey(ctx),
	}
}

// NewRequestContext creates a new context for a request with a new trace ID.
func NewRequestContext(ctx context.Context) context.Context {
	return WithTraceID(ctx, NewTraceID())
}

// NewAgentRunContext creates a new context for one agent run with a fresh
// run ID.
func NewAgentRunContext(ctx context.Context, component string) context.Context {
	ctx = WithRunID(ctx, NewRunID())
	return WithComponent(ctx, component)
}
