package tracing

import (
	"context"

	"github.com/rs/zerolog"
)

// PropagateToLogger adds tracing context fields to a zerolog logger.
func PropagateToLogger(ctx context.Context, logger zerolog.Logger) zerolog.Logger {
	tc := FromContext(ctx)

	if tc.TraceID != "" {
		logger = logger.With().Str("trace_id", tc.TraceID).Logger()
	}
	if tc.RunID != "" {
		logger = logger.With().Str("run_id", tc.RunID).Logger()
	}
	if tc.Component != "" {
		logger = logger.With().Str("component", tc.Component).Logger()
	}
	if tc.SessionKey != "" {
		logger = logger.With().Str("session_key", tc.SessionKey).Logger()
	}

	return logger
}

// LoggerFromContext creates a logger carrying the context's tracing fields.
func LoggerFromContext(ctx context.Context, baseLogger zerolog.Logger) zerolog.Logger {
	return PropagateToLogger(ctx, baseLogger)
}
