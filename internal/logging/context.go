package logging

import (
	"context"
	"log/slog"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldEventType classifies a log line for filtering, e.g. "capture_failed".
	FieldEventType = "event_type"
	// FieldErrorHint carries the suggested next step for warnings and errors.
	FieldErrorHint = "error_hint"
	// FieldImpact is the standardized key for user-facing consequence of a warning.
	FieldImpact = "impact"
	// FieldStreamer is the Twitch login being watched.
	FieldStreamer = "streamer"
	// FieldSessionID identifies one recording session.
	FieldSessionID = "session_id"
	// FieldPath is an output file path.
	FieldPath = "path"
	// FieldAttempt is the supervisor restart attempt counter.
	FieldAttempt = "attempt"
	// FieldExitCode is a child process exit status.
	FieldExitCode = "exit_code"
	// FieldOutcome is a classified capture outcome.
	FieldOutcome = "outcome"
)

type contextKey int

const (
	sessionIDKey contextKey = iota
	streamerKey
)

// WithSessionID returns a context carrying the recording session identifier.
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionIDKey, id)
}

// WithStreamer returns a context carrying the watched login.
func WithStreamer(ctx context.Context, login string) context.Context {
	return context.WithValue(ctx, streamerKey, login)
}

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 2)
	if login, ok := ctx.Value(streamerKey).(string); ok && login != "" {
		fields = append(fields, slog.String(FieldStreamer, login))
	}
	if id, ok := ctx.Value(sessionIDKey).(string); ok && id != "" {
		fields = append(fields, slog.String(FieldSessionID, id))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(attrsToArgs(fields)...)
}
