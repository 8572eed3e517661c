package audit

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger writes events to zerolog, failures at warn level.
type Logger struct {
	logger *zerolog.Logger
}

// NewLogger returns a sink writing to l, or to the global logger when l is nil.
func NewLogger(l *zerolog.Logger) *Logger {
	return &Logger{logger: l}
}

// Record implements Sink.
func (l *Logger) Record(_ context.Context, e Event) {
	logger := l.logger
	if logger == nil {
		logger = &log.Logger
	}

	ev := logger.Info()
	if e.Failure {
		ev = logger.Warn()
	}

	ev = ev.Str("audit", e.Name).Time("at", e.Time)

	if e.Username != "" {
		ev = ev.Str("username", e.Username)
	}

	if len(e.Scope) > 0 {
		ev = ev.Strs("scope", e.Scope)
	}

	if e.ClientID != "" {
		ev = ev.Str("client_id", e.ClientID)
	}

	if e.Strategy != "" {
		ev = ev.Str("strategy", e.Strategy)
	}

	if e.Reason != "" {
		ev = ev.Str("reason", e.Reason)
	}

	if e.Path != "" {
		ev = ev.Str("path", e.Path)
	}

	if len(e.Capability) > 0 {
		ev = ev.Strs("capability", e.Capability)
	}

	if e.Token != "" {
		ev = ev.Str("token", e.Token)
	}

	ev.Msg("audit event")
}
