// Package audit records security events produced by the auth core.
//
// Events never carry secrets. Tokens appear only as a short prefix.
package audit

import (
	"context"
	"time"
)

// Event is one audit record.
type Event struct {
	Name     string    `json:"event"`
	Time     time.Time `json:"time"`
	Failure  bool      `json:"failure"`
	Username string    `json:"username,omitempty"`
	Scope    []string  `json:"scope,omitempty"`
	ClientID string    `json:"client_id,omitempty"`
	Strategy string    `json:"strategy,omitempty"`
	Reason   string    `json:"reason,omitempty"`
	Path     string    `json:"path,omitempty"`
	// Capability is the permission a failed permission check required.
	Capability []string `json:"capability,omitempty"`
	// Token is a redacted token prefix.
	Token string `json:"token,omitempty"`
}

// Sink receives audit events. Record must not block on slow backends.
type Sink interface {
	Record(ctx context.Context, e Event)
}

// Func adapts a function to a Sink.
type Func func(ctx context.Context, e Event)

// Record implements Sink.
func (f Func) Record(ctx context.Context, e Event) {
	f(ctx, e)
}

type multi []Sink

func (m multi) Record(ctx context.Context, e Event) {
	for _, s := range m {
		s.Record(ctx, e)
	}
}

// Multi fans an event out to every non-nil sink.
func Multi(sinks ...Sink) Sink {
	out := make(multi, 0, len(sinks))

	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}

	if len(out) == 1 {
		return out[0]
	}

	return out
}

// Nop drops every event.
var Nop Sink = Func(func(context.Context, Event) {})
