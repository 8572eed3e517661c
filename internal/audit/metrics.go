package audit

import (
	"context"
	"errors"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Counter counts events by name and outcome before passing them on.
type Counter struct {
	next   Sink
	events *prometheus.CounterVec
}

// NewCounter registers adminauth_audit_events_total with reg. A nil reg uses the default registerer.
func NewCounter(next Sink, reg prometheus.Registerer) (*Counter, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	events := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adminauth_audit_events_total",
			Help: "Number of audit events, differentiated by event name and failure.",
		},
		[]string{"event", "failure"},
	)

	if err := reg.Register(events); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			return nil, err
		}

		existing, ok := are.ExistingCollector.(*prometheus.CounterVec)
		if !ok {
			return nil, err
		}

		events = existing
	}

	if next == nil {
		next = Nop
	}

	return &Counter{next: next, events: events}, nil
}

// Record implements Sink.
func (c *Counter) Record(ctx context.Context, e Event) {
	c.events.WithLabelValues(e.Name, strconv.FormatBool(e.Failure)).Inc()
	c.next.Record(ctx, e)
}
