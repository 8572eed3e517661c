package logger

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var (
	counterOnce sync.Once              //nolint:gochecknoglobals
	counter     *prometheus.CounterVec //nolint:gochecknoglobals

	droppedOnce sync.Once          //nolint:gochecknoglobals
	dropped     prometheus.Counter //nolint:gochecknoglobals
)

// PrometheusHook counts log statements per level.
type PrometheusHook struct {
	service string
}

// Run implements zerolog.Hook.
func (h PrometheusHook) Run(_ *zerolog.Event, level zerolog.Level, _ string) {
	if level != zerolog.NoLevel {
		counter.WithLabelValues(h.service, level.String()).Inc()
	}
}

// NewPrometheusHook returns a hook labelling its counts with service.
// The collector is registered once per process.
func NewPrometheusHook(service string) PrometheusHook {
	counterOnce.Do(func() {
		counter = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "adminauth_log_statements_total",
				Help: "Number of log statements, differentiated by service and log level.",
			},
			[]string{"service", "level"},
		)
	})

	return PrometheusHook{service: service}
}

func droppedCounter() prometheus.Counter {
	droppedOnce.Do(func() {
		dropped = promauto.NewCounter(prometheus.CounterOpts{
			Name: "adminauth_log_dropped_total",
			Help: "Number of log statements that could not be written.",
		})
	})

	return dropped
}
