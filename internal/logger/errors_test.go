package logger

import (
	"bytes"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func droppedTotal(t *testing.T) float64 {
	t.Helper()

	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)

	for _, f := range families {
		if f.GetName() == "adminauth_log_dropped_total" {
			return f.GetMetric()[0].GetCounter().GetValue()
		}
	}

	return 0
}

func TestErrorHandler(t *testing.T) {
	var buf bytes.Buffer

	prev := errorOutput
	errorOutput = &buf

	t.Cleanup(func() { errorOutput = prev })

	before := droppedTotal(t)

	ErrorHandler(errors.New("disk full"))

	assert.Equal(t, "adminauth: dropped log statement: disk full\n", buf.String())
	assert.InDelta(t, before+1, droppedTotal(t), 0)
}
