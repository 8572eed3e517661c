package logger_test

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoPowerDNS-Admin/adminauth/internal/logger"
)

func TestLevelWriter(t *testing.T) {
	var trace, info, warn, errs bytes.Buffer

	lw := &logger.LevelWriter{Trace: &trace, Info: &info, Warn: &warn, Error: &errs}

	write := func(l zerolog.Level, msg string) {
		_, err := lw.WriteLevel(l, []byte(msg))
		require.NoError(t, err)
	}

	write(zerolog.TraceLevel, "t")
	write(zerolog.DebugLevel, "d")
	write(zerolog.InfoLevel, "i")
	write(zerolog.WarnLevel, "w")
	write(zerolog.ErrorLevel, "e")
	write(zerolog.FatalLevel, "f")
	write(zerolog.Disabled, "x")

	assert.Equal(t, "t", trace.String())
	assert.Equal(t, "di", info.String())
	assert.Equal(t, "w", warn.String())
	assert.Equal(t, "ef", errs.String())

	n, err := (&logger.LevelWriter{}).WriteLevel(zerolog.InfoLevel, []byte("dropped"))
	require.NoError(t, err)
	assert.Equal(t, len("dropped"), n, "a missing band swallows the event")
}

func TestInitErrors(t *testing.T) {
	tests := []struct {
		name string
		cfg  logger.Log
		err  error
	}{
		{"unknown level", logger.Log{LogLevel: "loud", AppName: "a", ServiceName: "s"}, nil},
		{"no service", logger.Log{LogLevel: "info", AppName: "a"}, logger.ErrServiceNameIsEmpty},
		{"no app", logger.Log{LogLevel: "info", ServiceName: "s"}, logger.ErrAppNameIsEmpty},
		{
			"file without path",
			logger.Log{LogLevel: "info", AppName: "a", ServiceName: "s", File: logger.LogFile{Enabled: true}},
			logger.ErrFilePathIsEmpty,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := logger.Init(tt.cfg)
			require.Error(t, err)

			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
			}
		})
	}
}

func TestInitConsoleJSON(t *testing.T) {
	out := captureStd(t, func() {
		require.NoError(t, logger.Init(logger.Log{
			LogLevel:    "info",
			LogEnv:      "test",
			AppName:     "adminauth",
			ServiceName: "adminauth-test",
			Console:     logger.Console{Enabled: true},
		}))

		log.Info().Str("user", "admin").Msg("login")
		log.Debug().Msg("below level")
		log.Warn().Msg("careful")
	})

	var events []map[string]any

	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		m := map[string]any{}
		require.NoError(t, json.Unmarshal([]byte(line), &m), line)
		events = append(events, m)
	}

	require.Len(t, events, 2)
	assert.Equal(t, "login", events[0]["message"])
	assert.Equal(t, "adminauth", events[0]["app"])
	assert.Equal(t, "test", events[0]["env"])
	assert.Equal(t, "admin", events[0]["user"])
	assert.Equal(t, "warn", events[1]["level"])

	assert.GreaterOrEqual(t, logCount(t, "adminauth-test", "info"), 1.0)
	assert.GreaterOrEqual(t, logCount(t, "adminauth-test", "warn"), 1.0)
}

func TestInitConsoleWriter(t *testing.T) {
	out := captureStd(t, func() {
		require.NoError(t, logger.Init(logger.Log{
			LogLevel:    "trace",
			AppName:     "adminauth",
			ServiceName: "adminauth",
			Console:     logger.Console{Enabled: true, UseConsoleWriter: true},
		}))

		log.Trace().Msg("trace is on")
	})

	assert.Contains(t, out, "trace is on")
	assert.False(t, strings.HasPrefix(strings.TrimSpace(out), "{"), "console writer output is not JSON")
}

func TestInitFiles(t *testing.T) {
	dir := t.TempDir()

	require.NoError(t, logger.Init(logger.Log{
		LogLevel:    "info",
		AppName:     "adminauth",
		ServiceName: "adminauth",
		File: logger.LogFile{
			Enabled:  true,
			Path:     dir,
			InfoLog:  "info.log",
			WarnLog:  "warn.log",
			ErrorLog: "error.log",
			TraceLog: "trace.log",
		},
	}))

	log.Info().Msg("to the info file")
	log.Error().Msg("to the error file")

	info, err := os.ReadFile(dir + "/info.log")
	require.NoError(t, err)
	assert.Contains(t, string(info), "to the info file")
	assert.NotContains(t, string(info), "to the error file")

	errs, err := os.ReadFile(dir + "/error.log")
	require.NoError(t, err)
	assert.Contains(t, string(errs), "to the error file")
}

func captureStd(t *testing.T, fn func()) string {
	t.Helper()

	stdout, stderr := os.Stdout, os.Stderr
	prev := log.Logger

	r, w, err := os.Pipe()
	require.NoError(t, err)

	os.Stdout, os.Stderr = w, w

	done := make(chan string)

	go func() {
		var buf bytes.Buffer

		_, _ = io.Copy(&buf, r)
		done <- buf.String()
	}()

	fn()

	_ = w.Close()
	os.Stdout, os.Stderr = stdout, stderr
	log.Logger = prev

	return <-done
}

func logCount(t *testing.T, service, level string) float64 {
	t.Helper()

	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)

	for _, f := range families {
		if f.GetName() != "adminauth_log_statements_total" {
			continue
		}

		for _, m := range f.GetMetric() {
			labels := map[string]string{}
			for _, l := range m.GetLabel() {
				labels[l.GetName()] = l.GetValue()
			}

			if labels["service"] == service && labels["level"] == level {
				return m.GetCounter().GetValue()
			}
		}
	}

	return 0
}
