package stdlogger_test

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoPowerDNS-Admin/adminauth/internal/logger/adapter/stdlogger"
)

func capture(t *testing.T, level zerolog.Level) *bytes.Buffer {
	t.Helper()

	var buf bytes.Buffer

	prevLogger, prevLevel := log.Logger, zerolog.GlobalLevel()
	log.Logger = zerolog.New(&buf)
	zerolog.SetGlobalLevel(level)

	t.Cleanup(func() {
		log.Logger = prevLogger
		zerolog.SetGlobalLevel(prevLevel)
	})

	return &buf
}

func lines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()

	var out []map[string]any

	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}

		m := map[string]any{}
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}

	return out
}

func TestLevels(t *testing.T) {
	buf := capture(t, zerolog.InfoLevel)

	l := stdlogger.New()
	l.Debugf("hidden %s", "debug")
	l.Infof("users %d", 2)
	l.Warningf("slow query %s", "SELECT 1")
	l.Errorf("failed: %v", "boom")

	got := lines(t, buf)
	require.Len(t, got, 3, "debug is below the global level")

	assert.Equal(t, "info", got[0]["level"])
	assert.Equal(t, "users 2", got[0]["message"])
	assert.Equal(t, "warn", got[1]["level"])
	assert.Equal(t, "error", got[2]["level"])
	assert.Equal(t, "failed: boom", got[2]["message"])
}

func TestPrintf(t *testing.T) {
	buf := capture(t, zerolog.DebugLevel)

	l := stdlogger.New()
	l.Printf("\n[%.3fms] [rows:%d] %s\n", 1.5, 1, "SELECT * FROM users")

	l.PrintLevel = zerolog.WarnLevel
	l.Printf("SLOW SQL >= %s", "200ms")

	got := lines(t, buf)
	require.Len(t, got, 2)

	assert.Equal(t, "info", got[0]["level"])
	assert.Equal(t, "[1.500ms] [rows:1] SELECT * FROM users", got[0]["message"], "gorm newlines are trimmed")
	assert.Equal(t, "warn", got[1]["level"])
}
