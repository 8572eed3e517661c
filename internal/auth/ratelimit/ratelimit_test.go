package ratelimit_test

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoPowerDNS-Admin/adminauth/internal/auth/ratelimit"
	"github.com/GoPowerDNS-Admin/adminauth/internal/kv"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *clock {
	return &clock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func TestDefaults(t *testing.T) {
	l := ratelimit.New(ratelimit.Config{})
	assert.Equal(t, 10*time.Minute, l.Window())

	for range ratelimit.DefaultMaxAttempts - 1 {
		l.RecordFailure("admin")
	}

	assert.False(t, l.IsBlocked("admin"))
	l.RecordFailure("admin")
	assert.True(t, l.IsBlocked("admin"))
	assert.False(t, l.IsBlocked("viewer"))
}

func TestWindowExpiry(t *testing.T) {
	c := newClock()
	l := ratelimit.New(ratelimit.Config{WindowMs: 1000, MaxAttempts: 2}, ratelimit.WithClock(c.Now))

	l.RecordFailure("admin")
	c.Advance(600 * time.Millisecond)
	l.RecordFailure("admin")
	assert.True(t, l.IsBlocked("admin"))

	c.Advance(500 * time.Millisecond)
	assert.False(t, l.IsBlocked("admin"), "first attempt left the window")
	assert.Equal(t, 2, l.RecordFailure("admin"))

	c.Advance(2 * time.Second)
	assert.False(t, l.IsBlocked("admin"))
	assert.Equal(t, 1, l.RecordFailure("admin"))
}

func TestReset(t *testing.T) {
	l := ratelimit.New(ratelimit.Config{MaxAttempts: 2})

	l.RecordFailure("admin")
	l.RecordFailure("admin")
	require.True(t, l.IsBlocked("admin"))

	l.Reset("admin")
	assert.False(t, l.IsBlocked("admin"))
	assert.Equal(t, 1, l.RecordFailure("admin"))

	l.Reset("unknown")
}

func TestConcurrentFailuresAreCounted(t *testing.T) {
	l := ratelimit.New(ratelimit.Config{MaxAttempts: 1000})

	var wg sync.WaitGroup

	for range 50 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for range 10 {
				l.RecordFailure("admin")
				l.IsBlocked("admin")
			}
		}()
	}

	wg.Wait()

	assert.Equal(t, 501, l.RecordFailure("admin"))
}

func TestDurableEntries(t *testing.T) {
	c := newClock()
	store := kv.NewMemory().WithClock(c.Now)
	cfg := ratelimit.Config{WindowMs: 60000, MaxAttempts: 3}

	first := ratelimit.New(cfg, ratelimit.WithStore(store), ratelimit.WithClock(c.Now))
	for range 3 {
		first.RecordFailure("admin")
	}

	raw, err := store.Get("ratelimit:admin")
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"attemptTimestamps"`)

	restarted := ratelimit.New(cfg, ratelimit.WithStore(store), ratelimit.WithClock(c.Now))
	assert.True(t, restarted.IsBlocked("admin"))

	restarted.Reset("admin")
	raw, err = store.Get("ratelimit:admin")
	require.NoError(t, err)
	assert.Nil(t, raw)
}

func TestDurableLongKey(t *testing.T) {
	c := newClock()
	store := kv.NewMemory().WithClock(c.Now)
	cfg := ratelimit.Config{WindowMs: 60000, MaxAttempts: 2}
	long := strings.Repeat("u", 100)

	first := ratelimit.New(cfg, ratelimit.WithStore(store), ratelimit.WithClock(c.Now))
	first.RecordFailure(long)
	first.RecordFailure(long)

	keys, err := store.Keys("")
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.LessOrEqual(t, len(keys[0]), kv.MaxKeyLength)

	restarted := ratelimit.New(cfg, ratelimit.WithStore(store), ratelimit.WithClock(c.Now))
	assert.True(t, restarted.IsBlocked(long))
	assert.False(t, restarted.IsBlocked(strings.Repeat("v", 100)))
}

func TestSweep(t *testing.T) {
	c := newClock()
	store := kv.NewMemory().WithClock(c.Now)
	l := ratelimit.New(ratelimit.Config{WindowMs: 1000}, ratelimit.WithStore(store), ratelimit.WithClock(c.Now))

	l.RecordFailure("a")
	l.RecordFailure("b")
	assert.Equal(t, 0, l.Sweep())

	c.Advance(2 * time.Second)
	assert.Equal(t, 2, l.Sweep())
	assert.Equal(t, 1, l.RecordFailure("a"))
}
