// Package ratelimit counts failed login attempts per key inside a trailing window.
//
// Each key owns an entry with its own mutex, so attempts for different usernames
// never contend and attempts for the same username are linearized. Entries are
// mirrored to a kv.Store so lockouts survive a restart.
package ratelimit

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog/log"

	"github.com/GoPowerDNS-Admin/adminauth/internal/kv"
)

const (
	// DefaultWindowMs is the default trailing window.
	DefaultWindowMs = 600000
	// DefaultMaxAttempts is the default number of failures that blocks a key.
	DefaultMaxAttempts = 5

	keyPrefix = "ratelimit:"
)

// Config of the limiter.
type Config struct {
	WindowMs    int64 `mapstructure:"windowMs" validate:"gte=0"`
	MaxAttempts int   `mapstructure:"maxAttempts" validate:"gte=0"`
}

// Limiter tracks failures per key.
type Limiter struct {
	window  time.Duration
	max     int
	store   kv.Store
	now     func() time.Time
	entries sync.Map // string -> *entry
}

type entry struct {
	mu       sync.Mutex
	attempts []time.Time
	loaded   bool
	dead     bool
}

// record is the durable shape of an entry.
type record struct {
	Key         string  `json:"key"`
	Attempts    []int64 `json:"attemptTimestamps"`
	WindowStart int64   `json:"windowStart"`
}

// Option customises a Limiter.
type Option func(*Limiter)

// WithStore mirrors entries to s.
func WithStore(s kv.Store) Option {
	return func(l *Limiter) {
		l.store = s
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		l.now = now
	}
}

// New creates a limiter. Zero values in cfg fall back to the defaults.
func New(cfg Config, opts ...Option) *Limiter {
	if cfg.WindowMs <= 0 {
		cfg.WindowMs = DefaultWindowMs
	}

	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}

	l := &Limiter{
		window: time.Duration(cfg.WindowMs) * time.Millisecond,
		max:    cfg.MaxAttempts,
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Window returns the trailing window.
func (l *Limiter) Window() time.Duration {
	return l.window
}

// IsBlocked reports whether key has reached the threshold inside the window.
func (l *Limiter) IsBlocked(key string) bool {
	e := l.lock(key, false)
	if e == nil {
		return false
	}
	defer e.mu.Unlock()

	now := l.now()
	if l.prune(e, now) {
		l.release(key, e)

		return false
	}

	return len(e.attempts) >= l.max
}

// RecordFailure adds a failed attempt for key and returns the number of failures inside the window.
func (l *Limiter) RecordFailure(key string) int {
	e := l.lock(key, true)
	defer e.mu.Unlock()

	now := l.now()
	l.prune(e, now)
	e.attempts = append(e.attempts, now)
	l.persist(key, e)

	return len(e.attempts)
}

// Reset clears the history of key.
func (l *Limiter) Reset(key string) {
	e := l.lock(key, false)
	if e == nil {
		return
	}
	defer e.mu.Unlock()

	e.attempts = nil
	l.release(key, e)
}

// Sweep drops every entry without attempts inside the window.
func (l *Limiter) Sweep() int {
	var removed int

	now := l.now()

	l.entries.Range(func(k, v any) bool {
		e, _ := v.(*entry)
		key, _ := k.(string)

		e.mu.Lock()
		if e.loaded && !e.dead && l.prune(e, now) {
			l.release(key, e)

			removed++
		}
		e.mu.Unlock()

		return true
	})

	return removed
}

// Run sweeps on every tick until ctx is done.
func (l *Limiter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := l.Sweep(); n > 0 {
				log.Debug().Int("removed", n).Msg("rate limit entries swept")
			}
		}
	}
}

// lock returns the locked entry of key. Without create it returns nil when key has no history.
func (l *Limiter) lock(key string, create bool) *entry {
	for {
		v, ok := l.entries.Load(key)
		if !ok {
			if !create && !l.stored(key) {
				return nil
			}

			v, _ = l.entries.LoadOrStore(key, &entry{})
		}

		e, _ := v.(*entry)
		e.mu.Lock()

		if e.dead {
			// removed while we waited, retry with a fresh entry
			e.mu.Unlock()

			continue
		}

		if !e.loaded {
			e.attempts = l.load(key)
			e.loaded = true
		}

		return e
	}
}

// prune drops attempts outside the window and reports whether none remain.
func (l *Limiter) prune(e *entry, now time.Time) bool {
	cutoff := now.Add(-l.window)

	i := 0
	for i < len(e.attempts) && !e.attempts[i].After(cutoff) {
		i++
	}

	if i > 0 {
		e.attempts = append(e.attempts[:0:0], e.attempts[i:]...)
	}

	return len(e.attempts) == 0
}

// release removes an empty entry. The caller holds e.mu.
func (l *Limiter) release(key string, e *entry) {
	e.dead = true
	l.entries.CompareAndDelete(key, e)

	if l.store == nil {
		return
	}

	if err := l.store.Delete(storeKey(key)); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("can't delete rate limit entry")
	}
}

// storeKey keeps durable keys within kv.MaxKeyLength. Longer keys are replaced by
// their xxhash, the record carries the full key.
func storeKey(key string) string {
	if len(keyPrefix)+len(key) <= kv.MaxKeyLength {
		return keyPrefix + key
	}

	return keyPrefix + "#" + strconv.FormatUint(xxhash.Sum64String(key), 16)
}

func (l *Limiter) persist(key string, e *entry) {
	if l.store == nil {
		return
	}

	r := record{
		Key:         key,
		Attempts:    make([]int64, len(e.attempts)),
		WindowStart: e.attempts[0].UnixMilli(),
	}

	for i, at := range e.attempts {
		r.Attempts[i] = at.UnixMilli()
	}

	raw, err := json.Marshal(r)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("can't encode rate limit entry")

		return
	}

	if err = l.store.Set(storeKey(key), raw, l.window); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("can't store rate limit entry")
	}
}

func (l *Limiter) stored(key string) bool {
	if l.store == nil {
		return false
	}

	raw, err := l.store.Get(storeKey(key))
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("can't read rate limit entry")

		return false
	}

	return raw != nil
}

func (l *Limiter) load(key string) []time.Time {
	if l.store == nil {
		return nil
	}

	raw, err := l.store.Get(storeKey(key))
	if err != nil || raw == nil {
		return nil
	}

	var r record
	if err = json.Unmarshal(raw, &r); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("dropping malformed rate limit entry")

		return nil
	}

	if r.Key != key {
		return nil
	}

	attempts := make([]time.Time, 0, len(r.Attempts))
	for _, ms := range r.Attempts {
		attempts = append(attempts, time.UnixMilli(ms))
	}

	return attempts
}
