package kv

import (
	"sync"
	"time"
)

type memoryEntry struct {
	val      []byte
	expireAt time.Time
}

// Memory is a process local Store for tests and for embedders that run without a database.
type Memory struct {
	mu   sync.RWMutex
	data map[string]memoryEntry
	now  func() time.Time
}

var (
	_ Store  = (*Memory)(nil)
	_ Lister = (*Memory)(nil)
)

// NewMemory creates an empty memory store.
func NewMemory() *Memory {
	return &Memory{
		data: make(map[string]memoryEntry),
		now:  time.Now,
	}
}

// WithClock replaces the clock used for expiry.
func (m *Memory) WithClock(now func() time.Time) *Memory {
	m.now = now

	return m
}

// Get returns a copy of the value or nil if missing or expired.
func (m *Memory) Get(key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.data[key]
	if !ok || (!e.expireAt.IsZero() && !m.now().Before(e.expireAt)) {
		return nil, nil
	}

	out := make([]byte, len(e.val))
	copy(out, e.val)

	return out, nil
}

// Set stores a copy of val.
func (m *Memory) Set(key string, val []byte, exp time.Duration) error {
	buf := make([]byte, len(val))
	copy(buf, val)

	e := memoryEntry{val: buf}
	if exp > 0 {
		e.expireAt = m.now().Add(exp)
	}

	m.mu.Lock()
	m.data[key] = e
	m.mu.Unlock()

	return nil
}

// Delete removes key. Unknown keys are ignored.
func (m *Memory) Delete(key string) error {
	m.mu.Lock()
	delete(m.data, key)
	m.mu.Unlock()

	return nil
}

// Keys returns the unexpired keys starting with prefix.
func (m *Memory) Keys(prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := m.now()
	keys := make([]string, 0, len(m.data))

	for k, e := range m.data {
		if e.expireAt.IsZero() || now.Before(e.expireAt) {
			keys = append(keys, k)
		}
	}

	return withPrefix(keys, prefix), nil
}

// Len returns the number of stored keys including expired ones not yet overwritten.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.data)
}
