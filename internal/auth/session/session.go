// Package session issues and tracks opaque bearer tokens bound to an identity.
//
// Tokens are never stored: both the in-memory table and the durable records are
// keyed by the unpadded base64url SHA-256 of the token. The table is sharded by an
// xxhash of that key so concurrent logins and lookups rarely share a lock.
package session

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"

	"github.com/GoPowerDNS-Admin/adminauth/internal/auth/identity"
	"github.com/GoPowerDNS-Admin/adminauth/internal/kv"
	"github.com/GoPowerDNS-Admin/adminauth/internal/uniuri"
)

const (
	// DefaultExpiryTime is the default session lifetime in seconds, one week.
	DefaultExpiryTime = 604800
	// DefaultReapInterval is the default reclamation interval in seconds.
	DefaultReapInterval = 60
	// DefaultReapGrace is the default grace in seconds before an expired session is reclaimed.
	DefaultReapGrace = 5

	shardCount = 32
)

// ErrNilIdentity is returned when issuing a session without an identity.
var ErrNilIdentity = errors.New("session: identity is nil")

var activeSessions = promauto.NewGauge(prometheus.GaugeOpts{ //nolint:gochecknoglobals
	Name: "adminauth_sessions_active",
	Help: "Number of sessions held in memory.",
})

// Config of the manager, all values in seconds.
type Config struct {
	ExpiryTime   int `mapstructure:"sessionExpiryTime" validate:"gte=0"`
	ReapInterval int `mapstructure:"sessionReapInterval" validate:"gte=0"`
	ReapGrace    int `mapstructure:"sessionReapGrace" validate:"gte=0"`
}

// Session binds a token to an identity until ExpiresAt.
type Session struct {
	// Token is only set on the value returned by Issue and Lookup.
	Token     string
	Identity  *identity.Identity
	ClientID  string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Expired reports whether the session is no longer valid at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

type shard struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// Manager is the session table.
type Manager struct {
	ttl      time.Duration
	interval time.Duration
	grace    time.Duration
	store    kv.Store
	now      func() time.Time
	shards   [shardCount]shard
	// index is nil when the store can list its keys.
	index *index
}

// Option customises a Manager.
type Option func(*Manager)

// WithStore mirrors sessions to s.
func WithStore(s kv.Store) Option {
	return func(m *Manager) {
		m.store = s
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// New creates a manager. Zero values in cfg fall back to the defaults.
func New(cfg Config, opts ...Option) *Manager {
	if cfg.ExpiryTime <= 0 {
		cfg.ExpiryTime = DefaultExpiryTime
	}

	if cfg.ReapInterval <= 0 {
		cfg.ReapInterval = DefaultReapInterval
	}

	if cfg.ReapGrace <= 0 {
		cfg.ReapGrace = DefaultReapGrace
	}

	m := &Manager{
		ttl:      time.Duration(cfg.ExpiryTime) * time.Second,
		interval: time.Duration(cfg.ReapInterval) * time.Second,
		grace:    time.Duration(cfg.ReapGrace) * time.Second,
		now:      time.Now,
	}

	for i := range m.shards {
		m.shards[i].sessions = make(map[string]*Session)
	}

	for _, opt := range opts {
		opt(m)
	}

	if _, ok := m.store.(kv.Lister); m.store != nil && !ok {
		m.index = newIndex(m.store)
	}

	return m
}

// TTL returns the default session lifetime.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Issue creates a session for id. A ttl of zero uses the configured lifetime.
func (m *Manager) Issue(id *identity.Identity, clientID string, ttl time.Duration) (*Session, error) {
	if id == nil {
		return nil, ErrNilIdentity
	}

	if ttl <= 0 {
		ttl = m.ttl
	}

	token, err := uniuri.Token()
	if err != nil {
		return nil, fmt.Errorf("session: generate token: %w", err)
	}

	now := m.now()
	s := &Session{
		Identity:  id,
		ClientID:  clientID,
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
	}

	key := hashToken(token)

	// persisted before it becomes visible, so a revoke can never race the write
	m.persist(key, s)

	sh := m.shard(key)
	sh.mu.Lock()
	sh.sessions[key] = s
	sh.mu.Unlock()

	activeSessions.Inc()

	out := *s
	out.Token = token

	return &out, nil
}

// Lookup returns the session of token, or nil when unknown or expired.
func (m *Manager) Lookup(token string) *Session {
	if token == "" {
		return nil
	}

	key := hashToken(token)
	sh := m.shard(key)

	sh.mu.RLock()
	s, ok := sh.sessions[key]
	sh.mu.RUnlock()

	if !ok || s.Expired(m.now()) {
		return nil
	}

	out := *s
	out.Token = token

	return &out
}

// Revoke removes the session of token. Unknown tokens are ignored.
func (m *Manager) Revoke(token string) {
	if token == "" {
		return
	}

	m.remove([]string{hashToken(token)})
}

// RevokeIdentity removes every session of the identity and returns how many were removed.
func (m *Manager) RevokeIdentity(identityID string) int {
	var keys []string

	for i := range m.shards {
		sh := &m.shards[i]

		sh.mu.RLock()
		for key, s := range sh.sessions {
			if s.Identity.ID() == identityID {
				keys = append(keys, key)
			}
		}
		sh.mu.RUnlock()
	}

	return m.remove(keys)
}

// Len returns the number of sessions in memory, including expired ones not yet reaped.
func (m *Manager) Len() int {
	var n int

	for i := range m.shards {
		sh := &m.shards[i]

		sh.mu.RLock()
		n += len(sh.sessions)
		sh.mu.RUnlock()
	}

	return n
}

func (m *Manager) remove(keys []string) int {
	var removed []string

	for _, key := range keys {
		sh := m.shard(key)

		sh.mu.Lock()
		if _, ok := sh.sessions[key]; ok {
			delete(sh.sessions, key)
			removed = append(removed, key)
		}
		sh.mu.Unlock()
	}

	activeSessions.Sub(float64(len(removed)))

	// durable deletion is attempted even when memory no longer knew the key
	m.unpersist(keys)

	return len(removed)
}

func (m *Manager) shard(key string) *shard {
	return &m.shards[shardOf(key)]
}

func shardOf(key string) int {
	return int(xxhash.Sum64String(key) % shardCount)
}

// hashToken keeps recordKey within kv.MaxKeyLength.
func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))

	return base64.RawURLEncoding.EncodeToString(sum[:])
}

func (m *Manager) persist(key string, s *Session) {
	if m.store == nil {
		return
	}

	raw, err := encode(s)
	if err != nil {
		log.Warn().Err(err).Msg("can't encode session")

		return
	}

	if err = m.store.Set(recordKey(key), raw, s.ExpiresAt.Sub(s.IssuedAt)+m.grace); err != nil {
		log.Warn().Err(err).Str("identity", s.Identity.ID()).Msg("can't store session")

		return
	}

	if m.index != nil {
		m.index.add(key)
	}
}

func (m *Manager) unpersist(keys []string) {
	if m.store == nil || len(keys) == 0 {
		return
	}

	for _, key := range keys {
		if err := m.store.Delete(recordKey(key)); err != nil {
			log.Warn().Err(err).Msg("can't delete session")
		}
	}

	if m.index != nil {
		m.index.remove(keys...)
	}
}
