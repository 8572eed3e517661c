package session

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Reap removes sessions that expired more than the grace period ago and returns how many were removed.
func (m *Manager) Reap() int {
	cutoff := m.now().Add(-m.grace)

	var keys []string

	for i := range m.shards {
		sh := &m.shards[i]

		sh.mu.Lock()
		for key, s := range sh.sessions {
			if s.Expired(cutoff) {
				delete(sh.sessions, key)
				keys = append(keys, key)
			}
		}
		sh.mu.Unlock()
	}

	activeSessions.Sub(float64(len(keys)))
	m.unpersist(keys)

	return len(keys)
}

// Run reaps on every interval until ctx is done.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Reap(); n > 0 {
				log.Debug().Int("removed", n).Msg("expired sessions reaped")
			}
		}
	}
}

// Load restores persisted sessions. Sessions already expired are dropped right away.
func (m *Manager) Load() (int, error) {
	if m.store == nil {
		return 0, nil
	}

	keys, err := m.persistedKeys()
	if err != nil {
		return 0, err
	}

	now := m.now()

	var (
		loaded int
		stale  []string
	)

	for _, key := range keys {
		raw, err := m.store.Get(recordKey(key))
		if err != nil {
			log.Warn().Err(err).Msg("can't read session, skipping")

			continue
		}

		if raw == nil {
			stale = append(stale, key)

			continue
		}

		s, err := decode(raw)
		if err != nil || s.Expired(now) {
			stale = append(stale, key)

			continue
		}

		sh := m.shard(key)
		sh.mu.Lock()
		if _, ok := sh.sessions[key]; !ok {
			sh.sessions[key] = s
			loaded++
		}
		sh.mu.Unlock()
	}

	activeSessions.Add(float64(loaded))
	m.unpersist(stale)

	return loaded, nil
}
