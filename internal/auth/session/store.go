package session

import (
	"encoding/json"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/GoPowerDNS-Admin/adminauth/internal/auth/identity"
	"github.com/GoPowerDNS-Admin/adminauth/internal/auth/scope"
	"github.com/GoPowerDNS-Admin/adminauth/internal/kv"
)

const (
	recordPrefix = "session:"
	indexPrefix  = "sessions:index:"
)

// record is the durable shape of a session.
type record struct {
	IdentityID string            `json:"id"`
	Scope      scope.Scope       `json:"scope"`
	Attributes map[string]string `json:"attributes,omitempty"`
	ClientID   string            `json:"client"`
	IssuedAt   int64             `json:"issuedAt"`
	ExpiresAt  int64             `json:"expiresAt"`
}

func recordKey(key string) string {
	return recordPrefix + key
}

// persistedKeys returns the hashed keys of every stored session.
func (m *Manager) persistedKeys() ([]string, error) {
	lister, ok := m.store.(kv.Lister)
	if !ok {
		return m.index.read()
	}

	records, err := lister.Keys(recordPrefix)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	keys := make([]string, len(records))
	for i, r := range records {
		keys[i] = strings.TrimPrefix(r, recordPrefix)
	}

	return keys, nil
}

func encode(s *Session) ([]byte, error) {
	return json.Marshal(record{ //nolint:wrapcheck
		IdentityID: s.Identity.ID(),
		Scope:      s.Identity.Scope(),
		Attributes: s.Identity.Attributes(),
		ClientID:   s.ClientID,
		IssuedAt:   s.IssuedAt.UnixMilli(),
		ExpiresAt:  s.ExpiresAt.UnixMilli(),
	})
}

func decode(raw []byte) (*Session, error) {
	var r record
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, err //nolint:wrapcheck
	}

	return &Session{
		Identity:  identity.New(r.IdentityID, r.Scope, r.Attributes),
		ClientID:  r.ClientID,
		IssuedAt:  time.UnixMilli(r.IssuedAt),
		ExpiresAt: time.UnixMilli(r.ExpiresAt),
	}, nil
}

// index lists the hashed keys of persisted sessions for stores that cannot enumerate
// their keys. It is split like the session table: each shard owns its own lock and
// its own kv entry, so a login rewrites only the keys of one shard.
type index struct {
	store  kv.Store
	shards [shardCount]indexShard
}

type indexShard struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

func newIndex(store kv.Store) *index {
	i := &index{store: store}
	for n := range i.shards {
		i.shards[n].keys = make(map[string]struct{})
	}

	return i
}

func indexKey(n int) string {
	return indexPrefix + strconv.Itoa(n)
}

func (i *index) read() ([]string, error) {
	var all []string

	for n := range i.shards {
		sh := &i.shards[n]

		raw, err := i.store.Get(indexKey(n))
		if err != nil {
			return nil, err //nolint:wrapcheck
		}

		if raw == nil {
			continue
		}

		var keys []string
		if err = json.Unmarshal(raw, &keys); err != nil {
			return nil, err //nolint:wrapcheck
		}

		sh.mu.Lock()
		for _, k := range keys {
			sh.keys[k] = struct{}{}
		}
		sh.mu.Unlock()

		all = append(all, keys...)
	}

	return all, nil
}

func (i *index) add(key string) {
	n := shardOf(key)
	sh := &i.shards[n]

	sh.mu.Lock()
	defer sh.mu.Unlock()

	sh.keys[key] = struct{}{}
	i.flush(n)
}

func (i *index) remove(keys ...string) {
	byShard := make(map[int][]string)
	for _, k := range keys {
		n := shardOf(k)
		byShard[n] = append(byShard[n], k)
	}

	for n, ks := range byShard {
		sh := &i.shards[n]

		sh.mu.Lock()

		changed := false

		for _, k := range ks {
			if _, ok := sh.keys[k]; ok {
				delete(sh.keys, k)

				changed = true
			}
		}

		if changed {
			i.flush(n)
		}

		sh.mu.Unlock()
	}
}

// flush writes the index of shard n. The caller holds its lock.
func (i *index) flush(n int) {
	sh := &i.shards[n]

	var err error

	if len(sh.keys) == 0 {
		err = i.store.Delete(indexKey(n))
	} else {
		keys := make([]string, 0, len(sh.keys))
		for k := range sh.keys {
			keys = append(keys, k)
		}

		var raw []byte

		raw, err = json.Marshal(keys)
		if err == nil {
			err = i.store.Set(indexKey(n), raw, 0)
		}
	}

	if err != nil {
		log.Warn().Err(err).Int("shard", n).Msg("can't store session index")
	}
}
