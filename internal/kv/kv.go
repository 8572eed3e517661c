// Package kv is the durable key-value contract used to survive restarts.
//
// The contract matches the subset of github.com/gofiber/storage that sessions and
// rate-limit entries need: last write wins per key, no transactions. Get returns
// nil, nil for a missing or expired key. Keys are at most MaxKeyLength bytes, the
// width of the k column of the gofiber SQL tables.
package kv

import (
	"io"
	"sort"
	"strings"
	"time"
)

// MaxKeyLength is the longest key every backend accepts.
const MaxKeyLength = 64

// Store is a durable key-value store.
type Store interface {
	Get(key string) ([]byte, error)
	// Set stores val under key. A zero exp means no expiry.
	Set(key string, val []byte, exp time.Duration) error
	Delete(key string) error
}

// Lister is implemented by stores that can enumerate their keys.
type Lister interface {
	// Keys returns the unexpired keys starting with prefix, sorted.
	Keys(prefix string) ([]string, error)
}

// Close closes s if it holds resources.
func Close(s Store) error {
	if c, ok := s.(io.Closer); ok {
		return c.Close() //nolint:wrapcheck
	}

	return nil
}

// likePattern matches prefix with SQL LIKE. Wildcards inside prefix only widen the
// match, callers filter the result with withPrefix.
func likePattern(prefix string) string {
	return prefix + "%"
}

func withPrefix(keys []string, prefix string) []string {
	out := keys[:0]

	for _, k := range keys {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}

	sort.Strings(out)

	return out
}
