// Package credential verifies a username and secret against a configured user source.
package credential

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/GoPowerDNS-Admin/adminauth/internal/auth/identity"
	"github.com/GoPowerDNS-Admin/adminauth/internal/auth/scope"
	"github.com/GoPowerDNS-Admin/adminauth/internal/uniuri"
)

// DefaultLookupTimeout bounds a single user lookup.
const DefaultLookupTimeout = 5 * time.Second

// ErrLookupTimeout is the cause of a LookupError when the lookup did not answer in time.
var ErrLookupTimeout = errors.New("user lookup timed out")

// Credentials is what a caller presents at login.
type Credentials struct {
	Username string
	Secret   string
	// OTP is the one-time code for users with a second factor.
	OTP string
}

// Verifier turns credentials into an identity or a *identity.Failure.
type Verifier interface {
	Verify(ctx context.Context, c Credentials) (*identity.Identity, error)
}

// Record is a user as returned by a lookup.
type Record struct {
	Username   string
	Hash       string
	Scope      scope.Scope
	Attributes map[string]string
	TOTPSecret string
	Disabled   bool
}

// LookupFunc finds a user. It returns nil, nil for an unknown username.
type LookupFunc func(ctx context.Context, username string) (*Record, error)

// Store verifies secrets against hashes returned by a LookupFunc.
type Store struct {
	lookup  LookupFunc
	hasher  *Hasher
	timeout time.Duration
	source  string
	like    string

	// dummy is compared for unknown users. It follows the profile of the last real
	// hash seen so unknown and known users cost the same.
	dummy   atomic.Pointer[dummyHash]
	mu      sync.Mutex
	dummies map[string]string
}

type dummyHash struct {
	profile string
	hash    string
}

// Option customises a Store.
type Option func(*Store)

// WithTimeout bounds each lookup.
func WithTimeout(d time.Duration) Option {
	return func(s *Store) {
		s.timeout = d
	}
}

// WithSource sets the auth_source attribute of produced identities.
func WithSource(source string) Option {
	return func(s *Store) {
		s.source = source
	}
}

// WithDummyLike makes unknown users cost the same as a user stored with hash.
func WithDummyLike(hash string) Option {
	return func(s *Store) {
		s.like = hash
	}
}

// NewStore creates a store. It hashes a random secret once so unknown users cost the same as known ones.
// Without WithDummyLike the first dummy uses the hasher's own argon2id parameters.
func NewStore(lookup LookupFunc, hasher *Hasher, opts ...Option) (*Store, error) {
	s := &Store{
		lookup:  lookup,
		hasher:  hasher,
		timeout: DefaultLookupTimeout,
		source:  "local",
		dummies: make(map[string]string),
	}

	for _, opt := range opts {
		opt(s)
	}

	like := s.like
	if like == "" {
		secret, err := uniuri.Token()
		if err != nil {
			return nil, err
		}

		if like, err = hasher.Hash(secret); err != nil {
			return nil, fmt.Errorf("dummy hash: %w", err)
		}
	}

	if err := s.follow(like); err != nil {
		return nil, fmt.Errorf("dummy hash: %w", err)
	}

	return s, nil
}

// follow switches the dummy to the profile of hash, hashing a new one at most once per profile.
func (s *Store) follow(hash string) error {
	p := profile(hash)
	if cur := s.dummy.Load(); cur != nil && cur.profile == p {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dummy, ok := s.dummies[p]
	if !ok {
		secret, err := uniuri.Token()
		if err != nil {
			return err
		}

		if dummy, err = s.hasher.mimic(secret, hash); err != nil {
			return err
		}

		s.dummies[p] = dummy
	}

	s.dummy.Store(&dummyHash{profile: p, hash: dummy})

	return nil
}

// Verify checks c and returns the identity of the user.
func (s *Store) Verify(ctx context.Context, c Credentials) (*identity.Identity, error) {
	rec, err := s.find(ctx, c.Username)
	if err != nil {
		return nil, identity.Fail(identity.LookupError, c.Username, err)
	}

	if rec == nil || rec.Disabled {
		// same work as a wrong password
		_, _ = s.hasher.Compare(c.Secret, s.dummy.Load().hash)

		return nil, identity.Fail(identity.UnknownUser, c.Username, nil)
	}

	ok, err := s.hasher.Compare(c.Secret, rec.Hash)
	if err != nil {
		return nil, identity.Fail(identity.LookupError, c.Username, err)
	}

	if err = s.follow(rec.Hash); err != nil {
		log.Warn().Err(err).Msg("can't follow password hash profile")
	}

	if !ok {
		return nil, identity.Fail(identity.BadSecret, c.Username, nil)
	}

	if rec.TOTPSecret != "" && !ValidOTP(c.OTP, rec.TOTPSecret) {
		return nil, identity.Fail(identity.BadSecret, c.Username, ErrBadOTP)
	}

	attrs := maps.Clone(rec.Attributes)
	if attrs == nil {
		attrs = make(map[string]string, 1)
	}

	attrs[identity.AttrAuthSource] = s.source

	return identity.New(rec.Username, rec.Scope, attrs), nil
}

// find runs the lookup bounded by the store timeout, even if the lookup ignores ctx.
func (s *Store) find(ctx context.Context, username string) (*Record, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	type result struct {
		rec *Record
		err error
	}

	done := make(chan result, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("user lookup panicked: %v", r)} //nolint:err113
			}
		}()

		rec, err := s.lookup(ctx, username)
		done <- result{rec: rec, err: err}
	}()

	select {
	case r := <-done:
		return r.rec, r.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrLookupTimeout
		}

		return nil, ctx.Err() //nolint:wrapcheck
	}
}
