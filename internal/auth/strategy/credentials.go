package strategy

import (
	"context"
	"strings"

	"github.com/GoPowerDNS-Admin/adminauth/internal/auth/credential"
	"github.com/GoPowerDNS-Admin/adminauth/internal/auth/identity"
	"github.com/GoPowerDNS-Admin/adminauth/internal/auth/ratelimit"
)

// Credentials authenticates a username and password guarded by the rate limiter.
type Credentials struct {
	verifier credential.Verifier
	limiter  *ratelimit.Limiter
}

// NewCredentials creates the strategy.
func NewCredentials(verifier credential.Verifier, limiter *ratelimit.Limiter) *Credentials {
	return &Credentials{verifier: verifier, limiter: limiter}
}

// Name implements Strategy.
func (s *Credentials) Name() string {
	return NameCredentials
}

// Prompt implements Prompter.
func (s *Credentials) Prompt() Prompt {
	return Prompt{Type: NameCredentials}
}

// Attempt implements Strategy. It applies when the request carries a username field.
func (s *Credentials) Attempt(ctx context.Context, r *Request) (*identity.Identity, error) {
	if !r.Form.Has("username") {
		return nil, ErrNotApplicable
	}

	return s.Authenticate(ctx, credential.Credentials{
		Username: r.Form.Get("username"),
		Secret:   r.Form.Get("password"),
		OTP:      r.Form.Get("otp"),
	})
}

// Authenticate verifies c. A blocked username is rejected without touching the verifier.
func (s *Credentials) Authenticate(ctx context.Context, c credential.Credentials) (*identity.Identity, error) {
	key := limiterKey(c.Username)

	if s.limiter.IsBlocked(key) {
		return nil, identity.Fail(identity.RateLimited, c.Username, nil)
	}

	id, err := s.verifier.Verify(ctx, c)
	if err != nil {
		switch identity.KindOf(err) {
		case identity.UnknownUser, identity.BadSecret:
			s.limiter.RecordFailure(key)
		}

		return nil, err
	}

	s.limiter.Reset(key)

	return tag(id, NameCredentials), nil
}

// limiterKey folds the spellings a case-insensitive user source treats as one account.
func limiterKey(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}
