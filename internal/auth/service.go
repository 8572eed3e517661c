package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/GoPowerDNS-Admin/adminauth/internal/audit"
	"github.com/GoPowerDNS-Admin/adminauth/internal/auth/client"
	"github.com/GoPowerDNS-Admin/adminauth/internal/auth/credential"
	"github.com/GoPowerDNS-Admin/adminauth/internal/auth/identity"
	"github.com/GoPowerDNS-Admin/adminauth/internal/auth/ratelimit"
	"github.com/GoPowerDNS-Admin/adminauth/internal/auth/scope"
	"github.com/GoPowerDNS-Admin/adminauth/internal/auth/session"
	"github.com/GoPowerDNS-Admin/adminauth/internal/auth/strategy"
	"github.com/GoPowerDNS-Admin/adminauth/internal/logger"
)

// GrantPassword is the only grant type accepted by the token endpoint.
const GrantPassword = "password"

// Service authenticates requests, logs callers in and out and checks permissions.
type Service struct {
	sessions *session.Manager
	clients  *client.Registry
	registry *strategy.Registry
	limiter  *ratelimit.Limiter
	audit    audit.Sink
	now      func() time.Time

	// loginPaths are the only paths on which login strategies join the request chain.
	loginPaths map[string]bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option customises a Service.
type Option func(*Service)

// WithAudit sets the audit sink. The default drops events.
func WithAudit(sink audit.Sink) Option {
	return func(s *Service) {
		s.audit = sink
	}
}

// WithLimiter hands the rate limiter to the background sweep.
func WithLimiter(l *ratelimit.Limiter) Option {
	return func(s *Service) {
		s.limiter = l
	}
}

// WithClock replaces time.Now for audit timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithLoginPaths lets credentials and oauth2 strategies run in the request chain on the given paths,
// for embedders that accept a login on their own routes through RequirePermission. The token endpoint
// calls Login directly and the oauth2 callback path is added by New, so neither needs it.
func WithLoginPaths(paths ...string) Option {
	return func(s *Service) {
		for _, p := range paths {
			s.loginPaths[p] = true
		}
	}
}

// New creates the service. The registry order is the strategy priority.
func New(sessions *session.Manager, clients *client.Registry, registry *strategy.Registry, opts ...Option) *Service {
	s := &Service{
		sessions:   sessions,
		clients:    clients,
		registry:   registry,
		audit:      audit.Nop,
		now:        time.Now,
		loginPaths: make(map[string]bool),
	}

	if o, ok := registry.Get(strategy.NameOAuth2); ok {
		if cb, ok := o.(interface{ CallbackPath() string }); ok {
			s.loginPaths[cb.CallbackPath()] = true
		}
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start runs session reclamation and the rate limit sweep until Close.
func (s *Service) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)

	go func() {
		defer s.wg.Done()
		s.sessions.Run(ctx)
	}()

	if s.limiter != nil {
		s.wg.Add(1)

		go func() {
			defer s.wg.Done()
			s.limiter.Run(ctx, max(s.limiter.Window()/10, time.Second)) //nolint:mnd
		}()
	}
}

// Close stops the background tasks started by Start.
func (s *Service) Close() {
	if s.cancel != nil {
		s.cancel()
	}

	s.wg.Wait()
}

// Sessions returns the session manager.
func (s *Service) Sessions() *session.Manager {
	return s.sessions
}

// Prompts lists what a login chooser may offer.
func (s *Service) Prompts() []strategy.Prompt {
	return s.registry.Prompts()
}

// OAuth2 returns the external provider strategy, or nil when it is not enabled.
func (s *Service) OAuth2() *strategy.OAuth2 {
	st, ok := s.registry.Get(strategy.NameOAuth2)
	if !ok {
		return nil
	}

	o, _ := st.(*strategy.OAuth2)

	return o
}

// AuthenticateRequest runs the strategies in priority order. The first identity wins,
// a not applicable strategy passes to the next one and a failure ends the chain unless
// the request allows anonymous fallback. Failures are Unauthenticated wrapping the
// strategy failure.
func (s *Service) AuthenticateRequest(ctx context.Context, req *strategy.Request) (*identity.Identity, error) {
	anonymous, hasAnonymous := s.registry.Get(strategy.NameAnonymous)

	for _, st := range s.registry.Strategies() {
		switch st.Name() {
		case strategy.NameAnonymous:
			continue
		case strategy.NameCredentials, strategy.NameOAuth2:
			if !s.loginPaths[req.Path] {
				continue
			}
		}

		id, err := st.Attempt(ctx, req)
		if errors.Is(err, strategy.ErrNotApplicable) {
			continue
		}

		if err != nil {
			s.recordFailure(ctx, failureEvent(err), err, audit.Event{
				Strategy: st.Name(),
				Path:     req.Path,
				Token:    logger.Token(req.BearerToken()),
			})

			if req.AnonymousOnFailure && hasAnonymous {
				return s.anonymous(ctx, anonymous, req)
			}

			return nil, identity.Fail(identity.Unauthenticated, "", err)
		}

		s.recordSuccess(ctx, EventAuthenticated, id, audit.Event{Path: req.Path})

		return id, nil
	}

	if hasAnonymous {
		return s.anonymous(ctx, anonymous, req)
	}

	err := identity.Fail(identity.Unauthenticated, "", ErrNoStrategy)
	s.recordFailure(ctx, EventUnauthenticated, err, audit.Event{Path: req.Path})

	return nil, err
}

func (s *Service) anonymous(ctx context.Context, st strategy.Strategy, req *strategy.Request) (*identity.Identity, error) {
	id, err := st.Attempt(ctx, req)
	if err != nil {
		return nil, identity.Fail(identity.Unauthenticated, "", err)
	}

	s.recordSuccess(ctx, EventAnonymous, id, audit.Event{Path: req.Path})

	return id, nil
}

// RequirePermission authenticates req and checks the identity holds every capability.
// Forbidden failures carry the identity so callers can tell who was refused.
func (s *Service) RequirePermission(ctx context.Context, req *strategy.Request, capabilities ...string) (*identity.Identity, error) {
	id, err := s.AuthenticateRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	if !scope.HasPermission(id.Scope(), capabilities...) {
		s.record(ctx, audit.Event{
			Name:       EventPermissionFail,
			Failure:    true,
			Username:   id.ID(),
			Scope:      id.Scope().Values(),
			Strategy:   id.Attribute(identity.AttrStrategy),
			Path:       req.Path,
			Capability: capabilities,
			Reason:     identity.Forbidden.String(),
		})

		return id, identity.Fail(identity.Forbidden, id.ID(), nil)
	}

	return id, nil
}

// LoginInput is a token request.
type LoginInput struct {
	ClientID     string
	ClientSecret string
	// GrantType defaults to GrantPassword.
	GrantType string
	// Strategy is strategy.NameCredentials (default) or strategy.NameOAuth2.
	Strategy string
	Username string
	Password string
	OTP      string
	// Scope narrows the session scope. Empty keeps the identity scope.
	Scope scope.Scope

	// Code, State and ProviderError carry an OAuth2 callback.
	Code          string
	State         string
	ProviderError string
}

// Login authenticates the client and then the user with exactly one strategy and issues a session.
func (s *Service) Login(ctx context.Context, in *LoginInput) (*session.Session, error) {
	c, err := s.clients.Authenticate(in.ClientID, in.ClientSecret)
	if err != nil {
		failure := identity.Fail(identity.Unauthenticated, in.Username, err)
		s.recordFailure(ctx, EventLoginFailClient, failure, audit.Event{
			ClientID: in.ClientID,
			Reason:   err.Error(),
		})

		return nil, failure
	}

	name := in.Strategy
	if name == "" {
		name = strategy.NameCredentials
	}

	id, err := s.authenticateLogin(ctx, name, in)
	if err != nil {
		s.recordFailure(ctx, failureEvent(err), err, audit.Event{
			ClientID: c.ID,
			Strategy: name,
			Username: in.Username,
		})

		return nil, err
	}

	if !in.Scope.IsEmpty() {
		if !scope.Satisfies(id.Scope(), in.Scope) {
			failure := identity.Fail(identity.Forbidden, id.ID(), ErrScopeNotGranted)
			s.recordFailure(ctx, EventLoginFailPermissions, failure, audit.Event{
				ClientID:   c.ID,
				Strategy:   name,
				Scope:      id.Scope().Values(),
				Capability: in.Scope.Values(),
			})

			return nil, failure
		}

		id = id.WithScope(in.Scope)
	}

	sess, err := s.sessions.Issue(id, c.ID, 0)
	if err != nil {
		log.Error().Err(err).Str("username", id.ID()).Msg("failed to issue session")

		return nil, identity.Fail(identity.LookupError, id.ID(), err)
	}

	s.recordSuccess(ctx, EventLogin, id, audit.Event{
		ClientID: c.ID,
		Strategy: name,
		Token:    logger.Token(sess.Token),
	})

	return sess, nil
}

func (s *Service) authenticateLogin(ctx context.Context, name string, in *LoginInput) (*identity.Identity, error) {
	st, ok := s.registry.Get(name)
	if !ok {
		return nil, identity.Fail(identity.Unauthenticated, in.Username, fmt.Errorf("%w: %s", ErrStrategyDisabled, name))
	}

	switch st := st.(type) {
	case *strategy.Credentials:
		if in.GrantType != "" && in.GrantType != GrantPassword {
			return nil, identity.Fail(identity.Unauthenticated, in.Username, fmt.Errorf("%w: %s", ErrUnsupportedGrant, in.GrantType))
		}

		return st.Authenticate(ctx, credential.Credentials{Username: in.Username, Secret: in.Password, OTP: in.OTP})
	case *strategy.OAuth2:
		return st.Callback(ctx, in.Code, in.State, in.ProviderError)
	default:
		return nil, identity.Fail(identity.Unauthenticated, in.Username, fmt.Errorf("%w: %s", ErrStrategyDisabled, name))
	}
}

// LoginWithPassword is Login for the password grant.
func (s *Service) LoginWithPassword(ctx context.Context, clientID, username, password string) (*session.Session, error) {
	return s.Login(ctx, &LoginInput{ClientID: clientID, Username: username, Password: password})
}

// Logout revokes token. Unknown tokens are ignored.
func (s *Service) Logout(ctx context.Context, token string) {
	e := audit.Event{Name: EventLogout, Token: logger.Token(token)}

	if sess := s.sessions.Lookup(token); sess != nil {
		e.Username = sess.Identity.ID()
		e.ClientID = sess.ClientID
	}

	s.sessions.Revoke(token)
	s.record(ctx, e)
}

// RevokeIdentity ends every session of an identity.
func (s *Service) RevokeIdentity(ctx context.Context, identityID string) int {
	n := s.sessions.RevokeIdentity(identityID)

	s.record(ctx, audit.Event{Name: EventLogout, Username: identityID, Reason: fmt.Sprintf("%d sessions revoked", n)})

	return n
}

// failedUsername finds the attempted username in a failure chain.
func failedUsername(err error) string {
	for err != nil {
		var f *identity.Failure
		if !errors.As(err, &f) {
			return ""
		}

		if f.Username != "" {
			return f.Username
		}

		err = f.Err
	}

	return ""
}
