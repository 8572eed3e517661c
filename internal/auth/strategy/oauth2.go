package strategy

import (
	"container/list"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/GoPowerDNS-Admin/adminauth/internal/auth/identity"
	"github.com/GoPowerDNS-Admin/adminauth/internal/auth/scope"
	"github.com/GoPowerDNS-Admin/adminauth/internal/uniuri"
)

// Defaults of the OAuth2 strategy.
const (
	DefaultCallbackPath = "/auth/strategy/callback"
	DefaultStartPath    = "/auth/strategy"
	DefaultOAuth2Label  = "Sign in with SSO"
	defaultTimeout      = 10 * time.Second
	stateTTL            = 10 * time.Minute
	maxStates           = 10000
	maxUserInfoBytes    = 1 << 20
)

var (
	// ErrInvalidState is returned for a callback with an unknown, reused or expired state.
	ErrInvalidState = errors.New("invalid oauth2 state")

	// ErrNoSubject is returned when the provider profile lacks a subject.
	ErrNoSubject = errors.New("provider profile has no subject")

	// ErrProviderDenied is returned when the provider redirects back with an error.
	ErrProviderDenied = errors.New("provider returned an error")

	// ErrNoEndpoints is returned when neither an issuer nor explicit endpoints are configured.
	ErrNoEndpoints = errors.New("oauth2 needs an issuer or auth and token urls")
)

// OAuth2Config configures the external provider.
type OAuth2Config struct {
	Enabled      bool
	Label        string
	Icon         string
	ClientID     string `mapstructure:"clientId" validate:"required_if=Enabled true"`
	ClientSecret string `mapstructure:"clientSecret"`
	RedirectURL  string `mapstructure:"redirectUrl" validate:"required_if=Enabled true"`
	// Issuer enables OIDC discovery and id_token verification.
	Issuer      string
	AuthURL     string `mapstructure:"authUrl"`
	TokenURL    string `mapstructure:"tokenUrl"`
	UserInfoURL string `mapstructure:"userInfoUrl"`
	// JWKSURL verifies id_tokens without discovery, Issuer must be set as well.
	JWKSURL string `mapstructure:"jwksUrl"`
	// Scopes requested from the provider, default openid, email and profile.
	Scopes []string
	// UsernameClaim names the profile claim used as identity id, default email then sub.
	UsernameClaim string
	// GroupsClaim names the profile claim holding groups, default "groups".
	GroupsClaim string
	// GroupScopes maps a provider group to the scope it grants.
	GroupScopes map[string][]string
	// DefaultScope is granted to every authenticated provider user.
	DefaultScope []string
	// Timeout in seconds of every call to the provider.
	Timeout      int
	CallbackPath string
}

// ScopeMapper turns a provider profile into a scope.
type ScopeMapper func(profile map[string]any) scope.Scope

// OAuth2 authenticates a caller through an external OAuth2/OIDC provider.
type OAuth2 struct {
	cfg         OAuth2Config
	oauth       *oauth2.Config
	verifier    *oidc.IDTokenVerifier
	userInfoURL string
	client      *http.Client
	timeout     time.Duration
	mapScope    ScopeMapper
	states      *stateStore
}

// OAuth2Option customises the strategy.
type OAuth2Option func(*OAuth2)

// WithScopeMapper replaces the group based mapping.
func WithScopeMapper(m ScopeMapper) OAuth2Option {
	return func(o *OAuth2) {
		o.mapScope = m
	}
}

// WithHTTPClient replaces the client used to reach the provider.
func WithHTTPClient(c *http.Client) OAuth2Option {
	return func(o *OAuth2) {
		o.client = c
	}
}

// NewOAuth2 creates the strategy. With an issuer and no explicit endpoints the provider is discovered.
func NewOAuth2(ctx context.Context, cfg OAuth2Config, opts ...OAuth2Option) (*OAuth2, error) {
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = []string{oidc.ScopeOpenID, "email", "profile"}
	}

	if cfg.GroupsClaim == "" {
		cfg.GroupsClaim = "groups"
	}

	if cfg.CallbackPath == "" {
		cfg.CallbackPath = DefaultCallbackPath
	}

	if cfg.Label == "" {
		cfg.Label = DefaultOAuth2Label
	}

	o := &OAuth2{
		cfg:         cfg,
		userInfoURL: cfg.UserInfoURL,
		client:      http.DefaultClient,
		timeout:     defaultTimeout,
		states:      newStateStore(stateTTL, maxStates),
	}

	if cfg.Timeout > 0 {
		o.timeout = time.Duration(cfg.Timeout) * time.Second
	}

	o.mapScope = GroupScopeMapper(cfg.GroupsClaim, cfg.GroupScopes, cfg.DefaultScope)

	for _, opt := range opts {
		opt(o)
	}

	endpoint := oauth2.Endpoint{AuthURL: cfg.AuthURL, TokenURL: cfg.TokenURL}
	oidcConfig := &oidc.Config{ClientID: cfg.ClientID}

	switch {
	case cfg.Issuer != "" && (cfg.AuthURL == "" || cfg.TokenURL == ""):
		dctx, cancel := context.WithTimeout(oidc.ClientContext(ctx, o.client), o.timeout)
		defer cancel()

		provider, err := oidc.NewProvider(dctx, cfg.Issuer)
		if err != nil {
			return nil, fmt.Errorf("failed to discover OIDC provider: %w", err)
		}

		endpoint = provider.Endpoint()
		o.verifier = provider.Verifier(oidcConfig)

		if o.userInfoURL == "" {
			var claims struct {
				UserInfoURL string `json:"userinfo_endpoint"`
			}

			if err = provider.Claims(&claims); err == nil {
				o.userInfoURL = claims.UserInfoURL
			}
		}
	case cfg.AuthURL == "" || cfg.TokenURL == "":
		return nil, ErrNoEndpoints
	case cfg.Issuer != "" && cfg.JWKSURL != "":
		keys := oidc.NewRemoteKeySet(oidc.ClientContext(context.WithoutCancel(ctx), o.client), cfg.JWKSURL)
		o.verifier = oidc.NewVerifier(cfg.Issuer, keys, oidcConfig)
	}

	o.oauth = &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Endpoint:     endpoint,
		Scopes:       cfg.Scopes,
	}

	return o, nil
}

// Name implements Strategy.
func (o *OAuth2) Name() string {
	return NameOAuth2
}

// Prompt implements Prompter.
func (o *OAuth2) Prompt() Prompt {
	return Prompt{
		Type:  "strategy",
		ID:    NameOAuth2,
		Label: o.cfg.Label,
		Icon:  o.cfg.Icon,
		URL:   DefaultStartPath,
	}
}

// CallbackPath returns the path the provider redirects back to.
func (o *OAuth2) CallbackPath() string {
	return o.cfg.CallbackPath
}

// AuthCodeURL returns the provider authorization URL carrying a fresh single-use state.
func (o *OAuth2) AuthCodeURL() (string, error) {
	state, err := uniuri.State()
	if err != nil {
		return "", err
	}

	o.states.put(state)

	return o.oauth.AuthCodeURL(state), nil
}

// Attempt implements Strategy. It applies on the callback path only.
func (o *OAuth2) Attempt(ctx context.Context, r *Request) (*identity.Identity, error) {
	if r.Path != o.cfg.CallbackPath {
		return nil, ErrNotApplicable
	}

	return o.Callback(ctx, r.field("code"), r.field("state"), r.field("error"))
}

// Callback completes the authorization code flow.
func (o *OAuth2) Callback(ctx context.Context, code, state, providerErr string) (*identity.Identity, error) {
	if providerErr != "" {
		return nil, providerFailure(fmt.Errorf("%w: %s", ErrProviderDenied, providerErr))
	}

	if state == "" || !o.states.take(state) {
		return nil, providerFailure(ErrInvalidState)
	}

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	ctx = context.WithValue(ctx, oauth2.HTTPClient, o.client)

	token, err := o.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, providerFailure(fmt.Errorf("failed to exchange token: %w", err))
	}

	profile, err := o.profile(ctx, token)
	if err != nil {
		return nil, providerFailure(err)
	}

	sub, _ := profile["sub"].(string)
	if sub == "" {
		return nil, providerFailure(ErrNoSubject)
	}

	return o.identityFor(sub, profile), nil
}

// profile merges verified id_token claims with the user-info response.
func (o *OAuth2) profile(ctx context.Context, token *oauth2.Token) (map[string]any, error) {
	profile := make(map[string]any)

	if raw, ok := token.Extra("id_token").(string); ok && raw != "" && o.verifier != nil {
		idToken, err := o.verifier.Verify(oidc.ClientContext(ctx, o.client), raw)
		if err != nil {
			return nil, fmt.Errorf("failed to verify ID token: %w", err)
		}

		if err = idToken.Claims(&profile); err != nil {
			return nil, fmt.Errorf("failed to parse ID token claims: %w", err)
		}
	}

	if o.userInfoURL == "" {
		if len(profile) == 0 {
			return nil, ErrNoSubject
		}

		return profile, nil
	}

	info, err := o.userInfo(ctx, token)
	if err != nil {
		return nil, err
	}

	// the user-info subject must match a verified id_token subject
	if sub, ok := profile["sub"]; ok && info["sub"] != nil && info["sub"] != sub {
		return nil, fmt.Errorf("%w: user-info subject mismatch", ErrNoSubject)
	}

	for k, v := range info {
		profile[k] = v
	}

	return profile, nil
}

func (o *OAuth2) userInfo(ctx context.Context, token *oauth2.Token) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.userInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build user-info request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	token.SetAuthHeader(req)

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to get user info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("user-info endpoint %s returned %d", o.userInfoURL, resp.StatusCode) //nolint:err113
	}

	var info map[string]any
	if err = json.NewDecoder(io.LimitReader(resp.Body, maxUserInfoBytes)).Decode(&info); err != nil {
		return nil, fmt.Errorf("failed to decode user info: %w", err)
	}

	return info, nil
}

func (o *OAuth2) identityFor(sub string, profile map[string]any) *identity.Identity {
	id := claimString(profile, o.cfg.UsernameClaim)
	if id == "" {
		id = claimString(profile, "email")
	}

	if id == "" {
		id = sub
	}

	attrs := map[string]string{
		identity.AttrSubject:    sub,
		identity.AttrAuthSource: NameOAuth2,
		identity.AttrStrategy:   NameOAuth2,
	}

	if v := claimString(profile, "email"); v != "" {
		attrs[identity.AttrEmail] = v
	}

	if v := claimString(profile, "name"); v != "" {
		attrs[identity.AttrName] = v
	}

	if groups := claimStrings(profile, o.cfg.GroupsClaim); len(groups) > 0 {
		attrs[identity.AttrGroups] = strings.Join(groups, ";")
	}

	return identity.New(id, o.mapScope(profile), attrs)
}

// GroupScopeMapper grants defaultScope plus the scope of every group found in groupsClaim.
// Group names compare case-insensitively.
func GroupScopeMapper(groupsClaim string, groupScopes map[string][]string, defaultScope []string) ScopeMapper {
	scopes := make(map[string][]string, len(groupScopes))
	for group, granted := range groupScopes {
		scopes[strings.ToLower(group)] = granted
	}

	return func(profile map[string]any) scope.Scope {
		s := scope.New(defaultScope...)

		for _, g := range claimStrings(profile, groupsClaim) {
			if granted, ok := scopes[strings.ToLower(g)]; ok {
				s = s.Union(scope.New(granted...))
			}
		}

		return s
	}
}

func providerFailure(err error) error {
	return identity.Fail(identity.ProviderError, "", err)
}

func claimString(profile map[string]any, key string) string {
	if key == "" {
		return ""
	}

	s, _ := profile[key].(string)

	return s
}

// claimStrings reads a claim holding a string, a list of strings or a space separated string.
func claimStrings(profile map[string]any, key string) []string {
	switch v := profile[key].(type) {
	case string:
		return strings.Fields(v)
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))

		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}

		return out
	default:
		return nil
	}
}

// stateStore holds single-use OAuth2 states. All states share one lifetime, so
// insertion order is expiry order: expired states are dropped from the front and
// past maxStates the oldest pending state is evicted.
type stateStore struct {
	mu     sync.Mutex
	ttl    time.Duration
	limit  int
	states map[string]*list.Element
	order  *list.List // of pendingState, oldest first
	now    func() time.Time
}

type pendingState struct {
	state     string
	expiresAt time.Time
}

func newStateStore(ttl time.Duration, maxStates int) *stateStore {
	return &stateStore{
		ttl:    ttl,
		limit:  maxStates,
		states: make(map[string]*list.Element),
		order:  list.New(),
		now:    time.Now,
	}
}

func (s *stateStore) put(state string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()

	for front := s.order.Front(); front != nil; front = s.order.Front() {
		p, _ := front.Value.(pendingState)
		if now.Before(p.expiresAt) && s.order.Len() < s.limit {
			break
		}

		s.order.Remove(front)
		delete(s.states, p.state)
	}

	s.states[state] = s.order.PushBack(pendingState{state: state, expiresAt: now.Add(s.ttl)})
}

func (s *stateStore) take(state string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.states[state]
	if !ok {
		return false
	}

	s.order.Remove(e)
	delete(s.states, state)

	p, _ := e.Value.(pendingState)

	return s.now().Before(p.expiresAt)
}
