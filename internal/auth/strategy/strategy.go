// Package strategy holds the pluggable ways of turning a request into an identity.
//
// A strategy either produces an identity, reports ErrNotApplicable when the request
// carries nothing it understands, or returns an *identity.Failure.
package strategy

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/GoPowerDNS-Admin/adminauth/internal/auth/identity"
)

// Strategy names.
const (
	NameBearer      = "bearer"
	NameUserToken   = "user-token"
	NameCredentials = "credentials"
	NameOAuth2      = "oauth2"
	NameAnonymous   = "anonymous"
)

// ErrNotApplicable means the request carries nothing the strategy understands.
var ErrNotApplicable = errors.New("strategy not applicable")

// Request is what the HTTP layer hands to the strategies.
type Request struct {
	Method string
	Path   string
	Header http.Header
	// Form holds query and body fields.
	Form url.Values
	// AnonymousOnFailure lets an explicit failure fall through to the anonymous strategy.
	AnonymousOnFailure bool
}

// BearerToken returns the token of an "Authorization: Bearer" header. Tokens in the
// query string would end up in access logs and are not accepted.
func (r *Request) BearerToken() string {
	token, _ := bearer(r.header(http.CanonicalHeaderKey("Authorization")))

	return token
}

func (r *Request) header(key string) string {
	if r.Header == nil {
		return ""
	}

	return strings.TrimSpace(r.Header.Get(key))
}

func (r *Request) field(key string) string {
	if r.Form == nil {
		return ""
	}

	return r.Form.Get(key)
}

func bearer(value string) (string, bool) {
	const prefix = "bearer "

	if len(value) > len(prefix) && strings.EqualFold(value[:len(prefix)], prefix) {
		return strings.TrimSpace(value[len(prefix):]), true
	}

	return "", false
}

// Strategy authenticates a request.
type Strategy interface {
	Name() string
	Attempt(ctx context.Context, r *Request) (*identity.Identity, error)
}

// Prompt describes how a login chooser offers a strategy.
type Prompt struct {
	Type  string `json:"type"`
	ID    string `json:"id,omitempty"`
	Label string `json:"label,omitempty"`
	Icon  string `json:"icon,omitempty"`
	URL   string `json:"url,omitempty"`
}

// Prompter is implemented by strategies a user can pick at login.
type Prompter interface {
	Prompt() Prompt
}

// Registry is the ordered list of strategies tried for every request.
type Registry struct {
	strategies []Strategy
}

// NewRegistry keeps the given order. Nil strategies are skipped.
func NewRegistry(strategies ...Strategy) *Registry {
	r := &Registry{}

	for _, s := range strategies {
		if s != nil {
			r.strategies = append(r.strategies, s)
		}
	}

	return r
}

// Strategies returns the strategies in priority order.
func (r *Registry) Strategies() []Strategy {
	return append([]Strategy(nil), r.strategies...)
}

// Get returns the strategy with the given name.
func (r *Registry) Get(name string) (Strategy, bool) {
	for _, s := range r.strategies {
		if s.Name() == name {
			return s, true
		}
	}

	return nil, false
}

// Prompts lists the login prompts in priority order.
func (r *Registry) Prompts() []Prompt {
	var prompts []Prompt

	for _, s := range r.strategies {
		if p, ok := s.(Prompter); ok {
			prompts = append(prompts, p.Prompt())
		}
	}

	return prompts
}

func tag(id *identity.Identity, name string) *identity.Identity {
	return id.WithAttribute(identity.AttrStrategy, name)
}
