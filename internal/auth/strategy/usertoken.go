package strategy

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"
	"time"

	"github.com/GoPowerDNS-Admin/adminauth/internal/auth/identity"
	"github.com/GoPowerDNS-Admin/adminauth/internal/auth/scope"
)

// DefaultTokenHeader carries user tokens unless configured otherwise.
const DefaultTokenHeader = "Authorization"

const validateTimeout = 5 * time.Second

// UserTokenConfig declares static API tokens.
type UserTokenConfig struct {
	Header string
	Tokens []TokenConfig `validate:"dive"`
}

// TokenConfig is one static API token.
type TokenConfig struct {
	Token string   `validate:"required,min=16"`
	User  string   `validate:"required"`
	Scope []string `validate:"required"`
}

// TokenValidator resolves a dynamic token. It returns nil, nil for an unknown token.
type TokenValidator func(ctx context.Context, token string) (*identity.Identity, error)

// UserToken authenticates a caller supplied API token read from a configurable header.
type UserToken struct {
	header   string
	tokens   []staticToken
	validate TokenValidator
}

type staticToken struct {
	token []byte
	id    *identity.Identity
}

// NewUserToken creates the strategy. validate may be nil.
func NewUserToken(cfg UserTokenConfig, validate TokenValidator) *UserToken {
	header := cfg.Header
	if header == "" {
		header = DefaultTokenHeader
	}

	u := &UserToken{
		header:   http.CanonicalHeaderKey(header),
		validate: validate,
	}

	for _, t := range cfg.Tokens {
		u.tokens = append(u.tokens, staticToken{
			token: []byte(t.Token),
			id:    identity.New(t.User, scope.New(t.Scope...), nil),
		})
	}

	return u
}

// Header returns the canonical header name.
func (u *UserToken) Header() string {
	return u.header
}

// Name implements Strategy.
func (u *UserToken) Name() string {
	return NameUserToken
}

// Attempt implements Strategy.
func (u *UserToken) Attempt(ctx context.Context, r *Request) (*identity.Identity, error) {
	value := r.header(u.header)
	if token, ok := bearer(value); ok {
		value = token
	}

	if value == "" {
		return nil, ErrNotApplicable
	}

	var found *identity.Identity

	// every token is compared so timing does not depend on position
	for _, t := range u.tokens {
		if subtle.ConstantTimeCompare(t.token, []byte(value)) == 1 {
			found = t.id
		}
	}

	if found == nil && u.validate != nil {
		vctx, cancel := context.WithTimeout(ctx, validateTimeout)
		defer cancel()

		id, err := u.validate(vctx, value)
		if err != nil {
			return nil, identity.Fail(identity.LookupError, "", fmt.Errorf("validate user token: %w", err))
		}

		found = id
	}

	if found == nil {
		return nil, identity.Fail(identity.InvalidToken, "", nil)
	}

	return tag(found, NameUserToken), nil
}
