package strategy

import (
	"context"

	"github.com/GoPowerDNS-Admin/adminauth/internal/auth/identity"
	"github.com/GoPowerDNS-Admin/adminauth/internal/auth/scope"
)

// Anonymous grants a default scope to every request. It always applies.
type Anonymous struct {
	id *identity.Identity
}

// NewAnonymous creates the strategy granting s.
func NewAnonymous(s scope.Scope) *Anonymous {
	return &Anonymous{
		id: identity.New(identity.AnonymousUserID, s, map[string]string{identity.AttrStrategy: NameAnonymous}),
	}
}

// Name implements Strategy.
func (a *Anonymous) Name() string {
	return NameAnonymous
}

// Attempt implements Strategy.
func (a *Anonymous) Attempt(context.Context, *Request) (*identity.Identity, error) {
	return a.id, nil
}
