package strategy

import (
	"context"

	"github.com/GoPowerDNS-Admin/adminauth/internal/auth/identity"
	"github.com/GoPowerDNS-Admin/adminauth/internal/auth/session"
)

// Bearer authenticates a session token.
type Bearer struct {
	sessions *session.Manager
	// passUnknown reports unknown tokens as not applicable so a user token sharing the header gets a chance.
	passUnknown bool
}

// NewBearer creates the bearer strategy. Set passUnknown when user tokens are also read from Authorization.
func NewBearer(sessions *session.Manager, passUnknown bool) *Bearer {
	return &Bearer{sessions: sessions, passUnknown: passUnknown}
}

// Name implements Strategy.
func (b *Bearer) Name() string {
	return NameBearer
}

// Attempt implements Strategy.
func (b *Bearer) Attempt(_ context.Context, r *Request) (*identity.Identity, error) {
	token := r.BearerToken()
	if token == "" {
		return nil, ErrNotApplicable
	}

	s := b.sessions.Lookup(token)
	if s == nil {
		if b.passUnknown {
			return nil, ErrNotApplicable
		}

		return nil, identity.Fail(identity.InvalidToken, "", nil)
	}

	return tag(s.Identity, NameBearer).WithAttribute(identity.AttrClientID, s.ClientID), nil
}
