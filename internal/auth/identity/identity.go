// Package identity holds the result of a successful authentication and the
// typed failures produced when authentication or authorization does not succeed.
package identity

import (
	"maps"

	"github.com/GoPowerDNS-Admin/adminauth/internal/auth/scope"
)

// Well known attribute keys.
const (
	AttrEmail       = "email"
	AttrName        = "name"
	AttrSubject     = "sub"
	AttrGroups      = "groups"
	AttrClientID    = "client_id"
	AttrStrategy    = "strategy"
	AttrAuthSource  = "auth_source"
	AnonymousUserID = "anonymous"
)

// Identity is an authenticated caller. It is immutable once built.
type Identity struct {
	id         string
	scope      scope.Scope
	attributes map[string]string
}

// New builds an identity. The attribute map is copied.
func New(id string, s scope.Scope, attributes map[string]string) *Identity {
	attrs := make(map[string]string, len(attributes))
	maps.Copy(attrs, attributes)

	return &Identity{
		id:         id,
		scope:      s,
		attributes: attrs,
	}
}

// ID returns the identifier, unique within the system.
func (i *Identity) ID() string {
	return i.id
}

// Scope returns the granted scope.
func (i *Identity) Scope() scope.Scope {
	return i.scope
}

// Attribute returns a single attribute value.
func (i *Identity) Attribute(key string) string {
	return i.attributes[key]
}

// Attributes returns a copy of all attributes.
func (i *Identity) Attributes() map[string]string {
	return maps.Clone(i.attributes)
}

// WithScope returns a copy of the identity carrying a different scope.
func (i *Identity) WithScope(s scope.Scope) *Identity {
	return New(i.id, s, i.attributes)
}

// WithAttribute returns a copy of the identity with one attribute set.
func (i *Identity) WithAttribute(key, value string) *Identity {
	attrs := i.Attributes()
	attrs[key] = value

	return New(i.id, i.scope, attrs)
}

// IsAnonymous reports whether the identity was produced by the anonymous strategy.
func (i *Identity) IsAnonymous() bool {
	return i.id == AnonymousUserID
}
