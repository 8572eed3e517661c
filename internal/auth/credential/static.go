package credential

import (
	"context"
	"fmt"

	"github.com/GoPowerDNS-Admin/adminauth/internal/auth/identity"
	"github.com/GoPowerDNS-Admin/adminauth/internal/auth/scope"
)

// User is a statically configured user.
type User struct {
	Username   string   `validate:"required"`
	Password   string   `validate:"required"` // argon2id or bcrypt hash
	Scope      []string `validate:"required"`
	Email      string
	Name       string
	TOTPSecret string `mapstructure:"totpSecret"`
}

// Static returns a lookup over a fixed list of users. Every hash is checked against the hasher minimums.
func Static(users []User, hasher *Hasher) (LookupFunc, error) {
	records := make(map[string]*Record, len(users))

	for _, u := range users {
		if err := hasher.Check(u.Password); err != nil {
			return nil, fmt.Errorf("user %s: %w", u.Username, err)
		}

		attrs := make(map[string]string)
		if u.Email != "" {
			attrs[identity.AttrEmail] = u.Email
		}

		if u.Name != "" {
			attrs[identity.AttrName] = u.Name
		}

		records[u.Username] = &Record{
			Username:   u.Username,
			Hash:       u.Password,
			Scope:      scope.New(u.Scope...),
			Attributes: attrs,
			TOTPSecret: u.TOTPSecret,
		}
	}

	return func(_ context.Context, username string) (*Record, error) {
		return records[username], nil
	}, nil
}
