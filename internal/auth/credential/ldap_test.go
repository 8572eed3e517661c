package credential

import (
	"context"
	"net"
	"testing"

	"github.com/go-ldap/ldap/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoPowerDNS-Admin/adminauth/internal/auth/identity"
	"github.com/GoPowerDNS-Admin/adminauth/internal/auth/scope"
)

func TestNewLDAPDefaults(t *testing.T) {
	_, err := NewLDAP(LDAPConfig{})
	require.ErrorIs(t, err, ErrLDAPNoHost)

	p, err := NewLDAP(LDAPConfig{Host: "ldap.example.com", UseSSL: true})
	require.NoError(t, err)
	assert.Equal(t, 636, p.cfg.Port)
	assert.Equal(t, "uid", p.cfg.UsernameAttr)
	assert.Equal(t, 10, p.cfg.Timeout)
}

func TestLDAPFilters(t *testing.T) {
	p, err := NewLDAP(LDAPConfig{Host: "ldap.example.com"})
	require.NoError(t, err)

	assert.Equal(t, `(uid=ad\2amin\29)`, p.userFilter("ad*min)"))
	assert.Equal(t, "(member=uid=admin,ou=people,dc=example,dc=com)", p.groupFilter("uid=admin,ou=people,dc=example,dc=com"))
}

func TestLDAPScopeMapping(t *testing.T) {
	p, err := NewLDAP(LDAPConfig{
		Host:         "ldap.example.com",
		DefaultScope: []string{"read"},
		GroupScopes: map[string][]string{
			"admins":                              {"*"},
			"cn=flow-editors,ou=groups,dc=example": {"flows.write"},
		},
	})
	require.NoError(t, err)

	assert.True(t, p.scopeFor(nil).Equal(scope.New("read")))
	assert.True(t, p.scopeFor([]string{"cn=admins,ou=groups,dc=example"}).Equal(scope.New("read", "*")))
	assert.True(t, p.scopeFor([]string{"cn=flow-editors,ou=groups,dc=example"}).Equal(scope.New("read", "flows.write")))
	assert.True(t, p.scopeFor([]string{"cn=others,ou=groups,dc=example"}).Equal(scope.New("read")))
}

func TestLDAPEntryUsername(t *testing.T) {
	p, err := NewLDAP(LDAPConfig{Host: "ldap.example.com"})
	require.NoError(t, err)

	entry := ldap.NewEntry("uid=admin,ou=people,dc=example", map[string][]string{"uid": {"admin"}})
	assert.Equal(t, "admin", p.entryUsername(entry, "ADMIN"), "the directory spelling wins")

	bare := ldap.NewEntry("cn=x,dc=example", nil)
	assert.Equal(t, "Typed", p.entryUsername(bare, "Typed"))
}

func TestLDAPUnreachable(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())

	p, err := NewLDAP(LDAPConfig{Host: "127.0.0.1", Port: port, Timeout: 1})
	require.NoError(t, err)

	_, err = p.Verify(context.Background(), Credentials{Username: "admin", Secret: "password"})
	assert.ErrorIs(t, err, identity.ErrLookupError)

	_, err = p.Verify(context.Background(), Credentials{Username: "admin"})
	assert.ErrorIs(t, err, identity.ErrBadSecret)
}
