package credential

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/rs/zerolog/log"

	"github.com/GoPowerDNS-Admin/adminauth/internal/auth/identity"
	"github.com/GoPowerDNS-Admin/adminauth/internal/auth/scope"
)

var (
	// ErrLDAPMultipleUsers is returned when the user filter matches more than one entry.
	ErrLDAPMultipleUsers = errors.New("multiple ldap users found")

	// ErrLDAPNoHost is returned for an LDAP configuration without a host.
	ErrLDAPNoHost = errors.New("ldap host is required")
)

// LDAPConfig holds LDAP/Active Directory configuration.
type LDAPConfig struct {
	Host       string
	Port       int
	UseSSL     bool `mapstructure:"useSSL"`
	UseTLS     bool `mapstructure:"useTLS"`
	SkipVerify bool
	// BindDN is the service account used for searches.
	BindDN       string `mapstructure:"bindDN"`
	BindPassword string
	// BaseDN is the base for user searches.
	BaseDN string `mapstructure:"baseDN"`
	// UserFilter finds the user, {username} is replaced by the escaped username.
	UserFilter string
	// GroupBaseDN is the base for group searches. Empty disables group lookup.
	GroupBaseDN string `mapstructure:"groupBaseDN"`
	// GroupFilter finds the groups of a user, {userdn} is replaced by the escaped user DN.
	GroupFilter   string
	UsernameAttr  string
	EmailAttr     string
	NameAttr      string
	GroupNameAttr string
	// GroupScopes maps a group DN or group name to the scope it grants.
	GroupScopes map[string][]string
	// DefaultScope is granted to every user that binds successfully.
	DefaultScope []string
	// Timeout in seconds.
	Timeout int
}

// LDAP verifies credentials by binding as the user.
type LDAP struct {
	cfg LDAPConfig
}

// NewLDAP applies defaults to cfg.
func NewLDAP(cfg LDAPConfig) (*LDAP, error) {
	if cfg.Host == "" {
		return nil, ErrLDAPNoHost
	}

	if cfg.Port == 0 {
		cfg.Port = 389
		if cfg.UseSSL {
			cfg.Port = 636
		}
	}

	if cfg.UserFilter == "" {
		cfg.UserFilter = "(uid={username})"
	}

	if cfg.GroupFilter == "" {
		cfg.GroupFilter = "(member={userdn})"
	}

	if cfg.UsernameAttr == "" {
		cfg.UsernameAttr = "uid"
	}

	if cfg.EmailAttr == "" {
		cfg.EmailAttr = "mail"
	}

	if cfg.NameAttr == "" {
		cfg.NameAttr = "cn"
	}

	if cfg.GroupNameAttr == "" {
		cfg.GroupNameAttr = "cn"
	}

	if cfg.Timeout == 0 {
		cfg.Timeout = 10
	}

	// group names compare case-insensitively, config keys arrive lowercased from viper
	scopes := make(map[string][]string, len(cfg.GroupScopes))
	for group, granted := range cfg.GroupScopes {
		scopes[strings.ToLower(group)] = granted
	}

	cfg.GroupScopes = scopes

	return &LDAP{cfg: cfg}, nil
}

// Verify binds as the user and maps its groups to a scope.
func (p *LDAP) Verify(ctx context.Context, c Credentials) (*identity.Identity, error) {
	// an empty password would be an unauthenticated bind
	if c.Secret == "" {
		return nil, identity.Fail(identity.BadSecret, c.Username, nil)
	}

	conn, err := p.connect(ctx)
	if err != nil {
		return nil, identity.Fail(identity.LookupError, c.Username, err)
	}

	defer func() {
		if errClose := conn.Close(); errClose != nil {
			log.Warn().Err(errClose).Msg("failed to close LDAP connection")
		}
	}()

	if err = p.bindService(conn); err != nil {
		return nil, identity.Fail(identity.LookupError, c.Username, err)
	}

	entry, err := p.searchUser(conn, c.Username)
	if err != nil {
		return nil, identity.Fail(identity.LookupError, c.Username, err)
	}

	if entry == nil {
		return nil, identity.Fail(identity.UnknownUser, c.Username, nil)
	}

	if err = conn.Bind(entry.DN, c.Secret); err != nil {
		if ldap.IsErrorWithCode(err, ldap.LDAPResultInvalidCredentials) {
			return nil, identity.Fail(identity.BadSecret, c.Username, nil)
		}

		return nil, identity.Fail(identity.LookupError, c.Username, fmt.Errorf("user bind: %w", err))
	}

	if err = p.bindService(conn); err != nil {
		return nil, identity.Fail(identity.LookupError, c.Username, err)
	}

	groups, err := p.userGroups(conn, entry.DN)
	if err != nil {
		return nil, identity.Fail(identity.LookupError, c.Username, err)
	}

	attrs := map[string]string{
		identity.AttrSubject:    entry.DN,
		identity.AttrAuthSource: "ldap",
	}

	if v := entry.GetAttributeValue(p.cfg.EmailAttr); v != "" {
		attrs[identity.AttrEmail] = v
	}

	if v := entry.GetAttributeValue(p.cfg.NameAttr); v != "" {
		attrs[identity.AttrName] = v
	}

	if len(groups) > 0 {
		attrs[identity.AttrGroups] = strings.Join(groups, ";")
	}

	return identity.New(p.entryUsername(entry, c.Username), p.scopeFor(groups), attrs), nil
}

// entryUsername returns the directory spelling of the username, typed if the entry lacks it.
func (p *LDAP) entryUsername(entry *ldap.Entry, typed string) string {
	if v := entry.GetAttributeValue(p.cfg.UsernameAttr); v != "" {
		return v
	}

	return typed
}

// scopeFor unions the default scope with the scope of every known group.
func (p *LDAP) scopeFor(groups []string) scope.Scope {
	s := scope.New(p.cfg.DefaultScope...)

	for _, g := range groups {
		if granted, ok := p.cfg.GroupScopes[strings.ToLower(g)]; ok {
			s = s.Union(scope.New(granted...))
		}

		if name := groupName(g); name != g {
			if granted, ok := p.cfg.GroupScopes[strings.ToLower(name)]; ok {
				s = s.Union(scope.New(granted...))
			}
		}
	}

	return s
}

// groupName returns the value of the first RDN of a DN.
func groupName(dn string) string {
	parsed, err := ldap.ParseDN(dn)
	if err != nil || len(parsed.RDNs) == 0 || len(parsed.RDNs[0].Attributes) == 0 {
		return dn
	}

	return parsed.RDNs[0].Attributes[0].Value
}

func (p *LDAP) connect(ctx context.Context) (*ldap.Conn, error) {
	hostPort := net.JoinHostPort(p.cfg.Host, strconv.Itoa(p.cfg.Port))
	timeout := time.Duration(p.cfg.Timeout) * time.Second

	scheme := "ldap://"
	if p.cfg.UseSSL {
		scheme = "ldaps://"
	}

	var tlsConfig *tls.Config
	if p.cfg.UseSSL || p.cfg.UseTLS {
		tlsConfig = &tls.Config{
			InsecureSkipVerify: p.cfg.SkipVerify, //nolint:gosec // explicit opt-in
			ServerName:         p.cfg.Host,
		}
	}

	dialer := &net.Dialer{Timeout: timeout}
	if deadline, ok := ctx.Deadline(); ok {
		dialer.Deadline = deadline
	}

	conn, err := ldap.DialURL(scheme+hostPort, ldap.DialWithTLSConfig(tlsConfig), ldap.DialWithDialer(dialer))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to LDAP server: %w", err)
	}

	if !p.cfg.UseSSL && p.cfg.UseTLS {
		if errStartTLS := conn.StartTLS(tlsConfig); errStartTLS != nil {
			_ = conn.Close()

			return nil, fmt.Errorf("failed to start TLS: %w", errStartTLS)
		}
	}

	conn.SetTimeout(timeout)

	return conn, nil
}

func (p *LDAP) bindService(conn *ldap.Conn) error {
	if p.cfg.BindDN == "" {
		return nil
	}

	if err := conn.Bind(p.cfg.BindDN, p.cfg.BindPassword); err != nil {
		return fmt.Errorf("failed to bind with service account: %w", err)
	}

	return nil
}

// searchUser returns nil, nil when no entry matches.
func (p *LDAP) searchUser(conn *ldap.Conn, username string) (*ldap.Entry, error) {
	res, err := conn.Search(ldap.NewSearchRequest(
		p.cfg.BaseDN,
		ldap.ScopeWholeSubtree,
		ldap.NeverDerefAliases,
		2, //nolint:mnd // one is enough, two detects ambiguity
		p.cfg.Timeout,
		false,
		p.userFilter(username),
		[]string{p.cfg.UsernameAttr, p.cfg.EmailAttr, p.cfg.NameAttr},
		nil,
	))
	if err != nil && !ldap.IsErrorWithCode(err, ldap.LDAPResultSizeLimitExceeded) {
		return nil, fmt.Errorf("failed to search for user: %w", err)
	}

	switch {
	case res == nil || len(res.Entries) == 0:
		return nil, nil
	case len(res.Entries) == 1:
		return res.Entries[0], nil
	default:
		return nil, ErrLDAPMultipleUsers
	}
}

func (p *LDAP) userGroups(conn *ldap.Conn, userDN string) ([]string, error) {
	if p.cfg.GroupBaseDN == "" {
		return nil, nil
	}

	res, err := conn.Search(ldap.NewSearchRequest(
		p.cfg.GroupBaseDN,
		ldap.ScopeWholeSubtree,
		ldap.NeverDerefAliases,
		0,
		p.cfg.Timeout,
		false,
		p.groupFilter(userDN),
		[]string{p.cfg.GroupNameAttr},
		nil,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to search for groups: %w", err)
	}

	groups := make([]string, len(res.Entries))
	for i, entry := range res.Entries {
		groups[i] = entry.DN
	}

	return groups, nil
}

func (p *LDAP) userFilter(username string) string {
	return strings.ReplaceAll(p.cfg.UserFilter, "{username}", ldap.EscapeFilter(username))
}

func (p *LDAP) groupFilter(userDN string) string {
	return strings.ReplaceAll(p.cfg.GroupFilter, "{userdn}", ldap.EscapeFilter(userDN))
}
