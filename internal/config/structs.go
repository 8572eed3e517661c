package config

import (
	"github.com/GoPowerDNS-Admin/adminauth/internal/auth/client"
	"github.com/GoPowerDNS-Admin/adminauth/internal/auth/credential"
	"github.com/GoPowerDNS-Admin/adminauth/internal/auth/ratelimit"
	"github.com/GoPowerDNS-Admin/adminauth/internal/auth/session"
	"github.com/GoPowerDNS-Admin/adminauth/internal/auth/strategy"
	"github.com/GoPowerDNS-Admin/adminauth/internal/logger"
)

// Config overall data structure.
type Config struct {
	DevMode   bool // enable dev mode for development
	Title     string
	DB        DB
	Log       logger.Log
	Webserver Webserver
	Storage   Storage
	Auth      Auth
	Metrics   Metrics
}

// Webserver implement webserver settings.
type Webserver struct {
	Port           int    // listening port for the webserver
	URL            string // base url for the webserver
	ShutDownTime   int    // wait time for shutdown in seconds
	DisableRecover bool   // disable recover middleware
	BodyLimit      int    // max request body in bytes
}

// Storage selects where sessions and rate limit entries survive restarts.
type Storage struct {
	// Driver is memory, db (the gorm connection), mysql or postgres (gofiber storage).
	Driver string `validate:"omitempty,oneof=memory db mysql postgres"`
	// Table used by the mysql and postgres drivers.
	Table string
	// Reset clears the table on start.
	Reset bool
}

// Metrics exposes Prometheus collectors.
type Metrics struct {
	Enabled bool
	Path    string
}

// Auth holds the identity layer settings.
type Auth struct {
	session.Config `mapstructure:",squash"`

	// TokenHeader carries user tokens.
	TokenHeader string `mapstructure:"tokenHeader"`
	// AnonymousEnabled grants DefaultScope to requests no strategy claims.
	AnonymousEnabled bool     `mapstructure:"anonymousEnabled"`
	DefaultScope     []string `mapstructure:"defaultScope"`
	// Strategies lists the login strategies in priority order.
	Strategies []string `validate:"dive,oneof=credentials oauth2"`

	RateLimit   ratelimit.Config         `mapstructure:"rateLimit"`
	Credentials Credentials              `mapstructure:"credentials"`
	UserTokens  strategy.UserTokenConfig `mapstructure:"userTokens"`
	OAuth2      strategy.OAuth2Config    `mapstructure:"oauth2"`
	Clients     []client.Client          `validate:"dive"`
}

// Credentials configures the credential store behind the credentials strategy.
type Credentials struct {
	credential.HashConfig `mapstructure:",squash"`

	// Backend is static (Users), db (users table) or ldap.
	Backend string `validate:"omitempty,oneof=static db ldap"`
	// LookupTimeout in seconds.
	LookupTimeout int                   `mapstructure:"lookupTimeout"`
	Users         []credential.User     `validate:"dive"`
	LDAP          credential.LDAPConfig `mapstructure:"ldap"`
}
