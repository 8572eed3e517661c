// Package config reads etc/main.toml with viper, merges overrides from the
// environment and validates the result.
package config

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/GoPowerDNS-Admin/adminauth/internal/auth/client"
	"github.com/GoPowerDNS-Admin/adminauth/internal/auth/ratelimit"
	"github.com/GoPowerDNS-Admin/adminauth/internal/auth/session"
	"github.com/GoPowerDNS-Admin/adminauth/internal/auth/strategy"
)

const (
	// EnvJSON holds a JSON document merged over the config file.
	EnvJSON = "ADMINAUTH_CONFIG_JSON"
	// EnvPrefix prefixes single key overrides, e.g. ADMINAUTH_WEBSERVER_PORT.
	EnvPrefix = "ADMINAUTH"

	fileName = "main.toml"
)

// ReadConfig from config file.
func ReadConfig(path string) (Config, error) {
	var c Config

	// Read main configuration
	if path == "" {
		path = "./etc/"
	}

	v := viper.New()
	v.SetConfigFile(filepath.Join(path, fileName))
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, errors.Wrap(err, "failed to read main config file")
	}

	// override it from env
	if js := os.Getenv(EnvJSON); js != "" {
		v.SetConfigType("json")

		if err := v.MergeConfig(strings.NewReader(js)); err != nil {
			return Config{}, errors.Wrap(err, "failed to merge "+EnvJSON)
		}
	}

	if err := v.Unmarshal(&c); err != nil {
		return Config{}, errors.Wrap(err, "failed to decode config")
	}

	return c, validate(c)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("title", "adminauth")
	v.SetDefault("webserver.port", 3000) //nolint:mnd
	v.SetDefault("webserver.url", "http://localhost:3000")
	v.SetDefault("webserver.shutDownTime", 5) //nolint:mnd

	v.SetDefault("db.driver", "sqlite")
	v.SetDefault("db.path", "adminauth.db")

	v.SetDefault("storage.driver", "memory")
	v.SetDefault("storage.table", "adminauth_kv")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("log.logLevel", "info")
	v.SetDefault("log.appName", "adminauth")
	v.SetDefault("log.serviceName", "adminauth")
	v.SetDefault("log.console.enabled", true)

	v.SetDefault("auth.sessionExpiryTime", session.DefaultExpiryTime)
	v.SetDefault("auth.sessionReapInterval", session.DefaultReapInterval)
	v.SetDefault("auth.sessionReapGrace", session.DefaultReapGrace)
	v.SetDefault("auth.tokenHeader", strategy.DefaultTokenHeader)
	v.SetDefault("auth.anonymousEnabled", false)
	v.SetDefault("auth.defaultScope", []string{"read"})
	v.SetDefault("auth.strategies", []string{strategy.NameCredentials})
	v.SetDefault("auth.rateLimit.windowMs", ratelimit.DefaultWindowMs)
	v.SetDefault("auth.rateLimit.maxAttempts", ratelimit.DefaultMaxAttempts)
	v.SetDefault("auth.credentials.backend", "static")
}

// DumpConfig config as TOML String.
func DumpConfig(c Config) (string, error) {
	var buffer bytes.Buffer
	t := toml.NewEncoder(&buffer)

	if err := t.Encode(c); err != nil {
		return "", err //nolint: wrapcheck
	}

	return buffer.String(), nil
}

// DumpConfigJSON config as JSON String.
func DumpConfigJSON(c Config) (string, error) {
	var buffer bytes.Buffer
	j := json.NewEncoder(&buffer)
	j.SetIndent("", "  ")

	if err := j.Encode(c); err != nil {
		return "", err //nolint: wrapcheck
	}

	return buffer.String(), nil
}

// Redacted returns a copy of c without passwords, secrets and tokens.
func Redacted(c Config) Config {
	const mask = "***"

	redact := func(s *string) {
		if *s != "" {
			*s = mask
		}
	}

	redact(&c.DB.Password)
	redact(&c.Auth.OAuth2.ClientSecret)
	redact(&c.Auth.Credentials.LDAP.BindPassword)
	redact(&c.Log.DataDog.APIKey)

	c.Auth.Clients = slices.Clone(c.Auth.Clients)
	for i := range c.Auth.Clients {
		if !c.Auth.Clients[i].Public() {
			redact(&c.Auth.Clients[i].Secret)
		}
	}

	c.Auth.UserTokens.Tokens = slices.Clone(c.Auth.UserTokens.Tokens)
	for i := range c.Auth.UserTokens.Tokens {
		redact(&c.Auth.UserTokens.Tokens[i].Token)
	}

	c.Auth.Credentials.Users = slices.Clone(c.Auth.Credentials.Users)
	for i := range c.Auth.Credentials.Users {
		redact(&c.Auth.Credentials.Users[i].Password)
		redact(&c.Auth.Credentials.Users[i].TOTPSecret)
	}

	return c
}

// validate the config settings the daemon cannot start without.
func validate(c Config) error {
	invalidErrMessage := "invalid config"

	// validate webserver listening port
	if c.Webserver.Port == 0 {
		return errors.Wrap(ErrWebServerPortCanNotBeZero, invalidErrMessage)
	}

	// validate access-control-allow-origin
	if c.Webserver.URL == "" {
		return errors.Wrap(ErrEmptyURL, invalidErrMessage)
	}

	if err := validator.New().Struct(c); err != nil {
		return errors.Wrap(err, invalidErrMessage)
	}

	if slices.Contains(c.Auth.Strategies, strategy.NameOAuth2) && !c.Auth.OAuth2.Enabled {
		return errors.Wrap(ErrOAuth2NotEnabled, invalidErrMessage)
	}

	if slices.Contains(c.Auth.Strategies, strategy.NameCredentials) &&
		(c.Auth.Credentials.Backend == "" || c.Auth.Credentials.Backend == "static") &&
		len(c.Auth.Credentials.Users) == 0 {
		return errors.Wrap(ErrNoStaticUsers, invalidErrMessage)
	}

	if c.Auth.Credentials.Backend == "ldap" && c.Auth.Credentials.LDAP.Host == "" {
		return errors.Wrap(ErrNoLDAPHost, invalidErrMessage)
	}

	if (c.Storage.Driver == "mysql" && c.DB.Driver != "mysql") ||
		(c.Storage.Driver == "postgres" && c.DB.Driver != "postgres") {
		return errors.Wrap(ErrStorageDriverMismatch, invalidErrMessage)
	}

	seen := make(map[string]bool, len(c.Auth.Clients))
	for _, cl := range c.Auth.Clients {
		if seen[cl.ID] {
			return errors.Wrap(client.ErrDuplicateClient, cl.ID)
		}

		seen[cl.ID] = true
	}

	return nil
}
