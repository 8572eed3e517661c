package config

import (
	"errors"
)

var (
	// ErrEmptyURL error if config webserver.URL is empty.
	ErrEmptyURL = errors.New("toml config webserver.url can not be empty")

	// ErrWebServerPortCanNotBeZero error if config webserver listening port is 0.
	ErrWebServerPortCanNotBeZero = errors.New("toml config webserver.port listening port can not be 0")

	// ErrOAuth2NotEnabled error if the oauth2 strategy is listed but auth.oauth2 is disabled.
	ErrOAuth2NotEnabled = errors.New("toml config auth.strategies lists oauth2 but auth.oauth2.enabled is false")

	// ErrNoStaticUsers error if the static credentials backend has no users.
	ErrNoStaticUsers = errors.New("toml config auth.credentials.users can not be empty for the static backend")

	// ErrNoLDAPHost error if the ldap backend has no host.
	ErrNoLDAPHost = errors.New("toml config auth.credentials.ldap.host can not be empty for the ldap backend")

	// ErrStorageDriverMismatch error if a gofiber storage driver does not match the db driver it shares settings with.
	ErrStorageDriverMismatch = errors.New("toml config storage.driver must match db.driver")
)
