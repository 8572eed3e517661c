package logger

import (
	"net/url"
	"strings"
)

const tokenPrefixLen = 6

// secretParams are query parameters that carry credentials or single-use codes.
var secretParams = map[string]struct{}{ //nolint:gochecknoglobals
	"access_token":  {},
	"client_secret": {},
	"code":          {},
	"id_token":      {},
	"otp":           {},
	"password":      {},
	"refresh_token": {},
	"state":         {},
	"token":         {},
}

// Token shortens a secret token to a prefix safe for logs and audit records.
func Token(token string) string {
	if token == "" {
		return ""
	}

	if len(token) <= tokenPrefixLen*2 {
		return "***"
	}

	return token[:tokenPrefixLen] + "***"
}

// Query shortens the values of secret parameters in a raw query string with Token.
// Other parameters and their order are kept as received.
func Query(raw string) string {
	parts := strings.Split(raw, "&")

	for i, part := range parts {
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}

		name, err := url.QueryUnescape(key)
		if err != nil {
			name = key
		}

		if _, secret := secretParams[strings.ToLower(name)]; secret {
			parts[i] = key + "=" + Token(value)
		}
	}

	return strings.Join(parts, "&")
}
