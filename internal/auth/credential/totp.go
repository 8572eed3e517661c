package credential

import (
	"errors"

	"github.com/pquerna/otp/totp"
)

// ErrBadOTP is the cause of a BadSecret failure when the one-time code is wrong or missing.
var ErrBadOTP = errors.New("invalid one-time code")

// ValidOTP checks a TOTP code against the base32 secret.
func ValidOTP(code, secret string) bool {
	if code == "" {
		return false
	}

	return totp.Validate(code, secret)
}

// NewOTPSecret creates a TOTP key for username and returns its secret and otpauth:// URL.
func NewOTPSecret(issuer, username string) (secret, url string, err error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: username,
	})
	if err != nil {
		return "", "", err //nolint:wrapcheck
	}

	return key.Secret(), key.URL(), nil
}
