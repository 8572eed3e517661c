package auth

import "errors"

var (
	// ErrStrategyDisabled is returned when a login names a strategy that is not configured.
	ErrStrategyDisabled = errors.New("login strategy is not enabled")

	// ErrUnsupportedGrant is returned for a token request with an unknown grant type.
	ErrUnsupportedGrant = errors.New("unsupported grant type")

	// ErrScopeNotGranted is returned when a login asks for more than the identity holds.
	ErrScopeNotGranted = errors.New("requested scope exceeds granted scope")

	// ErrNoStrategy is returned when no strategy produced an identity.
	ErrNoStrategy = errors.New("no strategy produced an identity")
)
