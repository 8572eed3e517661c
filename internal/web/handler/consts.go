package handler

import "errors"

const (
	// RootPath is the root path the route group.
	RootPath = "/"

	// RouterRootPath is the path of a route relative to its group.
	RouterRootPath = ""

	// TokenTypeBearer is the token_type of every issued token.
	TokenTypeBearer = "Bearer"
)

// ErrNilACS is returned if app, cfg or the auth service is nil.
var ErrNilACS = errors.New("app, cfg or auth service is nil")
