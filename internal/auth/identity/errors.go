package identity

import (
	"errors"
	"fmt"
)

// Kind classifies why authentication or authorization failed.
type Kind int

// Failure kinds.
const (
	UnknownUser Kind = iota + 1
	BadSecret
	RateLimited
	InvalidToken
	ProviderError
	LookupError
	Forbidden
	Unauthenticated
)

var kindNames = map[Kind]string{
	UnknownUser:     "unknown user",
	BadSecret:       "bad secret",
	RateLimited:     "rate limited",
	InvalidToken:    "invalid token",
	ProviderError:   "provider error",
	LookupError:     "lookup error",
	Forbidden:       "forbidden",
	Unauthenticated: "unauthenticated",
}

// String returns a human readable name.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}

	return fmt.Sprintf("kind(%d)", int(k))
}

// Failure is the typed outcome of a failed strategy, credential check or permission check.
// It is meant for logs and the audit trail only, see Public for what callers may see.
type Failure struct {
	Kind Kind
	// Username is the attempted username for credential failures. Never the secret.
	Username string
	// Err is the underlying cause, if any.
	Err error
}

// Sentinels usable with errors.Is. Matching is by Kind.
var (
	ErrUnknownUser     = &Failure{Kind: UnknownUser}
	ErrBadSecret       = &Failure{Kind: BadSecret}
	ErrRateLimited     = &Failure{Kind: RateLimited}
	ErrInvalidToken    = &Failure{Kind: InvalidToken}
	ErrProviderError   = &Failure{Kind: ProviderError}
	ErrLookupError     = &Failure{Kind: LookupError}
	ErrForbidden       = &Failure{Kind: Forbidden}
	ErrUnauthenticated = &Failure{Kind: Unauthenticated}
)

var (
	// ErrUnauthorized is the only authentication error a caller ever sees.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrAccessDenied is the only authorization error a caller ever sees.
	ErrAccessDenied = errors.New("forbidden")
)

// Fail builds a failure of the given kind.
func Fail(kind Kind, username string, err error) *Failure {
	return &Failure{Kind: kind, Username: username, Err: err}
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s: %v", f.Kind, f.Err)
	}

	return f.Kind.String()
}

// Unwrap returns the cause.
func (f *Failure) Unwrap() error {
	return f.Err
}

// Is matches another failure of the same kind.
func (f *Failure) Is(target error) bool {
	t, ok := target.(*Failure)

	return ok && t.Kind == f.Kind
}

// KindOf returns the kind of the outermost failure in err's chain, or 0.
func KindOf(err error) Kind {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}

	return 0
}

// Public collapses any failure into the uniform signal a caller is allowed to see:
// ErrAccessDenied for Forbidden, ErrUnauthorized for everything else.
func Public(err error) error {
	if err == nil {
		return nil
	}

	if KindOf(err) == Forbidden {
		return ErrAccessDenied
	}

	return ErrUnauthorized
}
