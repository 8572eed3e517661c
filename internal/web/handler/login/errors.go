// Package login provides the prompt and token endpoints of the password login.
//
// This file defines exported error values used throughout the login flow.
package login

import "errors"

// ErrInvalidFormData is returned when the submitted token request cannot be parsed.
var ErrInvalidFormData = errors.New("invalid form data")
