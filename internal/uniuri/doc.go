// Package uniuri generates random strings from a cryptographically secure source.
// It backs session tokens and single-use OAuth2 state values.
package uniuri
