// Package main provides the entry point of adminauth, the identity and permission
// layer of an embeddable admin HTTP API. It runs a fiber web service that issues
// session tokens for password and OAuth2 logins, resolves bearer and user tokens
// into identities and guards routes by capability scope. Sessions and rate limit
// entries can be mirrored to a database so they survive restarts.
package main
