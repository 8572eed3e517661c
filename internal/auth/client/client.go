// Package client holds the applications allowed to exchange credentials for a session.
//
// Clients authenticate the calling application, never the end user.
package client

import (
	"crypto/subtle"
	"errors"
	"fmt"
)

// NoSecret marks a first-party public client that cannot keep a secret.
const NoSecret = "not_available"

// Built-in clients.
const (
	AdminUI  = "admin-ui"
	AdminCLI = "admin-cli"
)

var (
	// ErrUnknownClient is returned for an unregistered client id.
	ErrUnknownClient = errors.New("unknown client")

	// ErrBadSecret is returned when a confidential client presents the wrong secret.
	ErrBadSecret = errors.New("bad client secret")

	// ErrDuplicateClient is returned when a client id is registered twice.
	ErrDuplicateClient = errors.New("duplicate client")
)

// Client is one registered application.
type Client struct {
	ID     string `validate:"required"`
	Secret string `validate:"required"`
}

// Public reports whether the client needs no secret.
func (c Client) Public() bool {
	return c.Secret == NoSecret
}

// Defaults are registered when no clients are configured.
func Defaults() []Client {
	return []Client{
		{ID: AdminUI, Secret: NoSecret},
		{ID: AdminCLI, Secret: NoSecret},
	}
}

// Registry is the static clientId to secret lookup. It is read-only after New.
type Registry struct {
	clients map[string]Client
}

// New builds the registry. An empty list registers Defaults.
func New(clients []Client) (*Registry, error) {
	if len(clients) == 0 {
		clients = Defaults()
	}

	r := &Registry{clients: make(map[string]Client, len(clients))}

	for _, c := range clients {
		if _, ok := r.clients[c.ID]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateClient, c.ID)
		}

		r.clients[c.ID] = c
	}

	return r, nil
}

// Get returns a registered client.
func (r *Registry) Get(id string) (Client, bool) {
	c, ok := r.clients[id]

	return c, ok
}

// Authenticate checks a client id and secret. Public clients accept any secret.
func (r *Registry) Authenticate(id, secret string) (Client, error) {
	c, ok := r.clients[id]
	if !ok {
		return Client{}, ErrUnknownClient
	}

	if c.Public() {
		return c, nil
	}

	if subtle.ConstantTimeCompare([]byte(c.Secret), []byte(secret)) != 1 {
		return Client{}, ErrBadSecret
	}

	return c, nil
}

// IDs lists the registered client ids in no particular order.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.clients))
	for id := range r.clients {
		ids = append(ids, id)
	}

	return ids
}
