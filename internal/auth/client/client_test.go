package client_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoPowerDNS-Admin/adminauth/internal/auth/client"
)

func TestDefaults(t *testing.T) {
	r, err := client.New(nil)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{client.AdminUI, client.AdminCLI}, r.IDs())

	c, err := r.Authenticate(client.AdminUI, "")
	require.NoError(t, err)
	assert.True(t, c.Public())

	_, err = r.Authenticate(client.AdminCLI, "anything")
	assert.NoError(t, err)
}

func TestAuthenticate(t *testing.T) {
	r, err := client.New([]client.Client{
		{ID: "dashboard", Secret: "s3cr3t"},
		{ID: client.AdminUI, Secret: client.NoSecret},
	})
	require.NoError(t, err)

	tests := []struct {
		name   string
		id     string
		secret string
		want   error
	}{
		{name: "confidential", id: "dashboard", secret: "s3cr3t"},
		{name: "wrong secret", id: "dashboard", secret: "s3cr3", want: client.ErrBadSecret},
		{name: "empty secret", id: "dashboard", want: client.ErrBadSecret},
		{name: "public", id: client.AdminUI},
		{name: "not registered", id: client.AdminCLI, want: client.ErrUnknownClient},
		{name: "empty id", want: client.ErrUnknownClient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := r.Authenticate(tt.id, tt.secret)
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
				assert.Empty(t, c.ID)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.id, c.ID)
		})
	}
}

func TestDuplicate(t *testing.T) {
	_, err := client.New([]client.Client{{ID: "a", Secret: "x"}, {ID: "a", Secret: "y"}})
	assert.ErrorIs(t, err, client.ErrDuplicateClient)
}
