package daemon

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"

	"github.com/GoPowerDNS-Admin/adminauth/internal/auth/credential"
	"github.com/GoPowerDNS-Admin/adminauth/internal/auth/scope"
	"github.com/GoPowerDNS-Admin/adminauth/internal/uniuri"
)

// SeedUsername is the admin created in an empty user table.
const SeedUsername = "admin"

// seed creates an admin with a random password when the user table is empty.
// The password goes to out only, never to the log.
func seed(ctx context.Context, dir *credential.Directory, out io.Writer) error {
	count, err := dir.Count(ctx)
	if err != nil {
		return err
	}

	if count > 0 {
		return nil
	}

	password, err := uniuri.Token()
	if err != nil {
		return err
	}

	if _, err = dir.Create(ctx, SeedUsername, password, scope.New(scope.All)); err != nil {
		return err
	}

	log.Warn().Str("username", SeedUsername).Msg("user table was empty, seeded an admin user")

	_, err = fmt.Fprintf(out, "initial %s password: %s\n", SeedUsername, password)

	return err //nolint:wrapcheck
}
