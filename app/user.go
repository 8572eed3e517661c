package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/GoPowerDNS-Admin/adminauth/internal/auth/credential"
	"github.com/GoPowerDNS-Admin/adminauth/internal/config"
	"github.com/GoPowerDNS-Admin/adminauth/internal/db"
)

func init() { //nolint: gochecknoinits
	userOTPCmd.Flags().BoolVar(&otpRemove, "remove", false, "turn the second factor off instead")

	userCmd.AddCommand(userDisableCmd, userEnableCmd, userPasswdCmd, userOTPCmd)
	rootCmd.AddCommand(userCmd)
}

var (
	otpRemove bool

	userCmd = &cobra.Command{
		Use:   "user",
		Short: "Manage users of the database directory",
		Long: `Manage users of the database directory ([auth.credentials] backend = "db").
Changes apply to the next login. Sessions already issued stay valid until they expire
or are revoked with DELETE /auth/sessions/<username>.`,
	}

	userDisableCmd = &cobra.Command{
		Use:   "disable <username>",
		Short: "Prevent a user from logging in",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return setActive(cmd, args[0], false)
		},
	}

	userEnableCmd = &cobra.Command{
		Use:   "enable <username>",
		Short: "Allow a disabled user to log in again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return setActive(cmd, args[0], true)
		},
	}

	userPasswdCmd = &cobra.Command{
		Use:   "passwd <username> [password]",
		Short: "Set the password of a local user",
		Long: `Set the password of a local user.
Without a password argument it is read from the first line of stdin.`,
		Args: cobra.RangeArgs(1, 2), //nolint:mnd
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := readPassword(cmd, args[1:])
			if err != nil {
				return err
			}

			dir, err := openDirectory()
			if err != nil {
				return err
			}

			if err = dir.SetPassword(cmd.Context(), args[0], password); err != nil {
				return userError(args[0], err)
			}

			return done(cmd, "password of %s changed\n", args[0])
		},
	}

	userOTPCmd = &cobra.Command{
		Use:   "otp <username>",
		Short: "Enroll a local user in TOTP and print the secret",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := config.ReadConfig(configPath)
			if err != nil {
				return err
			}

			dir, err := directory(c)
			if err != nil {
				return err
			}

			if otpRemove {
				if err = dir.SetOTPSecret(cmd.Context(), args[0], ""); err != nil {
					return userError(args[0], err)
				}

				return done(cmd, "second factor of %s removed\n", args[0])
			}

			secret, url, err := credential.NewOTPSecret(c.Title, args[0])
			if err != nil {
				return err
			}

			if err = dir.SetOTPSecret(cmd.Context(), args[0], secret); err != nil {
				return userError(args[0], err)
			}

			return done(cmd, "secret: %s\nurl: %s\n", secret, url)
		},
	}
)

func setActive(cmd *cobra.Command, username string, active bool) error {
	dir, err := openDirectory()
	if err != nil {
		return err
	}

	if err = dir.SetActive(cmd.Context(), username, active); err != nil {
		return userError(username, err)
	}

	state := "disabled"
	if active {
		state = "enabled"
	}

	return done(cmd, "%s %s\n", username, state)
}

func openDirectory() (*credential.Directory, error) {
	c, err := config.ReadConfig(configPath)
	if err != nil {
		return nil, err
	}

	return directory(c)
}

func directory(c config.Config) (*credential.Directory, error) {
	conn, err := db.Open(c.DB)
	if err != nil {
		return nil, err
	}

	hasher, err := credential.NewHasher(c.Auth.Credentials.HashConfig)
	if err != nil {
		return nil, err
	}

	return credential.NewDirectory(conn, hasher), nil
}

func userError(username string, err error) error {
	return fmt.Errorf("user %s: %w", username, err)
}

func done(cmd *cobra.Command, format string, args ...any) error {
	_, err := fmt.Fprintf(cmd.OutOrStdout(), format, args...)

	return err //nolint:wrapcheck
}
