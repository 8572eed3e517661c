package app

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/GoPowerDNS-Admin/adminauth/internal/auth/credential"
	"github.com/GoPowerDNS-Admin/adminauth/internal/config"
)

func init() { //nolint: gochecknoinits
	rootCmd.AddCommand(hashPwCmd)
}

var hashPwCmd = &cobra.Command{
	Use:   "hash-pw [password]",
	Short: "Print an argon2id hash for a static user password",
	Long: `Print an argon2id hash for a static user password.
Without an argument the password is read from the first line of stdin.
The argon2 parameters are taken from [auth.credentials] when a config is found.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := readPassword(cmd, args)
		if err != nil {
			return err
		}

		hashCfg := credential.HashConfig{}
		if c, err := config.ReadConfig(configPath); err == nil {
			hashCfg = c.Auth.Credentials.HashConfig
		}

		hasher, err := credential.NewHasher(hashCfg)
		if err != nil {
			return err
		}

		hash, err := hasher.Hash(password)
		if err != nil {
			return err
		}

		_, err = fmt.Fprintln(cmd.OutOrStdout(), hash)

		return err //nolint:wrapcheck
	},
}

var errEmptyPassword = errors.New("password must not be empty")

func readPassword(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 1 {
		if args[0] == "" {
			return "", errEmptyPassword
		}

		return args[0], nil
	}

	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return "", errEmptyPassword
	}

	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", errEmptyPassword
	}

	return line, nil
}
