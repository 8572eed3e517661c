// Package app implements the main application commands.
package app

import (
	"github.com/spf13/cobra"
)

var (
	configPath string // directory holding main.toml

	rootCmd = &cobra.Command{
		Use:   "adminauth",
		Short: "adminauth is the identity and permission layer of an embeddable admin API",
		Long: `adminauth authenticates requests to an admin HTTP API with pluggable strategies
(bearer sessions, user tokens, credentials and an external OAuth2 provider), issues
session tokens and checks capability scopes.`,
		Args:          cobra.OnlyValidArgs,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
)

func init() { //nolint: gochecknoinits
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "./etc/", "directory holding main.toml")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
