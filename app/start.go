package app

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/GoPowerDNS-Admin/adminauth/internal/config"
	"github.com/GoPowerDNS-Admin/adminauth/internal/daemon"
	"github.com/GoPowerDNS-Admin/adminauth/internal/logger"
)

func init() { //nolint: gochecknoinits
	startCmd.Flags().BoolVar(&devMode, "dev", false, "Enable dev mode")

	rootCmd.AddCommand(startCmd)
}

var (
	cfg     config.Config
	devMode bool

	startCmd = &cobra.Command{
		Use:   "start",
		Short: "Start the adminauth web service",
		PreRunE: func(_ *cobra.Command, _ []string) error {
			var err error
			if cfg, err = config.ReadConfig(configPath); err != nil {
				return err
			}

			if devMode {
				cfg.DevMode = true
			}

			return logger.Init(cfg.Log)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			d, err := daemon.New(ctx, &cfg)
			if err != nil {
				return err
			}

			go func() {
				if err := d.Start(ctx); err != nil {
					log.Error().Err(err).Msg("web service stopped")
				}
			}()

			d.WaitShutdown()

			return nil
		},
	}
)
