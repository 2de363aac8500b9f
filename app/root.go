// Package app implements the main application commands.
package app

import (
	"github.com/spf13/cobra"

	"github.com/oslokommune/okdata-permission-api/internal/config"
	"github.com/oslokommune/okdata-permission-api/internal/logger"
)

var (
	configPath string // Path to the configuration file
	cfg        config.Config

	rootCmd = &cobra.Command{
		Use:   "okdata-permission-api",
		Short: "okdata-permission-api manages dataset permissions in Keycloak",
		Long: `okdata-permission-api manages resources, scoped permissions and teams
of a Keycloak resource server, and issues webhook tokens for datasets.`,
		Args:          cobra.OnlyValidArgs,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			var err error

			if cfg, err = config.ReadConfig(configPath); err != nil {
				return err //nolint:wrapcheck
			}

			return logger.Init(cfg.Log) //nolint:wrapcheck
		},
	}
)

func init() { //nolint: gochecknoinits
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "directory holding main.toml (default ./etc/)")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
