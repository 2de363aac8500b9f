package app

import (
	"github.com/spf13/cobra"

	"github.com/oslokommune/okdata-permission-api/internal/daemon"
)

func init() { //nolint: gochecknoinits
	startCmd.Flags().BoolVar(&devMode, "dev", false, "Enable dev mode")
	startCmd.Flags().BoolVar(&noJobs, "no-jobs", false, "Do not schedule the backup and user check jobs")

	rootCmd.AddCommand(startCmd)
}

var (
	devMode bool
	noJobs  bool

	startCmd = &cobra.Command{
		Use:     "start",
		Aliases: []string{"serve"},
		Short:   "Start the permission API web service",
		PreRun: func(_ *cobra.Command, _ []string) {
			if devMode {
				cfg.DevMode = true
			}
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := daemon.New(cmd.Context(), &cfg, !noJobs)
			if err != nil {
				return err //nolint:wrapcheck
			}

			return d.Start() //nolint:wrapcheck
		},
	}
)
