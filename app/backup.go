package app

import (
	"context"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/oslokommune/okdata-permission-api/internal/backup"
	"github.com/oslokommune/okdata-permission-api/internal/daemon"
	"github.com/oslokommune/okdata-permission-api/internal/keycloak"
)

func init() { //nolint: gochecknoinits
	restoreCmd.Flags().StringVarP(&inputFile, "input", "i", "", "restore from a local snapshot instead of the latest in S3")
	restoreCmd.Flags().BoolVar(&apply, "apply", false, "perform the restore; without it the changes are only logged")
	restoreCmd.Flags().BoolVar(
		&skipDeletedResources, "skip-deleted-resources", false, "do not recreate resources deleted since the snapshot",
	)

	rootCmd.AddCommand(backupCmd, restoreCmd, checkUsersCmd)
}

var (
	inputFile            string
	apply                bool
	skipDeletedResources bool

	backupCmd = &cobra.Command{
		Use:   "backup",
		Short: "Write a snapshot of every permission to S3",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			rs, err := daemon.NewResourceServer(ctx, &cfg)
			if err != nil {
				return err //nolint:wrapcheck
			}

			store, err := daemon.NewBackupStore(ctx, &cfg)
			if err != nil {
				return err //nolint:wrapcheck
			}

			key, err := backup.Backup(ctx, rs, store)
			if err != nil {
				return err //nolint:wrapcheck
			}

			if key == "" {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), "no permissions, nothing written")
			} else {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), key)
			}

			return err //nolint:wrapcheck
		},
	}

	restoreCmd = &cobra.Command{
		Use:   "restore",
		Short: "Recreate resources and permissions from a snapshot",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			perms, err := loadSnapshot(ctx, inputFile)
			if err != nil {
				return err
			}

			rs, err := daemon.NewResourceServer(ctx, &cfg)
			if err != nil {
				return err //nolint:wrapcheck
			}

			return backup.Restore(ctx, rs, perms, backup.RestoreOptions{ //nolint:wrapcheck
				SkipDeletedResources: skipDeletedResources,
				Apply:                apply,
			})
		},
	}

	checkUsersCmd = &cobra.Command{
		Use:   "check-users",
		Short: "Report users of the latest snapshot that no longer exist in Keycloak",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := daemon.NewBackupStore(ctx, &cfg)
			if err != nil {
				return err //nolint:wrapcheck
			}

			tc, err := daemon.NewTeams(ctx, &cfg)
			if err != nil {
				return err //nolint:wrapcheck
			}

			missing, err := backup.CheckUsers(ctx, store, tc, daemon.NewNotifier(&cfg), cfg.Backup.MaxAge)
			if err != nil {
				return err //nolint:wrapcheck
			}

			for _, username := range missing {
				if _, err = fmt.Fprintln(cmd.OutOrStdout(), username); err != nil {
					return err //nolint:wrapcheck
				}
			}

			return nil
		},
	}
)

// loadSnapshot reads path, or the latest snapshot in S3 when path is empty.
func loadSnapshot(ctx context.Context, path string) ([]keycloak.Permission, error) {
	if path != "" {
		f, err := os.Open(path) //nolint:gosec
		if err != nil {
			return nil, errors.Wrap(err, "failed to open snapshot")
		}

		defer f.Close() //nolint:errcheck

		return backup.Decode(f) //nolint:wrapcheck
	}

	store, err := daemon.NewBackupStore(ctx, &cfg)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	perms, _, err := store.LoadLatest(ctx, cfg.Backup.MaxAge)

	return perms, err //nolint:wrapcheck
}
