package app

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/oslokommune/okdata-permission-api/internal/backup"
	"github.com/oslokommune/okdata-permission-api/internal/daemon"
	"github.com/oslokommune/okdata-permission-api/internal/grantee"
)

func init() { //nolint: gochecknoinits
	replaceGranteeCmd.Flags().StringVarP(&inputFile, "input", "i", "", "snapshot to rewrite (default latest in S3)")
	replaceGranteeCmd.Flags().StringVarP(&outputFile, "output", "o", "", "file to write the rewritten snapshot to (default stdout)")
	replaceGranteeCmd.Flags().BoolVar(&includeUnchanged, "include-unchanged", false, "keep permissions without the old grantee")

	stripGranteeCmd.Flags().BoolVar(&apply, "apply", false, "perform the changes; without it they are only logged")

	rootCmd.AddCommand(replaceGranteeCmd, stripGranteeCmd)
}

var (
	outputFile       string
	includeUnchanged bool

	replaceGranteeCmd = &cobra.Command{
		Use:   "replace-grantee <old> <new>",
		Short: "Rewrite a snapshot replacing one grantee by another, e.g. user:janedoe team:my-team",
		Long: `Rewrite a snapshot replacing one grantee by another. The result can be
applied with "restore --input".`,
		Args: cobra.ExactArgs(2), //nolint:mnd
		RunE: func(cmd *cobra.Command, args []string) error {
			old, err := grantee.Parse(args[0])
			if err != nil {
				return err //nolint:wrapcheck
			}

			replacement, err := grantee.Parse(args[1])
			if err != nil {
				return err //nolint:wrapcheck
			}

			perms, err := loadSnapshot(cmd.Context(), inputFile)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()

			if outputFile != "" {
				f, err := os.Create(outputFile) //nolint:gosec
				if err != nil {
					return errors.Wrap(err, "failed to create output file")
				}

				defer f.Close() //nolint:errcheck

				out = f
			}

			return backup.Encode(out, backup.ReplaceGrantee(perms, old, replacement, includeUnchanged)) //nolint:wrapcheck
		},
	}

	stripGranteeCmd = &cobra.Command{
		Use:   "strip-grantee <grantee>",
		Short: "Remove a grantee from every permission it holds, e.g. team:my-team",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := grantee.Parse(args[0])
			if err != nil {
				return err //nolint:wrapcheck
			}

			rs, err := daemon.NewResourceServer(cmd.Context(), &cfg)
			if err != nil {
				return err //nolint:wrapcheck
			}

			stripped, err := backup.StripGrantee(cmd.Context(), rs, g, apply)

			for _, s := range stripped {
				status := "removed"
				if s.Skipped {
					status = "skipped, only admin"
				}

				fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %s\n", s.ResourceName, s.Scope, status) //nolint:errcheck
			}

			return err //nolint:wrapcheck
		},
	}
)
