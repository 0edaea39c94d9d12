package cmd

import (
	"errors"
	"fmt"

	"github.com/nooltools/nooltools/internal/migration"
	"github.com/spf13/cobra"
)

// NewMigrateCmd creates the migrate command.
func NewMigrateCmd(getApp AppFunc) *cobra.Command {
	var (
		parent bool
		abort  bool
		asJSON bool
	)

	c := &cobra.Command{
		Use:   "migrate [dir]",
		Short: "Move the data directory",
		Long: `Move all application data into dir. With --parent, dir is a parent directory and
the data goes into dir/nooltools_data. Entries that already exist at the target are
renamed to a .backup_<timestamp> name first.

Running the same command again after an interruption resumes the migration;
--abort rolls it back instead.`,
		Example: `  nooltools migrate /mnt/storage/nooltools
  nooltools migrate --parent /mnt/storage
  nooltools migrate --abort`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := getApp()

			var (
				result migration.Result
				err    error
			)
			switch {
			case abort && len(args) > 0:
				return errors.New("--abort does not take a directory")
			case abort:
				result, err = a.AbortMigration(cmd.Context())
			case len(args) == 0:
				return errors.New("a target directory is required")
			case parent:
				result, err = a.MigrateToParent(cmd.Context(), args[0])
			default:
				result, err = a.Migrate(cmd.Context(), args[0])
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, result)
			}
			switch {
			case abort:
				fmt.Fprintf(out, "Migration rolled back, data is in %s\n", result.ToDir)
			case result.FromDir == result.ToDir:
				fmt.Fprintf(out, "Data is already in %s, nothing to do\n", result.ToDir)
			default:
				fmt.Fprintf(out, "Moved data from %s to %s\n", result.FromDir, result.ToDir)
			}
			for _, b := range result.BackedUpConflicts {
				fmt.Fprintf(out, "  backed up existing entry: %s\n", b)
			}
			if result.RestartRecommended {
				fmt.Fprintln(out, "Restart nooltools to finish switching to the new directory.")
			}
			return nil
		},
	}

	c.Flags().BoolVar(&parent, "parent", false, "Treat dir as a parent directory and append nooltools_data")
	c.Flags().BoolVar(&abort, "abort", false, "Roll back an interrupted migration")
	c.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON")
	c.MarkFlagsMutuallyExclusive("parent", "abort")
	return c
}
