package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewStorageCmd creates the storage command.
func NewStorageCmd(getApp AppFunc) *cobra.Command {
	var asJSON bool

	c := &cobra.Command{
		Use:   "storage",
		Short: "Show where application data is stored",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := getApp()
			settings, err := a.StorageSettings()
			if err != nil {
				return err
			}
			status := a.MigrationStatus()
			db, _ := a.DatabaseStatus(cmd.Context())

			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, map[string]any{
					"settings":  settings,
					"migration": status,
					"database":  db,
				})
			}

			custom := "default"
			if settings.IsCustom {
				custom = "custom"
			}
			fmt.Fprintf(out, "Data directory:    %s (%s)\n", settings.CurrentDataDir, custom)
			fmt.Fprintf(out, "Default directory: %s\n", settings.DefaultDataDir)
			fmt.Fprintf(out, "Migration state:   %s\n", status.State)
			if m := status.PendingMarker; m != nil {
				fmt.Fprintf(out, "Interrupted migration %s: %s -> %s (phase %s, %d moved)\n",
					m.ID, m.FromDir, m.ToDir, m.Phase, len(m.Moved))
				fmt.Fprintf(out, "  resume with: nooltools migrate %q\n", m.ToDir)
				fmt.Fprintln(out, "  or roll back with: nooltools migrate --abort")
			}
			if db.Open {
				fmt.Fprintf(out, "Database:          %s (schema %d)\n", db.Path, db.SchemaVersion)
			} else {
				fmt.Fprintf(out, "Database:          %s (%s)\n", db.Path, db.Error)
			}
			if settings.StartupNotice != "" {
				fmt.Fprintf(out, "\n%s\n", settings.StartupNotice)
			}
			return nil
		},
	}

	c.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")
	return c
}
