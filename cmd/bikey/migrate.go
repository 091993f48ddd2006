// ABOUTME: CLI command for migrating ride data between storage backends.
// ABOUTME: Copies rides, log points and the current ride into an empty destination.
package main

import (
	"fmt"
	"os"

	"github.com/harperreed/bikey/internal/config"
	"github.com/harperreed/bikey/internal/storage"
	"github.com/spf13/cobra"
)

var (
	migrateTo    string
	migrateForce bool
	migrateSave  bool
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Copy ride data to another storage backend",
	Long: `Copy every ride, log point and the current ride selection from the
configured backend to another one in the same data directory.

IMPORTANT:

  - The destination must be empty unless --force is given
  - Ride and log IDs are reassigned by the destination; UUIDs are kept
  - The source is left untouched

USAGE:

  bikey migrate --to badger          # SQLite -> Badger
  bikey migrate --to badger --save   # ...and make Badger the default
  bikey --backend badger migrate --to sqlite`,
	RunE: func(cmd *cobra.Command, args []string) error {
		from := cfg.GetBackend()
		if migrateTo == from {
			return fmt.Errorf("source and destination are both %s", from)
		}

		var dest string
		switch migrateTo {
		case config.BackendSQLite:
			dest = cfg.SQLitePath()
			if _, err := os.Stat(dest); err == nil && !migrateForce {
				return fmt.Errorf("destination %s already exists (use --force to merge into it)", dest)
			}
		case config.BackendBadger:
			dest = cfg.BadgerDir()
			nonEmpty, err := storage.IsDirNonEmpty(dest)
			if err != nil {
				return err
			}
			if nonEmpty && !migrateForce {
				return fmt.Errorf("destination %s is not empty (use --force to merge into it)", dest)
			}
		default:
			return fmt.Errorf("unknown backend: %q (use sqlite or badger)", migrateTo)
		}

		dst, err := cfg.OpenBackend(migrateTo, logger)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", migrateTo, err)
		}
		defer dst.Close()

		summary, err := storage.MigrateData(cmd.Context(), backend, dst)
		if err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}

		green.Fprintf(cmd.OutOrStdout(), "✓ Migrated %d rides and %d log points from %s to %s\n",
			summary.Rides, summary.Logs, from, migrateTo)
		faint.Fprintf(cmd.OutOrStdout(), "  %s\n", dest)

		if migrateSave {
			cfg.Backend = migrateTo
			if err := cfg.Save(); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "  default backend is now %s\n", migrateTo)
		}
		return nil
	},
}

func init() {
	migrateCmd.Flags().StringVar(&migrateTo, "to", "", "destination backend: sqlite or badger")
	migrateCmd.Flags().BoolVar(&migrateForce, "force", false, "write into a non-empty destination")
	migrateCmd.Flags().BoolVar(&migrateSave, "save", false, "make the destination the configured backend")
	_ = migrateCmd.MarkFlagRequired("to")
	rootCmd.AddCommand(migrateCmd)
}
