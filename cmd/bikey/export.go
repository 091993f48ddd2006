// ABOUTME: CLI commands for exporting and importing ride data.
// ABOUTME: Supports JSON (restorable), YAML, Markdown and per-ride GPX exports.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/harperreed/bikey/internal/gpx"
	"github.com/harperreed/bikey/internal/storage"
	"github.com/spf13/cobra"
)

var (
	exportOutput string
	exportRide   int64
	exportSince  string
)

var exportCmd = &cobra.Command{
	Use:   "export <format>",
	Short: "Export ride data",
	Long: `Export ride data in various formats.

FORMATS:

  json       Full JSON export of every ride and log point (backup/restore)
  yaml       YAML export (human-readable)
  markdown   Markdown table of rides with totals (for sharing)
  gpx        GPX 1.1 track of one ride (the current ride by default)

OPTIONS:

  --output, -o   Write to file instead of stdout
  --ride         Ride to export (gpx only)
  --since        Only include rides since this date (markdown only, YYYY-MM-DD)

EXAMPLES:

  bikey export json -o backup.json   # Save a full backup
  bikey export yaml                  # Print as YAML
  bikey export markdown --since 2024-01-01
  bikey export gpx --ride 3 -o 3.gpx # Export ride 3 as GPX`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"json", "yaml", "markdown", "gpx"},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		format := args[0]

		var data []byte
		var err error

		switch format {
		case "json":
			data, err = storage.ExportJSON(ctx, backend)
		case "yaml":
			data, err = storage.ExportYAML(ctx, backend)
		case "markdown":
			var since *time.Time
			if exportSince != "" {
				t, err := time.ParseInLocation("2006-01-02", exportSince, time.Local)
				if err != nil {
					return fmt.Errorf("invalid date format: %s (use YYYY-MM-DD)", exportSince)
				}
				since = &t
			}
			md, err := storage.ExportMarkdown(ctx, backend, since)
			if err != nil {
				return err
			}
			data = []byte(md)
		case "gpx":
			data, err = exportGPX(cmd)
		default:
			return fmt.Errorf("unknown format: %s (use json, yaml, markdown, or gpx)", format)
		}

		if err != nil {
			return fmt.Errorf("export failed: %w", err)
		}

		if exportOutput != "" {
			if err := os.WriteFile(exportOutput, data, 0600); err != nil {
				return fmt.Errorf("failed to write file: %w", err)
			}
			green.Fprintf(cmd.OutOrStdout(), "✓ Exported to %s\n", exportOutput)
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
		}

		return nil
	},
}

func exportGPX(cmd *cobra.Command) ([]byte, error) {
	ctx := cmd.Context()

	var args []string
	if exportRide != 0 {
		args = []string{fmt.Sprint(exportRide)}
	}
	r, err := rideFromArgs(ctx, args)
	if err != nil {
		return nil, err
	}

	points, err := eng.Logs.Query(ctx, r.ID, storage.LogQuery{})
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := gpx.FromRide(r, points, "bikey "+version).Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import ride data from JSON",
	Long: `Import rides from a JSON backup file created by 'bikey export json'.

Rides get new IDs in this store; their UUIDs are kept. The current ride
selection is restored when the backup has one.

For GPX tracks use 'bikey log import'.

EXAMPLES:

  bikey import backup.json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		filename := args[0]

		raw, err := os.ReadFile(filename)
		if err != nil {
			return fmt.Errorf("failed to read file: %w", err)
		}

		var data storage.ExportData
		if err := json.Unmarshal(raw, &data); err != nil {
			return fmt.Errorf("invalid backup file: %w", err)
		}

		summary, err := storage.ImportData(cmd.Context(), backend, &data)
		if err != nil {
			return fmt.Errorf("import failed: %w", err)
		}

		green.Fprintf(cmd.OutOrStdout(), "✓ Imported %d rides and %d log points from %s\n", summary.Rides, summary.Logs, filename)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "output file (default: stdout)")
	exportCmd.Flags().Int64Var(&exportRide, "ride", 0, "ride to export (gpx only)")
	exportCmd.Flags().StringVar(&exportSince, "since", "", "only include rides since date (YYYY-MM-DD)")

	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
}
