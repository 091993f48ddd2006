// ABOUTME: CLI commands for recording and inspecting log points.
// ABOUTME: Adds samples by hand, lists a ride's points and imports GPX tracks.
package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/harperreed/bikey/internal/geo"
	"github.com/harperreed/bikey/internal/gpx"
	"github.com/harperreed/bikey/internal/models"
	"github.com/harperreed/bikey/internal/storage"
	"github.com/spf13/cobra"
)

var (
	logRide      int64
	logAt        string
	logElevation float64
	logCadence   float64
	logHeartRate int
	logLimit     int
	importName   string
)

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Record and list log points",
}

var logAddCmd = &cobra.Command{
	Use:     "add <lat> <lon>",
	Aliases: []string{"a"},
	Short:   "Record a GPS sample",
	Long: `Record a GPS sample for a ride (the current ride by default).

The distance and speed from the previous sample are derived automatically.
Samples slower than the standing-still threshold count as not moving.

EXAMPLES:

  bikey log add 52.5 13.4                              # Now, current ride
  bikey log add 52.5005 13.4 --at "2024-05-01 08:00"   # Explicit time
  bikey log add 52.5 13.4 --cadence 85 --hr 130        # With sensor data`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		lat, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return fmt.Errorf("invalid latitude: %s", args[0])
		}
		lon, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("invalid longitude: %s", args[1])
		}

		at := time.Now()
		if logAt != "" {
			at, err = parseTime(logAt)
			if err != nil {
				return fmt.Errorf("invalid time format: %s (use YYYY-MM-DD HH:MM[:SS])", logAt)
			}
		}

		rideID, err := rideFlagOrCurrent(cmd)
		if err != nil {
			return err
		}

		sample := models.NewSample(at, lat, lon, logElevation)
		if cmd.Flags().Changed("cadence") {
			sample = sample.WithCadence(logCadence)
		}
		if cmd.Flags().Changed("hr") {
			sample = sample.WithHeartRate(logHeartRate)
		}

		p, err := eng.Logs.Record(ctx, rideID, sample)
		if err != nil {
			return fmt.Errorf("failed to record sample: %w", err)
		}

		green.Fprintf(cmd.OutOrStdout(), "✓ Logged point %d", p.ID)
		if p.Segment != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s at %.1f km/h", formatDistance(p.Segment.Distance), geo.KilometersPerHour(p.Segment.Speed))
		} else {
			faint.Fprint(cmd.OutOrStdout(), "  not moving")
		}
		fmt.Fprintln(cmd.OutOrStdout())
		return nil
	},
}

var logListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls", "l"},
	Short:   "List a ride's log points",
	Long: `List the most recent log points of a ride (the current ride by default).

OUTPUT FORMAT:

  Each line shows: ID  TIME  LAT,LON  ELE  SPEED  CADENCE  HEART RATE`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rideID, err := rideFlagOrCurrent(cmd)
		if err != nil {
			return err
		}

		points, err := eng.Logs.Query(cmd.Context(), rideID, storage.LogQuery{Desc: true, Limit: logLimit})
		if err != nil {
			return fmt.Errorf("failed to list points: %w", err)
		}
		if len(points) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No log points.")
			return nil
		}

		// Oldest first for reading.
		for i := len(points) - 1; i >= 0; i-- {
			p := points[i]
			speed := "-"
			if p.Segment != nil {
				speed = fmt.Sprintf("%.1f km/h", geo.KilometersPerHour(p.Segment.Speed))
			}
			cadence := "-"
			if p.Cadence != nil {
				cadence = fmt.Sprintf("%.0f rpm", *p.Cadence)
			}
			hr := "-"
			if p.HeartRate != nil {
				hr = fmt.Sprintf("%d bpm", *p.HeartRate)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s %s %s %s %s\n",
				faint.Sprint(padRight(strconv.FormatInt(p.ID, 10), 6)),
				faint.Sprint(p.RecordedAt.Local().Format("2006-01-02 15:04:05")),
				padRight(fmt.Sprintf("%.5f,%.5f", p.Lat, p.Lon), 21),
				padRight(fmt.Sprintf("%.0f m", p.Elevation), 7),
				padRight(speed, 11),
				padRight(cadence, 8),
				hr)
		}
		return nil
	},
}

var logImportCmd = &cobra.Command{
	Use:   "import <file.gpx>",
	Short: "Import a GPX track",
	Long: `Import the track points of a GPX file as log points.

Without --ride a new ride is created, named after the track, and selected.
Heart rate and cadence are read from Garmin TrackPointExtension data.
Points without a timestamp are skipped.

EXAMPLES:

  bikey log import morning.gpx            # New ride from the track
  bikey log import part2.gpx --ride 4     # Append to ride 4`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		doc, err := gpx.Parse(args[0])
		if err != nil {
			return err
		}

		rideID := logRide
		if rideID == 0 {
			name := importName
			if name == "" {
				name = doc.Name()
			}
			r, err := eng.Rides.Create(ctx, name)
			if err != nil {
				return err
			}
			if err := eng.Rides.SetCurrentRide(ctx, r.ID); err != nil {
				return err
			}
			rideID = r.ID
		}

		summary, err := gpx.Import(ctx, eng.Logs, rideID, doc)
		if err != nil {
			return fmt.Errorf("import stopped after %d points: %w", summary.Points, err)
		}

		green.Fprintf(cmd.OutOrStdout(), "✓ Imported %d points into ride %d\n", summary.Points, rideID)
		if summary.Skipped > 0 {
			yellow.Fprintf(cmd.OutOrStdout(), "  skipped %d points without a time\n", summary.Skipped)
		}
		return nil
	},
}

// rideFlagOrCurrent returns --ride when set, otherwise the current ride.
func rideFlagOrCurrent(cmd *cobra.Command) (int64, error) {
	if logRide != 0 {
		return logRide, nil
	}
	return rideIDFromArgs(cmd.Context(), nil)
}

func parseTime(s string) (time.Time, error) {
	formats := []string{
		"2006-01-02 15:04:05",
		"2006-01-02 15:04",
		"2006-01-02T15:04:05",
		"2006-01-02T15:04",
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	for _, f := range formats {
		if t, err := time.ParseInLocation(f, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time format")
}

func init() {
	logCmd.PersistentFlags().Int64Var(&logRide, "ride", 0, "ride ID (default: current ride)")

	logAddCmd.Flags().StringVar(&logAt, "at", "", "timestamp (YYYY-MM-DD HH:MM[:SS])")
	logAddCmd.Flags().Float64Var(&logElevation, "ele", 0, "elevation in meters")
	logAddCmd.Flags().Float64Var(&logCadence, "cadence", 0, "cadence in rpm")
	logAddCmd.Flags().IntVar(&logHeartRate, "hr", 0, "heart rate in bpm")

	logListCmd.Flags().IntVarP(&logLimit, "limit", "n", 20, "max number of points")

	logImportCmd.Flags().StringVar(&importName, "name", "", "name for the new ride (default: track name)")

	logCmd.AddCommand(logAddCmd, logListCmd, logImportCmd)
	rootCmd.AddCommand(logCmd)
}
