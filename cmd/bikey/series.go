// ABOUTME: CLI command printing a downsampled series of one log column.
// ABOUTME: Feeds charts and maps with at most --max points per ride.
package main

import (
	"fmt"
	"strings"

	"github.com/harperreed/bikey/internal/models"
	"github.com/spf13/cobra"
)

var seriesMax int

var seriesCmd = &cobra.Command{
	Use:   "series <column> [id]",
	Short: "Print a downsampled column series of a ride",
	Long: `Print the values of one log column for a ride, one per line, keeping at
most --max points spread evenly over the ride. Use "latlon" as the column
to print the track as lat,lon pairs.

COLUMNS:

  speed, cadence, heart_rate, ele, lat, lon, log_distance, log_duration,
  recorded_date, latlon

EXAMPLES:

  bikey series speed                 # Current ride
  bikey series heart_rate 3 -m 50    # Ride 3, 50 points
  bikey series latlon > track.csv`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		column := strings.ToLower(args[0])

		r, err := rideFromArgs(ctx, args[1:])
		if err != nil {
			return err
		}

		if column == "latlon" {
			track, err := eng.Stats.SampledLatLon(ctx, r.ID, seriesMax)
			if err != nil {
				return err
			}
			for _, p := range track {
				fmt.Fprintf(cmd.OutOrStdout(), "%.6f,%.6f\n", p.Lat, p.Lon)
			}
			return nil
		}

		if !models.IsValidColumn(column) {
			return fmt.Errorf("unknown column: %s", args[0])
		}
		values, err := eng.Stats.SampledSeries(ctx, r.ID, models.Column(column), seriesMax)
		if err != nil {
			return err
		}
		for _, v := range values {
			fmt.Fprintf(cmd.OutOrStdout(), "%g\n", v)
		}
		return nil
	},
}

func init() {
	seriesCmd.Flags().IntVarP(&seriesMax, "max", "m", 200, "maximum number of points")
	rootCmd.AddCommand(seriesCmd)
}
