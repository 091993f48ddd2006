// ABOUTME: CLI commands for the ride lifecycle.
// ABOUTME: Create, list, show, start, pause, rename, delete, merge and select rides.
package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/harperreed/bikey/internal/geo"
	"github.com/harperreed/bikey/internal/models"
	"github.com/harperreed/bikey/internal/stats"
	"github.com/harperreed/bikey/internal/storage"
	"github.com/spf13/cobra"
)

var (
	faint  = color.New(color.Faint)
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	bold   = color.New(color.Bold)

	rideNewKeep   bool
	rideListState string
	rideListLimit int
	rideListAll   bool
)

var rideCmd = &cobra.Command{
	Use:     "ride",
	Aliases: []string{"r"},
	Short:   "Manage rides",
	Long: `Manage rides and their recording state.

Commands that take an optional ride ID act on the current ride when the ID
is omitted. 'bikey ride new' selects the ride it creates.

STATES:

  CREATED   not recorded yet
  ACTIVE    recording; its duration keeps running
  PAUSED    recording stopped; duration is frozen
  DELETED   removed together with its log points`,
}

var rideNewCmd = &cobra.Command{
	Use:   "new [name]",
	Short: "Create a ride",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		name := ""
		if len(args) == 1 {
			name = args[0]
		}

		r, err := eng.Rides.Create(ctx, name)
		if err != nil {
			return err
		}
		if !rideNewKeep {
			if err := eng.Rides.SetCurrentRide(ctx, r.ID); err != nil {
				return err
			}
		}

		green.Fprintf(cmd.OutOrStdout(), "✓ Created ride %d\n", r.ID)
		fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", r.DisplayName())
		return nil
	},
}

var rideListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls", "l"},
	Short:   "List rides",
	Long: `List rides newest first.

OUTPUT FORMAT:

  Each line shows: ID  STATE  DURATION  DISTANCE  NAME
  The current ride is marked with *.

EXAMPLES:

  bikey ride list                 # Rides that are not deleted
  bikey ride list --state PAUSED  # Only paused rides
  bikey ride list --all -n 100    # Include deleted rides`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		f := storage.RideFilter{Limit: rideListLimit}
		switch {
		case rideListState != "":
			state := strings.ToUpper(rideListState)
			if !models.IsValidRideState(state) {
				return fmt.Errorf("unknown ride state: %s", rideListState)
			}
			f.States = []models.RideState{models.RideState(state)}
		case !rideListAll:
			f.States = []models.RideState{models.RideCreated, models.RideActive, models.RidePaused}
		}

		rides, err := eng.Rides.List(ctx, f)
		if err != nil {
			return fmt.Errorf("failed to list rides: %w", err)
		}
		if len(rides) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No rides found.")
			return nil
		}

		var currentID int64
		if current, err := eng.Rides.CurrentRide(ctx); err == nil && current != nil {
			currentID = current.ID
		}

		now := time.Now()
		for _, r := range rides {
			marker := " "
			if r.ID == currentID {
				marker = "*"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s%s %s %s %s %s\n",
				marker,
				faint.Sprint(padRight(strconv.FormatInt(r.ID, 10), 5)),
				padRight(string(r.State), 8),
				padRight(formatDuration(r.ElapsedAt(now)), 9),
				padRight(formatDistance(r.Distance), 9),
				truncate(r.DisplayName(), 50))
		}
		return nil
	},
}

var rideShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show a ride with its statistics",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		r, err := rideFromArgs(ctx, args)
		if err != nil {
			return err
		}

		summary, err := eng.Stats.Summary(ctx, r.ID)
		if err != nil {
			return fmt.Errorf("failed to compute statistics: %w", err)
		}
		printRide(cmd.OutOrStdout(), r, summary)
		return nil
	},
}

var rideStartCmd = &cobra.Command{
	Use:     "start [id]",
	Aliases: []string{"resume", "activate"},
	Short:   "Start or resume recording a ride",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		id, err := rideIDFromArgs(ctx, args)
		if err != nil {
			return err
		}

		r, err := eng.Rides.Activate(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to start ride: %w", err)
		}
		green.Fprintf(cmd.OutOrStdout(), "● Recording ride %d\n", r.ID)
		return nil
	},
}

var ridePauseCmd = &cobra.Command{
	Use:     "pause [id]",
	Aliases: []string{"stop"},
	Short:   "Pause recording a ride",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		id, err := rideIDFromArgs(ctx, args)
		if err != nil {
			return err
		}

		r, err := eng.Rides.Pause(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to pause ride: %w", err)
		}
		if r == nil {
			yellow.Fprintf(cmd.OutOrStdout(), "Ride %d not found\n", id)
			return nil
		}
		yellow.Fprintf(cmd.OutOrStdout(), "‖ Ride %d %s after %s\n", r.ID, strings.ToLower(string(r.State)), formatDuration(r.Duration))
		return nil
	},
}

var rideRenameCmd = &cobra.Command{
	Use:   "rename <id> [name]",
	Short: "Rename a ride; omit the name to clear it",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseRideID(args[0])
		if err != nil {
			return err
		}
		name := ""
		if len(args) == 2 {
			name = args[1]
		}

		r, err := eng.Rides.Rename(cmd.Context(), id, name)
		if err != nil {
			return fmt.Errorf("failed to rename ride: %w", err)
		}
		green.Fprintf(cmd.OutOrStdout(), "✓ %s\n", r.DisplayName())
		return nil
	},
}

var rideDeleteCmd = &cobra.Command{
	Use:     "delete <id>...",
	Aliases: []string{"del", "rm"},
	Short:   "Delete rides and their log points",
	Long: `Delete one or more rides together with their log points.

Rides that are recording are paused first. When the current ride is
deleted, the most recent remaining ride becomes current.

CAUTION:

  Log points are removed permanently. There is no undo.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, err := parseRideIDs(args)
		if err != nil {
			return err
		}

		n, err := eng.Rides.Delete(cmd.Context(), ids...)
		if err != nil {
			return fmt.Errorf("failed to delete rides: %w", err)
		}
		yellow.Fprintf(cmd.OutOrStdout(), "✗ Deleted %d ride(s)\n", n)
		return nil
	},
}

var rideMergeCmd = &cobra.Command{
	Use:   "merge <id> <id>...",
	Short: "Merge rides into the earliest one",
	Long: `Merge two or more rides into the one created first.

The merged ride keeps the log points, durations and distance of all rides;
the others are removed. A ride that is recording is paused first.`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, err := parseRideIDs(args)
		if err != nil {
			return err
		}

		r, err := eng.Rides.Merge(cmd.Context(), ids...)
		if err != nil {
			return fmt.Errorf("failed to merge rides: %w", err)
		}
		green.Fprintf(cmd.OutOrStdout(), "✓ Merged into ride %d\n", r.ID)
		fmt.Fprintf(cmd.OutOrStdout(), "  %s  %s  %s\n", r.DisplayName(), formatDuration(r.Duration), formatDistance(r.Distance))
		return nil
	},
}

var rideCurrentCmd = &cobra.Command{
	Use:   "current [id]",
	Short: "Show or select the current ride",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if len(args) == 1 {
			id, err := parseRideID(args[0])
			if err != nil {
				return err
			}
			if err := eng.Rides.SetCurrentRide(ctx, id); err != nil {
				return fmt.Errorf("failed to select ride: %w", err)
			}
		}

		r, err := eng.Rides.CurrentRide(ctx)
		if err != nil {
			return err
		}
		if r == nil {
			fmt.Fprintln(cmd.OutOrStdout(), "No current ride.")
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", faint.Sprint(r.ID), r.DisplayName())
		return nil
	},
}

func printRide(w io.Writer, r *models.Ride, s *stats.Summary) {
	bold.Fprintf(w, "%s\n", r.DisplayName())
	fmt.Fprintf(w, "  %s %d  %s\n", faint.Sprint("id"), r.ID, r.State)
	fmt.Fprintf(w, "  %s %s\n", faint.Sprint("duration"), formatDuration(r.ElapsedAt(time.Now())))
	fmt.Fprintf(w, "  %s %s\n", faint.Sprint("distance"), formatDistance(r.Distance))
	fmt.Fprintf(w, "  %s %d\n", faint.Sprint("points"), s.Points)
	if s.Points == 0 {
		return
	}

	if s.MovingDuration != nil {
		fmt.Fprintf(w, "  %s %s\n", faint.Sprint("moving"), formatDuration(*s.MovingDuration))
	}
	fmt.Fprintf(w, "  %s %.1f km/h avg, %.1f km/h max\n", faint.Sprint("speed"),
		geo.KilometersPerHour(s.AverageMovingSpeed), geo.KilometersPerHour(s.MaxSpeed))
	if s.AverageCadence != nil {
		fmt.Fprintf(w, "  %s %.0f rpm avg (%.0f-%.0f)\n", faint.Sprint("cadence"), *s.AverageCadence, s.MinCadence, s.MaxCadence)
	}
	if s.AverageHeartRate != nil {
		fmt.Fprintf(w, "  %s %.0f bpm avg (%.0f-%.0f)\n", faint.Sprint("heart rate"), *s.AverageHeartRate, s.MinHeartRate, s.MaxHeartRate)
	}
	if s.FirstLogDate != nil && s.LastLogDate != nil {
		fmt.Fprintf(w, "  %s %s - %s\n", faint.Sprint("logged"),
			s.FirstLogDate.Local().Format("2006-01-02 15:04"), s.LastLogDate.Local().Format("15:04"))
	}
}

// rideIDFromArgs returns the ID given as the only argument, or the current ride.
func rideIDFromArgs(ctx context.Context, args []string) (int64, error) {
	if len(args) > 0 {
		return parseRideID(args[0])
	}
	r, err := eng.Rides.CurrentRide(ctx)
	if err != nil {
		return 0, err
	}
	if r == nil {
		return 0, fmt.Errorf("no current ride; pass a ride ID or run 'bikey ride new'")
	}
	return r.ID, nil
}

func rideFromArgs(ctx context.Context, args []string) (*models.Ride, error) {
	id, err := rideIDFromArgs(ctx, args)
	if err != nil {
		return nil, err
	}
	r, err := eng.Rides.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("ride not found: %d", id)
	}
	return r, nil
}

func parseRideID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid ride ID: %s", s)
	}
	return id, nil
}

func parseRideIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, a := range args {
		id, err := parseRideID(a)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

func formatDistance(meters float64) string {
	if meters < 1000 {
		return fmt.Sprintf("%.0f m", meters)
	}
	return fmt.Sprintf("%.2f km", meters/1000)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

func padRight(s string, length int) string {
	if len(s) >= length {
		return s
	}
	return s + strings.Repeat(" ", length-len(s))
}

func init() {
	rideNewCmd.Flags().BoolVar(&rideNewKeep, "keep-current", false, "do not select the new ride")
	rideListCmd.Flags().StringVarP(&rideListState, "state", "s", "", "filter by state")
	rideListCmd.Flags().IntVarP(&rideListLimit, "limit", "n", 20, "max number of results")
	rideListCmd.Flags().BoolVarP(&rideListAll, "all", "a", false, "include deleted rides")

	rideCmd.AddCommand(rideNewCmd, rideListCmd, rideShowCmd, rideStartCmd, ridePauseCmd,
		rideRenameCmd, rideDeleteCmd, rideMergeCmd, rideCurrentCmd)
	rootCmd.AddCommand(rideCmd)
}
