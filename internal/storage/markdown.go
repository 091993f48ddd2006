// ABOUTME: Markdown export of rides for sharing and documentation.
// ABOUTME: Renders a ride table with point counts plus distance and duration totals.

package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/harperreed/bikey/internal/models"
)

// ExportMarkdown renders rides that are not deleted as a Markdown table,
// newest first. When since is set, rides created before it are left out.
func ExportMarkdown(ctx context.Context, s Store, since *time.Time) (string, error) {
	rides, err := s.ListRides(ctx, RideFilter{
		States: []models.RideState{models.RideCreated, models.RideActive, models.RidePaused},
	})
	if err != nil {
		return "", fmt.Errorf("list rides: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("# Rides\n\n")
	if since != nil {
		fmt.Fprintf(&sb, "Since %s\n\n", since.Format("2006-01-02"))
	}

	var (
		count    int
		distance float64
		duration time.Duration
	)
	for _, r := range rides {
		if since != nil && r.CreatedAt.Before(*since) {
			continue
		}
		if count == 0 {
			sb.WriteString("| Date | Name | State | Duration | Distance | Points |\n")
			sb.WriteString("|------|------|-------|----------|----------|--------|\n")
		}

		points, err := s.Aggregate(ctx, AggCount, models.ColID, Where(RideIs(r.ID)))
		if err != nil {
			return "", fmt.Errorf("count points of ride %d: %w", r.ID, err)
		}

		name := "-"
		if r.Name != nil && *r.Name != "" {
			name = markdownEscape(*r.Name)
		}
		fmt.Fprintf(&sb, "| %s | %s | %s | %s | %.2f km | %.0f |\n",
			r.CreatedAt.Local().Format("2006-01-02 15:04"),
			name,
			r.State,
			clockDuration(r.Duration),
			r.Distance/1000,
			*points)

		count++
		distance += r.Distance
		duration += r.Duration
	}

	if count == 0 {
		sb.WriteString("No rides.\n")
		return sb.String(), nil
	}

	sb.WriteString("\n## Totals\n\n")
	fmt.Fprintf(&sb, "- Rides: %d\n", count)
	fmt.Fprintf(&sb, "- Distance: %.2f km\n", distance/1000)
	fmt.Fprintf(&sb, "- Duration: %s\n", clockDuration(duration))
	return sb.String(), nil
}

// clockDuration formats d as H:MM:SS.
func clockDuration(d time.Duration) string {
	d = d.Round(time.Second)
	return fmt.Sprintf("%d:%02d:%02d", int(d.Hours()), int(d.Minutes())%60, int(d.Seconds())%60)
}

func markdownEscape(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}
