// ABOUTME: Export and import functionality for ride data.
// ABOUTME: Supports JSON (lossless, importable) and YAML (human-readable) export formats.
package storage

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/bikey/internal/models"
	"gopkg.in/yaml.v3"
)

// CurrentRideKey is the preference key holding the current ride ID.
const CurrentRideKey = "current_ride"

// ExportData represents the full export format for ride data.
type ExportData struct {
	Version     string        `json:"version" yaml:"version"`
	ExportedAt  time.Time     `json:"exported_at" yaml:"exported_at"`
	Tool        string        `json:"tool" yaml:"tool"`
	CurrentRide *uuid.UUID    `json:"current_ride,omitempty" yaml:"current_ride,omitempty"`
	Rides       []*RideExport `json:"rides" yaml:"rides"`
}

// RideExport is a ride together with its log points.
type RideExport struct {
	models.Ride `yaml:",inline"`
	Logs        []*models.LogPoint `json:"logs" yaml:"logs"`
}

// GetAllData retrieves all rides, including deleted ones, with their logs.
func GetAllData(ctx context.Context, s Store) (*ExportData, error) {
	rides, err := s.ListRides(ctx, RideFilter{})
	if err != nil {
		return nil, fmt.Errorf("list rides: %w", err)
	}

	data := &ExportData{
		Version:    "1.0",
		ExportedAt: time.Now(),
		Tool:       "bikey",
		Rides:      make([]*RideExport, 0, len(rides)),
	}

	// Oldest first so imports assign IDs in creation order.
	slices.Reverse(rides)
	for _, r := range rides {
		logs, err := s.QueryLogs(ctx, LogQuery{Filter: Where(RideIs(r.ID))})
		if err != nil {
			return nil, fmt.Errorf("list logs of ride %d: %w", r.ID, err)
		}
		data.Rides = append(data.Rides, &RideExport{Ride: *r, Logs: logs})
	}

	current, ok, err := s.GetPreference(ctx, CurrentRideKey)
	if err != nil {
		return nil, err
	}
	if ok {
		if id, err := strconv.ParseInt(current, 10, 64); err == nil {
			for _, r := range rides {
				if r.ID == id {
					u := r.UUID
					data.CurrentRide = &u
				}
			}
		}
	}

	return data, nil
}

// ImportSummary holds counts of imported entities.
type ImportSummary struct {
	Rides int
	Logs  int
}

// ImportData imports exported rides into s in a single unit of work.
// Ride and log IDs are reassigned by the destination; UUIDs are kept.
func ImportData(ctx context.Context, s Store, data *ExportData) (*ImportSummary, error) {
	summary := &ImportSummary{}

	err := s.Atomic(ctx, func(tx Store) error {
		*summary = ImportSummary{}
		var currentID int64

		for _, re := range data.Rides {
			ride := re.Ride
			if err := tx.CreateRide(ctx, &ride); err != nil {
				return fmt.Errorf("import ride %s: %w", ride.UUID, err)
			}
			summary.Rides++

			// Insert in original ID order so relative order survives.
			logs := slices.Clone(re.Logs)
			slices.SortFunc(logs, func(a, b *models.LogPoint) int {
				return cmp.Compare(a.ID, b.ID)
			})
			for _, lp := range logs {
				p := *lp
				p.RideID = ride.ID
				if err := tx.InsertLog(ctx, &p); err != nil {
					return fmt.Errorf("import log of ride %s: %w", ride.UUID, err)
				}
				summary.Logs++
			}

			if data.CurrentRide != nil && *data.CurrentRide == ride.UUID {
				currentID = ride.ID
			}
		}

		if currentID != 0 {
			return tx.SetPreference(ctx, CurrentRideKey, strconv.FormatInt(currentID, 10))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return summary, nil
}

// ExportJSON exports all data as JSON.
func ExportJSON(ctx context.Context, s Store) ([]byte, error) {
	data, err := GetAllData(ctx, s)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(data, "", "  ")
}

// ExportYAML exports all data as YAML in a human-friendly shape.
func ExportYAML(ctx context.Context, s Store) ([]byte, error) {
	data, err := GetAllData(ctx, s)
	if err != nil {
		return nil, err
	}

	yamlData := struct {
		Version    string     `yaml:"version"`
		ExportedAt string     `yaml:"exported_at"`
		Tool       string     `yaml:"tool"`
		Rides      []yamlRide `yaml:"rides"`
	}{
		Version:    data.Version,
		ExportedAt: data.ExportedAt.Format(time.RFC3339),
		Tool:       data.Tool,
		Rides:      make([]yamlRide, 0, len(data.Rides)),
	}

	for _, re := range data.Rides {
		yr := yamlRide{
			ID:         re.UUID.String()[:8],
			State:      string(re.State),
			CreatedAt:  re.CreatedAt.Format(time.RFC3339),
			Duration:   re.Duration.String(),
			DistanceKM: re.Distance / 1000,
			Points:     len(re.Logs),
		}
		if re.Name != nil {
			yr.Name = *re.Name
		}
		if data.CurrentRide != nil && *data.CurrentRide == re.UUID {
			yr.Current = true
		}
		for _, lp := range re.Logs {
			yr.Track = append(yr.Track, yamlPoint{
				At:  lp.RecordedAt.Format(time.RFC3339),
				Lat: lp.Lat,
				Lon: lp.Lon,
				Ele: lp.Elevation,
			})
		}
		yamlData.Rides = append(yamlData.Rides, yr)
	}

	return yaml.Marshal(yamlData)
}

type yamlRide struct {
	ID         string      `yaml:"id"`
	Name       string      `yaml:"name,omitempty"`
	State      string      `yaml:"state"`
	Current    bool        `yaml:"current,omitempty"`
	CreatedAt  string      `yaml:"created_at"`
	Duration   string      `yaml:"duration"`
	DistanceKM float64     `yaml:"distance_km"`
	Points     int         `yaml:"points"`
	Track      []yamlPoint `yaml:"track,omitempty,flow"`
}

type yamlPoint struct {
	At  string  `yaml:"at"`
	Lat float64 `yaml:"lat"`
	Lon float64 `yaml:"lon"`
	Ele float64 `yaml:"ele"`
}
