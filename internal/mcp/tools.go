// ABOUTME: MCP tool implementations for rides and log points.
// ABOUTME: Exposes the ride lifecycle, logging, statistics and series to MCP clients.
package mcp

import (
	"context"
	"fmt"
	"time"

	"github.com/harperreed/bikey/internal/geo"
	"github.com/harperreed/bikey/internal/models"
	"github.com/harperreed/bikey/internal/stats"
	"github.com/harperreed/bikey/internal/storage"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// defaultSeriesPoints bounds series returned to clients that do not ask for a size.
const defaultSeriesPoints = 200

func (s *Server) registerTools() {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "create_ride",
		Description: "Create a new bicycle ride, optionally named",
	}, s.handleCreateRide)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "list_rides",
		Description: "List rides newest first, optionally filtered by state",
	}, s.handleListRides)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "get_ride",
		Description: "Get a ride with its statistics (distance, speeds, cadence, heart rate)",
	}, s.handleGetRide)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "activate_ride",
		Description: "Start or resume recording a ride",
	}, s.handleActivateRide)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "pause_ride",
		Description: "Pause recording a ride",
	}, s.handlePauseRide)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "rename_ride",
		Description: "Rename a ride; an empty name clears it",
	}, s.handleRenameRide)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "delete_rides",
		Description: "Delete one or more rides and their log points",
	}, s.handleDeleteRides)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "merge_rides",
		Description: "Merge two or more rides into the earliest one",
	}, s.handleMergeRides)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "add_log",
		Description: "Record a GPS sample (with optional cadence and heart rate) for a ride",
	}, s.handleAddLog)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "ride_series",
		Description: "Get a downsampled series of one log column, or the track when column is latlon",
	}, s.handleRideSeries)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "get_current_ride",
		Description: "Get the ride currently selected",
	}, s.handleGetCurrentRide)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "set_current_ride",
		Description: "Select the current ride",
	}, s.handleSetCurrentRide)
}

// Tool input/output types

type createRideInput struct {
	Name string `json:"name,omitempty" jsonschema:"Optional ride name"`
}

type rideIDInput struct {
	ID int64 `json:"id" jsonschema:"Ride ID"`
}

type rideIDsInput struct {
	IDs []int64 `json:"ids" jsonschema:"Ride IDs"`
}

type renameRideInput struct {
	ID   int64  `json:"id" jsonschema:"Ride ID"`
	Name string `json:"name" jsonschema:"New name, empty to clear"`
}

type listRidesInput struct {
	State string `json:"state,omitempty" jsonschema:"Filter by state (CREATED, ACTIVE, PAUSED, DELETED)"`
	Limit int    `json:"limit,omitempty" jsonschema:"Max results (default 20)"`
}

type addLogInput struct {
	RideID     int64    `json:"ride_id" jsonschema:"Ride ID"`
	Lat        float64  `json:"lat" jsonschema:"Latitude in degrees"`
	Lon        float64  `json:"lon" jsonschema:"Longitude in degrees"`
	Elevation  float64  `json:"ele,omitempty" jsonschema:"Elevation in meters"`
	RecordedAt string   `json:"recorded_at,omitempty" jsonschema:"Timestamp (ISO 8601), defaults to now"`
	Cadence    *float64 `json:"cadence,omitempty" jsonschema:"Cadence in rpm"`
	HeartRate  *int     `json:"heart_rate,omitempty" jsonschema:"Heart rate in bpm"`
}

type rideSeriesInput struct {
	RideID    int64  `json:"ride_id" jsonschema:"Ride ID"`
	Column    string `json:"column" jsonschema:"Log column (speed, cadence, heart_rate, ele, ...) or latlon"`
	MaxPoints int    `json:"max_points,omitempty" jsonschema:"Maximum number of points (default 200)"`
}

type rideView struct {
	ID               int64   `json:"id"`
	UUID             string  `json:"uuid"`
	Name             string  `json:"name"`
	State            string  `json:"state"`
	CreatedAt        string  `json:"created_at"`
	FirstActivatedAt string  `json:"first_activated_at,omitempty"`
	DurationSeconds  float64 `json:"duration_seconds"`
	DistanceKM       float64 `json:"distance_km"`
}

type rideOutput struct {
	Ride    *rideView `json:"ride,omitempty"`
	Message string    `json:"message"`
}

type listRidesOutput struct {
	Rides   []rideView `json:"rides"`
	Count   int        `json:"count"`
	Message string     `json:"message,omitempty"`
}

type rideDetailOutput struct {
	Ride    rideView       `json:"ride"`
	Summary *stats.Summary `json:"summary"`
	// MaxSpeedKMH and AverageMovingSpeedKMH repeat the summary speeds in km/h.
	MaxSpeedKMH           float64 `json:"max_speed_kmh"`
	AverageMovingSpeedKMH float64 `json:"average_moving_speed_kmh"`
}

type logOutput struct {
	ID        int64   `json:"id"`
	RideID    int64   `json:"ride_id"`
	Moving    bool    `json:"moving"`
	SpeedKMH  float64 `json:"speed_kmh,omitempty"`
	DistanceM float64 `json:"distance_m,omitempty"`
	Message   string  `json:"message"`
}

type seriesOutput struct {
	RideID int64          `json:"ride_id"`
	Column string         `json:"column"`
	Values []float64      `json:"values,omitempty"`
	Track  []stats.LatLon `json:"track,omitempty"`
	Count  int            `json:"count"`
}

type simpleOutput struct {
	Message string `json:"message"`
}

func newRideView(r *models.Ride) rideView {
	v := rideView{
		ID:              r.ID,
		UUID:            r.UUID.String(),
		Name:            r.DisplayName(),
		State:           string(r.State),
		CreatedAt:       r.CreatedAt.Format(time.RFC3339),
		DurationSeconds: r.Duration.Seconds(),
		DistanceKM:      r.Distance / 1000,
	}
	if r.FirstActivatedAt != nil {
		v.FirstActivatedAt = r.FirstActivatedAt.Format(time.RFC3339)
	}
	return v
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t, err = time.ParseInLocation("2006-01-02 15:04:05", s, time.Local)
	}
	if err != nil {
		t, err = time.ParseInLocation("2006-01-02 15:04", s, time.Local)
	}
	return t, err
}

// Tool handlers

func (s *Server) handleCreateRide(ctx context.Context, req *mcp.CallToolRequest, input createRideInput) (*mcp.CallToolResult, rideOutput, error) {
	r, err := s.eng.Rides.Create(ctx, input.Name)
	if err != nil {
		return nil, rideOutput{}, fmt.Errorf("failed to create ride: %w", err)
	}

	v := newRideView(r)
	return nil, rideOutput{
		Ride:    &v,
		Message: fmt.Sprintf("Created ride %d: %s", r.ID, r.DisplayName()),
	}, nil
}

func (s *Server) handleListRides(ctx context.Context, req *mcp.CallToolRequest, input listRidesInput) (*mcp.CallToolResult, listRidesOutput, error) {
	if input.Limit <= 0 {
		input.Limit = 20
	}

	f := storage.RideFilter{Limit: input.Limit}
	if input.State != "" {
		if !models.IsValidRideState(input.State) {
			return nil, listRidesOutput{}, fmt.Errorf("unknown ride state: %s", input.State)
		}
		f.States = []models.RideState{models.RideState(input.State)}
	} else {
		f.States = []models.RideState{models.RideCreated, models.RideActive, models.RidePaused}
	}

	rides, err := s.eng.Rides.List(ctx, f)
	if err != nil {
		return nil, listRidesOutput{}, fmt.Errorf("failed to list rides: %w", err)
	}

	out := listRidesOutput{Rides: make([]rideView, 0, len(rides)), Count: len(rides)}
	for _, r := range rides {
		out.Rides = append(out.Rides, newRideView(r))
	}
	if len(rides) == 0 {
		out.Message = "No rides found."
	}
	return nil, out, nil
}

func (s *Server) handleGetRide(ctx context.Context, req *mcp.CallToolRequest, input rideIDInput) (*mcp.CallToolResult, rideDetailOutput, error) {
	r, err := s.eng.Rides.Get(ctx, input.ID)
	if err != nil {
		return nil, rideDetailOutput{}, fmt.Errorf("ride not found: %d", input.ID)
	}

	summary, err := s.eng.Stats.Summary(ctx, r.ID)
	if err != nil {
		return nil, rideDetailOutput{}, fmt.Errorf("failed to compute statistics: %w", err)
	}

	return nil, rideDetailOutput{
		Ride:                  newRideView(r),
		Summary:               summary,
		MaxSpeedKMH:           geo.KilometersPerHour(summary.MaxSpeed),
		AverageMovingSpeedKMH: geo.KilometersPerHour(summary.AverageMovingSpeed),
	}, nil
}

func (s *Server) handleActivateRide(ctx context.Context, req *mcp.CallToolRequest, input rideIDInput) (*mcp.CallToolResult, rideOutput, error) {
	r, err := s.eng.Rides.Activate(ctx, input.ID)
	if err != nil {
		return nil, rideOutput{}, fmt.Errorf("failed to activate ride: %w", err)
	}

	v := newRideView(r)
	return nil, rideOutput{Ride: &v, Message: fmt.Sprintf("Recording ride %d", r.ID)}, nil
}

func (s *Server) handlePauseRide(ctx context.Context, req *mcp.CallToolRequest, input rideIDInput) (*mcp.CallToolResult, rideOutput, error) {
	r, err := s.eng.Rides.Pause(ctx, input.ID)
	if err != nil {
		return nil, rideOutput{}, fmt.Errorf("failed to pause ride: %w", err)
	}
	if r == nil {
		return nil, rideOutput{Message: fmt.Sprintf("Ride %d not found, nothing to pause", input.ID)}, nil
	}

	v := newRideView(r)
	return nil, rideOutput{
		Ride:    &v,
		Message: fmt.Sprintf("Ride %d is %s after %s", r.ID, r.State, r.Duration.Round(time.Second)),
	}, nil
}

func (s *Server) handleRenameRide(ctx context.Context, req *mcp.CallToolRequest, input renameRideInput) (*mcp.CallToolResult, rideOutput, error) {
	r, err := s.eng.Rides.Rename(ctx, input.ID, input.Name)
	if err != nil {
		return nil, rideOutput{}, fmt.Errorf("failed to rename ride: %w", err)
	}

	v := newRideView(r)
	return nil, rideOutput{Ride: &v, Message: fmt.Sprintf("Renamed ride %d to %s", r.ID, r.DisplayName())}, nil
}

func (s *Server) handleDeleteRides(ctx context.Context, req *mcp.CallToolRequest, input rideIDsInput) (*mcp.CallToolResult, simpleOutput, error) {
	if len(input.IDs) == 0 {
		return nil, simpleOutput{}, fmt.Errorf("no ride ids given")
	}

	n, err := s.eng.Rides.Delete(ctx, input.IDs...)
	if err != nil {
		return nil, simpleOutput{}, fmt.Errorf("failed to delete rides: %w", err)
	}

	return nil, simpleOutput{Message: fmt.Sprintf("Deleted %d ride(s)", n)}, nil
}

func (s *Server) handleMergeRides(ctx context.Context, req *mcp.CallToolRequest, input rideIDsInput) (*mcp.CallToolResult, rideOutput, error) {
	r, err := s.eng.Rides.Merge(ctx, input.IDs...)
	if err != nil {
		return nil, rideOutput{}, fmt.Errorf("failed to merge rides: %w", err)
	}

	v := newRideView(r)
	return nil, rideOutput{
		Ride:    &v,
		Message: fmt.Sprintf("Merged %d rides into ride %d", len(input.IDs), r.ID),
	}, nil
}

func (s *Server) handleAddLog(ctx context.Context, req *mcp.CallToolRequest, input addLogInput) (*mcp.CallToolResult, logOutput, error) {
	at := time.Now()
	if input.RecordedAt != "" {
		t, err := parseTime(input.RecordedAt)
		if err != nil {
			return nil, logOutput{}, fmt.Errorf("invalid recorded_at: %s", input.RecordedAt)
		}
		at = t
	}

	sample := models.NewSample(at, input.Lat, input.Lon, input.Elevation)
	sample.Cadence = input.Cadence
	sample.HeartRate = input.HeartRate

	p, err := s.eng.Logs.Record(ctx, input.RideID, sample)
	if err != nil {
		return nil, logOutput{}, fmt.Errorf("failed to add log: %w", err)
	}

	out := logOutput{ID: p.ID, RideID: p.RideID, Moving: p.Segment != nil}
	if p.Segment != nil {
		out.SpeedKMH = geo.KilometersPerHour(p.Segment.Speed)
		out.DistanceM = p.Segment.Distance
		out.Message = fmt.Sprintf("Logged point %d: %.1f m at %.1f km/h", p.ID, out.DistanceM, out.SpeedKMH)
	} else {
		out.Message = fmt.Sprintf("Logged point %d (not moving)", p.ID)
	}
	return nil, out, nil
}

func (s *Server) handleRideSeries(ctx context.Context, req *mcp.CallToolRequest, input rideSeriesInput) (*mcp.CallToolResult, seriesOutput, error) {
	if input.MaxPoints <= 0 {
		input.MaxPoints = defaultSeriesPoints
	}
	if _, err := s.eng.Rides.Get(ctx, input.RideID); err != nil {
		return nil, seriesOutput{}, fmt.Errorf("ride not found: %d", input.RideID)
	}

	out := seriesOutput{RideID: input.RideID, Column: input.Column}
	if input.Column == "latlon" {
		track, err := s.eng.Stats.SampledLatLon(ctx, input.RideID, input.MaxPoints)
		if err != nil {
			return nil, seriesOutput{}, fmt.Errorf("failed to sample track: %w", err)
		}
		out.Track = track
		out.Count = len(track)
		return nil, out, nil
	}

	if !models.IsValidColumn(input.Column) {
		return nil, seriesOutput{}, fmt.Errorf("unknown column: %s", input.Column)
	}
	values, err := s.eng.Stats.SampledSeries(ctx, input.RideID, models.Column(input.Column), input.MaxPoints)
	if err != nil {
		return nil, seriesOutput{}, fmt.Errorf("failed to sample series: %w", err)
	}
	out.Values = values
	out.Count = len(values)
	return nil, out, nil
}

func (s *Server) handleGetCurrentRide(ctx context.Context, req *mcp.CallToolRequest, input struct{}) (*mcp.CallToolResult, rideOutput, error) {
	r, err := s.eng.Rides.CurrentRide(ctx)
	if err != nil {
		return nil, rideOutput{}, fmt.Errorf("failed to get current ride: %w", err)
	}
	if r == nil {
		return nil, rideOutput{Message: "No current ride."}, nil
	}

	v := newRideView(r)
	return nil, rideOutput{Ride: &v, Message: fmt.Sprintf("Current ride is %d", r.ID)}, nil
}

func (s *Server) handleSetCurrentRide(ctx context.Context, req *mcp.CallToolRequest, input rideIDInput) (*mcp.CallToolResult, simpleOutput, error) {
	if err := s.eng.Rides.SetCurrentRide(ctx, input.ID); err != nil {
		return nil, simpleOutput{}, fmt.Errorf("failed to set current ride: %w", err)
	}
	return nil, simpleOutput{Message: fmt.Sprintf("Current ride is now %d", input.ID)}, nil
}
