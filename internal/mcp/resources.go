// ABOUTME: MCP resource implementations for ride data.
// ABOUTME: Provides bikey://rides/recent and bikey://rides/current resources.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/harperreed/bikey/internal/models"
	"github.com/harperreed/bikey/internal/storage"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	recentRidesURI = "bikey://rides/recent"
	currentRideURI = "bikey://rides/current"
)

func (s *Server) registerResources() {
	s.mcpServer.AddResource(&mcp.Resource{
		URI:         recentRidesURI,
		Name:        "Recent Rides",
		Description: "Last 10 rides that are not deleted",
		MIMEType:    "application/json",
	}, s.handleRecentResource)

	s.mcpServer.AddResource(&mcp.Resource{
		URI:         currentRideURI,
		Name:        "Current Ride",
		Description: "The selected ride with its statistics",
		MIMEType:    "application/json",
	}, s.handleCurrentResource)
}

// Resource handlers

func (s *Server) handleRecentResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	rides, err := s.eng.Rides.List(ctx, storage.RideFilter{
		States: []models.RideState{models.RideCreated, models.RideActive, models.RidePaused},
		Limit:  10,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list rides: %w", err)
	}

	views := make([]rideView, 0, len(rides))
	for _, r := range rides {
		views = append(views, newRideView(r))
	}

	return jsonResource(recentRidesURI, map[string]any{
		"rides": views,
		"count": len(views),
	})
}

func (s *Server) handleCurrentResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	r, err := s.eng.Rides.CurrentRide(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get current ride: %w", err)
	}

	result := map[string]any{
		"generated_at": time.Now().Format(time.RFC3339),
		"ride":         nil,
	}
	if r != nil {
		summary, err := s.eng.Stats.Summary(ctx, r.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to compute statistics: %w", err)
		}
		view := newRideView(r)
		view.DurationSeconds = r.ElapsedAt(time.Now()).Seconds()
		result["ride"] = view
		result["summary"] = summary
	}

	return jsonResource(currentRideURI, result)
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}
