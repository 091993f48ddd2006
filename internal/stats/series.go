// ABOUTME: Downsampled per-ride series for charts and maps, plus the ride summary view.
// ABOUTME: Sampling keeps points whose ID is a multiple of count/maxPoints, at least one.
package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/harperreed/bikey/internal/models"
	"github.com/harperreed/bikey/internal/storage"
)

// LatLon is a single coordinate of a sampled track.
type LatLon struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// SamplingRatio returns the ID stride for reducing count rows to about
// maxPoints: count/maxPoints rounded down, never below one.
func SamplingRatio(count, maxPoints int) int64 {
	return max(1, int64(count/maxPoints))
}

// SampledSeries returns about maxPoints non-null values of col in ID order.
func (e *Engine) SampledSeries(ctx context.Context, rideID int64, col models.Column, maxPoints int) ([]float64, error) {
	points, err := e.sampled(ctx, rideID, maxPoints, storage.NotNull(col))
	if err != nil {
		return nil, err
	}
	out := make([]float64, 0, len(points))
	for _, p := range points {
		if v, ok := p.Value(col); ok {
			out = append(out, v)
		}
	}
	return out, nil
}

// SampledLatLon returns about maxPoints coordinates of the ride in ID order.
func (e *Engine) SampledLatLon(ctx context.Context, rideID int64, maxPoints int) ([]LatLon, error) {
	points, err := e.sampled(ctx, rideID, maxPoints)
	if err != nil {
		return nil, err
	}
	out := make([]LatLon, 0, len(points))
	for _, p := range points {
		out = append(out, LatLon{Lat: p.Lat, Lon: p.Lon})
	}
	return out, nil
}

func (e *Engine) sampled(ctx context.Context, rideID int64, maxPoints int, extra ...storage.Predicate) ([]*models.LogPoint, error) {
	if maxPoints <= 0 {
		return nil, fmt.Errorf("%w: maxPoints must be positive, got %d", storage.ErrInvalidArgument, maxPoints)
	}

	n, err := e.logs.Aggregate(ctx, storage.AggCount, models.ColID, rideOnly(rideID))
	if err != nil {
		return nil, fmt.Errorf("count points: %w", err)
	}
	ratio := SamplingRatio(int(*n), maxPoints)

	f := rideOnly(rideID).And(storage.IDMultipleOf(ratio)).And(extra...)
	points, err := e.logs.QueryLogs(ctx, storage.LogQuery{Filter: f, OrderBy: models.ColID})
	if err != nil {
		return nil, fmt.Errorf("sample points: %w", err)
	}
	return points, nil
}

// Summary collects the statistics shown for a single ride.
type Summary struct {
	Points             int            `json:"points"`
	TotalDistance      float64        `json:"total_distance"`
	MovingDuration     *time.Duration `json:"moving_duration,omitempty"`
	AverageMovingSpeed float64        `json:"average_moving_speed"`
	MaxSpeed           float64        `json:"max_speed"`
	AverageCadence     *float64       `json:"average_cadence,omitempty"`
	MinCadence         float64        `json:"min_cadence"`
	MaxCadence         float64        `json:"max_cadence"`
	AverageHeartRate   *float64       `json:"average_heart_rate,omitempty"`
	MinHeartRate       float64        `json:"min_heart_rate"`
	MaxHeartRate       float64        `json:"max_heart_rate"`
	FirstLogDate       *time.Time     `json:"first_log_date,omitempty"`
	LastLogDate        *time.Time     `json:"last_log_date,omitempty"`
}

// Summary computes every statistic for the ride.
func (e *Engine) Summary(ctx context.Context, rideID int64) (*Summary, error) {
	n, err := e.logs.Aggregate(ctx, storage.AggCount, models.ColID, rideOnly(rideID))
	if err != nil {
		return nil, fmt.Errorf("count points: %w", err)
	}
	s := &Summary{Points: int(*n)}

	if s.TotalDistance, err = e.TotalDistance(ctx, rideID); err != nil {
		return nil, err
	}
	if s.MovingDuration, err = e.MovingDuration(ctx, rideID); err != nil {
		return nil, err
	}
	if s.AverageMovingSpeed, err = e.AverageMovingSpeed(ctx, rideID); err != nil {
		return nil, err
	}
	if s.MaxSpeed, err = e.MaxSpeed(ctx, rideID); err != nil {
		return nil, err
	}
	if s.AverageCadence, err = e.AverageCadence(ctx, rideID); err != nil {
		return nil, err
	}
	if s.MinCadence, err = e.MinCadence(ctx, rideID); err != nil {
		return nil, err
	}
	if s.MaxCadence, err = e.MaxCadence(ctx, rideID); err != nil {
		return nil, err
	}
	if s.AverageHeartRate, err = e.AverageHeartRate(ctx, rideID); err != nil {
		return nil, err
	}
	if s.MinHeartRate, err = e.MinHeartRate(ctx, rideID); err != nil {
		return nil, err
	}
	if s.MaxHeartRate, err = e.MaxHeartRate(ctx, rideID); err != nil {
		return nil, err
	}
	if s.FirstLogDate, err = e.FirstLogDate(ctx, rideID); err != nil {
		return nil, err
	}
	if s.LastLogDate, err = e.LastLogDate(ctx, rideID); err != nil {
		return nil, err
	}
	return s, nil
}
