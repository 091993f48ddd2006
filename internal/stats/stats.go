// ABOUTME: Ride statistics computed from stored log points with trimmed extremes.
// ABOUTME: Covers max/min/average speed, cadence and heart rate, totals and downsampled series.
package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/harperreed/bikey/internal/geo"
	"github.com/harperreed/bikey/internal/models"
	"github.com/harperreed/bikey/internal/storage"
)

// Engine answers statistical questions about a ride's log points.
type Engine struct {
	logs      storage.LogStore
	threshold float64
}

// Option configures an Engine.
type Option func(*Engine)

// WithThreshold sets the minimum moving speed in m/s.
func WithThreshold(mps float64) Option {
	return func(e *Engine) { e.threshold = mps }
}

// New creates an Engine reading from logs.
func New(logs storage.LogStore, opts ...Option) *Engine {
	e := &Engine{logs: logs, threshold: geo.SpeedMinThreshold}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func rideOnly(rideID int64) storage.Filter {
	return storage.Where(storage.RideIs(rideID))
}

// discard is the number of rows dropped from each end as outliers.
func discard(count int) int {
	return count / 10
}

// MaxOf returns the ride's maximum of col after dropping the top tenth of rows.
// It returns 0 when the ride has no values for col.
func (e *Engine) MaxOf(ctx context.Context, rideID int64, col models.Column) (float64, error) {
	return e.trimmed(ctx, rideID, col, true)
}

// MinOf returns the ride's minimum of col after dropping the bottom tenth of rows.
// It returns 0 when the ride has no values for col.
func (e *Engine) MinOf(ctx context.Context, rideID int64, col models.Column) (float64, error) {
	return e.trimmed(ctx, rideID, col, false)
}

func (e *Engine) trimmed(ctx context.Context, rideID int64, col models.Column, top bool) (float64, error) {
	f := rideOnly(rideID).And(storage.NotNull(col))
	n, err := e.logs.Aggregate(ctx, storage.AggCount, col, f)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", col, err)
	}
	count := int(*n)
	if count == 0 {
		return 0, nil
	}

	offset := discard(count)
	if top {
		offset = count - discard(count) - 1
	}
	points, err := e.logs.QueryLogs(ctx, storage.LogQuery{
		Filter:  f,
		OrderBy: col,
		Offset:  offset,
		Limit:   1,
	})
	if err != nil {
		return 0, fmt.Errorf("select %s: %w", col, err)
	}
	if len(points) == 0 {
		return 0, nil
	}
	v, _ := points[0].Value(col)
	return v, nil
}

// MaxSpeed returns the trimmed maximum speed in m/s.
func (e *Engine) MaxSpeed(ctx context.Context, rideID int64) (float64, error) {
	return e.MaxOf(ctx, rideID, models.ColSpeed)
}

// MaxCadence returns the trimmed maximum cadence in rpm.
func (e *Engine) MaxCadence(ctx context.Context, rideID int64) (float64, error) {
	return e.MaxOf(ctx, rideID, models.ColCadence)
}

// MaxHeartRate returns the trimmed maximum heart rate in bpm.
func (e *Engine) MaxHeartRate(ctx context.Context, rideID int64) (float64, error) {
	return e.MaxOf(ctx, rideID, models.ColHeartRate)
}

// MinCadence returns the trimmed minimum cadence in rpm.
func (e *Engine) MinCadence(ctx context.Context, rideID int64) (float64, error) {
	return e.MinOf(ctx, rideID, models.ColCadence)
}

// MinHeartRate returns the trimmed minimum heart rate in bpm.
func (e *Engine) MinHeartRate(ctx context.Context, rideID int64) (float64, error) {
	return e.MinOf(ctx, rideID, models.ColHeartRate)
}

// AverageMovingSpeed returns total distance over total duration of the
// segments moving faster than the threshold but not above MaxSpeed.
func (e *Engine) AverageMovingSpeed(ctx context.Context, rideID int64) (float64, error) {
	maxSpeed, err := e.MaxSpeed(ctx, rideID)
	if err != nil {
		return 0, err
	}
	f := rideOnly(rideID).And(
		storage.Gt(models.ColSpeed, e.threshold),
		storage.Lte(models.ColSpeed, maxSpeed),
	)

	dist, err := e.logs.Aggregate(ctx, storage.AggSum, models.ColSegmentDistance, f)
	if err != nil {
		return 0, fmt.Errorf("sum distance: %w", err)
	}
	dur, err := e.logs.Aggregate(ctx, storage.AggSum, models.ColSegmentDuration, f)
	if err != nil {
		return 0, fmt.Errorf("sum duration: %w", err)
	}
	if dist == nil || dur == nil || *dur == 0 {
		return 0, nil
	}
	return *dist / *dur * 1000, nil
}

// AverageCadence returns the mean cadence between the trimmed extremes, or nil without data.
func (e *Engine) AverageCadence(ctx context.Context, rideID int64) (*float64, error) {
	return e.trimmedAverage(ctx, rideID, models.ColCadence)
}

// AverageHeartRate returns the mean heart rate between the trimmed extremes, or nil without data.
func (e *Engine) AverageHeartRate(ctx context.Context, rideID int64) (*float64, error) {
	return e.trimmedAverage(ctx, rideID, models.ColHeartRate)
}

func (e *Engine) trimmedAverage(ctx context.Context, rideID int64, col models.Column) (*float64, error) {
	lo, err := e.MinOf(ctx, rideID, col)
	if err != nil {
		return nil, err
	}
	hi, err := e.MaxOf(ctx, rideID, col)
	if err != nil {
		return nil, err
	}
	avg, err := e.logs.Aggregate(ctx, storage.AggAvg, col, rideOnly(rideID).And(storage.Between(col, lo, hi)...))
	if err != nil {
		return nil, fmt.Errorf("average %s: %w", col, err)
	}
	return avg, nil
}

// TotalDistance returns the sum of segment distances in meters.
func (e *Engine) TotalDistance(ctx context.Context, rideID int64) (float64, error) {
	sum, err := e.logs.Aggregate(ctx, storage.AggSum, models.ColSegmentDistance, rideOnly(rideID))
	if err != nil {
		return 0, fmt.Errorf("sum distance: %w", err)
	}
	if sum == nil {
		return 0, nil
	}
	return *sum, nil
}

// MovingDuration returns the summed duration of moving segments, or nil without data.
func (e *Engine) MovingDuration(ctx context.Context, rideID int64) (*time.Duration, error) {
	f := rideOnly(rideID).And(storage.Gt(models.ColSpeed, e.threshold))
	sum, err := e.logs.Aggregate(ctx, storage.AggSum, models.ColSegmentDuration, f)
	if err != nil {
		return nil, fmt.Errorf("sum duration: %w", err)
	}
	if sum == nil {
		return nil, nil
	}
	d := time.Duration(*sum) * time.Millisecond
	return &d, nil
}

// FirstLogDate returns when the ride's earliest point was recorded.
func (e *Engine) FirstLogDate(ctx context.Context, rideID int64) (*time.Time, error) {
	return e.logDate(ctx, rideID, storage.AggMin)
}

// LastLogDate returns when the ride's latest point was recorded.
func (e *Engine) LastLogDate(ctx context.Context, rideID int64) (*time.Time, error) {
	return e.logDate(ctx, rideID, storage.AggMax)
}

func (e *Engine) logDate(ctx context.Context, rideID int64, op storage.AggOp) (*time.Time, error) {
	ms, err := e.logs.Aggregate(ctx, op, models.ColRecordedDate, rideOnly(rideID))
	if err != nil {
		return nil, fmt.Errorf("%s recorded date: %w", op, err)
	}
	if ms == nil {
		return nil, nil
	}
	t := time.UnixMilli(int64(*ms))
	return &t, nil
}
