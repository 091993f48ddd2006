// ABOUTME: Append-only log point recording for rides with segment derivation.
// ABOUTME: Each append recomputes the ride distance and announces the new point on the bus.
package logbook

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/harperreed/bikey/internal/geo"
	"github.com/harperreed/bikey/internal/keylock"
	"github.com/harperreed/bikey/internal/models"
	"github.com/harperreed/bikey/internal/notify"
	"github.com/harperreed/bikey/internal/storage"
	"github.com/harperreed/bikey/internal/timeutil"
)

// Logbook records and reads log points.
type Logbook struct {
	store     storage.Store
	bus       *notify.Bus
	locks     *keylock.Map
	threshold float64
	logger    *log.Logger
}

// Option configures a Logbook.
type Option func(*Logbook)

// WithThreshold sets the minimum speed (m/s) for a point to carry a segment.
func WithThreshold(mps float64) Option {
	return func(l *Logbook) { l.threshold = mps }
}

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) Option {
	return func(l *Logbook) { l.logger = logger }
}

// WithLocks shares a per-ride lock map with other services.
func WithLocks(locks *keylock.Map) Option {
	return func(l *Logbook) { l.locks = locks }
}

// New creates a Logbook over store publishing to bus.
func New(store storage.Store, bus *notify.Bus, opts ...Option) *Logbook {
	l := &Logbook{
		store:     store,
		bus:       bus,
		threshold: geo.SpeedMinThreshold,
		logger:    log.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.locks == nil {
		l.locks = keylock.New()
	}
	return l
}

// Threshold returns the minimum moving speed in m/s.
func (l *Logbook) Threshold() float64 {
	return l.threshold
}

// Append stores sample for the ride, deriving its segment from previous.
func (l *Logbook) Append(ctx context.Context, rideID int64, sample models.Sample, previous *models.Sample) (*models.LogPoint, error) {
	if rideID <= 0 {
		return nil, fmt.Errorf("%w: ride id is required", storage.ErrInvalidArgument)
	}

	unlock := l.locks.Lock(rideID)
	p, err := l.appendLocked(ctx, rideID, sample, previous, false)
	unlock()
	if err != nil {
		return nil, err
	}

	l.bus.LogAdded(rideID)
	return p, nil
}

// Record stores sample using the ride's last stored point as the previous sample.
func (l *Logbook) Record(ctx context.Context, rideID int64, sample models.Sample) (*models.LogPoint, error) {
	if rideID <= 0 {
		return nil, fmt.Errorf("%w: ride id is required", storage.ErrInvalidArgument)
	}

	unlock := l.locks.Lock(rideID)
	p, err := l.appendLocked(ctx, rideID, sample, nil, true)
	unlock()
	if err != nil {
		return nil, err
	}

	l.bus.LogAdded(rideID)
	return p, nil
}

func (l *Logbook) appendLocked(ctx context.Context, rideID int64, sample models.Sample, previous *models.Sample, usePrevious bool) (*models.LogPoint, error) {
	sample.RecordedAt = timeutil.Millis(sample.RecordedAt)

	var point *models.LogPoint
	err := l.store.Atomic(ctx, func(tx storage.Store) error {
		ride, err := tx.GetRide(ctx, rideID)
		if err != nil {
			return err
		}
		if ride.IsDeleted() {
			return fmt.Errorf("%w: ride %d is deleted", storage.ErrInvalidArgument, rideID)
		}

		prev := previous
		if usePrevious {
			last, err := tx.LastLog(ctx, rideID)
			if err != nil {
				return err
			}
			if last != nil {
				s := last.Sample()
				prev = &s
			}
		}

		point = &models.LogPoint{
			RideID:     rideID,
			RecordedAt: sample.RecordedAt,
			Lat:        sample.Lat,
			Lon:        sample.Lon,
			Elevation:  sample.Elevation,
			Segment:    geo.SegmentBetween(prev, sample, l.threshold),
			Cadence:    sample.Cadence,
			HeartRate:  sample.HeartRate,
		}
		if err := tx.InsertLog(ctx, point); err != nil {
			return err
		}
		return storeDistance(ctx, tx, ride)
	})
	if err != nil {
		return nil, fmt.Errorf("append log to ride %d: %w", rideID, err)
	}

	l.logger.Debug("log appended", "ride", rideID, "point", point.ID, "moving", point.Segment != nil)
	return point, nil
}

// Query returns the ride's points matching q. The ride filter is added automatically.
func (l *Logbook) Query(ctx context.Context, rideID int64, q storage.LogQuery) ([]*models.LogPoint, error) {
	if err := l.requireRide(ctx, rideID); err != nil {
		return nil, err
	}
	q.Filter = storage.Where(storage.RideIs(rideID)).And(q.Filter...)
	return l.store.QueryLogs(ctx, q)
}

// Aggregate computes op over col for the ride's points matching f.
func (l *Logbook) Aggregate(ctx context.Context, rideID int64, op storage.AggOp, col models.Column, f storage.Filter) (*float64, error) {
	if err := l.requireRide(ctx, rideID); err != nil {
		return nil, err
	}
	return l.store.Aggregate(ctx, op, col, storage.Where(storage.RideIs(rideID)).And(f...))
}

// Count returns how many points the ride has.
func (l *Logbook) Count(ctx context.Context, rideID int64) (int, error) {
	n, err := l.Aggregate(ctx, rideID, storage.AggCount, models.ColID, nil)
	if err != nil {
		return 0, err
	}
	return int(*n), nil
}

// Reassign moves every point of one ride to another. Both rides get their
// distance recomputed in the same unit of work.
func (l *Logbook) Reassign(ctx context.Context, fromRideID, toRideID int64) (int64, error) {
	if fromRideID <= 0 {
		return 0, fmt.Errorf("%w: ride id is required", storage.ErrInvalidArgument)
	}
	if err := l.requireRide(ctx, toRideID); err != nil {
		return 0, err
	}
	defer l.locks.LockAll(fromRideID, toRideID)()

	var n int64
	err := l.store.Atomic(ctx, func(tx storage.Store) error {
		var err error
		if n, err = tx.ReassignLogs(ctx, fromRideID, toRideID); err != nil {
			return err
		}
		if err := refreshDistance(ctx, tx, fromRideID); err != nil {
			return err
		}
		return refreshDistance(ctx, tx, toRideID)
	})
	if err != nil {
		return 0, fmt.Errorf("reassign logs of ride %d to %d: %w", fromRideID, toRideID, err)
	}
	return n, nil
}

// DeleteForRide removes every point of the ride and resets its distance.
func (l *Logbook) DeleteForRide(ctx context.Context, rideID int64) (int64, error) {
	if rideID <= 0 {
		return 0, fmt.Errorf("%w: ride id is required", storage.ErrInvalidArgument)
	}
	defer l.locks.Lock(rideID)()

	var n int64
	err := l.store.Atomic(ctx, func(tx storage.Store) error {
		var err error
		if n, err = tx.DeleteLogs(ctx, rideID); err != nil {
			return err
		}
		return refreshDistance(ctx, tx, rideID)
	})
	if err != nil {
		return 0, fmt.Errorf("delete logs of ride %d: %w", rideID, err)
	}
	return n, nil
}

// refreshDistance recomputes the cached distance of a ride if it exists.
func refreshDistance(ctx context.Context, tx storage.Store, rideID int64) error {
	ride, err := tx.GetRide(ctx, rideID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return storeDistance(ctx, tx, ride)
}

// storeDistance sets the ride distance to the sum of its segment distances.
func storeDistance(ctx context.Context, tx storage.Store, ride *models.Ride) error {
	total, err := tx.Aggregate(ctx, storage.AggSum, models.ColSegmentDistance, storage.Where(storage.RideIs(ride.ID)))
	if err != nil {
		return err
	}
	ride.Distance = 0
	if total != nil {
		ride.Distance = *total
	}
	return tx.UpdateRide(ctx, ride)
}

func (l *Logbook) requireRide(ctx context.Context, rideID int64) error {
	if rideID <= 0 {
		return fmt.Errorf("%w: ride id is required", storage.ErrInvalidArgument)
	}
	_, err := l.store.GetRide(ctx, rideID)
	return err
}
