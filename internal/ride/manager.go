// ABOUTME: Ride lifecycle manager owning creation, naming and the current ride pointer.
// ABOUTME: State transitions live in lifecycle.go and merging in merge.go.
package ride

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/harperreed/bikey/internal/geo"
	"github.com/harperreed/bikey/internal/keylock"
	"github.com/harperreed/bikey/internal/models"
	"github.com/harperreed/bikey/internal/notify"
	"github.com/harperreed/bikey/internal/storage"
	"github.com/harperreed/bikey/internal/timeutil"
)

// Collector is the sensor/location pipeline feeding samples into a ride.
type Collector interface {
	StopCollecting(ctx context.Context, rideID int64) error
}

// NopCollector is used when no collection pipeline is attached.
type NopCollector struct{}

// StopCollecting does nothing.
func (NopCollector) StopCollecting(context.Context, int64) error { return nil }

// Manager drives rides through their lifecycle.
type Manager struct {
	store     storage.Store
	bus       *notify.Bus
	locks     *keylock.Map
	clock     timeutil.Clock
	logger    *log.Logger
	collector Collector
	threshold float64
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock sets the time source.
func WithClock(c timeutil.Clock) Option {
	return func(m *Manager) { m.clock = c }
}

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// WithLocks shares a per-ride lock map with other services.
func WithLocks(locks *keylock.Map) Option {
	return func(m *Manager) { m.locks = locks }
}

// WithCollector attaches the collection pipeline stopped before pausing for delete or merge.
func WithCollector(c Collector) Option {
	return func(m *Manager) { m.collector = c }
}

// WithThreshold sets the minimum moving speed in m/s used by statistics.
func WithThreshold(mps float64) Option {
	return func(m *Manager) { m.threshold = mps }
}

// New creates a Manager over store publishing to bus.
func New(store storage.Store, bus *notify.Bus, opts ...Option) *Manager {
	m := &Manager{
		store:     store,
		bus:       bus,
		clock:     timeutil.RealClock{},
		logger:    log.Default(),
		collector: NopCollector{},
		threshold: geo.SpeedMinThreshold,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.locks == nil {
		m.locks = keylock.New()
	}
	return m
}

func (m *Manager) now() time.Time {
	return timeutil.Millis(m.clock.Now())
}

// Create stores a new ride in the CREATED state.
func (m *Manager) Create(ctx context.Context, name string) (*models.Ride, error) {
	r := models.NewRide(m.now()).WithName(strings.TrimSpace(name))
	if err := m.store.CreateRide(ctx, r); err != nil {
		return nil, fmt.Errorf("create ride: %w", err)
	}
	m.logger.Debug("ride created", "ride", r.ID)
	return r, nil
}

// Get returns a ride by ID.
func (m *Manager) Get(ctx context.Context, id int64) (*models.Ride, error) {
	return m.store.GetRide(ctx, id)
}

// List returns rides matching f, newest first.
func (m *Manager) List(ctx context.Context, f storage.RideFilter) ([]*models.Ride, error) {
	return m.store.ListRides(ctx, f)
}

// Exists reports whether a ride with id is stored.
func (m *Manager) Exists(ctx context.Context, id int64) (bool, error) {
	_, err := m.store.GetRide(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Rename sets the ride's name. An empty name clears it.
func (m *Manager) Rename(ctx context.Context, id int64, name string) (*models.Ride, error) {
	defer m.locks.Lock(id)()

	r, err := m.liveRide(ctx, m.store, id)
	if err != nil {
		return nil, err
	}
	r.WithName(strings.TrimSpace(name))
	if err := m.store.UpdateRide(ctx, r); err != nil {
		return nil, fmt.Errorf("rename ride %d: %w", id, err)
	}
	return r, nil
}

// liveRide loads a ride that has not been deleted.
func (m *Manager) liveRide(ctx context.Context, s storage.Store, id int64) (*models.Ride, error) {
	r, err := s.GetRide(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.IsDeleted() {
		return nil, fmt.Errorf("%w: ride %d is deleted", storage.ErrInvalidArgument, id)
	}
	return r, nil
}

// CurrentRide returns the ride the user is looking at, or nil when none is set
// or the stored pointer no longer names a live ride.
func (m *Manager) CurrentRide(ctx context.Context) (*models.Ride, error) {
	id, ok, err := currentRideID(ctx, m.store)
	if err != nil || !ok {
		return nil, err
	}
	r, err := m.store.GetRide(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if r.IsDeleted() {
		return nil, nil
	}
	return r, nil
}

// SetCurrentRide points the current ride at id.
func (m *Manager) SetCurrentRide(ctx context.Context, id int64) error {
	if _, err := m.liveRide(ctx, m.store, id); err != nil {
		return err
	}
	return m.store.SetPreference(ctx, storage.CurrentRideKey, strconv.FormatInt(id, 10))
}

// ClearCurrentRide removes the current ride pointer.
func (m *Manager) ClearCurrentRide(ctx context.Context) error {
	return m.store.DeletePreference(ctx, storage.CurrentRideKey)
}

func currentRideID(ctx context.Context, s storage.Preferences) (int64, bool, error) {
	v, ok, err := s.GetPreference(ctx, storage.CurrentRideKey)
	if err != nil || !ok {
		return 0, false, err
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, false, nil
	}
	return id, true, nil
}

// mostRecent picks the ride to show after the current one disappears:
// the newest ACTIVE ride, otherwise the newest non-deleted ride.
func mostRecent(ctx context.Context, s storage.Store) (*models.Ride, error) {
	for _, states := range [][]models.RideState{
		{models.RideActive},
		{models.RideCreated, models.RidePaused},
	} {
		rides, err := s.ListRides(ctx, storage.RideFilter{States: states, Limit: 1})
		if err != nil {
			return nil, err
		}
		if len(rides) > 0 {
			return rides[0], nil
		}
	}
	return nil, nil
}
