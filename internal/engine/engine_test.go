// ABOUTME: End-to-end tests of a ride recorded through the wired engine.
// ABOUTME: Verifies shared clock and locks, distance upkeep, statistics and event metrics together.
package engine

import (
	"context"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/harperreed/bikey/internal/geo"
	"github.com/harperreed/bikey/internal/models"
	"github.com/harperreed/bikey/internal/storage"
	"github.com/harperreed/bikey/internal/timeutil"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestEngine(t *testing.T) (*Engine, *timeutil.MockClock, *prometheus.Registry) {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "test.db"), storage.WithLogger(log.New(io.Discard)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return newTestEngine(t, db)
}

func newTestEngine(t *testing.T, s storage.Store) (*Engine, *timeutil.MockClock, *prometheus.Registry) {
	t.Helper()
	clock := timeutil.NewMockClock(time.Date(2024, 6, 1, 7, 0, 0, 0, time.UTC))
	reg := prometheus.NewRegistry()
	e := New(s, Options{Logger: log.New(io.Discard), Clock: clock, Registerer: reg})
	t.Cleanup(func() { _ = e.Close() })
	return e, clock, reg
}

func TestRecordRide(t *testing.T) {
	e, clock, _ := setupTestEngine(t)
	ctx := context.Background()

	r, err := e.Rides.Create(ctx, "lake loop")
	require.NoError(t, err)
	_, err = e.Rides.Activate(ctx, r.ID)
	require.NoError(t, err)

	// Ride north at roughly 5.5 m/s, then stand still.
	samples := []models.Sample{
		models.NewSample(clock.Now(), 52.5000, 13.4000, 40).WithCadence(85).WithHeartRate(120),
		models.NewSample(clock.Now().Add(10*time.Second), 52.5005, 13.4000, 41).WithCadence(88).WithHeartRate(130),
		models.NewSample(clock.Now().Add(20*time.Second), 52.5010, 13.4000, 42).WithCadence(90).WithHeartRate(135),
		models.NewSample(clock.Now().Add(30*time.Second), 52.5010, 13.4000, 42).WithHeartRate(125),
	}
	var want float64
	for i, s := range samples {
		_, err := e.Logs.Record(ctx, r.ID, s)
		require.NoError(t, err)
		if i > 0 && i < 3 {
			want += geo.SampleDistance(samples[i-1], s)
		}
	}

	clock.Advance(30 * time.Second)
	paused, err := e.Rides.Pause(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, paused.Duration)
	assert.InDelta(t, want, paused.Distance, 1e-6)

	total, err := e.Stats.TotalDistance(ctx, r.ID)
	require.NoError(t, err)
	assert.InDelta(t, paused.Distance, total, 1e-9)

	summary, err := e.Stats.Summary(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, summary.Points)
	require.NotNil(t, summary.MovingDuration)
	assert.Equal(t, 20*time.Second, *summary.MovingDuration)
	assert.InDelta(t, want/20, summary.AverageMovingSpeed, 1e-6)
	assert.Equal(t, 90.0, summary.MaxCadence)
	assert.Equal(t, 135.0, summary.MaxHeartRate)
}

func TestEventsReachMetrics(t *testing.T) {
	e, _, _ := setupTestEngine(t)
	ctx := context.Background()

	r, err := e.Rides.Create(ctx, "")
	require.NoError(t, err)
	_, err = e.Rides.Activate(ctx, r.ID)
	require.NoError(t, err)
	_, err = e.Logs.Record(ctx, r.ID, models.NewSample(time.Now(), 1, 1, 0))
	require.NoError(t, err)
	_, err = e.Rides.Pause(ctx, r.ID)
	require.NoError(t, err)

	require.NotNil(t, e.Metrics)
	assert.Equal(t, 1.0, testutil.ToFloat64(e.Metrics.RideEventsTotal.WithLabelValues("activated")))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.Metrics.RideEventsTotal.WithLabelValues("log_added")))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.Metrics.RideEventsTotal.WithLabelValues("paused")))
}

func TestMergeThroughEngine(t *testing.T) {
	e, clock, _ := setupTestEngine(t)
	ctx := context.Background()

	a, err := e.Rides.Create(ctx, "")
	require.NoError(t, err)
	clock.Advance(24 * time.Hour)
	b, err := e.Rides.Create(ctx, "")
	require.NoError(t, err)

	start := clock.Now()
	for i, id := range []int64{a.ID, a.ID, b.ID, b.ID} {
		s := models.NewSample(start.Add(time.Duration(i)*10*time.Second), 52.5+float64(i)*0.0005, 13.4, 0)
		_, err := e.Logs.Record(ctx, id, s)
		require.NoError(t, err)
	}

	merged, err := e.Rides.Merge(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, merged.ID)

	total, err := e.Stats.TotalDistance(ctx, a.ID)
	require.NoError(t, err)
	assert.InDelta(t, total, merged.Distance, 1e-9)

	n, err := e.Logs.Count(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestConcurrentMutationsOnOneRide(t *testing.T) {
	backends := map[string]func(t *testing.T) storage.Store{
		"sqlite": func(t *testing.T) storage.Store {
			db, err := storage.Open(filepath.Join(t.TempDir(), "test.db"), storage.WithLogger(log.New(io.Discard)))
			require.NoError(t, err)
			t.Cleanup(func() { _ = db.Close() })
			return db
		},
		"badger": func(t *testing.T) storage.Store {
			s, err := storage.OpenBadger("", storage.WithLogger(log.New(io.Discard)))
			require.NoError(t, err)
			t.Cleanup(func() { _ = s.Close() })
			return s
		},
	}

	for name, open := range backends {
		t.Run(name, func(t *testing.T) {
			e, clock, _ := newTestEngine(t, open(t))
			ctx := context.Background()
			start := clock.Now()

			a, err := e.Rides.Create(ctx, "main")
			require.NoError(t, err)
			b, err := e.Rides.Create(ctx, "detour")
			require.NoError(t, err)

			// b: 30 seconds of riding with three points.
			_, err = e.Rides.Activate(ctx, b.ID)
			require.NoError(t, err)
			for i := range 3 {
				_, err := e.Logs.Record(ctx, b.ID, models.NewSample(start.Add(time.Duration(i)*10*time.Second), 52.6+float64(i)*0.0005, 13.4, 0))
				require.NoError(t, err)
			}
			clock.Advance(30 * time.Second)
			_, err = e.Rides.Pause(ctx, b.ID)
			require.NoError(t, err)

			// a: active for one minute when the concurrent phase starts. The
			// clock stays put from here on, so no later stint adds time.
			_, err = e.Rides.Activate(ctx, a.ID)
			require.NoError(t, err)
			clock.Advance(time.Minute)

			const writers, perWriter = 4, 10
			var wg sync.WaitGroup
			errs := make(chan error, writers*perWriter+4)

			for w := range writers {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for i := range perWriter {
						k := w*perWriter + i
						s := models.NewSample(start.Add(time.Duration(k)*5*time.Second), 52.5+float64(k)*0.0001, 13.4, 0)
						if _, err := e.Logs.Record(ctx, a.ID, s); err != nil {
							errs <- err
						}
					}
				}()
			}

			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := e.Rides.Pause(ctx, a.ID); err != nil {
					errs <- err
				}
				if _, err := e.Rides.Activate(ctx, a.ID); err != nil {
					errs <- err
				}
				if _, err := e.Rides.Pause(ctx, a.ID); err != nil {
					errs <- err
				}
			}()

			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := e.Rides.Merge(ctx, a.ID, b.ID); err != nil {
					errs <- err
				}
			}()

			wg.Wait()
			close(errs)
			for err := range errs {
				require.NoError(t, err)
			}

			got, err := e.Rides.Get(ctx, a.ID)
			require.NoError(t, err)
			assert.Equal(t, models.RidePaused, got.State)
			assert.Equal(t, time.Minute+30*time.Second, got.Duration)

			total, err := e.Stats.TotalDistance(ctx, a.ID)
			require.NoError(t, err)
			assert.InDelta(t, total, got.Distance, 1e-6)

			n, err := e.Logs.Count(ctx, a.ID)
			require.NoError(t, err)
			assert.Equal(t, 3+writers*perWriter, n)

			_, err = e.Rides.Get(ctx, b.ID)
			assert.ErrorIs(t, err, storage.ErrNotFound)
		})
	}
}
