// ABOUTME: Tests for merging rides and recomputing cached distance.
// ABOUTME: Checks master selection, duration and distance totals, naming and the current ride pointer.
package ride

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/harperreed/bikey/internal/models"
	"github.com/harperreed/bikey/internal/notify"
	"github.com/harperreed/bikey/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seedRide stores a ride created at created with a cached duration and one
// log point per segment distance.
func seedRide(t *testing.T, f *fixture, name string, created time.Time, duration time.Duration, distances ...float64) *models.Ride {
	t.Helper()
	ctx := context.Background()
	f.clock.Set(created)
	r, err := f.m.Create(ctx, name)
	require.NoError(t, err)

	r.Duration = duration
	for _, d := range distances {
		r.Distance += d
	}
	require.NoError(t, f.store.UpdateRide(ctx, r))

	for i, d := range distances {
		p := &models.LogPoint{
			RideID:     r.ID,
			RecordedAt: created.Add(time.Duration(i) * time.Second),
			Segment:    &models.Segment{Duration: time.Second, Distance: d, Speed: d},
		}
		require.NoError(t, f.store.InsertLog(ctx, p))
	}
	return r
}

func TestMergeIntoEarliest(t *testing.T) {
	forEachBackend(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()
		a := seedRide(t, f, "", day1, 100*time.Millisecond, 10, 20, 30)
		b := seedRide(t, f, "", day1.Add(24*time.Hour), 50*time.Millisecond, 5, 7)

		merged, err := f.m.Merge(ctx, b.ID, a.ID)
		require.NoError(t, err)
		assert.Equal(t, a.ID, merged.ID)
		assert.Equal(t, 150*time.Millisecond, merged.Duration)
		assert.InDelta(t, 72.0, merged.Distance, 1e-9)
		require.NotNil(t, merged.Name)
		assert.Equal(t, MergedName, *merged.Name)

		got, err := f.m.Get(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, 150*time.Millisecond, got.Duration)
		assert.InDelta(t, 72.0, got.Distance, 1e-9)

		_, err = f.m.Get(ctx, b.ID)
		assert.ErrorIs(t, err, storage.ErrNotFound)

		count, err := f.store.Aggregate(ctx, storage.AggCount, models.ColID, storage.Where(storage.RideIs(a.ID)))
		require.NoError(t, err)
		assert.Equal(t, 5.0, *count)
	})
}

func TestMergeKeepsNameAndBreaksTiesByID(t *testing.T) {
	forEachBackend(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()
		first := seedRide(t, f, "loop", day1, time.Minute, 1)
		twin := seedRide(t, f, "", day1, time.Minute, 2)

		merged, err := f.m.Merge(ctx, twin.ID, first.ID)
		require.NoError(t, err)
		assert.Equal(t, first.ID, merged.ID)
		assert.Equal(t, "loop (merged)", *merged.Name)
		assert.Equal(t, 2*time.Minute, merged.Duration)
	})
}

func TestMergePausesFirstActiveRide(t *testing.T) {
	forEachBackend(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()
		a := seedRide(t, f, "", day1, 0, 10)
		b := seedRide(t, f, "", day1.Add(time.Hour), 0, 10)

		f.clock.Set(day1.Add(2 * time.Hour))
		_, err := f.m.Activate(ctx, a.ID)
		require.NoError(t, err)
		f.clock.Advance(10 * time.Minute)

		merged, err := f.m.Merge(ctx, a.ID, b.ID)
		require.NoError(t, err)
		assert.Equal(t, models.RidePaused, merged.State)
		assert.Equal(t, 10*time.Minute, merged.Duration)
		assert.Equal(t, []int64{a.ID}, f.collector.stopped)
		assert.Equal(t, 1, f.events.count(notify.KindPaused, a.ID))
	})
}

func TestMergeMovesCurrentRide(t *testing.T) {
	forEachBackend(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()
		a := seedRide(t, f, "", day1, 0)
		b := seedRide(t, f, "", day1.Add(time.Hour), 0)
		require.NoError(t, f.m.SetCurrentRide(ctx, b.ID))

		_, err := f.m.Merge(ctx, a.ID, b.ID)
		require.NoError(t, err)

		current, err := f.m.CurrentRide(ctx)
		require.NoError(t, err)
		require.NotNil(t, current)
		assert.Equal(t, a.ID, current.ID)
	})
}

func TestMergeValidation(t *testing.T) {
	forEachBackend(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()
		a := seedRide(t, f, "", day1, 0)
		deleted := seedRide(t, f, "", day1.Add(time.Hour), 0)
		_, err := f.m.Delete(ctx, deleted.ID)
		require.NoError(t, err)

		_, err = f.m.Merge(ctx, a.ID, a.ID)
		assert.ErrorIs(t, err, storage.ErrInvalidArgument)

		_, err = f.m.Merge(ctx, a.ID, 404)
		assert.ErrorIs(t, err, storage.ErrNotFound)

		_, err = f.m.Merge(ctx, a.ID, deleted.ID)
		assert.ErrorIs(t, err, storage.ErrInvalidArgument)

		var mergeErr *MergeError
		require.True(t, errors.As(err, &mergeErr))
		assert.Equal(t, StepValidate, mergeErr.Step)
		assert.Equal(t, []int64{a.ID, deleted.ID}, mergeErr.RideIDs)

		got, err := f.m.Get(ctx, a.ID)
		require.NoError(t, err)
		assert.Nil(t, got.Name, "failed merges leave rides untouched")
	})
}

func TestRecomputeDistanceIsIdempotent(t *testing.T) {
	forEachBackend(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()
		r := seedRide(t, f, "", day1, 0, 3, 4)

		r.Distance = 999
		require.NoError(t, f.store.UpdateRide(ctx, r))

		once, err := f.m.RecomputeDistance(ctx, r.ID)
		require.NoError(t, err)
		assert.InDelta(t, 7.0, once.Distance, 1e-9)

		twice, err := f.m.RecomputeDistance(ctx, r.ID)
		require.NoError(t, err)
		assert.InDelta(t, 7.0, twice.Distance, 1e-9)

		_, err = f.m.RecomputeDistance(ctx, 404)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})
}

func TestMergeLargeRideOnBadger(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping large ride in short mode")
	}
	f := newFixture(t, setupTestBadger(t))
	ctx := context.Background()

	a := seedRide(t, f, "long day", day1, time.Hour, 10, 20)
	f.clock.Set(day1.Add(time.Hour))
	b, err := f.m.Create(ctx, "")
	require.NoError(t, err)
	b.Duration = 9 * time.Hour
	require.NoError(t, f.store.UpdateRide(ctx, b))

	const points = 40_000
	const chunk = 5000
	for done := 0; done < points; done += chunk {
		err := f.store.Atomic(ctx, func(tx storage.Store) error {
			for i := done; i < done+chunk; i++ {
				p := &models.LogPoint{
					RideID:     b.ID,
					RecordedAt: day1.Add(time.Hour + time.Duration(i)*time.Second),
					Segment:    &models.Segment{Duration: time.Second, Distance: 2, Speed: 2},
				}
				if err := tx.InsertLog(ctx, p); err != nil {
					return err
				}
			}
			return nil
		})
		require.NoError(t, err)
	}

	merged, err := f.m.Merge(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, merged.ID)
	assert.Equal(t, 10*time.Hour, merged.Duration)
	assert.InDelta(t, 30+2*points, merged.Distance, 1e-6)

	count, err := f.store.Aggregate(ctx, storage.AggCount, models.ColID, storage.Where(storage.RideIs(a.ID)))
	require.NoError(t, err)
	assert.Equal(t, float64(points+2), *count)
}
