// ABOUTME: Contract tests for log point storage on SQLite and Badger.
// ABOUTME: Covers filtering, ordering, windowing, aggregates, reassignment and deletion.
package storage

import (
	"context"
	"testing"
	"time"

	"github.com/harperreed/bikey/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func insertPoint(t *testing.T, s Store, rideID int64, at time.Time, seg *models.Segment, cadence *float64, hr *int) *models.LogPoint {
	t.Helper()
	p := &models.LogPoint{
		RideID:     rideID,
		RecordedAt: at,
		Lat:        52.5,
		Lon:        13.4,
		Elevation:  30,
		Segment:    seg,
		Cadence:    cadence,
		HeartRate:  hr,
	}
	require.NoError(t, s.InsertLog(context.Background(), p))
	return p
}

func fptr(v float64) *float64 { return &v }
func iptr(v int) *int         { return &v }

func TestInsertAndQueryLogs(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		r := mustCreateRide(t, s, time.UnixMilli(1000))
		at := time.UnixMilli(1_700_000_000_123)

		first := insertPoint(t, s, r.ID, at, nil, nil, nil)
		second := insertPoint(t, s, r.ID, at.Add(time.Second),
			&models.Segment{Duration: time.Second, Distance: 5.5, Speed: 5.5}, fptr(88), iptr(130))
		assert.Greater(t, second.ID, first.ID)

		points, err := s.QueryLogs(ctx, LogQuery{Filter: Where(RideIs(r.ID))})
		require.NoError(t, err)
		require.Len(t, points, 2)

		assert.Nil(t, points[0].Segment)
		assert.Nil(t, points[0].Cadence)
		assert.True(t, points[0].RecordedAt.Equal(at))

		got := points[1]
		require.NotNil(t, got.Segment)
		assert.Equal(t, time.Second, got.Segment.Duration)
		assert.InDelta(t, 5.5, got.Segment.Distance, 1e-9)
		assert.InDelta(t, 5.5, got.Segment.Speed, 1e-9)
		assert.InDelta(t, 88.0, *got.Cadence, 1e-9)
		assert.Equal(t, 130, *got.HeartRate)
	})
}

func TestQueryLogsFilterOrderWindow(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		r := mustCreateRide(t, s, time.UnixMilli(1000))
		other := mustCreateRide(t, s, time.UnixMilli(2000))
		at := time.UnixMilli(1_700_000_000_000)

		for i, c := range []float64{70, 95, 80, 60} {
			insertPoint(t, s, r.ID, at.Add(time.Duration(i)*time.Second), nil, fptr(c), nil)
		}
		insertPoint(t, s, r.ID, at.Add(10*time.Second), nil, nil, nil)
		insertPoint(t, s, other.ID, at, nil, fptr(200), nil)

		byCadence, err := s.QueryLogs(ctx, LogQuery{
			Filter:  Where(RideIs(r.ID), NotNull(models.ColCadence)),
			OrderBy: models.ColCadence,
		})
		require.NoError(t, err)
		require.Len(t, byCadence, 4)
		assert.Equal(t, []float64{60, 70, 80, 95}, cadences(byCadence))

		desc, err := s.QueryLogs(ctx, LogQuery{
			Filter:  Where(RideIs(r.ID), NotNull(models.ColCadence)),
			OrderBy: models.ColCadence,
			Desc:    true,
			Offset:  1,
			Limit:   2,
		})
		require.NoError(t, err)
		assert.Equal(t, []float64{80, 70}, cadences(desc))

		ranged, err := s.QueryLogs(ctx, LogQuery{
			Filter: Where(RideIs(r.ID)).And(Between(models.ColCadence, 70, 80)...),
		})
		require.NoError(t, err)
		assert.Equal(t, []float64{70, 80}, cadences(ranged))

		beyond, err := s.QueryLogs(ctx, LogQuery{Filter: Where(RideIs(r.ID)), Offset: 50})
		require.NoError(t, err)
		assert.Empty(t, beyond)

		both, err := s.QueryLogs(ctx, LogQuery{Filter: Where(RideIs(r.ID, other.ID), Gt(models.ColCadence, 90))})
		require.NoError(t, err)
		assert.Equal(t, []float64{95, 200}, cadences(both))
	})
}

func cadences(points []*models.LogPoint) []float64 {
	out := make([]float64, 0, len(points))
	for _, p := range points {
		if p.Cadence != nil {
			out = append(out, *p.Cadence)
		}
	}
	return out
}

func TestQueryLogsIDMultiple(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		r := mustCreateRide(t, s, time.UnixMilli(1000))
		for i := 0; i < 30; i++ {
			insertPoint(t, s, r.ID, time.UnixMilli(int64(i)*1000), nil, nil, nil)
		}

		points, err := s.QueryLogs(ctx, LogQuery{Filter: Where(RideIs(r.ID), IDMultipleOf(10))})
		require.NoError(t, err)
		require.Len(t, points, 3)
		for _, p := range points {
			assert.Zero(t, p.ID%10)
		}
	})
}

func TestQueryLogsInvalid(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		_, err := s.QueryLogs(ctx, LogQuery{OrderBy: "nonsense"})
		assert.ErrorIs(t, err, ErrInvalidArgument)
		_, err = s.QueryLogs(ctx, LogQuery{Filter: Where(IDMultipleOf(0))})
		assert.ErrorIs(t, err, ErrInvalidArgument)
		_, err = s.Aggregate(ctx, AggOp("MEDIAN"), models.ColSpeed, nil)
		assert.ErrorIs(t, err, ErrInvalidArgument)
	})
}

func TestAggregate(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		r := mustCreateRide(t, s, time.UnixMilli(1000))
		rideOnly := Where(RideIs(r.ID))

		sum, err := s.Aggregate(ctx, AggSum, models.ColSegmentDistance, rideOnly)
		require.NoError(t, err)
		assert.Nil(t, sum, "SUM over no rows is absent")

		count, err := s.Aggregate(ctx, AggCount, models.ColID, rideOnly)
		require.NoError(t, err)
		require.NotNil(t, count)
		assert.Zero(t, *count)

		at := time.UnixMilli(1_700_000_000_000)
		insertPoint(t, s, r.ID, at, nil, nil, iptr(120))
		insertPoint(t, s, r.ID, at.Add(time.Second), &models.Segment{Duration: time.Second, Distance: 4, Speed: 4}, nil, iptr(140))
		insertPoint(t, s, r.ID, at.Add(3*time.Second), &models.Segment{Duration: 2 * time.Second, Distance: 10, Speed: 5}, nil, nil)

		tests := []struct {
			op   AggOp
			col  models.Column
			want float64
		}{
			{AggSum, models.ColSegmentDistance, 14},
			{AggSum, models.ColSegmentDuration, 3000},
			{AggAvg, models.ColHeartRate, 130},
			{AggMin, models.ColHeartRate, 120},
			{AggMax, models.ColSpeed, 5},
			{AggCount, models.ColID, 3},
			{AggCount, models.ColSpeed, 2},
			{AggMin, models.ColRecordedDate, float64(at.UnixMilli())},
			{AggMax, models.ColRecordedDate, float64(at.Add(3 * time.Second).UnixMilli())},
		}
		for _, tt := range tests {
			got, err := s.Aggregate(ctx, tt.op, tt.col, rideOnly)
			require.NoError(t, err)
			require.NotNil(t, got, "%s(%s)", tt.op, tt.col)
			assert.InDelta(t, tt.want, *got, 1e-9, "%s(%s)", tt.op, tt.col)
		}

		avgCadence, err := s.Aggregate(ctx, AggAvg, models.ColCadence, rideOnly)
		require.NoError(t, err)
		assert.Nil(t, avgCadence)
	})
}

func TestLastLog(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		r := mustCreateRide(t, s, time.UnixMilli(1000))

		last, err := s.LastLog(ctx, r.ID)
		require.NoError(t, err)
		assert.Nil(t, last)

		insertPoint(t, s, r.ID, time.UnixMilli(1000), nil, nil, nil)
		want := insertPoint(t, s, r.ID, time.UnixMilli(2000), nil, nil, nil)

		last, err = s.LastLog(ctx, r.ID)
		require.NoError(t, err)
		require.NotNil(t, last)
		assert.Equal(t, want.ID, last.ID)
	})
}

func TestReassignAndDeleteLogs(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		master := mustCreateRide(t, s, time.UnixMilli(1000))
		other := mustCreateRide(t, s, time.UnixMilli(2000))

		insertPoint(t, s, master.ID, time.UnixMilli(1000), nil, nil, nil)
		moved := insertPoint(t, s, other.ID, time.UnixMilli(2000), nil, nil, nil)
		insertPoint(t, s, other.ID, time.UnixMilli(3000), nil, nil, nil)

		n, err := s.ReassignLogs(ctx, other.ID, master.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		points, err := s.QueryLogs(ctx, LogQuery{Filter: Where(RideIs(master.ID))})
		require.NoError(t, err)
		require.Len(t, points, 3)
		assert.Equal(t, moved.ID, points[1].ID, "point IDs survive reassignment")

		left, err := s.QueryLogs(ctx, LogQuery{Filter: Where(RideIs(other.ID))})
		require.NoError(t, err)
		assert.Empty(t, left)

		deleted, err := s.DeleteLogs(ctx, master.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(3), deleted)

		count, err := s.Aggregate(ctx, AggCount, models.ColID, nil)
		require.NoError(t, err)
		assert.Zero(t, *count)
	})
}
