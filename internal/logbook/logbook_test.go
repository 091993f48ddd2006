// ABOUTME: Tests for log point recording, segment derivation and ride distance upkeep.
// ABOUTME: Uses a temporary SQLite store and a recording bus listener.
package logbook

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
	"github.com/harperreed/bikey/internal/notify"
	"github.com/harperreed/bikey/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	events []notify.Event
}

func (r *recorder) HandleEvent(e notify.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) kinds() []notify.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]notify.Kind, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Kind)
	}
	return out
}

func setupTestLogbook(t *testing.T) (*Logbook, storage.Store, *recorder) {
	t.Helper()
	logger := log.New(io.Discard)
	db, err := storage.Open(filepath.Join(t.TempDir(), "test.db"), storage.WithLogger(logger))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	bus := notify.NewBus(logger, nil)
	rec := &recorder{}
	bus.Add(rec)
	return New(db, bus, WithLogger(logger)), db, rec
}

func createRide(t *testing.T, s storage.Store) *models.Ride {
	t.Helper()
	r := models.NewRide(time.UnixMilli(1_700_000_000_000))
	require.NoError(t, s.CreateRide(context.Background(), r))
	return r
}

var start = time.UnixMilli(1_700_000_100_000)

func TestAppendFirstPointHasNoSegment(t *testing.T) {
	lb, s, rec := setupTestLogbook(t)
	ctx := context.Background()
	r := createRide(t, s)

	p, err := lb.Append(ctx, r.ID, models.NewSample(start, 52.52, 13.405, 34).WithCadence(80), nil)
	require.NoError(t, err)
	assert.NotZero(t, p.ID)
	assert.Nil(t, p.Segment)
	assert.Equal(t, []notify.Kind{notify.KindLogAdded}, rec.kinds())

	got, err := s.GetRide(ctx, r.ID)
	require.NoError(t, err)
	assert.Zero(t, got.Distance)
}

func TestAppendDerivesSegmentAndDistance(t *testing.T) {
	lb, s, _ := setupTestLogbook(t)
	ctx := context.Background()
	r := createRide(t, s)

	first := models.NewSample(start, 52.52, 13.405, 34)
	second := models.NewSample(start.Add(10*time.Second), 52.5209, 13.405, 35)
	_, err := lb.Append(ctx, r.ID, first, nil)
	require.NoError(t, err)

	p, err := lb.Append(ctx, r.ID, second, &first)
	require.NoError(t, err)
	require.NotNil(t, p.Segment)

	want := geo.SampleDistance(first, second)
	assert.Equal(t, 10*time.Second, p.Segment.Duration)
	assert.InDelta(t, want, p.Segment.Distance, 1e-6)
	assert.InDelta(t, want/10, p.Segment.Speed, 1e-6)

	got, err := s.GetRide(ctx, r.ID)
	require.NoError(t, err)
	assert.InDelta(t, want, got.Distance, 1e-6)
}

func TestAppendSlowPointHasNoSegment(t *testing.T) {
	lb, s, _ := setupTestLogbook(t)
	ctx := context.Background()
	r := createRide(t, s)

	first := models.NewSample(start, 52.52, 13.405, 34)
	// About 1.1 m in 10 s.
	slow := models.NewSample(start.Add(10*time.Second), 52.52001, 13.405, 34)

	p, err := lb.Append(ctx, r.ID, slow, &first)
	require.NoError(t, err)
	assert.Nil(t, p.Segment)

	got, err := s.GetRide(ctx, r.ID)
	require.NoError(t, err)
	assert.Zero(t, got.Distance)
}

func TestAppendSameTimestampHasNoSegment(t *testing.T) {
	lb, s, _ := setupTestLogbook(t)
	r := createRide(t, s)

	first := models.NewSample(start, 52.52, 13.405, 34)
	same := models.NewSample(start, 52.53, 13.405, 34)

	p, err := lb.Append(context.Background(), r.ID, same, &first)
	require.NoError(t, err)
	assert.Nil(t, p.Segment)
}

func TestRecordUsesLastStoredPoint(t *testing.T) {
	lb, s, rec := setupTestLogbook(t)
	ctx := context.Background()
	r := createRide(t, s)

	first := models.NewSample(start, 52.52, 13.405, 34)
	second := models.NewSample(start.Add(5*time.Second), 52.5205, 13.405, 34)

	p1, err := lb.Record(ctx, r.ID, first)
	require.NoError(t, err)
	assert.Nil(t, p1.Segment)

	p2, err := lb.Record(ctx, r.ID, second)
	require.NoError(t, err)
	require.NotNil(t, p2.Segment)
	assert.Equal(t, 5*time.Second, p2.Segment.Duration)
	assert.Len(t, rec.kinds(), 2)

	n, err := lb.Count(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestAppendTruncatesToMillis(t *testing.T) {
	lb, s, _ := setupTestLogbook(t)
	r := createRide(t, s)

	p, err := lb.Append(context.Background(), r.ID, models.NewSample(start.Add(1500*time.Microsecond), 1, 1, 0), nil)
	require.NoError(t, err)
	assert.True(t, p.RecordedAt.Equal(start.Add(time.Millisecond)))
}

func TestAppendRejectsUnknownAndDeletedRides(t *testing.T) {
	lb, s, rec := setupTestLogbook(t)
	ctx := context.Background()
	sample := models.NewSample(start, 1, 1, 0)

	_, err := lb.Append(ctx, 0, sample, nil)
	assert.ErrorIs(t, err, storage.ErrInvalidArgument)

	_, err = lb.Append(ctx, 404, sample, nil)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	r := createRide(t, s)
	_, err = s.SetRideState(ctx, models.RideDeleted, r.ID)
	require.NoError(t, err)
	_, err = lb.Append(ctx, r.ID, sample, nil)
	assert.ErrorIs(t, err, storage.ErrInvalidArgument)

	assert.Empty(t, rec.kinds(), "failed appends publish nothing")
}

func TestQueryAndAggregateAreScopedToRide(t *testing.T) {
	lb, s, _ := setupTestLogbook(t)
	ctx := context.Background()
	a := createRide(t, s)
	b := createRide(t, s)

	for i := 0; i < 3; i++ {
		_, err := lb.Append(ctx, a.ID, models.NewSample(start.Add(time.Duration(i)*time.Second), 1, 1, 0).WithHeartRate(100+i), nil)
		require.NoError(t, err)
	}
	_, err := lb.Append(ctx, b.ID, models.NewSample(start, 1, 1, 0).WithHeartRate(200), nil)
	require.NoError(t, err)

	points, err := lb.Query(ctx, a.ID, storage.LogQuery{OrderBy: models.ColHeartRate, Desc: true})
	require.NoError(t, err)
	require.Len(t, points, 3)
	assert.Equal(t, 102, *points[0].HeartRate)

	hrMax, err := lb.Aggregate(ctx, a.ID, storage.AggMax, models.ColHeartRate, nil)
	require.NoError(t, err)
	require.NotNil(t, hrMax)
	assert.InDelta(t, 102.0, *hrMax, 1e-9)

	_, err = lb.Query(ctx, 404, storage.LogQuery{})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestReassignAndDeleteForRide(t *testing.T) {
	lb, s, _ := setupTestLogbook(t)
	ctx := context.Background()
	a := createRide(t, s)
	b := createRide(t, s)

	_, err := lb.Append(ctx, a.ID, models.NewSample(start, 1, 1, 0), nil)
	require.NoError(t, err)
	_, err = lb.Append(ctx, b.ID, models.NewSample(start, 1, 1, 0), nil)
	require.NoError(t, err)

	moved, err := lb.Reassign(ctx, b.ID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), moved)

	n, err := lb.Count(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	deleted, err := lb.DeleteForRide(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)
}

func TestReassignRecomputesBothDistances(t *testing.T) {
	lb, s, _ := setupTestLogbook(t)
	ctx := context.Background()
	from := createRide(t, s)
	to := createRide(t, s)

	for i := range 3 {
		_, err := lb.Record(ctx, from.ID, models.NewSample(start.Add(time.Duration(i)*5*time.Second), 52.52+float64(i)*0.0001, 13.405, 34))
		require.NoError(t, err)
	}
	before, err := s.GetRide(ctx, from.ID)
	require.NoError(t, err)
	require.Greater(t, before.Distance, 0.0)

	_, err = lb.Reassign(ctx, from.ID, to.ID)
	require.NoError(t, err)

	gotFrom, err := s.GetRide(ctx, from.ID)
	require.NoError(t, err)
	assert.Zero(t, gotFrom.Distance)

	gotTo, err := s.GetRide(ctx, to.ID)
	require.NoError(t, err)
	sum, err := lb.Aggregate(ctx, to.ID, storage.AggSum, models.ColSegmentDistance, nil)
	require.NoError(t, err)
	require.NotNil(t, sum)
	assert.InDelta(t, *sum, gotTo.Distance, 1e-9)
	assert.InDelta(t, before.Distance, gotTo.Distance, 1e-9)
}

func TestDeleteForRideResetsDistance(t *testing.T) {
	lb, s, _ := setupTestLogbook(t)
	ctx := context.Background()
	r := createRide(t, s)

	for i := range 3 {
		_, err := lb.Record(ctx, r.ID, models.NewSample(start.Add(time.Duration(i)*5*time.Second), 52.52+float64(i)*0.0001, 13.405, 34))
		require.NoError(t, err)
	}
	before, err := s.GetRide(ctx, r.ID)
	require.NoError(t, err)
	require.Greater(t, before.Distance, 0.0)

	n, err := lb.DeleteForRide(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	got, err := s.GetRide(ctx, r.ID)
	require.NoError(t, err)
	assert.Zero(t, got.Distance)
}
