// ABOUTME: Tests specific to the Badger backend's bucketed log layout.
// ABOUTME: Covers large reassignments, recording after a move, and purging of deleted points.
package storage

import (
	"context"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/harperreed/bikey/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// bulkInsert stores n points for the ride in chunks small enough for one transaction.
func bulkInsert(t *testing.T, s Store, rideID int64, n int) {
	t.Helper()
	ctx := context.Background()
	const chunk = 5000
	for done := 0; done < n; done += chunk {
		err := s.Atomic(ctx, func(tx Store) error {
			for i := done; i < min(done+chunk, n); i++ {
				p := &models.LogPoint{
					RideID:     rideID,
					RecordedAt: time.UnixMilli(int64(i) * 1000),
					Segment:    &models.Segment{Duration: time.Second, Distance: 1, Speed: 1},
				}
				if err := tx.InsertLog(ctx, p); err != nil {
					return err
				}
			}
			return nil
		})
		require.NoError(t, err)
	}
}

func rawLogKeys(t *testing.T, s *BadgerStore) int {
	t.Helper()
	n := 0
	err := s.view(func(tx *badgerTx) error {
		return tx.scanKeys([]byte(logPrefix), func([]byte) error {
			n++
			return nil
		})
	})
	require.NoError(t, err)
	return n
}

func TestBadgerReassignLargeRide(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping large ride in short mode")
	}
	s := setupTestBadger(t)
	ctx := context.Background()
	from := mustCreateRide(t, s, time.UnixMilli(1000))
	to := mustCreateRide(t, s, time.UnixMilli(2000))

	const points = 50_000
	bulkInsert(t, s, from.ID, points)

	n, err := s.ReassignLogs(ctx, from.ID, to.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(points), n)

	count, err := s.Aggregate(ctx, AggCount, models.ColID, Where(RideIs(to.ID)))
	require.NoError(t, err)
	assert.Equal(t, float64(points), *count)

	left, err := s.Aggregate(ctx, AggCount, models.ColID, Where(RideIs(from.ID)))
	require.NoError(t, err)
	assert.Zero(t, *left)

	deleted, err := s.DeleteLogs(ctx, to.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(points), deleted)
	assert.Zero(t, rawLogKeys(t, s), "deleted points are purged after commit")
}

func TestBadgerRecordAfterReassign(t *testing.T) {
	s := setupTestBadger(t)
	ctx := context.Background()
	from := mustCreateRide(t, s, time.UnixMilli(1000))
	to := mustCreateRide(t, s, time.UnixMilli(2000))

	insertPoint(t, s, to.ID, time.UnixMilli(1000), nil, nil, nil)
	insertPoint(t, s, from.ID, time.UnixMilli(2000), nil, nil, nil)
	movedLast := insertPoint(t, s, from.ID, time.UnixMilli(3000), nil, nil, nil)

	_, err := s.ReassignLogs(ctx, from.ID, to.ID)
	require.NoError(t, err)

	fresh := insertPoint(t, s, from.ID, time.UnixMilli(4000), nil, nil, nil)

	last, err := s.LastLog(ctx, to.ID)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, movedLast.ID, last.ID)
	assert.Equal(t, to.ID, last.RideID)

	last, err = s.LastLog(ctx, from.ID)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, fresh.ID, last.ID)

	all, err := s.QueryLogs(ctx, LogQuery{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	owners := map[int64]int{}
	for _, p := range all {
		owners[p.RideID]++
	}
	assert.Equal(t, map[int64]int{to.ID: 3, from.ID: 1}, owners)
}

func TestBadgerDeleteRollsBackWithAtomic(t *testing.T) {
	s := setupTestBadger(t)
	ctx := context.Background()
	r := mustCreateRide(t, s, time.UnixMilli(1000))
	insertPoint(t, s, r.ID, time.UnixMilli(1000), nil, nil, nil)

	err := s.Atomic(ctx, func(tx Store) error {
		if _, err := tx.DeleteLogs(ctx, r.ID); err != nil {
			return err
		}
		return ErrInvalidArgument
	})
	require.ErrorIs(t, err, ErrInvalidArgument)

	count, err := s.Aggregate(ctx, AggCount, models.ColID, Where(RideIs(r.ID)))
	require.NoError(t, err)
	assert.Equal(t, 1.0, *count)
	assert.Equal(t, 1, rawLogKeys(t, s))
}

func TestBadgerPurgesOrphansOnOpen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := OpenBadger(dir, WithLogger(testLogger()))
	require.NoError(t, err)
	r := mustCreateRide(t, s, time.UnixMilli(1000))
	insertPoint(t, s, r.ID, time.UnixMilli(1000), nil, nil, nil)

	// Detach the bucket without the post-commit purge, as after a crash.
	err = s.db.Update(func(txn *badger.Txn) error {
		tx := &badgerTx{txn: txn, store: s}
		_, err := tx.DeleteLogs(ctx, r.ID)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 1, rawLogKeys(t, s))
	require.NoError(t, s.Close())

	s, err = OpenBadger(dir, WithLogger(testLogger()))
	require.NoError(t, err)
	defer s.Close()
	assert.Zero(t, rawLogKeys(t, s))
}
