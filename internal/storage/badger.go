// ABOUTME: Badger key-value storage backend for rides, log points and preferences.
// ABOUTME: Log points live in ride-owned buckets so reassigning or deleting them is a metadata write.
package storage

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/dgraph-io/badger/v3"
	"github.com/harperreed/bikey/internal/models"
)

// Key layout:
//
//	ride/<ride>             ride JSON
//	log/<bucket>/<id>       log point JSON
//	bucket/<bucket>         owning ride id
//	ridebuckets/<ride>      bucketSet JSON
//	orphan/<bucket>         detached bucket awaiting purge
//	pref/<key>              raw preference value
const (
	ridePrefix        = "ride/"
	logPrefix         = "log/"
	bucketPrefix      = "bucket/"
	rideBucketsPrefix = "ridebuckets/"
	orphanPrefix      = "orphan/"
	prefPrefix        = "pref/"

	idWidth = 20

	seqBandwidth = 100
	maxConflicts = 3
)

// BadgerStore implements Backend on an embedded Badger database.
type BadgerStore struct {
	db        *badger.DB
	rideSeq   *badger.Sequence
	logSeq    *badger.Sequence
	bucketSeq *badger.Sequence
	logger    *log.Logger
}

var _ Backend = (*BadgerStore)(nil)

// OpenBadger opens or creates a Badger database in dir. An empty dir keeps
// everything in memory.
func OpenBadger(dir string, opts ...Option) (*BadgerStore, error) {
	o := buildOptions(opts)

	bopts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		bopts = bopts.WithInMemory(true)
	}

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}

	rideSeq, err := db.GetSequence([]byte("seq/ride"), seqBandwidth)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ride sequence: %w", err)
	}
	logSeq, err := db.GetSequence([]byte("seq/log"), seqBandwidth)
	if err != nil {
		_ = rideSeq.Release()
		_ = db.Close()
		return nil, fmt.Errorf("log sequence: %w", err)
	}

	bucketSeq, err := db.GetSequence([]byte("seq/bucket"), seqBandwidth)
	if err != nil {
		_ = logSeq.Release()
		_ = rideSeq.Release()
		_ = db.Close()
		return nil, fmt.Errorf("bucket sequence: %w", err)
	}

	s := &BadgerStore{db: db, rideSeq: rideSeq, logSeq: logSeq, bucketSeq: bucketSeq, logger: o.logger}
	s.purgeOrphans()

	o.logger.Debug("opened badger store", "dir", dir, "in_memory", dir == "")
	return s, nil
}

// Close releases the sequences and closes the database.
func (s *BadgerStore) Close() error {
	var errs []error
	if err := s.rideSeq.Release(); err != nil {
		errs = append(errs, err)
	}
	if err := s.logSeq.Release(); err != nil {
		errs = append(errs, err)
	}
	if err := s.bucketSeq.Release(); err != nil {
		errs = append(errs, err)
	}
	if err := s.db.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (s *BadgerStore) view(fn func(*badgerTx) error) error {
	return s.db.View(func(txn *badger.Txn) error {
		return fn(&badgerTx{txn: txn, store: s})
	})
}

func (s *BadgerStore) update(fn func(*badgerTx) error) error {
	var err error
	for attempt := 1; attempt <= maxConflicts; attempt++ {
		var tx *badgerTx
		err = s.db.Update(func(txn *badger.Txn) error {
			tx = &badgerTx{txn: txn, store: s}
			return fn(tx)
		})
		switch {
		case err == nil:
			s.purge(tx.orphans...)
			return nil
		case errors.Is(err, badger.ErrTxnTooBig):
			return fmt.Errorf("%w: %w", ErrTooLarge, err)
		case !errors.Is(err, badger.ErrConflict):
			return err
		}
		s.logger.Debug("badger transaction conflict, retrying", "attempt", attempt)
	}
	return err
}

// purge deletes the points of detached buckets. The buckets are already
// invisible to readers, so a failure only leaves garbage for the next open.
func (s *BadgerStore) purge(buckets ...int64) {
	for _, b := range buckets {
		if err := s.purgeBucket(b); err != nil {
			s.logger.Warn("failed to purge log bucket", "bucket", b, "err", err)
		}
	}
}

func (s *BadgerStore) purgeBucket(bucket int64) error {
	var keys [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		return (&badgerTx{txn: txn, store: s}).scanKeys(bucketLogPrefix(bucket), func(key []byte) error {
			keys = append(keys, key)
			return nil
		})
	})
	if err != nil {
		return err
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, key := range keys {
		if err := wb.Delete(key); err != nil {
			return err
		}
	}
	if err := wb.Delete(orphanKey(bucket)); err != nil {
		return err
	}
	return wb.Flush()
}

func (s *BadgerStore) purgeOrphans() {
	var buckets []int64
	err := s.db.View(func(txn *badger.Txn) error {
		return (&badgerTx{txn: txn, store: s}).scanKeys([]byte(orphanPrefix), func(key []byte) error {
			b, err := strconv.ParseInt(string(key[len(orphanPrefix):]), 10, 64)
			if err != nil {
				return err
			}
			buckets = append(buckets, b)
			return nil
		})
	})
	if err != nil {
		s.logger.Warn("failed to list orphaned log buckets", "err", err)
		return
	}
	s.purge(buckets...)
}

// Atomic runs fn inside a single read-write transaction.
func (s *BadgerStore) Atomic(ctx context.Context, fn func(Store) error) error {
	return s.update(func(tx *badgerTx) error { return fn(tx) })
}

func (s *BadgerStore) CreateRide(ctx context.Context, r *models.Ride) error {
	return s.update(func(tx *badgerTx) error { return tx.CreateRide(ctx, r) })
}

func (s *BadgerStore) GetRide(ctx context.Context, id int64) (r *models.Ride, err error) {
	err = s.view(func(tx *badgerTx) error {
		r, err = tx.GetRide(ctx, id)
		return err
	})
	return r, err
}

func (s *BadgerStore) ListRides(ctx context.Context, f RideFilter) (rides []*models.Ride, err error) {
	err = s.view(func(tx *badgerTx) error {
		rides, err = tx.ListRides(ctx, f)
		return err
	})
	return rides, err
}

func (s *BadgerStore) UpdateRide(ctx context.Context, r *models.Ride) error {
	return s.update(func(tx *badgerTx) error { return tx.UpdateRide(ctx, r) })
}

func (s *BadgerStore) SetRideState(ctx context.Context, state models.RideState, ids ...int64) (n int64, err error) {
	err = s.update(func(tx *badgerTx) error {
		n, err = tx.SetRideState(ctx, state, ids...)
		return err
	})
	return n, err
}

func (s *BadgerStore) DeleteRide(ctx context.Context, id int64) error {
	return s.update(func(tx *badgerTx) error { return tx.DeleteRide(ctx, id) })
}

func (s *BadgerStore) InsertLog(ctx context.Context, p *models.LogPoint) error {
	return s.update(func(tx *badgerTx) error { return tx.InsertLog(ctx, p) })
}

func (s *BadgerStore) QueryLogs(ctx context.Context, q LogQuery) (points []*models.LogPoint, err error) {
	err = s.view(func(tx *badgerTx) error {
		points, err = tx.QueryLogs(ctx, q)
		return err
	})
	return points, err
}

func (s *BadgerStore) Aggregate(ctx context.Context, op AggOp, col models.Column, f Filter) (v *float64, err error) {
	err = s.view(func(tx *badgerTx) error {
		v, err = tx.Aggregate(ctx, op, col, f)
		return err
	})
	return v, err
}

func (s *BadgerStore) LastLog(ctx context.Context, rideID int64) (p *models.LogPoint, err error) {
	err = s.view(func(tx *badgerTx) error {
		p, err = tx.LastLog(ctx, rideID)
		return err
	})
	return p, err
}

func (s *BadgerStore) ReassignLogs(ctx context.Context, fromRideID, toRideID int64) (n int64, err error) {
	err = s.update(func(tx *badgerTx) error {
		n, err = tx.ReassignLogs(ctx, fromRideID, toRideID)
		return err
	})
	return n, err
}

func (s *BadgerStore) DeleteLogs(ctx context.Context, rideIDs ...int64) (n int64, err error) {
	err = s.update(func(tx *badgerTx) error {
		n, err = tx.DeleteLogs(ctx, rideIDs...)
		return err
	})
	return n, err
}

func (s *BadgerStore) GetPreference(ctx context.Context, key string) (v string, ok bool, err error) {
	err = s.view(func(tx *badgerTx) error {
		v, ok, err = tx.GetPreference(ctx, key)
		return err
	})
	return v, ok, err
}

func (s *BadgerStore) SetPreference(ctx context.Context, key, value string) error {
	return s.update(func(tx *badgerTx) error { return tx.SetPreference(ctx, key, value) })
}

func (s *BadgerStore) DeletePreference(ctx context.Context, key string) error {
	return s.update(func(tx *badgerTx) error { return tx.DeletePreference(ctx, key) })
}

// badgerTx implements Store within one Badger transaction.
type badgerTx struct {
	txn     *badger.Txn
	store   *BadgerStore
	orphans []int64
}

// bucketSet lists the log buckets a ride owns. New points go to Open.
type bucketSet struct {
	Open    int64   `json:"open,omitempty"`
	Buckets []int64 `json:"buckets"`
}

func idKey(prefix string, id int64) []byte {
	return fmt.Appendf(nil, "%s%0*d", prefix, idWidth, id)
}

func rideKey(id int64) []byte {
	return idKey(ridePrefix, id)
}

func bucketLogPrefix(bucket int64) []byte {
	return append(idKey(logPrefix, bucket), '/')
}

func logKey(bucket, id int64) []byte {
	return fmt.Appendf(bucketLogPrefix(bucket), "%0*d", idWidth, id)
}

// bucketOfLogKey extracts the bucket id from a log key.
func bucketOfLogKey(key []byte) (int64, error) {
	return strconv.ParseInt(string(key[len(logPrefix):len(logPrefix)+idWidth]), 10, 64)
}

func bucketKey(bucket int64) []byte {
	return idKey(bucketPrefix, bucket)
}

func rideBucketsKey(rideID int64) []byte {
	return idKey(rideBucketsPrefix, rideID)
}

func orphanKey(bucket int64) []byte {
	return idKey(orphanPrefix, bucket)
}

func prefKey(key string) []byte {
	return []byte(prefPrefix + key)
}

func (t *badgerTx) Atomic(ctx context.Context, fn func(Store) error) error {
	return fn(t)
}

func (t *badgerTx) nextID(seq *badger.Sequence) (int64, error) {
	n, err := seq.Next()
	if err != nil {
		return 0, err
	}
	// Sequences start at zero; stored IDs start at one.
	return int64(n) + 1, nil
}

func (t *badgerTx) put(key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return t.txn.Set(key, data)
}

func (t *badgerTx) get(key []byte, v any) error {
	item, err := t.txn.Get(key)
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, v)
	})
}

// scan calls fn for every key under prefix, in key order.
func (t *badgerTx) scan(prefix []byte, fn func(key, val []byte) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	it := t.txn.NewIterator(opts)
	defer it.Close()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		item := it.Item()
		val, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		if err := fn(item.KeyCopy(nil), val); err != nil {
			return err
		}
	}
	return nil
}

// scanKeys calls fn for every key under prefix without reading values.
func (t *badgerTx) scanKeys(prefix []byte, fn func(key []byte) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	opts.PrefetchValues = false
	it := t.txn.NewIterator(opts)
	defer it.Close()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		if err := fn(it.Item().KeyCopy(nil)); err != nil {
			return err
		}
	}
	return nil
}

func (t *badgerTx) rideBuckets(rideID int64) (*bucketSet, error) {
	var set bucketSet
	err := t.get(rideBucketsKey(rideID), &set)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return &set, nil
	}
	if err != nil {
		return nil, fmt.Errorf("buckets of ride %d: %w", rideID, err)
	}
	return &set, nil
}

func (t *badgerTx) putRideBuckets(rideID int64, set *bucketSet) error {
	if len(set.Buckets) == 0 {
		return t.txn.Delete(rideBucketsKey(rideID))
	}
	return t.put(rideBucketsKey(rideID), set)
}

func (t *badgerTx) setOwner(bucket, rideID int64) error {
	return t.txn.Set(bucketKey(bucket), strconv.AppendInt(nil, rideID, 10))
}

// owners maps every live bucket to its ride.
func (t *badgerTx) owners() (map[int64]int64, error) {
	owners := make(map[int64]int64)
	err := t.scan([]byte(bucketPrefix), func(key, val []byte) error {
		b, err := strconv.ParseInt(string(key[len(bucketPrefix):]), 10, 64)
		if err != nil {
			return err
		}
		ride, err := strconv.ParseInt(string(val), 10, 64)
		if err != nil {
			return err
		}
		owners[b] = ride
		return nil
	})
	return owners, err
}

// countBuckets returns how many points the buckets hold.
func (t *badgerTx) countBuckets(buckets []int64) (int64, error) {
	var n int64
	for _, b := range buckets {
		err := t.scanKeys(bucketLogPrefix(b), func([]byte) error {
			n++
			return nil
		})
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

func (t *badgerTx) CreateRide(ctx context.Context, r *models.Ride) error {
	id, err := t.nextID(t.store.rideSeq)
	if err != nil {
		return fmt.Errorf("create ride: %w", err)
	}
	r.ID = id
	if err := t.put(rideKey(id), r); err != nil {
		return fmt.Errorf("create ride: %w", err)
	}
	return nil
}

func (t *badgerTx) GetRide(ctx context.Context, id int64) (*models.Ride, error) {
	var r models.Ride
	err := t.get(rideKey(id), &r)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("ride %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get ride: %w", err)
	}
	return &r, nil
}

func (t *badgerTx) ListRides(ctx context.Context, f RideFilter) ([]*models.Ride, error) {
	var rides []*models.Ride
	err := t.scan([]byte(ridePrefix), func(_, val []byte) error {
		var r models.Ride
		if err := json.Unmarshal(val, &r); err != nil {
			return err
		}
		if len(f.States) > 0 && !slices.Contains(f.States, r.State) {
			return nil
		}
		if len(f.IDs) > 0 && !slices.Contains(f.IDs, r.ID) {
			return nil
		}
		rides = append(rides, &r)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list rides: %w", err)
	}

	slices.SortFunc(rides, func(a, b *models.Ride) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	if f.Limit > 0 && len(rides) > f.Limit {
		rides = rides[:f.Limit]
	}
	return rides, nil
}

func (t *badgerTx) UpdateRide(ctx context.Context, r *models.Ride) error {
	existing, err := t.GetRide(ctx, r.ID)
	if err != nil {
		return err
	}
	// Identity and creation date are immutable.
	updated := *r
	updated.UUID = existing.UUID
	updated.CreatedAt = existing.CreatedAt
	if err := t.put(rideKey(r.ID), &updated); err != nil {
		return fmt.Errorf("update ride: %w", err)
	}
	return nil
}

func (t *badgerTx) SetRideState(ctx context.Context, state models.RideState, ids ...int64) (int64, error) {
	var n int64
	for _, id := range ids {
		r, err := t.GetRide(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return n, err
		}
		r.State = state
		if err := t.put(rideKey(id), r); err != nil {
			return n, fmt.Errorf("set ride state: %w", err)
		}
		n++
	}
	return n, nil
}

func (t *badgerTx) DeleteRide(ctx context.Context, id int64) error {
	if _, err := t.GetRide(ctx, id); err != nil {
		return err
	}
	if err := t.txn.Delete(rideKey(id)); err != nil {
		return fmt.Errorf("delete ride: %w", err)
	}
	return nil
}

func (t *badgerTx) InsertLog(ctx context.Context, p *models.LogPoint) error {
	set, err := t.rideBuckets(p.RideID)
	if err != nil {
		return fmt.Errorf("insert log: %w", err)
	}
	if set.Open == 0 {
		b, err := t.nextID(t.store.bucketSeq)
		if err != nil {
			return fmt.Errorf("insert log: %w", err)
		}
		set.Open = b
		set.Buckets = append(set.Buckets, b)
		if err := t.setOwner(b, p.RideID); err != nil {
			return fmt.Errorf("insert log: %w", err)
		}
		if err := t.putRideBuckets(p.RideID, set); err != nil {
			return fmt.Errorf("insert log: %w", err)
		}
	}

	id, err := t.nextID(t.store.logSeq)
	if err != nil {
		return fmt.Errorf("insert log: %w", err)
	}
	p.ID = id
	if err := t.put(logKey(set.Open, id), p); err != nil {
		return fmt.Errorf("insert log: %w", err)
	}
	return nil
}

// collect returns every point matching f, scanning only the filtered rides'
// buckets when the filter names rides.
func (t *badgerTx) collect(f Filter) ([]*models.LogPoint, error) {
	var points []*models.LogPoint
	visit := func(rideID int64) func(key, val []byte) error {
		return func(_, val []byte) error {
			var p models.LogPoint
			if err := json.Unmarshal(val, &p); err != nil {
				return err
			}
			p.RideID = rideID
			if f.Match(&p) {
				points = append(points, &p)
			}
			return nil
		}
	}

	if ids, ok := f.RideIDs(); ok {
		for _, id := range slices.Compact(slices.Sorted(slices.Values(ids))) {
			set, err := t.rideBuckets(id)
			if err != nil {
				return nil, err
			}
			for _, b := range set.Buckets {
				if err := t.scan(bucketLogPrefix(b), visit(id)); err != nil {
					return nil, err
				}
			}
		}
		return points, nil
	}

	owners, err := t.owners()
	if err != nil {
		return nil, err
	}
	err = t.scan([]byte(logPrefix), func(key, val []byte) error {
		b, err := bucketOfLogKey(key)
		if err != nil {
			return err
		}
		ride, ok := owners[b]
		if !ok {
			return nil
		}
		return visit(ride)(key, val)
	})
	if err != nil {
		return nil, err
	}
	return points, nil
}

func (t *badgerTx) QueryLogs(ctx context.Context, q LogQuery) ([]*models.LogPoint, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	points, err := t.collect(q.Filter)
	if err != nil {
		return nil, fmt.Errorf("query logs: %w", err)
	}
	return q.apply(points), nil
}

func (t *badgerTx) Aggregate(ctx context.Context, op AggOp, col models.Column, f Filter) (*float64, error) {
	if !op.valid() {
		return nil, fmt.Errorf("%w: unknown aggregate %q", ErrInvalidArgument, op)
	}
	if !models.IsValidColumn(string(col)) {
		return nil, fmt.Errorf("%w: unknown column %q", ErrInvalidArgument, col)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	points, err := t.collect(f)
	if err != nil {
		return nil, fmt.Errorf("aggregate %s(%s): %w", op, col, err)
	}
	return aggregate(points, op, col), nil
}

func (t *badgerTx) LastLog(ctx context.Context, rideID int64) (*models.LogPoint, error) {
	set, err := t.rideBuckets(rideID)
	if err != nil {
		return nil, fmt.Errorf("last log: %w", err)
	}

	var last *models.LogPoint
	for _, b := range set.Buckets {
		p, err := t.lastInBucket(b)
		if err != nil {
			return nil, fmt.Errorf("last log: %w", err)
		}
		if p != nil && (last == nil || p.ID > last.ID) {
			last = p
		}
	}
	if last != nil {
		last.RideID = rideID
	}
	return last, nil
}

func (t *badgerTx) lastInBucket(bucket int64) (*models.LogPoint, error) {
	prefix := bucketLogPrefix(bucket)
	opts := badger.DefaultIteratorOptions
	opts.Reverse = true
	opts.Prefix = prefix
	it := t.txn.NewIterator(opts)
	defer it.Close()

	it.Seek(append(slices.Clone(prefix), 0xFF))
	if !it.ValidForPrefix(prefix) {
		return nil, nil
	}

	var p models.LogPoint
	err := it.Item().Value(func(val []byte) error {
		return json.Unmarshal(val, &p)
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ReassignLogs hands every bucket of one ride to another. The point records
// themselves are not rewritten.
func (t *badgerTx) ReassignLogs(ctx context.Context, fromRideID, toRideID int64) (int64, error) {
	if fromRideID == toRideID {
		return 0, nil
	}
	from, err := t.rideBuckets(fromRideID)
	if err != nil {
		return 0, fmt.Errorf("reassign logs: %w", err)
	}
	if len(from.Buckets) == 0 {
		return 0, nil
	}
	to, err := t.rideBuckets(toRideID)
	if err != nil {
		return 0, fmt.Errorf("reassign logs: %w", err)
	}

	n, err := t.countBuckets(from.Buckets)
	if err != nil {
		return 0, fmt.Errorf("reassign logs: %w", err)
	}
	for _, b := range from.Buckets {
		if err := t.setOwner(b, toRideID); err != nil {
			return 0, fmt.Errorf("reassign logs: %w", err)
		}
	}
	to.Buckets = append(to.Buckets, from.Buckets...)
	if err := t.putRideBuckets(toRideID, to); err != nil {
		return 0, fmt.Errorf("reassign logs: %w", err)
	}
	if err := t.putRideBuckets(fromRideID, &bucketSet{}); err != nil {
		return 0, fmt.Errorf("reassign logs: %w", err)
	}
	return n, nil
}

// DeleteLogs detaches the rides' buckets. Their points are purged after the
// transaction commits.
func (t *badgerTx) DeleteLogs(ctx context.Context, rideIDs ...int64) (int64, error) {
	var n int64
	for _, id := range slices.Compact(slices.Sorted(slices.Values(rideIDs))) {
		set, err := t.rideBuckets(id)
		if err != nil {
			return n, fmt.Errorf("delete logs: %w", err)
		}
		count, err := t.countBuckets(set.Buckets)
		if err != nil {
			return n, fmt.Errorf("delete logs: %w", err)
		}
		for _, b := range set.Buckets {
			if err := t.txn.Delete(bucketKey(b)); err != nil {
				return n, fmt.Errorf("delete logs: %w", err)
			}
			if err := t.txn.Set(orphanKey(b), []byte{}); err != nil {
				return n, fmt.Errorf("delete logs: %w", err)
			}
		}
		if err := t.putRideBuckets(id, &bucketSet{}); err != nil {
			return n, fmt.Errorf("delete logs: %w", err)
		}
		t.orphans = append(t.orphans, set.Buckets...)
		n += count
	}
	return n, nil
}

func (t *badgerTx) GetPreference(ctx context.Context, key string) (string, bool, error) {
	item, err := t.txn.Get(prefKey(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get preference %s: %w", key, err)
	}
	val, err := item.ValueCopy(nil)
	if err != nil {
		return "", false, fmt.Errorf("get preference %s: %w", key, err)
	}
	return string(val), true, nil
}

func (t *badgerTx) SetPreference(ctx context.Context, key, value string) error {
	if err := t.txn.Set(prefKey(key), []byte(value)); err != nil {
		return fmt.Errorf("set preference %s: %w", key, err)
	}
	return nil
}

func (t *badgerTx) DeletePreference(ctx context.Context, key string) error {
	if err := t.txn.Delete(prefKey(key)); err != nil {
		return fmt.Errorf("delete preference %s: %w", key, err)
	}
	return nil
}
