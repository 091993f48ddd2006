// ABOUTME: Merging several rides into the earliest one and distance recomputation.
// ABOUTME: The merge body runs as one storage unit of work so a failure leaves every ride intact.
package ride

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/harperreed/bikey/internal/models"
	"github.com/harperreed/bikey/internal/stats"
	"github.com/harperreed/bikey/internal/storage"
)

// MergedName is the name given to a merged ride that had none.
const MergedName = "Merged ride"

// Merge steps reported by MergeError.
const (
	StepValidate = "validate"
	StepPause    = "pause"
	StepLoad     = "load"
	StepReassign = "reassign"
	StepDelete   = "delete"
	StepUpdate   = "update"
	StepCurrent  = "current"
)

// MergeError reports which step of a merge failed.
type MergeError struct {
	Step    string
	RideIDs []int64
	Err     error
}

func (e *MergeError) Error() string {
	return fmt.Sprintf("merge rides %v: %s: %v", e.RideIDs, e.Step, e.Err)
}

func (e *MergeError) Unwrap() error {
	return e.Err
}

// Merge combines rides into the one created first. Log points of the other
// rides move to it and the other rides are removed. The merged ride keeps the
// summed durations and gets its distance recomputed.
func (m *Manager) Merge(ctx context.Context, ids ...int64) (*models.Ride, error) {
	ids = distinct(ids)
	fail := func(step string, err error) (*models.Ride, error) {
		return nil, &MergeError{Step: step, RideIDs: ids, Err: err}
	}
	if len(ids) < 2 {
		return fail(StepValidate, fmt.Errorf("%w: need at least two distinct rides", storage.ErrInvalidArgument))
	}

	unlock := m.locks.LockAll(ids...)
	var pausedID int64
	master, step, err := func() (*models.Ride, string, error) {
		var active []int64
		for _, id := range ids {
			r, err := m.liveRide(ctx, m.store, id)
			if err != nil {
				return nil, StepValidate, err
			}
			if r.IsActive() {
				active = append(active, id)
			}
		}

		if len(active) > 0 {
			ok, err := m.stopAndPause(ctx, active[0])
			if err != nil {
				return nil, StepPause, err
			}
			if ok {
				pausedID = active[0]
			}
			if len(active) > 1 {
				m.logger.Warn("merging more than one active ride, only the first was paused", "paused", active[0], "active", active[1:])
			}
		}

		var master *models.Ride
		step := StepLoad
		err := m.store.Atomic(ctx, func(tx storage.Store) error {
			var err error
			master, step, err = m.mergeIn(ctx, tx, ids)
			return err
		})
		if err != nil && step == "" {
			step = StepUpdate
		}
		return master, step, err
	}()
	unlock()

	if pausedID != 0 {
		m.bus.Paused(pausedID)
	}
	if err != nil {
		return fail(step, err)
	}
	m.logger.Info("rides merged", "rides", ids, "into", master.ID, "distance", master.Distance, "duration", master.Duration)
	return master, nil
}

// mergeIn performs the merge inside a unit of work and returns the failing step on error.
func (m *Manager) mergeIn(ctx context.Context, tx storage.Store, ids []int64) (*models.Ride, string, error) {
	rides, err := tx.ListRides(ctx, storage.RideFilter{IDs: ids})
	if err != nil {
		return nil, StepLoad, err
	}
	if len(rides) != len(ids) {
		return nil, StepLoad, fmt.Errorf("%w: some rides disappeared", storage.ErrNotFound)
	}

	slices.SortFunc(rides, func(a, b *models.Ride) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	master := rides[0]

	var total time.Duration
	for _, r := range rides {
		total += r.Duration
	}

	merged := make([]int64, 0, len(rides)-1)
	for _, r := range rides[1:] {
		if _, err := tx.ReassignLogs(ctx, r.ID, master.ID); err != nil {
			return nil, StepReassign, fmt.Errorf("ride %d: %w", r.ID, err)
		}
		if err := tx.DeleteRide(ctx, r.ID); err != nil {
			return nil, StepDelete, fmt.Errorf("ride %d: %w", r.ID, err)
		}
		merged = append(merged, r.ID)
	}

	if master.Name == nil || *master.Name == "" {
		master.WithName(MergedName)
	} else {
		master.WithName(*master.Name + " (merged)")
	}

	distance, err := stats.New(tx, stats.WithThreshold(m.threshold)).TotalDistance(ctx, master.ID)
	if err != nil {
		return nil, StepUpdate, err
	}
	master.Distance = distance
	master.Duration = total
	if err := tx.UpdateRide(ctx, master); err != nil {
		return nil, StepUpdate, err
	}

	current, ok, err := currentRideID(ctx, tx)
	if err != nil {
		return nil, StepCurrent, err
	}
	if ok && slices.Contains(merged, current) {
		if err := tx.SetPreference(ctx, storage.CurrentRideKey, strconv.FormatInt(master.ID, 10)); err != nil {
			return nil, StepCurrent, err
		}
	}
	return master, "", nil
}

// RecomputeDistance resets the cached ride distance to the sum of its segments.
func (m *Manager) RecomputeDistance(ctx context.Context, id int64) (*models.Ride, error) {
	defer m.locks.Lock(id)()

	var r *models.Ride
	err := m.store.Atomic(ctx, func(tx storage.Store) error {
		var err error
		r, err = tx.GetRide(ctx, id)
		if err != nil {
			return err
		}
		r.Distance, err = stats.New(tx, stats.WithThreshold(m.threshold)).TotalDistance(ctx, id)
		if err != nil {
			return err
		}
		return tx.UpdateRide(ctx, r)
	})
	if err != nil {
		return nil, fmt.Errorf("recompute distance of ride %d: %w", id, err)
	}
	return r, nil
}
