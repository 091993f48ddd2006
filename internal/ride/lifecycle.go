// ABOUTME: Ride state transitions: activate, pause and delete.
// ABOUTME: Events are published after the change is stored and the ride lock released.
package ride

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"

	"github.com/harperreed/bikey/internal/models"
	"github.com/harperreed/bikey/internal/storage"
)

// Activate starts or resumes recording a ride.
func (m *Manager) Activate(ctx context.Context, id int64) (*models.Ride, error) {
	unlock := m.locks.Lock(id)
	r, err := m.liveRide(ctx, m.store, id)
	if err != nil {
		unlock()
		return nil, err
	}

	now := m.now()
	r.State = models.RideActive
	r.ActivatedAt = &now
	if r.FirstActivatedAt == nil {
		first := now
		r.FirstActivatedAt = &first
	}
	err = m.store.UpdateRide(ctx, r)
	unlock()
	if err != nil {
		return nil, fmt.Errorf("activate ride %d: %w", id, err)
	}

	m.logger.Info("ride activated", "ride", id)
	m.bus.Activated(id)
	return r, nil
}

// Pause stops recording a ride and folds the running stint into its duration.
// Pausing a missing ride only logs a warning; pausing a ride that is not
// recording leaves it unchanged.
func (m *Manager) Pause(ctx context.Context, id int64) (*models.Ride, error) {
	unlock := m.locks.Lock(id)
	r, paused, err := m.pauseLocked(ctx, m.store, id)
	unlock()
	if errors.Is(err, storage.ErrNotFound) {
		m.logger.Warn("pause of unknown ride ignored", "ride", id)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if paused {
		m.logger.Info("ride paused", "ride", id, "duration", r.Duration)
		m.bus.Paused(id)
	}
	return r, nil
}

// pauseLocked performs the pause while the caller holds the ride lock.
func (m *Manager) pauseLocked(ctx context.Context, s storage.Store, id int64) (*models.Ride, bool, error) {
	r, err := s.GetRide(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if !r.IsActive() || r.ActivatedAt == nil {
		return r, false, nil
	}

	r.Duration += m.now().Sub(*r.ActivatedAt)
	r.State = models.RidePaused
	r.ActivatedAt = nil
	if err := s.UpdateRide(ctx, r); err != nil {
		return nil, false, fmt.Errorf("pause ride %d: %w", id, err)
	}
	return r, true, nil
}

// stopAndPause stops collection for an active ride and pauses it.
func (m *Manager) stopAndPause(ctx context.Context, id int64) (bool, error) {
	if err := m.collector.StopCollecting(ctx, id); err != nil {
		return false, fmt.Errorf("stop collecting ride %d: %w", id, err)
	}
	_, paused, err := m.pauseLocked(ctx, m.store, id)
	return paused, err
}

// Delete marks rides DELETED and removes their log points. Active rides are
// stopped and paused first. When the current ride is among them, the pointer
// moves to the most recent remaining ride or is cleared.
func (m *Manager) Delete(ctx context.Context, ids ...int64) (int64, error) {
	ids = distinct(ids)
	if len(ids) == 0 {
		return 0, fmt.Errorf("%w: no rides to delete", storage.ErrInvalidArgument)
	}
	if ids[0] <= 0 {
		return 0, fmt.Errorf("%w: ride id %d", storage.ErrInvalidArgument, ids[0])
	}

	unlock := m.locks.LockAll(ids...)
	var paused []int64
	var deleted int64
	err := func() error {
		for _, id := range ids {
			r, err := m.store.GetRide(ctx, id)
			if errors.Is(err, storage.ErrNotFound) {
				m.logger.Warn("delete of unknown ride ignored", "ride", id)
				continue
			}
			if err != nil {
				return err
			}
			if !r.IsActive() {
				continue
			}
			ok, err := m.stopAndPause(ctx, id)
			if err != nil {
				return err
			}
			if ok {
				paused = append(paused, id)
			}
		}

		return m.store.Atomic(ctx, func(tx storage.Store) error {
			n, err := tx.SetRideState(ctx, models.RideDeleted, ids...)
			if err != nil {
				return fmt.Errorf("mark deleted: %w", err)
			}
			deleted = n
			if _, err := tx.DeleteLogs(ctx, ids...); err != nil {
				return fmt.Errorf("delete logs: %w", err)
			}
			return m.replaceCurrent(ctx, tx, ids)
		})
	}()
	unlock()

	for _, id := range paused {
		m.bus.Paused(id)
	}
	if err != nil {
		return 0, fmt.Errorf("delete rides %v: %w", ids, err)
	}
	m.logger.Info("rides deleted", "rides", ids, "count", deleted)
	return deleted, nil
}

// replaceCurrent repoints the current ride when it is one of removed.
func (m *Manager) replaceCurrent(ctx context.Context, tx storage.Store, removed []int64) error {
	current, ok, err := currentRideID(ctx, tx)
	if err != nil || !ok || !slices.Contains(removed, current) {
		return err
	}

	next, err := mostRecent(ctx, tx)
	if err != nil {
		return err
	}
	if next == nil {
		return tx.DeletePreference(ctx, storage.CurrentRideKey)
	}
	return tx.SetPreference(ctx, storage.CurrentRideKey, strconv.FormatInt(next.ID, 10))
}

func distinct(ids []int64) []int64 {
	out := slices.Clone(ids)
	slices.Sort(out)
	return slices.Compact(out)
}
