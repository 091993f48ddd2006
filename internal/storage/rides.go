// ABOUTME: Ride CRUD operations for SQLite storage.
// ABOUTME: Dates are stored as Unix milliseconds and durations as milliseconds.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/bikey/internal/models"
)

const rideColumns = `id, uuid, name, created_date, state, activated_date, first_activated_date, duration, distance`

// CreateRide stores a new ride in the database and assigns its ID.
func (s *sqlStore) CreateRide(ctx context.Context, r *models.Ride) error {
	query := `
		INSERT INTO rides (uuid, name, created_date, state, activated_date, first_activated_date, duration, distance)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	res, err := s.q.ExecContext(ctx, query,
		r.UUID.String(),
		r.Name,
		r.CreatedAt.UnixMilli(),
		string(r.State),
		millisOrNil(r.ActivatedAt),
		millisOrNil(r.FirstActivatedAt),
		r.Duration.Milliseconds(),
		r.Distance,
	)
	if err != nil {
		return fmt.Errorf("create ride: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("create ride: %w", err)
	}
	r.ID = id
	return nil
}

// GetRide retrieves a ride by ID.
func (s *sqlStore) GetRide(ctx context.Context, id int64) (*models.Ride, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+rideColumns+` FROM rides WHERE id = ?`, id)
	r, err := scanRide(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("ride %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get ride: %w", err)
	}
	return r, nil
}

// ListRides retrieves rides matching the filter, most recently created first.
func (s *sqlStore) ListRides(ctx context.Context, f RideFilter) ([]*models.Ride, error) {
	var clauses []string
	var args []any

	if len(f.States) > 0 {
		clauses = append(clauses, "state IN ("+placeholders(len(f.States))+")")
		for _, st := range f.States {
			args = append(args, string(st))
		}
	}
	if len(f.IDs) > 0 {
		clauses = append(clauses, "id IN ("+placeholders(len(f.IDs))+")")
		for _, id := range f.IDs {
			args = append(args, id)
		}
	}

	query := `SELECT ` + rideColumns + ` FROM rides`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_date DESC, id DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list rides: %w", err)
	}
	defer rows.Close()

	var rides []*models.Ride
	for rows.Next() {
		r, err := scanRide(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ride: %w", err)
		}
		rides = append(rides, r)
	}
	return rides, rows.Err()
}

// UpdateRide overwrites the mutable fields of a ride.
func (s *sqlStore) UpdateRide(ctx context.Context, r *models.Ride) error {
	query := `
		UPDATE rides
		SET name = ?, state = ?, activated_date = ?, first_activated_date = ?, duration = ?, distance = ?
		WHERE id = ?
	`
	res, err := s.q.ExecContext(ctx, query,
		r.Name,
		string(r.State),
		millisOrNil(r.ActivatedAt),
		millisOrNil(r.FirstActivatedAt),
		r.Duration.Milliseconds(),
		r.Distance,
		r.ID,
	)
	if err != nil {
		return fmt.Errorf("update ride: %w", err)
	}
	return requireAffected(res, r.ID)
}

// SetRideState sets the state of the listed rides.
func (s *sqlStore) SetRideState(ctx context.Context, state models.RideState, ids ...int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	args := []any{string(state)}
	for _, id := range ids {
		args = append(args, id)
	}
	res, err := s.q.ExecContext(ctx, `UPDATE rides SET state = ? WHERE id IN (`+placeholders(len(ids))+`)`, args...)
	if err != nil {
		return 0, fmt.Errorf("set ride state: %w", err)
	}
	return res.RowsAffected()
}

// DeleteRide removes the ride row.
func (s *sqlStore) DeleteRide(ctx context.Context, id int64) error {
	res, err := s.q.ExecContext(ctx, "DELETE FROM rides WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete ride: %w", err)
	}
	return requireAffected(res, id)
}

func requireAffected(res sql.Result, id int64) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("ride %d: %w", id, ErrNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRide(row rowScanner) (*models.Ride, error) {
	var (
		r             models.Ride
		uuidStr       string
		name          sql.NullString
		created       int64
		state         string
		activated     sql.NullInt64
		firstActive   sql.NullInt64
		durationMilli int64
	)

	if err := row.Scan(&r.ID, &uuidStr, &name, &created, &state, &activated, &firstActive, &durationMilli, &r.Distance); err != nil {
		return nil, err
	}

	id, err := uuid.Parse(uuidStr)
	if err != nil {
		return nil, fmt.Errorf("parse uuid %q: %w", uuidStr, err)
	}
	r.UUID = id
	if name.Valid {
		r.Name = &name.String
	}
	r.CreatedAt = time.UnixMilli(created)
	r.State = models.RideState(state)
	r.ActivatedAt = timeOrNil(activated)
	r.FirstActivatedAt = timeOrNil(firstActive)
	r.Duration = time.Duration(durationMilli) * time.Millisecond
	return &r, nil
}

func millisOrNil(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UnixMilli()
}

func timeOrNil(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.UnixMilli(v.Int64)
	return &t
}
