// ABOUTME: Log point insert, query, aggregate and bulk operations for SQLite storage.
// ABOUTME: Segment fields are stored as nullable columns written or left NULL together.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/harperreed/bikey/internal/models"
)

const logColumns = `id, ride_id, recorded_date, lat, lon, ele, log_duration, log_distance, speed, cadence, heart_rate`

// InsertLog stores a new log point and assigns its ID.
func (s *sqlStore) InsertLog(ctx context.Context, p *models.LogPoint) error {
	var segDuration, segDistance, speed any
	if p.Segment != nil {
		segDuration = p.Segment.Duration.Milliseconds()
		segDistance = p.Segment.Distance
		speed = p.Segment.Speed
	}

	query := `
		INSERT INTO logs (ride_id, recorded_date, lat, lon, ele, log_duration, log_distance, speed, cadence, heart_rate)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	res, err := s.q.ExecContext(ctx, query,
		p.RideID,
		p.RecordedAt.UnixMilli(),
		p.Lat,
		p.Lon,
		p.Elevation,
		segDuration,
		segDistance,
		speed,
		p.Cadence,
		p.HeartRate,
	)
	if err != nil {
		return fmt.Errorf("insert log: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert log: %w", err)
	}
	p.ID = id
	return nil
}

// QueryLogs retrieves log points matching the query.
func (s *sqlStore) QueryLogs(ctx context.Context, q LogQuery) ([]*models.LogPoint, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	where, args := q.Filter.whereSQL()
	query := `SELECT ` + logColumns + ` FROM logs WHERE ` + where

	dir := "ASC"
	if q.Desc {
		dir = "DESC"
	}
	query += fmt.Sprintf(" ORDER BY %s %s, id ASC", q.orderColumn(), dir)

	switch {
	case q.Limit > 0:
		query += " LIMIT ? OFFSET ?"
		args = append(args, q.Limit, q.Offset)
	case q.Offset > 0:
		query += " LIMIT -1 OFFSET ?"
		args = append(args, q.Offset)
	}

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query logs: %w", err)
	}
	defer rows.Close()

	var points []*models.LogPoint
	for rows.Next() {
		p, err := scanLog(rows)
		if err != nil {
			return nil, fmt.Errorf("scan log: %w", err)
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

// Aggregate computes op over col for the matching log points.
func (s *sqlStore) Aggregate(ctx context.Context, op AggOp, col models.Column, f Filter) (*float64, error) {
	if !op.valid() {
		return nil, fmt.Errorf("%w: unknown aggregate %q", ErrInvalidArgument, op)
	}
	if !models.IsValidColumn(string(col)) {
		return nil, fmt.Errorf("%w: unknown column %q", ErrInvalidArgument, col)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}

	where, args := f.whereSQL()
	query := fmt.Sprintf("SELECT %s(%s) FROM logs WHERE %s", op, col, where)

	var v sql.NullFloat64
	if err := s.q.QueryRowContext(ctx, query, args...).Scan(&v); err != nil {
		return nil, fmt.Errorf("aggregate %s(%s): %w", op, col, err)
	}
	if !v.Valid {
		return nil, nil
	}
	return &v.Float64, nil
}

// LastLog returns the highest-ID point of the ride, or nil when it has none.
func (s *sqlStore) LastLog(ctx context.Context, rideID int64) (*models.LogPoint, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+logColumns+` FROM logs WHERE ride_id = ? ORDER BY id DESC LIMIT 1`, rideID)
	p, err := scanLog(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("last log: %w", err)
	}
	return p, nil
}

// ReassignLogs moves all points of one ride to another with a single statement.
func (s *sqlStore) ReassignLogs(ctx context.Context, fromRideID, toRideID int64) (int64, error) {
	res, err := s.q.ExecContext(ctx, "UPDATE logs SET ride_id = ? WHERE ride_id = ?", toRideID, fromRideID)
	if err != nil {
		return 0, fmt.Errorf("reassign logs: %w", err)
	}
	return res.RowsAffected()
}

// DeleteLogs removes all points owned by the listed rides.
func (s *sqlStore) DeleteLogs(ctx context.Context, rideIDs ...int64) (int64, error) {
	if len(rideIDs) == 0 {
		return 0, nil
	}

	args := make([]any, 0, len(rideIDs))
	for _, id := range rideIDs {
		args = append(args, id)
	}
	res, err := s.q.ExecContext(ctx, "DELETE FROM logs WHERE ride_id IN ("+placeholders(len(rideIDs))+")", args...)
	if err != nil {
		return 0, fmt.Errorf("delete logs: %w", err)
	}
	return res.RowsAffected()
}

func scanLog(row rowScanner) (*models.LogPoint, error) {
	var (
		p           models.LogPoint
		recorded    int64
		segDuration sql.NullInt64
		segDistance sql.NullFloat64
		speed       sql.NullFloat64
		cadence     sql.NullFloat64
		heartRate   sql.NullInt64
	)

	err := row.Scan(&p.ID, &p.RideID, &recorded, &p.Lat, &p.Lon, &p.Elevation,
		&segDuration, &segDistance, &speed, &cadence, &heartRate)
	if err != nil {
		return nil, err
	}

	p.RecordedAt = time.UnixMilli(recorded)
	if segDuration.Valid && segDistance.Valid && speed.Valid {
		p.Segment = &models.Segment{
			Duration: time.Duration(segDuration.Int64) * time.Millisecond,
			Distance: segDistance.Float64,
			Speed:    speed.Float64,
		}
	}
	if cadence.Valid {
		p.Cadence = &cadence.Float64
	}
	if heartRate.Valid {
		hr := int(heartRate.Int64)
		p.HeartRate = &hr
	}
	return &p, nil
}
