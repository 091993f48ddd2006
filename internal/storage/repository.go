// ABOUTME: Storage interfaces for rides, log points and preferences.
// ABOUTME: Defines the Store contract shared by the SQLite and Badger backends.
package storage

import (
	"context"
	"errors"

	"github.com/harperreed/bikey/internal/models"
)

var (
	// ErrNotFound is returned when a ride or record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument is returned for missing identifiers or illegal requests.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrTooLarge is returned when a unit of work exceeds what the backend can commit at once.
	ErrTooLarge = errors.New("unit of work too large")
)

// RideFilter restricts ListRides results.
type RideFilter struct {
	States []models.RideState
	IDs    []int64
	Limit  int
}

// RideStore persists rides.
type RideStore interface {
	// CreateRide stores a new ride and assigns its ID.
	CreateRide(ctx context.Context, r *models.Ride) error
	// GetRide returns the ride or ErrNotFound.
	GetRide(ctx context.Context, id int64) (*models.Ride, error)
	// ListRides returns rides ordered by CreatedAt descending.
	ListRides(ctx context.Context, f RideFilter) ([]*models.Ride, error)
	// UpdateRide overwrites every mutable field of an existing ride.
	UpdateRide(ctx context.Context, r *models.Ride) error
	// SetRideState sets the state of all listed rides and reports how many existed.
	SetRideState(ctx context.Context, state models.RideState, ids ...int64) (int64, error)
	// DeleteRide removes the ride record itself.
	DeleteRide(ctx context.Context, id int64) error
}

// LogStore persists log points.
type LogStore interface {
	// InsertLog stores a new point and assigns its ID.
	InsertLog(ctx context.Context, p *models.LogPoint) error
	// QueryLogs returns the points matching q.
	QueryLogs(ctx context.Context, q LogQuery) ([]*models.LogPoint, error)
	// Aggregate computes op over col for points matching f; nil means no data.
	Aggregate(ctx context.Context, op AggOp, col models.Column, f Filter) (*float64, error)
	// LastLog returns the most recently inserted point of a ride, or nil.
	LastLog(ctx context.Context, rideID int64) (*models.LogPoint, error)
	// ReassignLogs moves every point of one ride to another in a single atomic step.
	ReassignLogs(ctx context.Context, fromRideID, toRideID int64) (int64, error)
	// DeleteLogs removes every point owned by the listed rides.
	DeleteLogs(ctx context.Context, rideIDs ...int64) (int64, error)
}

// Preferences is a small key-value store for settings such as the current ride.
type Preferences interface {
	GetPreference(ctx context.Context, key string) (string, bool, error)
	SetPreference(ctx context.Context, key, value string) error
	DeletePreference(ctx context.Context, key string) error
}

// Store is the full storage contract used by the engine.
type Store interface {
	RideStore
	LogStore
	Preferences

	// Atomic runs fn against a Store view whose writes commit together or not at all.
	Atomic(ctx context.Context, fn func(Store) error) error
}

// Backend is a Store that owns resources.
type Backend interface {
	Store
	Close() error
}
