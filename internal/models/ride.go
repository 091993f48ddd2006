// ABOUTME: Ride model and RideState lifecycle enum for bicycle ride tracking.
// ABOUTME: Rides cache duration and distance derived from their activation history and logs.
package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RideState is the lifecycle state of a ride.
type RideState string

const (
	RideCreated RideState = "CREATED"
	RideActive  RideState = "ACTIVE"
	RidePaused  RideState = "PAUSED"
	RideDeleted RideState = "DELETED"
)

// AllRideStates returns all valid ride states.
var AllRideStates = []RideState{RideCreated, RideActive, RidePaused, RideDeleted}

// IsValidRideState checks if a string is a valid ride state.
func IsValidRideState(s string) bool {
	for _, st := range AllRideStates {
		if string(st) == s {
			return true
		}
	}
	return false
}

// DisplayDateLayout is used when a ride has no name of its own.
const DisplayDateLayout = "Mon, Jan 2 2006 15:04"

// Ride is a single recorded bicycle trip.
type Ride struct {
	ID               int64      `json:"id" yaml:"id"`
	UUID             uuid.UUID  `json:"uuid" yaml:"uuid"`
	Name             *string    `json:"name,omitempty" yaml:"name,omitempty"`
	CreatedAt        time.Time  `json:"created_at" yaml:"created_at"`
	State            RideState  `json:"state" yaml:"state"`
	ActivatedAt      *time.Time `json:"activated_at,omitempty" yaml:"activated_at,omitempty"`
	FirstActivatedAt *time.Time `json:"first_activated_at,omitempty" yaml:"first_activated_at,omitempty"`

	// Duration is the accumulated active time, refreshed on every pause.
	Duration time.Duration `json:"duration" yaml:"duration"`
	// Distance in meters; always the sum of the ride's segment distances.
	Distance float64 `json:"distance" yaml:"distance"`
}

// NewRide creates a new Ride in the CREATED state with a generated UUID.
func NewRide(now time.Time) *Ride {
	return &Ride{
		UUID:      uuid.New(),
		CreatedAt: now,
		State:     RideCreated,
	}
}

// WithName sets the ride name. An empty name clears it.
func (r *Ride) WithName(name string) *Ride {
	if name == "" {
		r.Name = nil
		return r
	}
	r.Name = &name
	return r
}

// DisplayName returns a human label for the ride.
func (r *Ride) DisplayName() string {
	date := r.CreatedAt.Local().Format(DisplayDateLayout)
	if r.Name == nil || *r.Name == "" {
		return date
	}
	return fmt.Sprintf("%s (%s)", *r.Name, date)
}

// IsActive reports whether the ride is currently recording.
func (r *Ride) IsActive() bool {
	return r.State == RideActive
}

// IsDeleted reports whether the ride reached its terminal state.
func (r *Ride) IsDeleted() bool {
	return r.State == RideDeleted
}

// ElapsedAt returns the accumulated duration including the running stint, if any.
func (r *Ride) ElapsedAt(now time.Time) time.Duration {
	if r.State == RideActive && r.ActivatedAt != nil {
		return r.Duration + now.Sub(*r.ActivatedAt)
	}
	return r.Duration
}
