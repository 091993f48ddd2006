// ABOUTME: LogPoint, Segment and Sample models for recorded GPS/sensor data.
// ABOUTME: Column names the numeric fields addressable by log queries and aggregates.
package models

import (
	"time"
)

// Column is a numeric log field that can be filtered, ordered and aggregated.
type Column string

const (
	ColID              Column = "id"
	ColRecordedDate    Column = "recorded_date"
	ColLat             Column = "lat"
	ColLon             Column = "lon"
	ColElevation       Column = "ele"
	ColSegmentDuration Column = "log_duration"
	ColSegmentDistance Column = "log_distance"
	ColSpeed           Column = "speed"
	ColCadence         Column = "cadence"
	ColHeartRate       Column = "heart_rate"
)

// AllColumns returns all queryable log columns.
var AllColumns = []Column{
	ColID, ColRecordedDate, ColLat, ColLon, ColElevation,
	ColSegmentDuration, ColSegmentDistance, ColSpeed, ColCadence, ColHeartRate,
}

// IsValidColumn checks if a string names a queryable log column.
func IsValidColumn(s string) bool {
	for _, c := range AllColumns {
		if string(c) == s {
			return true
		}
	}
	return false
}

// Segment is the movement between a point and the one recorded before it.
type Segment struct {
	Duration time.Duration `json:"duration" yaml:"duration"`
	Distance float64       `json:"distance" yaml:"distance"` // meters
	Speed    float64       `json:"speed" yaml:"speed"`       // m/s
}

// LogPoint is one stored sample belonging to a ride.
type LogPoint struct {
	ID         int64     `json:"id" yaml:"id"`
	RideID     int64     `json:"ride_id" yaml:"ride_id"`
	RecordedAt time.Time `json:"recorded_at" yaml:"recorded_at"`
	Lat        float64   `json:"lat" yaml:"lat"`
	Lon        float64   `json:"lon" yaml:"lon"`
	Elevation  float64   `json:"ele" yaml:"ele"`
	Segment    *Segment  `json:"segment,omitempty" yaml:"segment,omitempty"`
	Cadence    *float64  `json:"cadence,omitempty" yaml:"cadence,omitempty"`
	HeartRate  *int      `json:"heart_rate,omitempty" yaml:"heart_rate,omitempty"`
}

// Value returns the numeric value of a column and whether it is present.
// Dates are expressed in Unix milliseconds and segment durations in milliseconds.
func (p *LogPoint) Value(c Column) (float64, bool) {
	switch c {
	case ColID:
		return float64(p.ID), true
	case ColRecordedDate:
		return float64(p.RecordedAt.UnixMilli()), true
	case ColLat:
		return p.Lat, true
	case ColLon:
		return p.Lon, true
	case ColElevation:
		return p.Elevation, true
	case ColSegmentDuration:
		if p.Segment == nil {
			return 0, false
		}
		return float64(p.Segment.Duration.Milliseconds()), true
	case ColSegmentDistance:
		if p.Segment == nil {
			return 0, false
		}
		return p.Segment.Distance, true
	case ColSpeed:
		if p.Segment == nil {
			return 0, false
		}
		return p.Segment.Speed, true
	case ColCadence:
		if p.Cadence == nil {
			return 0, false
		}
		return *p.Cadence, true
	case ColHeartRate:
		if p.HeartRate == nil {
			return 0, false
		}
		return float64(*p.HeartRate), true
	}
	return 0, false
}

// Sample returns the raw sample this point was recorded from.
func (p *LogPoint) Sample() Sample {
	return Sample{
		RecordedAt: p.RecordedAt,
		Lat:        p.Lat,
		Lon:        p.Lon,
		Elevation:  p.Elevation,
		Cadence:    p.Cadence,
		HeartRate:  p.HeartRate,
	}
}

// Sample is a raw reading delivered by the location and sensor collaborators.
type Sample struct {
	RecordedAt time.Time
	Lat        float64
	Lon        float64
	Elevation  float64
	Cadence    *float64
	HeartRate  *int
}

// NewSample creates a Sample at the given position.
func NewSample(at time.Time, lat, lon, ele float64) Sample {
	return Sample{RecordedAt: at, Lat: lat, Lon: lon, Elevation: ele}
}

// WithCadence sets the cadence in rpm.
func (s Sample) WithCadence(rpm float64) Sample {
	s.Cadence = &rpm
	return s
}

// WithHeartRate sets the heart rate in bpm.
func (s Sample) WithHeartRate(bpm int) Sample {
	s.HeartRate = &bpm
	return s
}
