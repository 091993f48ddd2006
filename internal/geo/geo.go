// ABOUTME: Great-circle distance and segment derivation between consecutive samples.
// ABOUTME: Points slower than the moving threshold get no segment at all.
package geo

import (
	"math"
	"time"

	"github.com/harperreed/bikey/internal/models"
)

// SpeedMinThreshold is the speed (m/s) below which a segment counts as standing still.
const SpeedMinThreshold = 1.0

const earthRadius = 6371000 // meters

// Distance returns the haversine distance in meters between two coordinates.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	deltaLat := (lat2 - lat1) * math.Pi / 180
	deltaLon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(deltaLon/2)*math.Sin(deltaLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadius * c
}

// SampleDistance returns the distance in meters between two samples.
func SampleDistance(from, to models.Sample) float64 {
	return Distance(from.Lat, from.Lon, to.Lat, to.Lon)
}

// SegmentBetween derives the movement from prev to cur.
// It returns nil when there is no previous sample, when time did not advance,
// or when the speed is below threshold.
func SegmentBetween(prev *models.Sample, cur models.Sample, threshold float64) *models.Segment {
	if prev == nil {
		return nil
	}

	duration := cur.RecordedAt.Sub(prev.RecordedAt).Truncate(time.Millisecond)
	if duration <= 0 {
		return nil
	}

	distance := SampleDistance(*prev, cur)
	speed := distance / duration.Seconds()
	if speed < threshold {
		return nil
	}

	return &models.Segment{
		Duration: duration,
		Distance: distance,
		Speed:    speed,
	}
}

// KilometersPerHour converts a speed in m/s to km/h.
func KilometersPerHour(mps float64) float64 {
	return mps * 3.6
}
