// ABOUTME: Tests for haversine distance and segment derivation.
// ABOUTME: Covers threshold handling, missing previous samples and clock skew.
package geo

import (
	"math"
	"testing"
	"time"

	"github.com/harperreed/bikey/internal/models"
)

func TestDistance(t *testing.T) {
	tests := []struct {
		name                   string
		lat1, lon1, lat2, lon2 float64
		want                   float64
		tolerance              float64
	}{
		{"same point", 52.52, 13.40, 52.52, 13.40, 0, 1e-9},
		{"one degree latitude", 0, 0, 1, 0, 111195, 1},
		{"berlin to potsdam", 52.5200, 13.4050, 52.3906, 13.0645, 27000, 1500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Distance(tt.lat1, tt.lon1, tt.lat2, tt.lon2)
			if math.Abs(got-tt.want) > tt.tolerance {
				t.Errorf("Distance() = %f, want %f ± %f", got, tt.want, tt.tolerance)
			}
		})
	}
}

func TestSegmentBetweenNoPrevious(t *testing.T) {
	cur := models.NewSample(time.Now(), 1, 1, 0)
	if seg := SegmentBetween(nil, cur, SpeedMinThreshold); seg != nil {
		t.Errorf("expected nil segment without previous sample, got %+v", seg)
	}
}

func TestSegmentBetween(t *testing.T) {
	start := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	prev := models.NewSample(start, 0, 0, 0)
	// 0.001 degrees of latitude is roughly 111 meters.
	cur := models.NewSample(start.Add(20*time.Second), 0.001, 0, 0)

	seg := SegmentBetween(&prev, cur, SpeedMinThreshold)
	if seg == nil {
		t.Fatal("expected a segment")
	}
	if seg.Duration != 20*time.Second {
		t.Errorf("Duration = %v, want 20s", seg.Duration)
	}
	if math.Abs(seg.Distance-111.195) > 0.01 {
		t.Errorf("Distance = %f, want ~111.195", seg.Distance)
	}
	if math.Abs(seg.Speed-seg.Distance/20) > 1e-9 {
		t.Errorf("Speed = %f, want distance/duration", seg.Speed)
	}
}

func TestSegmentBetweenBelowThreshold(t *testing.T) {
	start := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	prev := models.NewSample(start, 0, 0, 0)
	cur := models.NewSample(start.Add(time.Minute), 0.00001, 0, 0)

	if seg := SegmentBetween(&prev, cur, SpeedMinThreshold); seg != nil {
		t.Errorf("expected nil segment below threshold, got %+v", seg)
	}
}

func TestSegmentBetweenNonAdvancingClock(t *testing.T) {
	start := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	prev := models.NewSample(start, 0, 0, 0)

	for _, at := range []time.Time{start, start.Add(-time.Second)} {
		cur := models.NewSample(at, 0.01, 0, 0)
		if seg := SegmentBetween(&prev, cur, SpeedMinThreshold); seg != nil {
			t.Errorf("expected nil segment for recorded time %v, got %+v", at, seg)
		}
	}
}

func TestKilometersPerHour(t *testing.T) {
	if got := KilometersPerHour(10); math.Abs(got-36) > 1e-9 {
		t.Errorf("KilometersPerHour(10) = %f, want 36", got)
	}
}
