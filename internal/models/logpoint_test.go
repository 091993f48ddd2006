// ABOUTME: Tests for LogPoint, Segment and Sample models.
// ABOUTME: Validates column extraction and sample builders.
package models

import (
	"testing"
	"time"
)

func TestLogPointValue(t *testing.T) {
	at := time.UnixMilli(1_700_000_000_000)
	cadence := 85.0
	hr := 142
	p := &LogPoint{
		ID:         7,
		RideID:     1,
		RecordedAt: at,
		Lat:        52.5,
		Lon:        13.4,
		Elevation:  34,
		Segment:    &Segment{Duration: 2 * time.Second, Distance: 12.5, Speed: 6.25},
		Cadence:    &cadence,
		HeartRate:  &hr,
	}

	tests := []struct {
		col  Column
		want float64
	}{
		{ColID, 7},
		{ColRecordedDate, 1_700_000_000_000},
		{ColLat, 52.5},
		{ColLon, 13.4},
		{ColElevation, 34},
		{ColSegmentDuration, 2000},
		{ColSegmentDistance, 12.5},
		{ColSpeed, 6.25},
		{ColCadence, 85},
		{ColHeartRate, 142},
	}

	for _, tt := range tests {
		t.Run(string(tt.col), func(t *testing.T) {
			got, ok := p.Value(tt.col)
			if !ok {
				t.Fatalf("Value(%s) reported absent", tt.col)
			}
			if got != tt.want {
				t.Errorf("Value(%s) = %v, want %v", tt.col, got, tt.want)
			}
		})
	}
}

func TestLogPointValueAbsent(t *testing.T) {
	p := &LogPoint{ID: 1, RecordedAt: time.Now()}

	for _, col := range []Column{ColSegmentDuration, ColSegmentDistance, ColSpeed, ColCadence, ColHeartRate} {
		if _, ok := p.Value(col); ok {
			t.Errorf("Value(%s) should be absent", col)
		}
	}
	if _, ok := p.Value(Column("bogus")); ok {
		t.Error("unknown column should be absent")
	}
}

func TestSampleBuilders(t *testing.T) {
	s := NewSample(time.Now(), 1, 2, 3).WithCadence(90).WithHeartRate(150)

	if s.Cadence == nil || *s.Cadence != 90 {
		t.Error("expected cadence 90")
	}
	if s.HeartRate == nil || *s.HeartRate != 150 {
		t.Error("expected heart rate 150")
	}

	p := &LogPoint{RecordedAt: s.RecordedAt, Lat: 1, Lon: 2, Elevation: 3, Cadence: s.Cadence, HeartRate: s.HeartRate}
	back := p.Sample()
	if back.Lat != 1 || back.Lon != 2 || back.Elevation != 3 || *back.HeartRate != 150 {
		t.Errorf("Sample() = %+v, want original sample", back)
	}
}

func TestIsValidColumn(t *testing.T) {
	if !IsValidColumn("speed") {
		t.Error("speed should be valid")
	}
	if IsValidColumn("velocity") {
		t.Error("velocity should be invalid")
	}
}
