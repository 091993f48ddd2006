// ABOUTME: Reads GPX tracks into ride samples and writes recorded rides back out as GPX.
// ABOUTME: Heart rate and cadence travel in Garmin TrackPointExtension blocks.
package gpx

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/harperreed/bikey/internal/models"
)

// Parse reads a GPX file.
func Parse(filename string) (*GPX, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	return ParseReader(file)
}

// ParseReader decodes a GPX document.
func ParseReader(r io.Reader) (*GPX, error) {
	var doc GPX
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse GPX: %w", err)
	}
	if doc.Version == "" {
		doc.Version = "1.1"
	}
	return &doc, nil
}

// Write encodes the document with an XML header.
func (g *GPX) Write(w io.Writer) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}

	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(g); err != nil {
		return fmt.Errorf("failed to encode GPX: %w", err)
	}
	return enc.Close()
}

// FlattenPoints returns every point of every track and segment in document order.
func (g *GPX) FlattenPoints() []Point {
	var points []Point
	for _, track := range g.Tracks {
		for _, seg := range track.Segments {
			points = append(points, seg.Points...)
		}
	}
	return points
}

// Name returns the first non-empty track or metadata name.
func (g *GPX) Name() string {
	for _, track := range g.Tracks {
		if track.Name != "" {
			return track.Name
		}
	}
	if g.Metadata != nil {
		return g.Metadata.Name
	}
	return ""
}

// Samples converts the track to ride samples. Points without a timestamp
// cannot be placed on the ride timeline and are counted in skipped.
func (g *GPX) Samples() (samples []models.Sample, skipped int) {
	for _, p := range g.FlattenPoints() {
		if p.Time.IsZero() {
			skipped++
			continue
		}
		s := models.NewSample(p.Time, p.Lat, p.Lon, p.Elevation)
		hr, cad := p.Extensions.sensors()
		s.HeartRate = hr
		s.Cadence = cad
		samples = append(samples, s)
	}
	return samples, skipped
}

type trackPointExtension struct {
	HeartRate *int     `xml:"TrackPointExtension>hr"`
	Cadence   *float64 `xml:"TrackPointExtension>cad"`
}

// sensors extracts heart rate and cadence from a TrackPointExtension block.
func (r RawXML) sensors() (*int, *float64) {
	if len(r) == 0 {
		return nil, nil
	}
	doc := make([]byte, 0, len(r)+25)
	doc = append(doc, "<extensions>"...)
	doc = append(doc, r...)
	doc = append(doc, "</extensions>"...)

	var ext trackPointExtension
	if err := xml.Unmarshal(doc, &ext); err != nil {
		return nil, nil
	}
	return ext.HeartRate, ext.Cadence
}

func sensorXML(hr *int, cad *float64) RawXML {
	if hr == nil && cad == nil {
		return nil
	}
	var b bytes.Buffer
	b.WriteString("<gpxtpx:TrackPointExtension>")
	if hr != nil {
		b.WriteString("<gpxtpx:hr>" + strconv.Itoa(*hr) + "</gpxtpx:hr>")
	}
	if cad != nil {
		b.WriteString("<gpxtpx:cad>" + strconv.FormatFloat(*cad, 'f', -1, 64) + "</gpxtpx:cad>")
	}
	b.WriteString("</gpxtpx:TrackPointExtension>")
	return b.Bytes()
}

// FromRide builds a single-track document from a ride and its points.
func FromRide(r *models.Ride, points []*models.LogPoint, creator string) *GPX {
	seg := TrackSegment{Points: make([]Point, 0, len(points))}
	for _, lp := range points {
		seg.Points = append(seg.Points, Point{
			Lat:        lp.Lat,
			Lon:        lp.Lon,
			Elevation:  lp.Elevation,
			Time:       lp.RecordedAt.UTC(),
			Extensions: sensorXML(lp.HeartRate, lp.Cadence),
		})
	}

	created := r.CreatedAt.UTC()
	return &GPX{
		Version:     "1.1",
		Creator:     creator,
		XMLNS:       NamespaceGPX,
		XMLNSGPXTPX: NamespaceTPX,
		Metadata:    &Metadata{Name: r.DisplayName(), Time: &created},
		Tracks: []Track{{
			Name:     r.DisplayName(),
			Type:     "cycling",
			Segments: []TrackSegment{seg},
		}},
	}
}

// Recorder stores samples for a ride.
type Recorder interface {
	Record(ctx context.Context, rideID int64, sample models.Sample) (*models.LogPoint, error)
}

// ImportSummary reports what an import stored.
type ImportSummary struct {
	Points  int
	Skipped int
}

// Import records every timestamped point of g into the ride in document order.
func Import(ctx context.Context, rec Recorder, rideID int64, g *GPX) (*ImportSummary, error) {
	samples, skipped := g.Samples()
	summary := &ImportSummary{Skipped: skipped}
	for _, s := range samples {
		if _, err := rec.Record(ctx, rideID, s); err != nil {
			return summary, fmt.Errorf("record point %d: %w", summary.Points+1, err)
		}
		summary.Points++
	}
	return summary, nil
}
