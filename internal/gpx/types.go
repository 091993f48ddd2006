// ABOUTME: GPX 1.1 document model used to import and export ride tracks.
// ABOUTME: Extension blocks are kept as raw XML so other tools' data survives a round trip.
package gpx

import (
	"encoding/xml"
	"time"
)

// Namespaces written on exported documents.
const (
	NamespaceGPX = "http://www.topografix.com/GPX/1/1"
	NamespaceTPX = "http://www.garmin.com/xmlschemas/TrackPointExtension/v1"
)

// RawXML holds the inner XML of an extensions element verbatim.
type RawXML []byte

func (r RawXML) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	if len(r) == 0 {
		return nil
	}

	type inner struct {
		Content string `xml:",innerxml"`
	}
	return e.EncodeElement(inner{Content: string(r)}, start)
}

func (r *RawXML) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	type inner struct {
		Content string `xml:",innerxml"`
	}

	var data inner
	if err := d.DecodeElement(&data, &start); err != nil {
		return err
	}
	if len(data.Content) == 0 {
		*r = nil
		return nil
	}
	*r = append((*r)[:0], data.Content...)
	return nil
}

// Point is a single track point.
type Point struct {
	Lat        float64   `xml:"lat,attr"`
	Lon        float64   `xml:"lon,attr"`
	Elevation  float64   `xml:"ele,omitempty"`
	Time       time.Time `xml:"time"`
	Extensions RawXML    `xml:"extensions,omitempty"`
}

// TrackSegment is a continuous run of points.
type TrackSegment struct {
	Points []Point `xml:"trkpt"`
}

// Track is a named list of segments.
type Track struct {
	Name     string         `xml:"name,omitempty"`
	Type     string         `xml:"type,omitempty"`
	Segments []TrackSegment `xml:"trkseg"`
}

// Metadata describes the document.
type Metadata struct {
	Name string     `xml:"name,omitempty"`
	Time *time.Time `xml:"time,omitempty"`
}

// GPX is the document root.
type GPX struct {
	XMLName     xml.Name  `xml:"gpx"`
	Version     string    `xml:"version,attr"`
	Creator     string    `xml:"creator,attr"`
	XMLNS       string    `xml:"xmlns,attr,omitempty"`
	XMLNSGPXTPX string    `xml:"xmlns:gpxtpx,attr,omitempty"`
	Metadata    *Metadata `xml:"metadata,omitempty"`
	Tracks      []Track   `xml:"trk"`
}
