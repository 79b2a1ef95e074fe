package sensor

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"activity-tracker/internal/analysis"
)

// ErrEmptyTrack is returned when a GPX file has no timestamped points
var ErrEmptyTrack = errors.New("track has no timestamped points")

type gpxPoint struct {
	Lat  float64   `xml:"lat,attr"`
	Lon  float64   `xml:"lon,attr"`
	Time time.Time `xml:"time"`
}

type gpxSegment struct {
	Points []gpxPoint `xml:"trkpt"`
}

type gpxTrack struct {
	Segments []gpxSegment `xml:"trkseg"`
}

type gpxFile struct {
	XMLName xml.Name   `xml:"gpx"`
	Tracks  []gpxTrack `xml:"trk"`
}

// LoadGPX reads every timestamped track point from a GPX file, in time order
func LoadGPX(filename string) ([]Fix, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("opening track: %w", err)
	}
	defer file.Close()

	return ParseGPX(file)
}

// ParseGPX parses GPX track points from r
func ParseGPX(r io.Reader) ([]Fix, error) {
	var doc gpxFile
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("parsing GPX: %w", err)
	}

	var fixes []Fix
	for _, trk := range doc.Tracks {
		for _, seg := range trk.Segments {
			for _, p := range seg.Points {
				if p.Time.IsZero() {
					continue
				}
				fixes = append(fixes, Fix{
					Point: analysis.GeoPoint{Latitude: p.Lat, Longitude: p.Lon},
					Time:  p.Time,
				})
			}
		}
	}

	if len(fixes) == 0 {
		return nil, ErrEmptyTrack
	}

	sort.SliceStable(fixes, func(i, j int) bool {
		return fixes[i].Time.Before(fixes[j].Time)
	})

	return fixes, nil
}
