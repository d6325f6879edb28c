package gps

import (
	"encoding/xml"
	"fmt"
	"os"
	"sync"
	"time"
)

// GPX represents the root GPX document structure
type GPX struct {
	XMLName xml.Name `xml:"gpx"`
	Version string   `xml:"version,attr"`
	Creator string   `xml:"creator,attr"`
	Xmlns   string   `xml:"xmlns,attr"`
	Track   Track    `xml:"trk"`
}

// Track represents a GPX track
type Track struct {
	Name         string       `xml:"name"`
	TrackSegment TrackSegment `xml:"trkseg"`
}

// TrackSegment represents a segment of a GPX track
type TrackSegment struct {
	TrackPoints []TrackPoint `xml:"trkpt"`
}

// TrackPoint is one decoded fix in a GPX track
type TrackPoint struct {
	Lat        float64   `xml:"lat,attr"`
	Lon        float64   `xml:"lon,attr"`
	Elevation  float64   `xml:"ele"`
	Time       time.Time `xml:"time"`
	Fix        string    `xml:"fix,omitempty"`
	Satellites int       `xml:"sat,omitempty"`
	HDOP       float64   `xml:"hdop,omitempty"`
}

// GPXWriter records the fix trail of a session to a GPX file
type GPXWriter struct {
	mu       sync.Mutex
	filename string
	gpx      *GPX
	file     *os.File
}

// NewGPXWriter creates a new GPX writer
func NewGPXWriter(filename string) (*GPXWriter, error) {
	file, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create GPX file %s: %w", filename, err)
	}

	gpx := &GPX{
		Version: "1.1",
		Creator: "go-gps-skyview",
		Xmlns:   "http://www.topografix.com/GPX/1/1",
		Track: Track{
			Name: "Receiver Track",
			TrackSegment: TrackSegment{
				TrackPoints: []TrackPoint{},
			},
		},
	}

	return &GPXWriter{
		filename: filename,
		gpx:      gpx,
		file:     file,
	}, nil
}

// AddFix appends a fix to the track. Fixes without a position (quality 0)
// are skipped.
func (w *GPXWriter) AddFix(fix FixRecord) bool {
	if fix.Quality == 0 {
		return false
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.gpx.Track.TrackSegment.TrackPoints = append(w.gpx.Track.TrackSegment.TrackPoints, TrackPoint{
		Lat:        fix.Latitude,
		Lon:        fix.Longitude,
		Elevation:  fix.Altitude,
		Time:       fix.Time.UTC(),
		Fix:        gpxFixType(fix.Quality),
		Satellites: fix.Satellites,
		HDOP:       fix.HDOP,
	})
	return true
}

// gpxFixType maps GGA quality onto the GPX fixType enumeration.
func gpxFixType(quality int) string {
	switch quality {
	case 2:
		return "dgps"
	case 3:
		return "pps"
	default:
		return "3d"
	}
}

// WriteToFile writes the current GPX data to the file
func (w *GPXWriter) WriteToFile() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.writeLocked()
}

func (w *GPXWriter) writeLocked() error {
	// Seek to the beginning of the file
	if _, err := w.file.Seek(0, 0); err != nil {
		return fmt.Errorf("failed to seek to beginning of file: %w", err)
	}

	// Truncate the file to remove any existing content
	if err := w.file.Truncate(0); err != nil {
		return fmt.Errorf("failed to truncate file: %w", err)
	}

	if _, err := w.file.WriteString(xml.Header); err != nil {
		return fmt.Errorf("failed to write XML header: %w", err)
	}

	encoder := xml.NewEncoder(w.file)
	encoder.Indent("", "  ")
	if err := encoder.Encode(w.gpx); err != nil {
		return fmt.Errorf("failed to encode GPX data: %w", err)
	}

	// Flush to ensure data is written
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync file: %w", err)
	}
	return nil
}

// Close writes the final track and closes the file
func (w *GPXWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}
	err := w.writeLocked()
	if cerr := w.file.Close(); err == nil {
		err = cerr
	}
	w.file = nil
	return err
}

// TrackPointCount returns the number of track points currently stored
func (w *GPXWriter) TrackPointCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.gpx.Track.TrackSegment.TrackPoints)
}
