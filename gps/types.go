package gps

import (
	"fmt"
	"strings"
	"time"
)

// Constellation identifies a satellite navigation system.
type Constellation int

const (
	ConstellationUnknown Constellation = iota
	ConstellationGPS
	ConstellationSBAS
	ConstellationGLONASS
	ConstellationGalileo
	ConstellationBeiDou
)

// Constellations lists the known systems in presentation order.
var Constellations = []Constellation{
	ConstellationGPS,
	ConstellationSBAS,
	ConstellationGLONASS,
	ConstellationGalileo,
	ConstellationBeiDou,
}

var constellationNames = map[Constellation]string{
	ConstellationUnknown: "Unknown",
	ConstellationGPS:     "GPS",
	ConstellationSBAS:    "SBAS",
	ConstellationGLONASS: "GLONASS",
	ConstellationGalileo: "Galileo",
	ConstellationBeiDou:  "BeiDou",
}

func (c Constellation) String() string {
	if name, ok := constellationNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Constellation(%d)", int(c))
}

// MarshalText implements encoding.TextMarshaler so constellations can key JSON maps.
func (c Constellation) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Constellation) UnmarshalText(text []byte) error {
	parsed, err := ParseConstellation(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ParseConstellation maps a case-insensitive name onto a Constellation.
func ParseConstellation(s string) (Constellation, error) {
	for c, name := range constellationNames {
		if strings.EqualFold(s, name) {
			return c, nil
		}
	}
	return ConstellationUnknown, fmt.Errorf("%w: %q", ErrUnknownConstellation, s)
}

// Health is the receiver-reported status of a satellite.
type Health int

const (
	HealthUnknown Health = iota
	HealthHealthy
	HealthUnhealthy
)

func (h Health) String() string {
	switch h {
	case HealthHealthy:
		return "healthy"
	case HealthUnhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (h Health) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (h *Health) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "healthy":
		*h = HealthHealthy
	case "unhealthy":
		*h = HealthUnhealthy
	case "unknown", "":
		*h = HealthUnknown
	default:
		return fmt.Errorf("unknown health %q", text)
	}
	return nil
}

// SatelliteRecord is one satellite as seen from the observer. Signal is nil
// when neither the receiver nor the estimator supplied a value.
type SatelliteRecord struct {
	ID            int           `json:"id"`
	Constellation Constellation `json:"constellation"`
	Elevation     float64       `json:"elevation"` // degrees, [-90, 90]
	Azimuth       float64       `json:"azimuth"`   // degrees, [0, 360)
	Signal        *float64      `json:"signal,omitempty"`
	Health        Health        `json:"health"`
}

// HasSignal reports whether a signal strength is present.
func (r SatelliteRecord) HasSignal() bool {
	return r.Signal != nil
}

// FixRecord is a decoded position fix. Fields the sentence omits are zero.
type FixRecord struct {
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	Altitude   float64   `json:"altitude"` // meters
	Quality    int       `json:"quality"`
	Satellites int       `json:"satellites"`
	HDOP       float64   `json:"hdop"`
	Time       time.Time `json:"time,omitempty"`
}

// TrackSample is one (azimuth, elevation) point in a satellite's history.
type TrackSample struct {
	Azimuth   float64   `json:"azimuth"`
	Elevation float64   `json:"elevation"`
	Time      time.Time `json:"time"`
}

// Snapshot is a read-only copy of the tracker state.
type Snapshot struct {
	Satellites map[Constellation][]SatelliteRecord     `json:"satellites"`
	History    map[Constellation]map[int][]TrackSample `json:"history"`
	Fix        *FixRecord                              `json:"fix,omitempty"`
	Filtered   int                                     `json:"filtered"`
	Updated    time.Time                               `json:"updated"`
}

// Count returns the number of satellites across all constellations.
func (s Snapshot) Count() int {
	n := 0
	for _, sats := range s.Satellites {
		n += len(sats)
	}
	return n
}

func float64Ptr(v float64) *float64 {
	return &v
}
