package orbit

import (
	"fmt"
	"math"
	"strings"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"
)

const (
	tleLineLength = 69
	kmToM         = 1000.0
)

// TLEPropagator propagates a two-line element set with SGP4. The
// go-satellite model state is copied on every call, so a TLEPropagator is
// safe for concurrent use.
type TLEPropagator struct {
	sat     satellite.Satellite
	catalog string
}

// NewTLEPropagator parses a two-line element set.
//
// The lines are checked before they reach go-satellite, which calls
// log.Fatal on malformed input.
func NewTLEPropagator(line1, line2 string) (*TLEPropagator, error) {
	line1 = strings.TrimSpace(line1)
	line2 = strings.TrimSpace(line2)
	if err := validateTLELines(line1, line2); err != nil {
		return nil, err
	}

	sat := satellite.TLEToSat(line1, line2, satellite.GravityWGS84)
	if sat.Error != 0 {
		return nil, fmt.Errorf("%w: sgp4 init code=%d %s", ErrInvalidTLE, sat.Error, sat.ErrorStr)
	}
	return &TLEPropagator{sat: sat, catalog: strings.TrimSpace(line1[2:7])}, nil
}

func validateTLELines(line1, line2 string) error {
	if len(line1) != tleLineLength {
		return fmt.Errorf("%w: line 1 length %d, expected %d", ErrInvalidTLE, len(line1), tleLineLength)
	}
	if len(line2) != tleLineLength {
		return fmt.Errorf("%w: line 2 length %d, expected %d", ErrInvalidTLE, len(line2), tleLineLength)
	}
	if line1[0] != '1' || line2[0] != '2' {
		return fmt.Errorf("%w: lines must start with '1' and '2'", ErrInvalidTLE)
	}
	if line1[2:7] != line2[2:7] {
		return fmt.Errorf("%w: catalog number mismatch %q != %q", ErrInvalidTLE, line1[2:7], line2[2:7])
	}
	return nil
}

// Catalog returns the NORAD catalog number from line 1.
func (p *TLEPropagator) Catalog() string {
	return p.catalog
}

// Position returns the Earth-fixed position at t in meters.
func (p *TLEPropagator) Position(t time.Time) (ECEF, error) {
	t = t.UTC()
	year, month, day := t.Date()
	hour, min, sec := t.Clock()

	eci, _ := satellite.Propagate(p.sat, year, int(month), day, hour, min, sec)
	if math.IsNaN(eci.X) || math.IsNaN(eci.Y) || math.IsNaN(eci.Z) ||
		math.IsInf(eci.X, 0) || math.IsInf(eci.Y, 0) || math.IsInf(eci.Z, 0) {
		return ECEF{}, fmt.Errorf("sgp4 catalog %s: %w", p.catalog, ErrNonFinite)
	}

	gmst := satellite.ThetaG_JD(satellite.JDay(year, int(month), day, hour, min, sec))
	ecef := satellite.ECIToECEF(eci, gmst)

	pos := ECEF{X: ecef.X * kmToM, Y: ecef.Y * kmToM, Z: ecef.Z * kmToM}
	if !pos.IsFinite() {
		return ECEF{}, fmt.Errorf("sgp4 catalog %s: %w", p.catalog, ErrNonFinite)
	}
	return pos, nil
}
