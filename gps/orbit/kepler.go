package orbit

import (
	"fmt"
	"math"
	"time"
)

// IS-GPS-200 constants.
const (
	GM         = 3.986005e14     // Earth's gravitational constant (m^3/s^2)
	OmegaEarth = 7.2921151467e-5 // Earth rotation rate (rad/s)

	SecondsPerWeek = 604800.0
	halfWeek       = SecondsPerWeek / 2

	// GPSLeapSeconds is the GPS-UTC offset used when converting wall-clock
	// time into seconds of the GPS week.
	GPSLeapSeconds = 18
)

var gpsEpoch = time.Date(1980, time.January, 6, 0, 0, 0, 0, time.UTC)

// Solver selects the strategy used to solve Kepler's equation.
type Solver int

const (
	// SolverNewton iterates Newton-Raphson until the correction drops below
	// the tolerance or the iteration cap is hit.
	SolverNewton Solver = iota
	// SolverFixedPoint runs a fixed number of E = M + e·sin(E) iterations.
	SolverFixedPoint
)

func (s Solver) String() string {
	switch s {
	case SolverNewton:
		return "newton"
	case SolverFixedPoint:
		return "fixed-point"
	default:
		return fmt.Sprintf("solver(%d)", int(s))
	}
}

// ParseSolver maps a config string onto a Solver.
func ParseSolver(s string) (Solver, error) {
	switch s {
	case "", "newton":
		return SolverNewton, nil
	case "fixed-point", "fixedpoint", "fixed":
		return SolverFixedPoint, nil
	}
	return SolverNewton, fmt.Errorf("unknown kepler solver %q", s)
}

// PropagatorConfig controls the Kepler solve.
type PropagatorConfig struct {
	Solver               Solver
	Tolerance            float64 // Newton convergence tolerance (rad)
	MaxIterations        int     // Newton iteration cap
	FixedPointIterations int
}

// DefaultPropagatorConfig returns Newton iteration with a 1e-10 rad tolerance
// capped at 100 iterations.
func DefaultPropagatorConfig() PropagatorConfig {
	return PropagatorConfig{
		Solver:               SolverNewton,
		Tolerance:            1e-10,
		MaxIterations:        100,
		FixedPointIterations: 3,
	}
}

// Propagator computes Earth-fixed satellite positions from Keplerian
// elements. It holds only configuration and is safe for concurrent use.
type Propagator struct {
	config PropagatorConfig
}

// NewPropagator creates a propagator, filling unset config fields with defaults.
func NewPropagator(config PropagatorConfig) *Propagator {
	def := DefaultPropagatorConfig()
	if config.Tolerance <= 0 {
		config.Tolerance = def.Tolerance
	}
	if config.MaxIterations <= 0 {
		config.MaxIterations = def.MaxIterations
	}
	if config.FixedPointIterations <= 0 {
		config.FixedPointIterations = def.FixedPointIterations
	}
	return &Propagator{config: config}
}

// Config returns the effective configuration.
func (p *Propagator) Config() PropagatorConfig {
	return p.config
}

// Propagate returns the ECEF position of the satellite at t, given in seconds
// of the same week as the elements' time of applicability.
func (p *Propagator) Propagate(el KeplerianElements, t float64) (ECEF, error) {
	if err := el.Validate(); err != nil {
		return ECEF{}, err
	}

	a := el.SqrtA * el.SqrtA
	n := math.Sqrt(GM/(a*a*a)) + el.DeltaN

	tk := WrapWeekSeconds(t - el.TimeOfApplicability)
	mk := el.MeanAnomaly + n*tk

	ek, err := p.SolveKepler(mk, el.Eccentricity)
	if err != nil {
		return ECEF{}, err
	}

	e := el.Eccentricity
	sinE, cosE := math.Sincos(ek)
	vk := math.Atan2(math.Sqrt(1-e*e)*sinE, cosE-e)

	phi := vk + el.ArgumentOfPerigee
	sin2, cos2 := math.Sincos(2 * phi)

	uk := phi + el.Cus*sin2 + el.Cuc*cos2
	rk := a*(1-e*cosE) + el.Crs*sin2 + el.Crc*cos2
	ik := el.Inclination + el.Cis*sin2 + el.Cic*cos2 + el.IDot*tk

	sinU, cosU := math.Sincos(uk)
	xp := rk * cosU
	yp := rk * sinU

	omega := el.RightAscension + (el.RightAscensionRate-OmegaEarth)*tk - OmegaEarth*el.TimeOfApplicability
	sinO, cosO := math.Sincos(omega)
	sinI, cosI := math.Sincos(ik)

	pos := ECEF{
		X: xp*cosO - yp*cosI*sinO,
		Y: xp*sinO + yp*cosI*cosO,
		Z: yp * sinI,
	}
	if !pos.IsFinite() {
		return ECEF{}, ErrNonFinite
	}
	return pos, nil
}

// SolveKepler returns the eccentric anomaly E for mean anomaly m.
func (p *Propagator) SolveKepler(m, e float64) (float64, error) {
	if p.config.Solver == SolverFixedPoint {
		ek := m
		for i := 0; i < p.config.FixedPointIterations; i++ {
			ek = m + e*math.Sin(ek)
		}
		return ek, nil
	}

	ek := m
	for i := 0; i < p.config.MaxIterations; i++ {
		sinE, cosE := math.Sincos(ek)
		delta := (ek - e*sinE - m) / (1 - e*cosE)
		ek -= delta
		if math.Abs(delta) < p.config.Tolerance {
			return ek, nil
		}
	}
	return ek, fmt.Errorf("%w after %d iterations (M=%g, e=%g)", ErrNoConvergence, p.config.MaxIterations, m, e)
}

// WrapWeekSeconds applies the half-week rollover correction to a time
// difference in seconds.
func WrapWeekSeconds(tk float64) float64 {
	if tk > halfWeek {
		tk -= SecondsPerWeek
	} else if tk < -halfWeek {
		tk += SecondsPerWeek
	}
	return tk
}

// GPSSecondsOfWeek converts a UTC time into seconds of the GPS week.
func GPSSecondsOfWeek(t time.Time) float64 {
	const week = time.Duration(SecondsPerWeek) * time.Second

	since := (t.UTC().Sub(gpsEpoch) + GPSLeapSeconds*time.Second) % week
	if since < 0 {
		since += week
	}
	return since.Seconds()
}
