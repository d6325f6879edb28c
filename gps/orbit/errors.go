package orbit

import "errors"

// Errors returned by propagation and element parsing
var (
	ErrInvalidEccentricity  = errors.New("eccentricity must be in [0, 1)")
	ErrInvalidSemiMajorAxis = errors.New("square root of semi-major axis must be positive")
	ErrNoConvergence        = errors.New("kepler equation did not converge")
	ErrNonFinite            = errors.New("propagated position is not finite")
	ErrMissingElement       = errors.New("required orbital element missing")
	ErrInvalidTLE           = errors.New("invalid two-line element set")
)
