// Package orbit propagates GNSS satellites from orbital elements and converts
// between Earth-fixed, geodetic and observer-relative frames.
//
// Everything here is a pure function of its inputs and safe to call from any
// number of goroutines.
package orbit

import "math"

// WGS-84 ellipsoid parameters.
const (
	wgs84A   = 6378137.0               // semi-major axis (meters)
	wgs84F   = 1.0 / 298.257223563     // flattening
	wgs84B   = wgs84A * (1 - wgs84F)   // semi-minor axis (meters)
	wgs84E2  = wgs84F * (2 - wgs84F)   // first eccentricity squared
	wgs84EP2 = wgs84E2 / (1 - wgs84E2) // second eccentricity squared
)

const (
	degToRad = math.Pi / 180.0
	radToDeg = 180.0 / math.Pi
)

// ECEF is an Earth-Centered Earth-Fixed position in meters.
type ECEF struct {
	X, Y, Z float64
}

// IsFinite reports whether every coordinate is a finite number.
func (p ECEF) IsFinite() bool {
	return isFinite(p.X) && isFinite(p.Y) && isFinite(p.Z)
}

// Norm returns the distance from the Earth's center in meters.
func (p ECEF) Norm() float64 {
	return math.Sqrt(p.X*p.X + p.Y*p.Y + p.Z*p.Z)
}

// Geodetic is a WGS-84 position: degrees and meters above the ellipsoid.
type Geodetic struct {
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
	Altitude  float64 `json:"altitude"`
}

// Observer is the fixed point that look angles are computed from.
type Observer struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Altitude  float64 `json:"altitude"`
}

// LookAngles holds the topocentric direction from observer to satellite.
type LookAngles struct {
	Azimuth   float64 // degrees clockwise from north, [0, 360)
	Elevation float64 // degrees above the horizon, [-90, 90]
	Range     float64 // meters
}

// ECEFToGeodetic converts ECEF to geodetic coordinates using a single
// Bowring step. Good to millimeters near the surface; not survey grade.
func ECEFToGeodetic(p ECEF) Geodetic {
	lon := math.Atan2(p.Y, p.X)
	rho := math.Hypot(p.X, p.Y)

	theta := math.Atan2(p.Z*wgs84A, rho*wgs84B)
	sinT, cosT := math.Sincos(theta)

	lat := math.Atan2(
		p.Z+wgs84EP2*wgs84B*sinT*sinT*sinT,
		rho-wgs84E2*wgs84A*cosT*cosT*cosT,
	)

	sinLat, cosLat := math.Sincos(lat)
	n := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)

	var alt float64
	if math.Abs(cosLat) > 1e-10 {
		alt = rho/cosLat - n
	} else {
		// At the poles p/cos(lat) is undefined.
		alt = math.Abs(p.Z)/math.Abs(sinLat) - n*(1-wgs84E2)
	}

	return Geodetic{
		Longitude: lon * radToDeg,
		Latitude:  lat * radToDeg,
		Altitude:  alt,
	}
}

// GeodeticToECEF converts latitude/longitude in degrees and altitude in
// meters above the ellipsoid to ECEF.
func GeodeticToECEF(latDeg, lonDeg, altM float64) ECEF {
	sinLat, cosLat := math.Sincos(latDeg * degToRad)
	sinLon, cosLon := math.Sincos(lonDeg * degToRad)

	// Radius of curvature in the prime vertical.
	n := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)

	return ECEF{
		X: (n + altM) * cosLat * cosLon,
		Y: (n + altM) * cosLat * sinLon,
		Z: (n*(1-wgs84E2) + altM) * sinLat,
	}
}

// ECEF returns the observer's Earth-fixed position.
func (o Observer) ECEF() ECEF {
	return GeodeticToECEF(o.Latitude, o.Longitude, o.Altitude)
}

// LookAnglesFrom computes azimuth, elevation and range from the observer to
// a satellite, rotating the line of sight into East-North-Up.
func LookAnglesFrom(obs Observer, sat ECEF) LookAngles {
	o := obs.ECEF()
	dx := sat.X - o.X
	dy := sat.Y - o.Y
	dz := sat.Z - o.Z

	sinLat, cosLat := math.Sincos(obs.Latitude * degToRad)
	sinLon, cosLon := math.Sincos(obs.Longitude * degToRad)

	east := -sinLon*dx + cosLon*dy
	north := -sinLat*cosLon*dx - sinLat*sinLon*dy + cosLat*dz
	up := cosLat*cosLon*dx + cosLat*sinLon*dy + sinLat*dz

	horizontal := math.Hypot(east, north)

	return LookAngles{
		Azimuth:   NormalizeAzimuth(math.Atan2(east, north) * radToDeg),
		Elevation: math.Atan2(up, horizontal) * radToDeg,
		Range:     math.Sqrt(east*east + north*north + up*up),
	}
}

// NormalizeAzimuth folds an angle in degrees into [0, 360).
func NormalizeAzimuth(deg float64) float64 {
	a := math.Mod(deg, 360)
	if a < 0 {
		a += 360
	}
	// -tiny + 360 rounds to 360.
	if a >= 360 {
		a = 0
	}
	return a
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
