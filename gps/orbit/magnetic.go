package orbit

import (
	"fmt"
	"time"

	"github.com/westphae/geomag/pkg/egm96"
	"github.com/westphae/geomag/pkg/wmm"
)

// MagneticDeclination returns the World Magnetic Model declination at the
// observer on the given date, in degrees (+East, -West).
func MagneticDeclination(obs Observer, date time.Time) (float64, error) {
	loc := egm96.NewLocationGeodetic(obs.Latitude, obs.Longitude, obs.Altitude)

	mag, err := wmm.CalculateWMMMagneticField(loc, date)
	if err != nil {
		return 0, fmt.Errorf("magnetic field at %.4f,%.4f: %w", obs.Latitude, obs.Longitude, err)
	}
	return mag.D(), nil
}
