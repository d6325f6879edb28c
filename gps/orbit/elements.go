package orbit

import "fmt"

// KeplerianElements is a broadcast ephemeris/almanac element set. Angles are
// in radians, rates in radians per second, times in seconds of the GNSS week.
// The harmonic correction terms and rates default to zero.
type KeplerianElements struct {
	SqrtA               float64 // square root of the semi-major axis (m^1/2)
	Eccentricity        float64
	Inclination         float64 // i0
	RightAscension      float64 // Ω0, longitude of ascending node at weekly epoch
	RightAscensionRate  float64 // Ω̇
	ArgumentOfPerigee   float64 // ω
	MeanAnomaly         float64 // M0
	TimeOfApplicability float64 // t0 (toe/toa)

	DeltaN float64 // mean motion difference
	IDot   float64 // inclination rate
	Cuc    float64
	Cus    float64
	Crc    float64
	Crs    float64
	Cic    float64
	Cis    float64
}

// Validate rejects element sets that do not describe a closed orbit.
func (e KeplerianElements) Validate() error {
	if !(e.Eccentricity >= 0 && e.Eccentricity < 1) {
		return fmt.Errorf("%w: %v", ErrInvalidEccentricity, e.Eccentricity)
	}
	if !(e.SqrtA > 0) {
		return fmt.Errorf("%w: %v", ErrInvalidSemiMajorAxis, e.SqrtA)
	}
	return nil
}

// ElementsRecord is the almanac wire shape of an element set. Required fields
// are pointers so that absence can be told apart from zero.
type ElementsRecord struct {
	SqrtA               *float64 `json:"SQRT_A"`
	Eccentricity        *float64 `json:"Eccentricity"`
	Inclination         *float64 `json:"OrbitalInclination"`
	RightAscension      *float64 `json:"RightAscenAtWeek"`
	RightAscensionRate  *float64 `json:"RateOfRightAscen"`
	ArgumentOfPerigee   *float64 `json:"ArgumentOfPerigee"`
	MeanAnomaly         *float64 `json:"MeanAnom"`
	TimeOfApplicability *float64 `json:"TimeOfApplicability"`

	DeltaN float64 `json:"DeltaN,omitempty"`
	IDot   float64 `json:"IDOT,omitempty"`
	Cuc    float64 `json:"Cuc,omitempty"`
	Cus    float64 `json:"Cus,omitempty"`
	Crc    float64 `json:"Crc,omitempty"`
	Crs    float64 `json:"Crs,omitempty"`
	Cic    float64 `json:"Cic,omitempty"`
	Cis    float64 `json:"Cis,omitempty"`
}

// Elements converts the record, failing on the first missing required field.
func (r ElementsRecord) Elements() (KeplerianElements, error) {
	required := []struct {
		name  string
		value *float64
	}{
		{"SQRT_A", r.SqrtA},
		{"Eccentricity", r.Eccentricity},
		{"OrbitalInclination", r.Inclination},
		{"RightAscenAtWeek", r.RightAscension},
		{"RateOfRightAscen", r.RightAscensionRate},
		{"ArgumentOfPerigee", r.ArgumentOfPerigee},
		{"MeanAnom", r.MeanAnomaly},
		{"TimeOfApplicability", r.TimeOfApplicability},
	}
	for _, f := range required {
		if f.value == nil {
			return KeplerianElements{}, fmt.Errorf("%w: %s", ErrMissingElement, f.name)
		}
	}

	return KeplerianElements{
		SqrtA:               *r.SqrtA,
		Eccentricity:        *r.Eccentricity,
		Inclination:         *r.Inclination,
		RightAscension:      *r.RightAscension,
		RightAscensionRate:  *r.RightAscensionRate,
		ArgumentOfPerigee:   *r.ArgumentOfPerigee,
		MeanAnomaly:         *r.MeanAnomaly,
		TimeOfApplicability: *r.TimeOfApplicability,
		DeltaN:              r.DeltaN,
		IDot:                r.IDot,
		Cuc:                 r.Cuc,
		Cus:                 r.Cus,
		Crc:                 r.Crc,
		Crs:                 r.Crs,
		Cic:                 r.Cic,
		Cis:                 r.Cis,
	}, nil
}
