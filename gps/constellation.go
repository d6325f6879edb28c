package gps

// idRange is an inclusive block of NMEA satellite identifiers.
type idRange struct {
	min, max      int
	constellation Constellation
}

// NMEA identifier blocks. GLONASS slots start at 65; Galileo and BeiDou use
// the extended 3xx and 4xx numbering so they cannot collide with GPS PRNs.
var idRanges = []idRange{
	{1, 32, ConstellationGPS},
	{33, 64, ConstellationSBAS},
	{65, 96, ConstellationGLONASS},
	{301, 336, ConstellationGalileo},
	{401, 437, ConstellationBeiDou},
}

// ConstellationForID maps a satellite identifier onto its constellation.
// Identifiers outside every known block map to ConstellationUnknown.
func ConstellationForID(id int) Constellation {
	for _, r := range idRanges {
		if id >= r.min && id <= r.max {
			return r.constellation
		}
	}
	return ConstellationUnknown
}

// talkerFor returns the NMEA talker prefix a receiver uses for c.
func talkerFor(c Constellation) string {
	switch c {
	case ConstellationGLONASS:
		return "GL"
	case ConstellationGalileo:
		return "GA"
	case ConstellationBeiDou:
		return "GB"
	default:
		return "GP"
	}
}
