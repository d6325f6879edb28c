package gps

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/Bucknalla/go-gps-skyview/gps/orbit"
)

// Sentence is one NMEA line split into fields. Fields[0] is the address
// tag (e.g. "GPGSV"); the checksum suffix has been removed.
type Sentence struct {
	Talker      string
	Type        string
	Fields      []string
	HasChecksum bool
}

// ParseSentence validates the optional *HH checksum and splits a line into
// fields.
func ParseSentence(line string) (Sentence, error) {
	body := strings.TrimSpace(line)
	body = strings.TrimPrefix(body, "$")
	if body == "" {
		return Sentence{}, ErrEmptySentence
	}

	var hasChecksum bool
	if i := strings.LastIndexByte(body, '*'); i >= 0 {
		sum := body[i+1:]
		body = body[:i]
		want, err := strconv.ParseUint(sum, 16, 8)
		if err != nil || len(sum) != 2 {
			return Sentence{}, fmt.Errorf("%w: bad checksum field %q", ErrChecksum, sum)
		}
		if got := checksum(body); got != byte(want) {
			return Sentence{}, fmt.Errorf("%w: computed %02X, sentence says %02X", ErrChecksum, got, want)
		}
		hasChecksum = true
	}

	fields := strings.Split(body, ",")
	tag := fields[0]
	if len(tag) < 3 {
		return Sentence{}, fmt.Errorf("%w: address %q", ErrMalformedSentence, tag)
	}

	s := Sentence{Type: tag, Fields: fields, HasChecksum: hasChecksum}
	// Proprietary sentences ("P" + maker) carry no talker.
	if len(tag) == 5 && tag[0] != 'P' {
		s.Talker = tag[:2]
		s.Type = tag[2:]
	}
	return s, nil
}

// Result is the outcome of decoding one line. Exactly one of Satellites or
// Fix is populated depending on the sentence type.
type Result struct {
	Sentence   Sentence
	Satellites []SatelliteRecord
	Fix        *FixRecord
}

// Decoder dispatches sentences to the GSV and GGA decoders.
type Decoder struct {
	RequireChecksum bool
}

// Decode parses one complete line.
func (d Decoder) Decode(line string) (Result, error) {
	s, err := ParseSentence(line)
	if err != nil {
		return Result{}, err
	}
	if d.RequireChecksum && !s.HasChecksum {
		return Result{}, fmt.Errorf("%w: missing", ErrChecksum)
	}

	res := Result{Sentence: s}
	switch s.Type {
	case "GSV":
		res.Satellites, err = DecodeGSV(s.Fields)
	case "GGA":
		var fix FixRecord
		fix, err = DecodeGGA(s.Fields)
		if err == nil {
			res.Fix = &fix
		}
	default:
		err = fmt.Errorf("%w: %s", ErrUnsupportedSentence, s.Type)
	}
	if err != nil {
		return Result{}, err
	}
	return res, nil
}

// DecodeGSV decodes the satellite groups of a GSV sentence. fields[0] is the
// address tag and fields[1..3] are the message counters; groups of four
// (id, elevation, azimuth, signal) follow. A sentence whose trailing fields
// do not form whole groups fails outright. A repeated ID overwrites the
// earlier group in place.
func DecodeGSV(fields []string) ([]SatelliteRecord, error) {
	if len(fields) < 4 || (len(fields)-4)%4 != 0 {
		return nil, fmt.Errorf("%w: GSV with %d fields", ErrMalformedSentence, len(fields))
	}

	var sats []SatelliteRecord
	index := make(map[int]int)
	for i := 4; i+4 <= len(fields); i += 4 {
		idField := strings.TrimSpace(fields[i])
		if idField == "" {
			continue
		}
		// Records are keyed by numeric ID; anything else cannot be tracked.
		id, err := strconv.Atoi(idField)
		if err != nil {
			continue
		}

		rec := SatelliteRecord{
			ID:            id,
			Constellation: ConstellationForID(id),
			Elevation:     parseFloatOr(fields[i+1], 0),
			Azimuth:       orbit.NormalizeAzimuth(parseFloatOr(fields[i+2], 0)),
			Health:        HealthUnhealthy,
		}

		signal := strings.TrimSpace(fields[i+3])
		if !strings.EqualFold(signal, "N/A") {
			if v, ok := parseFloat(signal); ok {
				rec.Signal = float64Ptr(v)
				if v > 0 {
					rec.Health = HealthHealthy
				}
			}
		}

		if j, seen := index[id]; seen {
			sats[j] = rec
			continue
		}
		index[id] = len(sats)
		sats = append(sats, rec)
	}
	return sats, nil
}

// DecodeGGA decodes a GGA fix. Latitude and longitude are required; the
// remaining fields fall back to zero.
func DecodeGGA(fields []string) (FixRecord, error) {
	if len(fields) < 10 {
		return FixRecord{}, fmt.Errorf("%w: GGA with %d fields", ErrMalformedSentence, len(fields))
	}

	lat, err := parseDegreesMinutes(fields[2], 90)
	if err != nil {
		return FixRecord{}, fmt.Errorf("latitude: %w", err)
	}
	if strings.EqualFold(strings.TrimSpace(fields[3]), "S") {
		lat = -lat
	}

	lon, err := parseDegreesMinutes(fields[4], 180)
	if err != nil {
		return FixRecord{}, fmt.Errorf("longitude: %w", err)
	}
	if strings.EqualFold(strings.TrimSpace(fields[5]), "W") {
		lon = -lon
	}

	return FixRecord{
		Latitude:   lat,
		Longitude:  lon,
		Quality:    parseIntOr(fields[6], 0),
		Satellites: parseIntOr(fields[7], 0),
		HDOP:       parseFloatOr(fields[8], 0),
		Altitude:   parseFloatOr(fields[9], 0),
	}, nil
}

// parseDegreesMinutes converts NMEA "dddmm.mmmm" into decimal degrees. The
// two digits before the decimal point start the minutes.
func parseDegreesMinutes(field string, maxDegrees float64) (float64, error) {
	s := strings.TrimSpace(field)
	dot := strings.IndexByte(s, '.')
	if dot < 0 {
		dot = len(s)
	}
	if dot < 2 {
		return 0, fmt.Errorf("%w: %q", ErrMalformedCoordinate, field)
	}
	for i := 0; i < len(s); i++ {
		if (s[i] < '0' || s[i] > '9') && i != dot {
			return 0, fmt.Errorf("%w: %q", ErrMalformedCoordinate, field)
		}
	}

	var degrees float64
	if dot > 2 {
		d, err := strconv.Atoi(s[:dot-2])
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrMalformedCoordinate, field)
		}
		degrees = float64(d)
	}
	minutes, err := strconv.ParseFloat(s[dot-2:], 64)
	if err != nil || minutes >= 60 {
		return 0, fmt.Errorf("%w: %q", ErrMalformedCoordinate, field)
	}

	value := degrees + minutes/60
	if value > maxDegrees {
		return 0, fmt.Errorf("%w: %q out of range", ErrMalformedCoordinate, field)
	}
	return value, nil
}

// parseFloat accepts only finite numbers.
func parseFloat(field string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func parseFloatOr(field string, def float64) float64 {
	if v, ok := parseFloat(field); ok {
		return v
	}
	return def
}

func parseIntOr(field string, def int) int {
	v, err := strconv.Atoi(strings.TrimSpace(field))
	if err != nil {
		return def
	}
	return v
}
