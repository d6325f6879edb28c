package gps

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/Bucknalla/go-gps-skyview/gps/orbit"
)

// AlmanacEntry is the orbit of one satellite, given either as broadcast
// Keplerian elements or as a two-line element set.
type AlmanacEntry struct {
	ID            int
	Constellation Constellation
	Elements      *orbit.KeplerianElements
	TLE           *orbit.TLEPropagator
}

// Almanac is a set of satellite orbits.
type Almanac []AlmanacEntry

// almanacRecord is the JSON form of an entry: the named Keplerian fields
// inline, or a "TLE" pair.
type almanacRecord struct {
	ID            int      `json:"ID"`
	Constellation string   `json:"Constellation,omitempty"`
	TLE           []string `json:"TLE,omitempty"`
	orbit.ElementsRecord
}

// ParseAlmanac reads a JSON array of almanac records. Entries that fail to
// parse are skipped; their errors are joined into the returned error
// alongside the entries that did parse.
func ParseAlmanac(r io.Reader) (Almanac, error) {
	var records []almanacRecord
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("failed to decode almanac: %w", err)
	}

	var (
		alm  Almanac
		errs []error
	)
	for i, rec := range records {
		entry, err := rec.entry()
		if err != nil {
			errs = append(errs, fmt.Errorf("entry %d (ID %d): %w", i, rec.ID, err))
			continue
		}
		alm = append(alm, entry)
	}

	if len(alm) == 0 {
		errs = append(errs, ErrEmptyAlmanac)
	}
	return alm, errors.Join(errs...)
}

// LoadAlmanacFile reads an almanac from a JSON file.
func LoadAlmanacFile(filename string) (Almanac, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open almanac file %s: %w", filename, err)
	}
	defer file.Close()

	return ParseAlmanac(file)
}

func (r almanacRecord) entry() (AlmanacEntry, error) {
	entry := AlmanacEntry{ID: r.ID, Constellation: ConstellationForID(r.ID)}
	if r.Constellation != "" {
		c, err := ParseConstellation(r.Constellation)
		if err != nil {
			return AlmanacEntry{}, err
		}
		entry.Constellation = c
	}

	if len(r.TLE) > 0 {
		if len(r.TLE) != 2 {
			return AlmanacEntry{}, fmt.Errorf("%w: want 2 lines, got %d", orbit.ErrInvalidTLE, len(r.TLE))
		}
		prop, err := orbit.NewTLEPropagator(r.TLE[0], r.TLE[1])
		if err != nil {
			return AlmanacEntry{}, err
		}
		entry.TLE = prop
		return entry, nil
	}

	el, err := r.Elements()
	if err != nil {
		return AlmanacEntry{}, err
	}
	if err := el.Validate(); err != nil {
		return AlmanacEntry{}, err
	}
	entry.Elements = &el
	return entry, nil
}
