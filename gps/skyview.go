package gps

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Bucknalla/go-gps-skyview/gps/orbit"
)

// SkyView turns almanac orbits into satellite records as seen by one
// observer. It holds no mutable state and is safe for concurrent use.
type SkyView struct {
	propagator *orbit.Propagator
	observer   orbit.Observer
	estimator  SignalEstimator
	workers    int
}

// NewSkyView creates a sky view for the observer and solver in config.
func NewSkyView(config Config) (*SkyView, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &SkyView{
		propagator: orbit.NewPropagator(config.Propagator),
		observer:   config.Observer,
		estimator:  SignalEstimator{Ceiling: config.SignalCeiling},
		workers:    config.Workers,
	}, nil
}

// Observer returns the observer position.
func (v *SkyView) Observer() orbit.Observer {
	return v.observer
}

// Position returns the Earth-fixed position of one entry at t.
func (v *SkyView) Position(e AlmanacEntry, t time.Time) (orbit.ECEF, error) {
	switch {
	case e.Elements != nil:
		return v.propagator.Propagate(*e.Elements, orbit.GPSSecondsOfWeek(t))
	case e.TLE != nil:
		return e.TLE.Position(t)
	default:
		return orbit.ECEF{}, ErrNoOrbit
	}
}

// Look computes the record for one entry. Propagated records carry an
// estimated signal and unknown health.
func (v *SkyView) Look(e AlmanacEntry, t time.Time) (SatelliteRecord, error) {
	pos, err := v.Position(e, t)
	if err != nil {
		return SatelliteRecord{}, fmt.Errorf("%s %d: %w", e.Constellation, e.ID, err)
	}

	la := orbit.LookAnglesFrom(v.observer, pos)
	rec := SatelliteRecord{
		ID:            e.ID,
		Constellation: e.Constellation,
		Elevation:     la.Elevation,
		Azimuth:       la.Azimuth,
		Health:        HealthUnknown,
	}
	v.estimator.Fill(&rec)
	return rec, nil
}

// Compute propagates every entry to t. A satellite that fails is left out
// and its error joined into the returned error; the others are still
// returned, ordered by constellation and ID.
func (v *SkyView) Compute(alm Almanac, t time.Time) ([]SatelliteRecord, error) {
	records := make([]SatelliteRecord, 0, len(alm))
	var errs []error
	for _, e := range alm {
		rec, err := v.Look(e, t)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		records = append(records, rec)
	}
	sortRecords(records)
	return records, errors.Join(errs...)
}

type lookJob struct {
	index int
	entry AlmanacEntry
}

type lookResult struct {
	index  int
	record SatelliteRecord
	err    error
}

// ComputeParallel is Compute spread across the configured number of
// workers. It stops early and returns ctx.Err() if ctx is cancelled.
func (v *SkyView) ComputeParallel(ctx context.Context, alm Almanac, t time.Time) ([]SatelliteRecord, error) {
	if len(alm) == 0 {
		return nil, nil
	}

	jobs := make(chan lookJob, v.workers*2)
	results := make(chan lookResult, v.workers*2)

	var wg sync.WaitGroup
	for i := 0; i < v.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				rec, err := v.Look(job.entry, t)
				select {
				case results <- lookResult{index: job.index, record: rec, err: err}:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i, e := range alm {
			select {
			case jobs <- lookJob{index: i, entry: e}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	ok := make([]bool, len(alm))
	recs := make([]SatelliteRecord, len(alm))
	errs := make([]error, len(alm))
	for res := range results {
		if res.err != nil {
			errs[res.index] = res.err
			continue
		}
		recs[res.index] = res.record
		ok[res.index] = true
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	records := make([]SatelliteRecord, 0, len(alm))
	for i := range recs {
		if ok[i] {
			records = append(records, recs[i])
		}
	}
	sortRecords(records)
	return records, errors.Join(errs...)
}

// Visible returns the records at or above the elevation mask.
func Visible(records []SatelliteRecord, mask float64) []SatelliteRecord {
	var out []SatelliteRecord
	for _, r := range records {
		if r.Elevation >= mask {
			out = append(out, r)
		}
	}
	return out
}

// GroupByConstellation splits records into per-constellation batches,
// preserving order within each.
func GroupByConstellation(records []SatelliteRecord) map[Constellation][]SatelliteRecord {
	groups := make(map[Constellation][]SatelliteRecord)
	for _, r := range records {
		groups[r.Constellation] = append(groups[r.Constellation], r)
	}
	return groups
}

func sortRecords(records []SatelliteRecord) {
	sort.Slice(records, func(i, j int) bool {
		if records[i].Constellation != records[j].Constellation {
			return records[i].Constellation < records[j].Constellation
		}
		return records[i].ID < records[j].ID
	})
}
