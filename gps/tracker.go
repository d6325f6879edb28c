package gps

import (
	"math"
	"sort"
	"sync"
	"time"
)

// sampleRing is a fixed-capacity ring of samples, oldest first.
type sampleRing struct {
	buf   []TrackSample
	start int
	n     int
}

func newSampleRing(capacity int) *sampleRing {
	return &sampleRing{buf: make([]TrackSample, capacity)}
}

func (h *sampleRing) push(s TrackSample) {
	if h.n < len(h.buf) {
		h.buf[(h.start+h.n)%len(h.buf)] = s
		h.n++
		return
	}
	h.buf[h.start] = s
	h.start = (h.start + 1) % len(h.buf)
}

func (h *sampleRing) samples() []TrackSample {
	out := make([]TrackSample, h.n)
	for i := 0; i < h.n; i++ {
		out[i] = h.buf[(h.start+i)%len(h.buf)]
	}
	return out
}

// Tracker holds the latest record and a bounded track history for every
// satellite, per constellation, plus the most recent position fix.
//
// Updates come from one writer; Snapshot and the read accessors may be
// called from any goroutine.
type Tracker struct {
	mu       sync.RWMutex
	capacity int
	tables   map[Constellation]map[int]SatelliteRecord
	history  map[Constellation]map[int]*sampleRing
	fix      *FixRecord
	filtered int
	updated  time.Time
	now      func() time.Time
}

// NewTracker creates a tracker keeping up to capacity samples per satellite.
// A non-positive capacity selects DefaultHistoryCapacity.
func NewTracker(capacity int) *Tracker {
	if capacity <= 0 {
		capacity = DefaultHistoryCapacity
	}
	return &Tracker{
		capacity: capacity,
		tables:   make(map[Constellation]map[int]SatelliteRecord),
		history:  make(map[Constellation]map[int]*sampleRing),
		now:      time.Now,
	}
}

// Capacity returns the per-satellite history limit.
func (t *Tracker) Capacity() int {
	return t.capacity
}

// Update merges a batch for constellation c. Within the batch the last record
// for an ID wins and contributes one history sample. Batches for
// ConstellationUnknown and records with non-finite angles are counted as
// filtered and ignored. The merged table is returned sorted by ID.
func (t *Tracker) Update(c Constellation, batch []SatelliteRecord) []SatelliteRecord {
	t.mu.Lock()
	defer t.mu.Unlock()

	if c == ConstellationUnknown {
		t.filtered += len(batch)
		return nil
	}

	latest := make(map[int]SatelliteRecord, len(batch))
	order := make([]int, 0, len(batch))
	for _, rec := range batch {
		if !finite(rec.Elevation) || !finite(rec.Azimuth) {
			t.filtered++
			continue
		}
		if _, seen := latest[rec.ID]; !seen {
			order = append(order, rec.ID)
		}
		rec.Constellation = c
		if rec.Signal != nil {
			rec.Signal = float64Ptr(*rec.Signal)
		}
		latest[rec.ID] = rec
	}

	table := t.tables[c]
	if table == nil {
		table = make(map[int]SatelliteRecord)
		t.tables[c] = table
		t.history[c] = make(map[int]*sampleRing)
	}

	now := t.now()
	for _, id := range order {
		rec := latest[id]
		table[id] = rec

		h := t.history[c][id]
		if h == nil {
			h = newSampleRing(t.capacity)
			t.history[c][id] = h
		}
		h.push(TrackSample{Azimuth: rec.Azimuth, Elevation: rec.Elevation, Time: now})
	}
	if len(order) > 0 {
		t.updated = now
	}

	return sortedTable(table)
}

// UpdateFix records the latest position fix.
func (t *Tracker) UpdateFix(fix FixRecord) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if fix.Time.IsZero() {
		fix.Time = t.now()
	}
	t.fix = &fix
	t.updated = fix.Time
}

// Satellites returns the current table for c sorted by ID.
func (t *Tracker) Satellites(c Constellation) []SatelliteRecord {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return sortedTable(t.tables[c])
}

// History returns the samples for one satellite, oldest first.
func (t *Tracker) History(c Constellation, id int) []TrackSample {
	t.mu.RLock()
	defer t.mu.RUnlock()

	h := t.history[c][id]
	if h == nil {
		return nil
	}
	return h.samples()
}

// Fix returns the latest position fix, if any.
func (t *Tracker) Fix() (FixRecord, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.fix == nil {
		return FixRecord{}, false
	}
	return *t.fix, true
}

// Filtered returns how many records have been rejected since the last Reset.
func (t *Tracker) Filtered() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.filtered
}

// Snapshot returns a deep copy of the tracker state.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	snap := Snapshot{
		Satellites: make(map[Constellation][]SatelliteRecord, len(t.tables)),
		History:    make(map[Constellation]map[int][]TrackSample, len(t.history)),
		Filtered:   t.filtered,
		Updated:    t.updated,
	}
	for c, table := range t.tables {
		snap.Satellites[c] = sortedTable(table)
	}
	for c, byID := range t.history {
		hs := make(map[int][]TrackSample, len(byID))
		for id, h := range byID {
			hs[id] = h.samples()
		}
		snap.History[c] = hs
	}
	if t.fix != nil {
		fix := *t.fix
		snap.Fix = &fix
	}
	return snap
}

// Reset discards all state, as on a stream disconnect.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.tables = make(map[Constellation]map[int]SatelliteRecord)
	t.history = make(map[Constellation]map[int]*sampleRing)
	t.fix = nil
	t.filtered = 0
	t.updated = time.Time{}
}

func sortedTable(table map[int]SatelliteRecord) []SatelliteRecord {
	out := make([]SatelliteRecord, 0, len(table))
	for _, rec := range table {
		if rec.Signal != nil {
			rec.Signal = float64Ptr(*rec.Signal)
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
