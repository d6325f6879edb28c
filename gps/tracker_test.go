package gps

import (
	"math"
	"sync"
	"testing"
	"time"
)

func testRecord(id int, el, az float64) SatelliteRecord {
	return SatelliteRecord{ID: id, Elevation: el, Azimuth: az, Signal: float64Ptr(30), Health: HealthHealthy}
}

func TestTrackerUpdateSortsAndMerges(t *testing.T) {
	tr := NewTracker(10)

	table := tr.Update(ConstellationGPS, []SatelliteRecord{testRecord(17, 10, 10), testRecord(3, 20, 20)})
	if len(table) != 2 || table[0].ID != 3 || table[1].ID != 17 {
		t.Fatalf("Update() = %+v, want IDs [3 17]", table)
	}

	table = tr.Update(ConstellationGPS, []SatelliteRecord{testRecord(9, 30, 30), testRecord(3, 25, 21)})
	if len(table) != 3 {
		t.Fatalf("Update() returned %d records, want 3", len(table))
	}
	ids := []int{table[0].ID, table[1].ID, table[2].ID}
	if ids[0] != 3 || ids[1] != 9 || ids[2] != 17 {
		t.Errorf("IDs = %v, want [3 9 17]", ids)
	}
	if table[0].Elevation != 25 {
		t.Errorf("satellite 3 elevation = %v, want merged value 25", table[0].Elevation)
	}
	for _, r := range table {
		if r.Constellation != ConstellationGPS {
			t.Errorf("record %d constellation = %v, want GPS", r.ID, r.Constellation)
		}
	}
}

func TestTrackerDuplicateIDsInBatch(t *testing.T) {
	tr := NewTracker(10)

	table := tr.Update(ConstellationGLONASS, []SatelliteRecord{testRecord(70, 10, 100), testRecord(70, 11, 101), testRecord(70, 12, 102)})
	if len(table) != 1 {
		t.Fatalf("Update() returned %d records, want 1", len(table))
	}
	if table[0].Elevation != 12 || table[0].Azimuth != 102 {
		t.Errorf("record = %+v, want last write (12, 102)", table[0])
	}
	if h := tr.History(ConstellationGLONASS, 70); len(h) != 1 {
		t.Errorf("History() has %d samples, want 1 per batch", len(h))
	}
}

func TestTrackerHistoryBounded(t *testing.T) {
	const capacity = 5
	tr := NewTracker(capacity)

	for i := 0; i < 12; i++ {
		tr.Update(ConstellationGPS, []SatelliteRecord{testRecord(1, float64(i), float64(i*10))})
	}

	h := tr.History(ConstellationGPS, 1)
	if len(h) != capacity {
		t.Fatalf("len(History) = %d, want %d", len(h), capacity)
	}
	for i, s := range h {
		want := float64(7 + i)
		if s.Elevation != want || s.Azimuth != want*10 {
			t.Errorf("History[%d] = %+v, want elevation %v", i, s, want)
		}
	}
}

func TestTrackerFiltersUnknownAndNonFinite(t *testing.T) {
	tr := NewTracker(10)

	if table := tr.Update(ConstellationUnknown, []SatelliteRecord{testRecord(200, 10, 10), testRecord(250, 10, 10)}); table != nil {
		t.Errorf("Update(Unknown) = %+v, want nil", table)
	}
	table := tr.Update(ConstellationGPS, []SatelliteRecord{testRecord(1, math.NaN(), 10), testRecord(2, 10, math.Inf(1)), testRecord(3, -5, 10)})
	if len(table) != 1 || table[0].ID != 3 {
		t.Errorf("Update() = %+v, want only satellite 3", table)
	}
	if tr.Filtered() != 4 {
		t.Errorf("Filtered() = %d, want 4", tr.Filtered())
	}
	if snap := tr.Snapshot(); len(snap.Satellites[ConstellationUnknown]) != 0 {
		t.Errorf("snapshot holds unknown satellites: %+v", snap.Satellites[ConstellationUnknown])
	}
}

func TestTrackerSnapshotIsCopy(t *testing.T) {
	tr := NewTracker(10)
	tr.Update(ConstellationGalileo, []SatelliteRecord{testRecord(301, 40, 40)})
	tr.UpdateFix(FixRecord{Latitude: 1, Longitude: 2, Quality: 1})

	snap := tr.Snapshot()
	snap.Satellites[ConstellationGalileo][0].Elevation = -1
	*snap.Satellites[ConstellationGalileo][0].Signal = -1
	snap.History[ConstellationGalileo][301][0].Azimuth = -1
	snap.Fix.Latitude = 99

	again := tr.Snapshot()
	got := again.Satellites[ConstellationGalileo][0]
	if got.Elevation != 40 || *got.Signal != 30 {
		t.Errorf("tracker record mutated through snapshot: %+v", got)
	}
	if again.History[ConstellationGalileo][301][0].Azimuth != 40 {
		t.Error("tracker history mutated through snapshot")
	}
	if again.Fix.Latitude != 1 {
		t.Error("tracker fix mutated through snapshot")
	}
	if again.Count() != 1 {
		t.Errorf("Count() = %d, want 1", again.Count())
	}
}

func TestTrackerInputNotAliased(t *testing.T) {
	tr := NewTracker(10)
	batch := []SatelliteRecord{testRecord(5, 10, 10)}
	tr.Update(ConstellationGPS, batch)

	*batch[0].Signal = 1
	if got := tr.Satellites(ConstellationGPS)[0]; *got.Signal != 30 {
		t.Errorf("stored signal = %v, want 30", *got.Signal)
	}
}

func TestTrackerFix(t *testing.T) {
	tr := NewTracker(10)
	if _, ok := tr.Fix(); ok {
		t.Fatal("Fix() reported a fix on a new tracker")
	}

	when := time.Date(2024, 4, 10, 12, 0, 0, 0, time.UTC)
	tr.UpdateFix(FixRecord{Latitude: 48.1, Longitude: 11.5, Quality: 1, Time: when})
	fix, ok := tr.Fix()
	if !ok || fix.Latitude != 48.1 || !fix.Time.Equal(when) {
		t.Errorf("Fix() = %+v, %v", fix, ok)
	}
}

func TestTrackerReset(t *testing.T) {
	tr := NewTracker(10)
	tr.Update(ConstellationGPS, []SatelliteRecord{testRecord(1, 10, 10)})
	tr.Update(ConstellationUnknown, []SatelliteRecord{testRecord(200, 10, 10)})
	tr.UpdateFix(FixRecord{Quality: 1})

	tr.Reset()

	snap := tr.Snapshot()
	if snap.Count() != 0 || len(snap.History) != 0 || snap.Fix != nil || snap.Filtered != 0 {
		t.Errorf("Snapshot() after Reset = %+v", snap)
	}
}

func TestTrackerConcurrentReaders(t *testing.T) {
	tr := NewTracker(8)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			tr.Update(ConstellationGPS, []SatelliteRecord{testRecord(i%32+1, float64(i%90), float64(i%360))})
		}
	}()
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				snap := tr.Snapshot()
				for _, h := range snap.History[ConstellationGPS] {
					if len(h) > 8 {
						t.Errorf("history length %d exceeds capacity", len(h))
						return
					}
				}
			}
		}()
	}
	wg.Wait()
}

func TestNewTrackerDefaultCapacity(t *testing.T) {
	if got := NewTracker(0).Capacity(); got != DefaultHistoryCapacity {
		t.Errorf("Capacity() = %d, want %d", got, DefaultHistoryCapacity)
	}
}
