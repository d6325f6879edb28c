package gps

import (
	"errors"
	"strings"
	"testing"
	"time"
)

const testStream = "$GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,*47\r\n" +
	"$GPGSV,2,1,06,03,45,120,40,07,12,300,N/A,11,80,005,35,19,30,270,00\r\n" +
	"$GPGSV,2,2,06,200,20,20,20,03,46,121,41,,,,,,,,\r\n" +
	"$GLGSV,1,1,01,65,10,200,30\r\n" +
	"$GPRMC,123519,A,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W\r\n" +
	"$GPGSV,1,1,01,11,45\r\n" +
	"\r\n"

func newTestSession() *Session {
	return NewSession(DefaultConfig(), NewTracker(10))
}

func TestSessionFeed(t *testing.T) {
	s := newTestSession()

	st := s.Feed([]byte(testStream))
	want := Stats{Lines: 6, Decoded: 4, Rejected: 1, Unsupported: 1, Filtered: 1}
	if st != want {
		t.Errorf("Feed() stats = %+v, want %+v", st, want)
	}

	tr := s.Tracker()
	gps := tr.Satellites(ConstellationGPS)
	if len(gps) != 4 {
		t.Fatalf("GPS table has %d satellites, want 4: %+v", len(gps), gps)
	}
	if gps[0].ID != 3 || gps[0].Elevation != 46 {
		t.Errorf("satellite 3 = %+v, want the later sentence's elevation 46", gps[0])
	}
	if len(tr.History(ConstellationGPS, 3)) != 2 {
		t.Errorf("satellite 3 history = %d samples, want 2", len(tr.History(ConstellationGPS, 3)))
	}
	if gps[1].ID != 7 || gps[1].Health != HealthUnhealthy || gps[1].Signal != nil {
		t.Errorf("satellite 7 = %+v, want unhealthy with no signal", gps[1])
	}
	if glo := tr.Satellites(ConstellationGLONASS); len(glo) != 1 || glo[0].ID != 65 {
		t.Errorf("GLONASS table = %+v", glo)
	}

	fix, ok := tr.Fix()
	if !ok || !closeTo(fix.Latitude, 48.1173, 1e-9) || fix.Time.IsZero() {
		t.Errorf("Fix() = %+v, %v", fix, ok)
	}
	if tr.Filtered() != 1 {
		t.Errorf("tracker Filtered() = %d, want 1", tr.Filtered())
	}
}

func TestSessionChunkBoundaries(t *testing.T) {
	whole := newTestSession()
	whole.Feed([]byte(testStream))
	want := whole.Tracker().Snapshot()

	for _, size := range []int{1, 2, 3, 7, 13, 64} {
		s := newTestSession()
		for i := 0; i < len(testStream); i += size {
			end := i + size
			if end > len(testStream) {
				end = len(testStream)
			}
			s.Feed([]byte(testStream[i:end]))
		}

		if s.Stats() != whole.Stats() {
			t.Errorf("chunk size %d: stats = %+v, want %+v", size, s.Stats(), whole.Stats())
		}
		got := s.Tracker().Snapshot()
		for _, c := range Constellations {
			if len(got.Satellites[c]) != len(want.Satellites[c]) {
				t.Errorf("chunk size %d: %v has %d satellites, want %d", size, c, len(got.Satellites[c]), len(want.Satellites[c]))
			}
		}
	}
}

func TestSessionHooks(t *testing.T) {
	s := newTestSession()

	var (
		sentences []string
		tables    = map[Constellation]int{}
		fixes     int
		filtered  []int
		failures  []error
	)
	s.SetHooks(Hooks{
		OnSentence:   func(sen Sentence) { sentences = append(sentences, sen.Type) },
		OnSatellites: func(c Constellation, table []SatelliteRecord) { tables[c] = len(table) },
		OnFix:        func(FixRecord) { fixes++ },
		OnFiltered:   func(r SatelliteRecord) { filtered = append(filtered, r.ID) },
		OnError:      func(line string, err error) { failures = append(failures, err) },
	})

	s.Feed([]byte(testStream))

	if strings.Join(sentences, ",") != "GGA,GSV,GSV,GSV" {
		t.Errorf("OnSentence types = %v", sentences)
	}
	if tables[ConstellationGPS] != 4 || tables[ConstellationGLONASS] != 1 {
		t.Errorf("OnSatellites tables = %v", tables)
	}
	if fixes != 1 {
		t.Errorf("OnFix called %d times, want 1", fixes)
	}
	if len(filtered) != 1 || filtered[0] != 200 {
		t.Errorf("OnFiltered IDs = %v, want [200]", filtered)
	}
	if len(failures) != 2 {
		t.Fatalf("OnError called %d times, want 2", len(failures))
	}
	if !errors.Is(failures[0], ErrUnsupportedSentence) || !errors.Is(failures[1], ErrMalformedSentence) {
		t.Errorf("OnError errors = %v", failures)
	}
}

func TestSessionReset(t *testing.T) {
	s := newTestSession()
	s.Feed([]byte(testStream + "$GPGSV,1,1,01,0"))
	if s.Pending() == "" {
		t.Fatal("Pending() is empty, want partial sentence")
	}

	s.Reset()

	if s.Pending() != "" {
		t.Errorf("Pending() after Reset = %q", s.Pending())
	}
	if snap := s.Tracker().Snapshot(); snap.Count() != 0 || snap.Fix != nil {
		t.Errorf("tracker after Reset = %+v", snap)
	}

	// The tail of the interrupted sentence must not corrupt the next one.
	st := s.Feed([]byte("5,10,100,20\r\n$GPGSV,1,1,01,05,10,100,20\r\n"))
	if st.Decoded != 1 || st.Rejected != 1 {
		t.Errorf("Feed() after Reset stats = %+v, want 1 decoded 1 rejected", st)
	}
}

func TestSessionFixTimestamp(t *testing.T) {
	s := newTestSession()
	when := time.Date(2024, 4, 10, 12, 35, 19, 0, time.UTC)
	s.now = func() time.Time { return when }

	s.Feed([]byte("$GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,*47\n"))
	fix, ok := s.Tracker().Fix()
	if !ok || !fix.Time.Equal(when) {
		t.Errorf("Fix().Time = %v, want %v", fix.Time, when)
	}
}

func TestSessionOverflowStats(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxLineLength = 32
	s := NewSession(cfg, NewTracker(4))

	st := s.Feed([]byte(strings.Repeat("#", 100) + "\n$GPGSV,1,1,01,05,10,100,20\n"))
	if st.Overflows != 1 || st.Decoded != 1 {
		t.Errorf("Feed() stats = %+v, want 1 overflow 1 decoded", st)
	}
}
