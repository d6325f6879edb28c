package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Bucknalla/go-gps-skyview/gps"
	"github.com/Bucknalla/go-gps-skyview/pkg/logger"
)

func testRecord(id int, el, az float64) gps.SatelliteRecord {
	signal := 30.0
	return gps.SatelliteRecord{ID: id, Elevation: el, Azimuth: az, Signal: &signal, Health: gps.HealthHealthy}
}

func createTestServer(t *testing.T, config Config) (*Server, *gps.Tracker) {
	t.Helper()
	tracker := gps.NewTracker(10)
	tracker.Update(gps.ConstellationGPS, []gps.SatelliteRecord{
		testRecord(12, 45, 120),
		testRecord(3, 10, 300),
	})
	tracker.Update(gps.ConstellationGLONASS, []gps.SatelliteRecord{testRecord(70, 60, 20)})
	return NewServer(tracker, config, logger.Nop()), tracker
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr
}

func TestSnapshotEndpoint(t *testing.T) {
	s, _ := createTestServer(t, Config{})
	rr := get(t, s.Handler(), "/api/snapshot")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	var body struct {
		Satellites map[string][]gps.SatelliteRecord `json:"satellites"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	gpsSats := body.Satellites["GPS"]
	if len(gpsSats) != 2 || gpsSats[0].ID != 3 || gpsSats[1].ID != 12 {
		t.Errorf("unexpected GPS table %+v", gpsSats)
	}
	if len(body.Satellites["GLONASS"]) != 1 {
		t.Errorf("expected one GLONASS satellite")
	}
}

func TestFixEndpoint(t *testing.T) {
	s, tracker := createTestServer(t, Config{})
	if rr := get(t, s.Handler(), "/api/fix"); rr.Code != http.StatusNotFound {
		t.Errorf("status without fix = %d, want 404", rr.Code)
	}

	tracker.UpdateFix(gps.FixRecord{Latitude: 37.7749, Longitude: -122.4194, Quality: 1, Satellites: 8})
	rr := get(t, s.Handler(), "/api/fix")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	var fix gps.FixRecord
	if err := json.NewDecoder(rr.Body).Decode(&fix); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if fix.Satellites != 8 || fix.Latitude != 37.7749 {
		t.Errorf("unexpected fix %+v", fix)
	}
}

func TestSatellitesEndpoint(t *testing.T) {
	s, _ := createTestServer(t, Config{})

	tests := []struct {
		path      string
		wantCode  int
		wantCount int
	}{
		{"/api/satellites/gps", http.StatusOK, 2},
		{"/api/satellites/GLONASS", http.StatusOK, 1},
		{"/api/satellites/galileo", http.StatusOK, 0},
		{"/api/satellites/unknown", http.StatusBadRequest, 0},
		{"/api/satellites/iridium", http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rr := get(t, s.Handler(), tt.path)
			if rr.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rr.Code, tt.wantCode)
			}
			if tt.wantCode != http.StatusOK {
				return
			}
			var body struct {
				Constellation string                `json:"constellation"`
				Satellites    []gps.SatelliteRecord `json:"satellites"`
			}
			if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Satellites == nil {
				t.Error("expected an array, got null")
			}
			if len(body.Satellites) != tt.wantCount {
				t.Errorf("got %d satellites, want %d", len(body.Satellites), tt.wantCount)
			}
		})
	}
}

type stubHistory struct {
	samples []gps.TrackSample
	err     error
	limit   int
}

func (h *stubHistory) RecentSamples(c gps.Constellation, id, limit int) ([]gps.TrackSample, error) {
	h.limit = limit
	return h.samples, h.err
}

func TestHistoryEndpoint(t *testing.T) {
	t.Run("tracker fallback", func(t *testing.T) {
		s, tracker := createTestServer(t, Config{})
		tracker.Update(gps.ConstellationGPS, []gps.SatelliteRecord{testRecord(12, 46, 121)})
		tracker.Update(gps.ConstellationGPS, []gps.SatelliteRecord{testRecord(12, 47, 122)})

		rr := get(t, s.Handler(), "/api/satellites/gps/12/history?limit=2")
		if rr.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rr.Code)
		}
		var body struct {
			Samples []gps.TrackSample `json:"samples"`
		}
		if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(body.Samples) != 2 || body.Samples[0].Elevation != 46 || body.Samples[1].Elevation != 47 {
			t.Errorf("unexpected samples %+v", body.Samples)
		}
	})

	t.Run("history source", func(t *testing.T) {
		stub := &stubHistory{samples: []gps.TrackSample{{Azimuth: 1, Elevation: 2}}}
		s, _ := createTestServer(t, Config{History: stub})
		rr := get(t, s.Handler(), "/api/satellites/gps/99/history")
		if rr.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rr.Code)
		}
		if stub.limit != 10 {
			t.Errorf("expected tracker capacity as default limit, got %d", stub.limit)
		}
	})

	t.Run("history error", func(t *testing.T) {
		s, _ := createTestServer(t, Config{History: &stubHistory{err: errors.New("disk gone")}})
		if rr := get(t, s.Handler(), "/api/satellites/gps/12/history"); rr.Code != http.StatusInternalServerError {
			t.Errorf("status = %d, want 500", rr.Code)
		}
	})

	t.Run("unseen satellite", func(t *testing.T) {
		s, _ := createTestServer(t, Config{})
		rr := get(t, s.Handler(), "/api/satellites/gps/31/history")
		if !strings.Contains(rr.Body.String(), `"samples":[]`) {
			t.Errorf("expected empty samples array, got %s", rr.Body.String())
		}
	})

	t.Run("bad limit", func(t *testing.T) {
		s, _ := createTestServer(t, Config{})
		if rr := get(t, s.Handler(), "/api/satellites/gps/12/history?limit=-1"); rr.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rr.Code)
		}
	})
}

func TestMetricsRoute(t *testing.T) {
	s, _ := createTestServer(t, Config{})
	if rr := get(t, s.Handler(), "/metrics"); rr.Code != http.StatusNotFound {
		t.Errorf("status without metrics handler = %d, want 404", rr.Code)
	}

	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("skyview_lines_total 1\n"))
	})
	s, _ = createTestServer(t, Config{Metrics: metrics})
	rr := get(t, s.Handler(), "/metrics")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "skyview_lines_total") {
		t.Errorf("unexpected /metrics response %d %q", rr.Code, rr.Body.String())
	}
}

func TestWebSocket(t *testing.T) {
	s, _ := createTestServer(t, Config{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Hub().Run(ctx)

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var greeting struct {
		Type string       `json:"type"`
		Data gps.Snapshot `json:"data"`
	}
	if err := conn.ReadJSON(&greeting); err != nil {
		t.Fatalf("read greeting: %v", err)
	}
	if greeting.Type != MessageTypeSnapshot || greeting.Data.Count() != 3 {
		t.Errorf("unexpected greeting %s with %d satellites", greeting.Type, greeting.Data.Count())
	}

	// registration happens after the greeting is queued
	deadline := time.Now().Add(2 * time.Second)
	for s.Hub().ClientCount() != 1 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if s.Hub().ClientCount() != 1 {
		t.Fatalf("expected 1 client, got %d", s.Hub().ClientCount())
	}

	if !s.Hub().Broadcast(MessageTypeFix, gps.FixRecord{Quality: 1}) {
		t.Fatal("broadcast dropped")
	}
	var msg Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read broadcast: %v", err)
	}
	if msg.Type != MessageTypeFix {
		t.Errorf("expected fix message, got %q", msg.Type)
	}

	cancel()
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("expected connection to close after hub shutdown")
	}
}

func TestBroadcastSnapshotsStops(t *testing.T) {
	s, _ := createTestServer(t, Config{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.BroadcastSnapshots(ctx, 5*time.Millisecond)
		close(done)
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("BroadcastSnapshots did not return after cancel")
	}
}
