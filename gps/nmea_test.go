package gps

import (
	"strings"
	"testing"
	"time"
)

func TestCalculateChecksum(t *testing.T) {
	tests := []struct {
		sentence string
		want     string
	}{
		{"$GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,", "47"},
		{"GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,", "47"},
		{"$GPGSV,3,1,11,03,03,111,00,04,15,270,00,06,01,010,00,13,06,292,00", "74"},
	}
	for _, tt := range tests {
		if got := calculateChecksum(tt.sentence); got != tt.want {
			t.Errorf("calculateChecksum(%q) = %q, want %q", tt.sentence, got, tt.want)
		}
	}
}

func TestFormatNMEA(t *testing.T) {
	got := formatNMEA("$GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,")
	want := "$GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,*47\r\n"
	if got != want {
		t.Errorf("formatNMEA() = %q, want %q", got, want)
	}
}

func TestFormatGGARoundTrip(t *testing.T) {
	ts := time.Date(2024, 4, 10, 12, 35, 19, 0, time.UTC)
	fix := FixRecord{Latitude: -33.8688, Longitude: 151.2093, Altitude: 58, Quality: 1, Satellites: 9, HDOP: 1.2}

	sentence := FormatGGA(fix, ts)
	if !strings.HasPrefix(sentence, "$GPGGA,123519,") || !strings.HasSuffix(sentence, "\r\n") {
		t.Fatalf("FormatGGA() = %q", sentence)
	}

	res, err := Decoder{RequireChecksum: true}.Decode(sentence)
	if err != nil {
		t.Fatalf("Decode(FormatGGA()) error = %v", err)
	}
	got := *res.Fix
	if !closeTo(got.Latitude, fix.Latitude, 1e-5) || !closeTo(got.Longitude, fix.Longitude, 1e-5) {
		t.Errorf("position = %v,%v, want %v,%v", got.Latitude, got.Longitude, fix.Latitude, fix.Longitude)
	}
	if got.Quality != 1 || got.Satellites != 9 || got.HDOP != 1.2 || got.Altitude != 58 {
		t.Errorf("decoded fix = %+v", got)
	}
}

func TestFormatGGANoFix(t *testing.T) {
	sentence := FormatGGA(FixRecord{}, time.Date(2024, 4, 10, 0, 0, 0, 0, time.UTC))
	if !strings.HasPrefix(sentence, "$GPGGA,000000,,,,,0,00,") {
		t.Errorf("FormatGGA() = %q, want no-fix form", sentence)
	}
}

func TestFormatGSV(t *testing.T) {
	sats := []SatelliteRecord{
		{ID: 3, Elevation: 45.4, Azimuth: 120.6, Signal: float64Ptr(40)},
		{ID: 7, Elevation: 12, Azimuth: 359.7, Signal: float64Ptr(22)},
		{ID: 11, Elevation: 80, Azimuth: 5},
		{ID: 19, Elevation: 30, Azimuth: 270, Signal: float64Ptr(35)},
		{ID: 24, Elevation: 5, Azimuth: 90, Signal: float64Ptr(12)},
	}

	sentences := FormatGSV("GP", sats)
	if len(sentences) != 2 {
		t.Fatalf("FormatGSV() produced %d sentences, want 2", len(sentences))
	}
	if !strings.HasPrefix(sentences[0], "$GPGSV,2,1,05,03,45,121,40,07,12,000,22,11,80,005,,") {
		t.Errorf("first sentence = %q", sentences[0])
	}
	if !strings.HasPrefix(sentences[1], "$GPGSV,2,2,05,24,05,090,12,,,,,,,,,,,,*") {
		t.Errorf("second sentence = %q", sentences[1])
	}

	var decoded []SatelliteRecord
	for _, s := range sentences {
		res, err := Decoder{RequireChecksum: true}.Decode(s)
		if err != nil {
			t.Fatalf("Decode(%q) error = %v", s, err)
		}
		decoded = append(decoded, res.Satellites...)
	}
	if len(decoded) != len(sats) {
		t.Fatalf("decoded %d satellites, want %d", len(decoded), len(sats))
	}
	if decoded[2].Signal != nil || decoded[2].Health != HealthUnhealthy {
		t.Errorf("satellite without SNR decoded as %+v", decoded[2])
	}
}

func TestFormatGSVEmpty(t *testing.T) {
	sentences := FormatGSV("GL", nil)
	if len(sentences) != 1 || !strings.HasPrefix(sentences[0], "$GLGSV,1,1,00,,,,") {
		t.Errorf("FormatGSV(nil) = %q", sentences)
	}
}
