package logger

import (
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"defaults", Config{}, false},
		{"debug console", Config{Level: "debug", Format: "console"}, false},
		{"warn json", Config{Level: "WARN", Format: "json"}, false},
		{"bad level", Config{Level: "loud"}, true},
		{"bad format", Config{Format: "xml"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.config)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && l == nil {
				t.Fatal("New() returned nil logger")
			}
		})
	}
}

func TestLoggerFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := FromZap(zap.New(core)).Named("session")

	l.Debug("decode failed", String("line", "$GPXXX"), Error(errors.New("bad")))
	l.Warn("propagation failed", Int("id", 7), Float64("elevation", 12.5), Bool("tle", false))

	if logs.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", logs.Len())
	}
	first := logs.All()[0]
	if first.LoggerName != "session" {
		t.Errorf("expected logger name session, got %q", first.LoggerName)
	}
	if first.ContextMap()["line"] != "$GPXXX" {
		t.Errorf("unexpected context %v", first.ContextMap())
	}
	second := logs.All()[1]
	if second.Level != zapcore.WarnLevel {
		t.Errorf("expected warn level, got %v", second.Level)
	}
	if second.ContextMap()["id"] != int64(7) {
		t.Errorf("expected id 7, got %v", second.ContextMap()["id"])
	}
}

func TestNop(t *testing.T) {
	l := Nop()
	l.Info("ignored", Any("k", []int{1, 2}))
	if err := l.Sync(); err != nil {
		t.Errorf("Sync() error = %v", err)
	}
}
