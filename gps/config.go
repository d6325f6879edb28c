package gps

import (
	"math"
	"time"

	"github.com/Bucknalla/go-gps-skyview/gps/orbit"
)

// Default limits
const (
	DefaultHistoryCapacity = 120
	DefaultMaxLineLength   = 4096
	DefaultSignalCeiling   = 50.0
)

// Config holds all configuration options for the sky view core
type Config struct {
	Observer        orbit.Observer
	HistoryCapacity int     // samples kept per satellite
	MaxLineLength   int     // longest unterminated tail the assembler will hold
	SignalCeiling   float64 // estimated signal at zenith
	ElevationMask   float64 // degrees; satellites below are not reported as visible
	RequireChecksum bool    // reject sentences without a *HH suffix
	Propagator      orbit.PropagatorConfig
	Workers         int           // parallel propagation workers
	OutputRate      time.Duration // simulator sentence interval
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() Config {
	return Config{
		Observer: orbit.Observer{
			Latitude:  37.7749, // San Francisco
			Longitude: -122.4194,
			Altitude:  45.0,
		},
		HistoryCapacity: DefaultHistoryCapacity,
		MaxLineLength:   DefaultMaxLineLength,
		SignalCeiling:   DefaultSignalCeiling,
		ElevationMask:   0,
		RequireChecksum: false,
		Propagator:      orbit.DefaultPropagatorConfig(),
		Workers:         4,
		OutputRate:      1 * time.Second,
	}
}

// Validate checks if the configuration is valid and returns an error if not
func (c *Config) Validate() error {
	if c.HistoryCapacity <= 0 {
		return ErrInvalidHistoryCapacity
	}
	if c.MaxLineLength <= 0 {
		return ErrInvalidLineLength
	}
	if !(c.SignalCeiling > 0) {
		return ErrInvalidSignalCeiling
	}
	if !(c.Observer.Latitude >= -90 && c.Observer.Latitude <= 90) {
		return ErrInvalidLatitude
	}
	if !(c.Observer.Longitude >= -180 && c.Observer.Longitude <= 180) {
		return ErrInvalidLongitude
	}
	if math.IsNaN(c.ElevationMask) || c.ElevationMask < -90 || c.ElevationMask > 90 {
		return ErrInvalidElevationMask
	}
	if c.Workers <= 0 {
		return ErrInvalidWorkers
	}
	if c.OutputRate <= 0 {
		return ErrInvalidOutputRate
	}
	return nil
}
