package gps

import "math"

// EstimateSignal models signal strength from elevation alone: zero at or
// below the horizon, rising linearly to DefaultSignalCeiling at zenith.
func EstimateSignal(elevation float64) float64 {
	return SignalEstimator{Ceiling: DefaultSignalCeiling}.Estimate(elevation)
}

// FillSignal sets an estimated signal on rec if it has none.
func FillSignal(rec *SatelliteRecord) bool {
	return SignalEstimator{Ceiling: DefaultSignalCeiling}.Fill(rec)
}

// SignalEstimator is the placeholder signal model used when a receiver
// measurement is unavailable.
type SignalEstimator struct {
	Ceiling float64
}

// Estimate returns the modelled signal for an elevation in degrees, clamped
// to [0, Ceiling].
func (e SignalEstimator) Estimate(elevation float64) float64 {
	if math.IsNaN(elevation) || elevation <= 0 {
		return 0
	}
	v := elevation / 90 * e.Ceiling
	return math.Min(v, e.Ceiling)
}

// Fill estimates a signal for rec unless it already carries one. Measured
// values are never overwritten.
func (e SignalEstimator) Fill(rec *SatelliteRecord) bool {
	if rec.Signal != nil {
		return false
	}
	rec.Signal = float64Ptr(e.Estimate(rec.Elevation))
	return true
}
