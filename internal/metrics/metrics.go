package metrics

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Bucknalla/go-gps-skyview/gps"
	"github.com/Bucknalla/go-gps-skyview/gps/orbit"
)

// Collector bundles the Prometheus metrics for stream decoding and
// almanac propagation.
type Collector struct {
	gatherer prometheus.Gatherer

	Lines               prometheus.Counter
	Decoded             *prometheus.CounterVec
	Rejected            *prometheus.CounterVec
	Filtered            prometheus.Counter
	Overflows           prometheus.Counter
	PropagationFailures *prometheus.CounterVec
	Visible             *prometheus.GaugeVec
}

// NewCollector registers the metrics against reg, defaulting to the global
// registry when nil.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	c := &Collector{
		gatherer: gatherer,
		Lines: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "skyview_lines_total",
			Help: "Non-empty lines assembled from the NMEA stream.",
		}),
		Decoded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "skyview_sentences_decoded_total",
			Help: "Sentences decoded, labeled by sentence type.",
		}, []string{"type"}),
		Rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "skyview_sentences_rejected_total",
			Help: "Lines that failed to decode, labeled by reason.",
		}, []string{"reason"}),
		Filtered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "skyview_satellites_filtered_total",
			Help: "Satellite records dropped for an unknown constellation or non-finite coordinates.",
		}),
		Overflows: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "skyview_assembler_overflows_total",
			Help: "Over-long unterminated lines discarded by the line assembler.",
		}),
		PropagationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "skyview_propagation_failures_total",
			Help: "Almanac entries that could not be propagated, labeled by reason.",
		}, []string{"reason"}),
		Visible: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "skyview_satellites_visible",
			Help: "Satellites currently tracked, labeled by constellation.",
		}, []string{"constellation"}),
	}

	for _, m := range []prometheus.Collector{
		c.Lines, c.Decoded, c.Rejected, c.Filtered, c.Overflows, c.PropagationFailures, c.Visible,
	} {
		if err := reg.Register(m); err != nil {
			return nil, fmt.Errorf("register metric: %w", err)
		}
	}
	return c, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}

// ObserveStats adds one Feed result to the stream counters.
func (c *Collector) ObserveStats(st gps.Stats) {
	if c == nil {
		return
	}
	c.Lines.Add(float64(st.Lines))
	c.Filtered.Add(float64(st.Filtered))
	c.Overflows.Add(float64(st.Overflows))
}

// ObserveSentence counts a decoded sentence.
func (c *Collector) ObserveSentence(s gps.Sentence) {
	if c == nil {
		return
	}
	c.Decoded.WithLabelValues(s.Type).Inc()
}

// ObserveDecodeError counts a rejected line.
func (c *Collector) ObserveDecodeError(err error) {
	if c == nil {
		return
	}
	c.Rejected.WithLabelValues(DecodeReason(err)).Inc()
}

// ObservePropagationError counts each failure joined into err.
func (c *Collector) ObservePropagationError(err error) {
	if c == nil || err == nil {
		return
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range joined.Unwrap() {
			c.PropagationFailures.WithLabelValues(PropagationReason(e)).Inc()
		}
		return
	}
	c.PropagationFailures.WithLabelValues(PropagationReason(err)).Inc()
}

// SetVisible replaces the per-constellation gauges from a snapshot.
func (c *Collector) SetVisible(snap gps.Snapshot) {
	if c == nil {
		return
	}
	for _, con := range gps.Constellations {
		c.Visible.WithLabelValues(con.String()).Set(float64(len(snap.Satellites[con])))
	}
}

// DecodeReason maps a decode error onto a low-cardinality label.
func DecodeReason(err error) string {
	switch {
	case errors.Is(err, gps.ErrChecksum):
		return "checksum"
	case errors.Is(err, gps.ErrMalformedCoordinate):
		return "coordinate"
	case errors.Is(err, gps.ErrMalformedSentence):
		return "malformed"
	case errors.Is(err, gps.ErrEmptySentence):
		return "empty"
	case errors.Is(err, gps.ErrUnsupportedSentence):
		return "unsupported"
	default:
		return "other"
	}
}

// PropagationReason maps a propagation error onto a low-cardinality label.
func PropagationReason(err error) string {
	switch {
	case errors.Is(err, orbit.ErrNoConvergence):
		return "convergence"
	case errors.Is(err, orbit.ErrNonFinite):
		return "non_finite"
	case errors.Is(err, orbit.ErrInvalidEccentricity), errors.Is(err, orbit.ErrInvalidSemiMajorAxis):
		return "invalid_elements"
	case errors.Is(err, gps.ErrNoOrbit):
		return "no_orbit"
	default:
		return "other"
	}
}
