package gps

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/Bucknalla/go-gps-skyview/gps/orbit"
)

// Status represents the current simulator status
type Status struct {
	Running     bool              `json:"running"`
	StartTime   time.Time         `json:"start_time,omitempty"`
	ElapsedTime time.Duration     `json:"elapsed_time"`
	Satellites  []SatelliteRecord `json:"satellites"`
	Almanac     int               `json:"almanac"`
	Failures    int               `json:"propagation_failures"`
	Config      Config            `json:"config"`
}

// NMEAData contains the sentences emitted for one epoch
type NMEAData struct {
	Sentences  []string          `json:"sentences"`
	Satellites []SatelliteRecord `json:"satellites"`
	Timestamp  time.Time         `json:"timestamp"`
	// Err joins the propagation failures of this epoch; failed satellites
	// are missing from Satellites.
	Err error `json:"-"`
}

// Simulator is a virtual receiver: on every tick it propagates an almanac
// for the configured observer and emits the GGA and GSV sentences a real
// receiver at that spot would send.
type Simulator struct {
	mu         sync.RWMutex
	config     Config
	sky        *SkyView
	almanac    Almanac
	satellites []SatelliteRecord
	failures   int
	nmeaWriter io.Writer
	startTime  time.Time
	clock      func() time.Time
	// Control fields
	running   bool
	ctx       context.Context
	cancel    context.CancelFunc
	ticker    *time.Ticker
	callbacks []func(NMEAData)
}

// NewSimulator creates a new simulator for the given almanac
func NewSimulator(config Config, almanac Almanac) (*Simulator, error) {
	if len(almanac) == 0 {
		return nil, ErrEmptyAlmanac
	}
	sky, err := NewSkyView(config)
	if err != nil {
		return nil, err
	}

	return &Simulator{
		config:    config,
		sky:       sky,
		almanac:   almanac,
		clock:     time.Now,
		callbacks: make([]func(NMEAData), 0),
	}, nil
}

// SetNMEAWriter sets the writer for NMEA output
func (s *Simulator) SetNMEAWriter(writer io.Writer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nmeaWriter = writer
}

// AddCallback adds a callback function that will be called with each NMEA data update
func (s *Simulator) AddCallback(callback func(NMEAData)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callbacks = append(s.callbacks, callback)
}

// Start starts the simulation
func (s *Simulator) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrSimulatorAlreadyRunning
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.ticker = time.NewTicker(s.config.OutputRate)
	s.running = true
	s.startTime = s.clock()

	go s.run(s.ctx, s.ticker)
	return nil
}

// Stop stops the simulation
func (s *Simulator) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return ErrSimulatorNotRunning
	}

	s.cancel()
	s.ticker.Stop()
	s.running = false
	return nil
}

// IsRunning returns whether the simulator is currently running
func (s *Simulator) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// GetStatus returns the current simulator status
func (s *Simulator) GetStatus() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var elapsedTime time.Duration
	if s.running {
		elapsedTime = s.clock().Sub(s.startTime)
	}

	return Status{
		Running:     s.running,
		StartTime:   s.startTime,
		ElapsedTime: elapsedTime,
		Satellites:  append([]SatelliteRecord(nil), s.satellites...),
		Almanac:     len(s.almanac),
		Failures:    s.failures,
		Config:      s.config,
	}
}

// run is the main simulation loop
func (s *Simulator) run(ctx context.Context, ticker *time.Ticker) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(s.clock())
		}
	}
}

// Tick computes the sky at t, writes its sentences and notifies callbacks.
func (s *Simulator) Tick(t time.Time) NMEAData {
	records, err := s.sky.Compute(s.almanac, t)
	visible := Visible(records, s.config.ElevationMask)
	sentences := Sentences(s.sky.Observer(), visible, t)

	data := NMEAData{
		Sentences:  sentences,
		Satellites: visible,
		Timestamp:  t,
		Err:        err,
	}

	s.mu.Lock()
	s.satellites = visible
	s.failures += len(s.almanac) - len(records)
	writer := s.nmeaWriter
	callbacks := append([]func(NMEAData){}, s.callbacks...)
	s.mu.Unlock()

	// Output to writer if set
	if writer != nil {
		for _, sentence := range sentences {
			fmt.Fprint(writer, sentence)
		}
	}

	for _, callback := range callbacks {
		go callback(data) // Call async to avoid blocking
	}
	return data
}

// Sentences renders one receiver epoch: a GGA for the position followed by
// GSV groups per talker. Fewer than four satellites yields a no-fix GGA.
func Sentences(obs orbit.Observer, satellites []SatelliteRecord, t time.Time) []string {
	fix := FixRecord{Latitude: obs.Latitude, Longitude: obs.Longitude, Altitude: obs.Altitude}
	if len(satellites) >= 4 {
		fix.Quality = 1
		fix.Satellites = len(satellites)
		fix.HDOP = 1.2
	}
	sentences := []string{FormatGGA(fix, t)}

	byTalker := make(map[string][]SatelliteRecord)
	for _, sat := range satellites {
		talker := talkerFor(sat.Constellation)
		byTalker[talker] = append(byTalker[talker], sat)
	}
	for _, talker := range []string{"GP", "GL", "GA", "GB"} {
		if sats, ok := byTalker[talker]; ok {
			sentences = append(sentences, FormatGSV(talker, sats)...)
		}
	}
	return sentences
}
