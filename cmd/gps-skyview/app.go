package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.bug.st/serial"

	"github.com/Bucknalla/go-gps-skyview/gps"
	"github.com/Bucknalla/go-gps-skyview/gps/orbit"
	"github.com/Bucknalla/go-gps-skyview/internal/config"
	"github.com/Bucknalla/go-gps-skyview/internal/metrics"
	"github.com/Bucknalla/go-gps-skyview/internal/server"
	"github.com/Bucknalla/go-gps-skyview/internal/storage/sqlite"
	"github.com/Bucknalla/go-gps-skyview/pkg/logger"
)

// app holds the collaborators shared by every input mode
type app struct {
	cfg     *config.Config
	gpsCfg  gps.Config
	log     *logger.Logger
	tracker *gps.Tracker
	metrics *metrics.Collector
	storage *sqlite.TrackStorage
	gpx     *gps.GPXWriter
	server  *server.Server
	now     func() time.Time
}

func newApp(cfg *config.Config, reg prometheus.Registerer, log *logger.Logger) (*app, error) {
	gpsCfg, err := cfg.GPSConfig()
	if err != nil {
		return nil, err
	}
	if err := gpsCfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid tracking configuration: %w", err)
	}

	collector, err := metrics.NewCollector(reg)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:     cfg,
		gpsCfg:  gpsCfg,
		log:     log,
		tracker: gps.NewTracker(gpsCfg.HistoryCapacity),
		metrics: collector,
		now:     time.Now,
	}

	if cfg.Storage.Enabled {
		if err := os.MkdirAll(filepath.Dir(cfg.Storage.SQLitePath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		a.storage, err = sqlite.NewTrackStorage(cfg.Storage.SQLitePath, log)
		if err != nil {
			return nil, err
		}
	}

	if cfg.Almanac.GPXPath != "" {
		a.gpx, err = gps.NewGPXWriter(cfg.Almanac.GPXPath)
		if err != nil {
			a.Close()
			return nil, err
		}
		log.Info("Recording GPX track", logger.String("path", cfg.Almanac.GPXPath))
	}

	return a, nil
}

// Close flushes the GPX file and closes storage
func (a *app) Close() error {
	var errs []error
	if a.gpx != nil {
		errs = append(errs, a.gpx.Close())
	}
	if a.storage != nil {
		errs = append(errs, a.storage.Close())
	}
	return errors.Join(errs...)
}

// logDeclination reports the magnetic declination at the observer so a
// compass-referenced sky plot can be drawn.
func (a *app) logDeclination() (float64, bool) {
	decl, err := orbit.MagneticDeclination(a.gpsCfg.Observer, a.now())
	if err != nil {
		a.log.Warn("Magnetic declination unavailable", logger.Error(err))
		return 0, false
	}
	a.log.Info("Observer",
		logger.Float64("latitude", a.gpsCfg.Observer.Latitude),
		logger.Float64("longitude", a.gpsCfg.Observer.Longitude),
		logger.Float64("altitude", a.gpsCfg.Observer.Altitude),
		logger.Float64("declination", decl))
	return decl, true
}

func (a *app) hooks() gps.Hooks {
	log := a.log.Named("session")
	return gps.Hooks{
		OnSentence: a.metrics.ObserveSentence,
		OnSatellites: func(c gps.Constellation, table []gps.SatelliteRecord) {
			a.saveSamples(c, table)
		},
		OnFix: func(fix gps.FixRecord) {
			if a.gpx != nil {
				a.gpx.AddFix(fix)
			}
			if a.server != nil {
				a.server.Hub().Broadcast(server.MessageTypeFix, fix)
			}
			if a.storage != nil {
				if err := a.storage.SaveFix(fix); err != nil {
					log.Warn("Failed to store fix", logger.Error(err))
				}
			}
		},
		OnFiltered: func(rec gps.SatelliteRecord) {
			log.Debug("Filtered satellite", logger.Int("id", rec.ID))
		},
		OnError: func(line string, err error) {
			a.metrics.ObserveDecodeError(err)
			log.Debug("Decode failed", logger.String("line", line), logger.Error(err))
		},
	}
}

func (a *app) saveSamples(c gps.Constellation, records []gps.SatelliteRecord) {
	if a.storage == nil || len(records) == 0 {
		return
	}
	if err := a.storage.SaveSamples(c, records, a.now()); err != nil {
		a.log.Warn("Failed to store samples", logger.Error(err), logger.String("constellation", c.String()))
	}
}

// streamNMEA feeds r into a session until EOF, a read error or ctx ends.
// A read error resets the session as a disconnect would.
func (a *app) streamNMEA(ctx context.Context, r io.Reader) error {
	session := gps.NewSession(a.gpsCfg, a.tracker)
	session.SetHooks(a.hooks())

	buf := make([]byte, a.cfg.Input.ChunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		n, err := r.Read(buf)
		if n > 0 {
			st := session.Feed(buf[:n])
			a.metrics.ObserveStats(st)
			a.metrics.SetVisible(a.tracker.Snapshot())
		}
		if errors.Is(err, io.EOF) {
			stats := session.Stats()
			a.log.Info("Stream ended",
				logger.Int("lines", stats.Lines),
				logger.Int("decoded", stats.Decoded),
				logger.Int("rejected", stats.Rejected),
				logger.Int("filtered", stats.Filtered))
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			session.Reset()
			return fmt.Errorf("read failed: %w", err)
		}
	}
}

// computeSky propagates the almanac once and merges the result into the
// tracker. Every satellite is kept in the tables so a setting satellite's
// track ends below the horizon instead of freezing at its last visible spot.
func (a *app) computeSky(ctx context.Context, sky *gps.SkyView, alm gps.Almanac) ([]gps.SatelliteRecord, error) {
	records, err := sky.ComputeParallel(ctx, alm, a.now())
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if err != nil {
		a.metrics.ObservePropagationError(err)
		a.log.Warn("Propagation failures", logger.Error(err))
	}

	groups := gps.GroupByConstellation(records)
	for _, c := range gps.Constellations {
		if batch, ok := groups[c]; ok {
			a.tracker.Update(c, batch)
		}
	}

	visible := gps.Visible(records, a.gpsCfg.ElevationMask)
	visibleGroups := gps.GroupByConstellation(visible)
	for c, batch := range visibleGroups {
		a.saveSamples(c, batch)
	}
	a.metrics.SetVisible(gps.Snapshot{Satellites: visibleGroups})
	return visible, nil
}

// runAlmanac recomputes the sky every step until ctx ends
func (a *app) runAlmanac(ctx context.Context, alm gps.Almanac) error {
	sky, err := gps.NewSkyView(a.gpsCfg)
	if err != nil {
		return err
	}

	step := time.Duration(a.cfg.Almanac.StepSecs) * time.Second
	ticker := time.NewTicker(step)
	defer ticker.Stop()

	for {
		visible, err := a.computeSky(ctx, sky, alm)
		if err != nil {
			return nil
		}
		a.log.Debug("Sky computed", logger.Int("visible", len(visible)))

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// runSimulator loops a virtual receiver's NMEA output back through the
// stream decoder, exercising the same path as a serial receiver.
func (a *app) runSimulator(ctx context.Context, alm gps.Almanac) error {
	sim, err := gps.NewSimulator(a.gpsCfg, alm)
	if err != nil {
		return err
	}

	pr, pw := io.Pipe()
	sim.SetNMEAWriter(pw)
	sim.AddCallback(func(data gps.NMEAData) {
		if data.Err != nil {
			a.metrics.ObservePropagationError(data.Err)
			a.log.Warn("Propagation failures", logger.Error(data.Err))
		}
	})
	if err := sim.Start(); err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		sim.Stop()
		pw.Close()
	}()

	return a.streamNMEA(ctx, pr)
}

// openInput returns the NMEA byte stream for the configured source
func (a *app) openInput() (io.ReadCloser, error) {
	switch a.cfg.Input.Source {
	case config.SourceSerial:
		mode := &serial.Mode{
			BaudRate: a.cfg.Input.BaudRate,
			Parity:   serial.NoParity,
			DataBits: 8,
			StopBits: serial.OneStopBit,
		}
		port, err := serial.Open(a.cfg.Input.SerialPort, mode)
		if err != nil {
			return nil, fmt.Errorf("failed to open serial port %s: %w", a.cfg.Input.SerialPort, err)
		}
		// bounded reads so cancellation is noticed on a silent port
		if err := port.SetReadTimeout(time.Second); err != nil {
			port.Close()
			return nil, fmt.Errorf("failed to set read timeout: %w", err)
		}
		a.log.Info("Opened serial port",
			logger.String("port", a.cfg.Input.SerialPort),
			logger.Int("baud", a.cfg.Input.BaudRate))
		return port, nil
	case config.SourceFile:
		f, err := os.Open(a.cfg.Input.File)
		if err != nil {
			return nil, fmt.Errorf("failed to open NMEA file: %w", err)
		}
		return f, nil
	case config.SourceStdin:
		return os.Stdin, nil
	}
	return nil, fmt.Errorf("source %q is not a byte stream", a.cfg.Input.Source)
}

// run dispatches on the input source until ctx ends or the input is exhausted
func (a *app) run(ctx context.Context) error {
	switch a.cfg.Input.Source {
	case config.SourceAlmanac, config.SourceSimulator:
		alm, err := gps.LoadAlmanacFile(a.cfg.Almanac.Path)
		if err != nil {
			if len(alm) == 0 {
				return err
			}
			a.log.Warn("Skipped almanac entries", logger.Error(err))
		}
		a.log.Info("Loaded almanac", logger.Int("entries", len(alm)))
		if a.cfg.Input.Source == config.SourceAlmanac {
			return a.runAlmanac(ctx, alm)
		}
		return a.runSimulator(ctx, alm)
	}

	in, err := a.openInput()
	if err != nil {
		return err
	}
	defer in.Close()

	go func() {
		<-ctx.Done()
		in.Close()
	}()
	return a.streamNMEA(ctx, in)
}

// serve starts the HTTP surface when enabled
func (a *app) serve(ctx context.Context) {
	if !a.cfg.Server.Enabled {
		return
	}

	srvCfg := server.Config{Metrics: a.metrics.Handler()}
	if a.storage != nil {
		srvCfg.History = a.storage
	}
	srv := server.NewServer(a.tracker, srvCfg, a.log)
	a.server = srv

	go srv.BroadcastSnapshots(ctx, time.Duration(a.cfg.Server.BroadcastSecs)*time.Second)
	go func() {
		err := srv.ListenAndServe(ctx, a.cfg.Server.Address(),
			time.Duration(a.cfg.Server.ReadTimeoutSecs)*time.Second,
			time.Duration(a.cfg.Server.WriteTimeoutSecs)*time.Second)
		if err != nil {
			a.log.Error("HTTP server failed", logger.Error(err))
		}
	}()
}
