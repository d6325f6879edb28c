package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Bucknalla/go-gps-skyview/internal/config"
	"github.com/Bucknalla/go-gps-skyview/pkg/logger"
)

// Version information - populated at build time via ldflags
var (
	Version   = "dev"     // Will be set to git tag if available, otherwise "dev"
	Commit    = "unknown" // Will be set to git commit hash
	BuildDate = "unknown" // Will be set to build timestamp
)

// options are the command line flags. They override the config file only
// when set explicitly.
type options struct {
	configPath  string
	showVersion bool
	source      string
	serialPort  string
	baudRate    int
	file        string
	almanac     string
	step        int
	lat         float64
	lon         float64
	altitude    float64
	mask        float64
	solver      string
	serve       bool
	port        int
	storage     string
	gpx         bool
	duration    time.Duration
	logLevel    string
}

func newFlagSet(opts *options) *flag.FlagSet {
	fs := flag.NewFlagSet("gps-skyview", flag.ContinueOnError)
	fs.StringVar(&opts.configPath, "config", "", "Path to TOML config file (default: configs/config.toml or config.toml if present)")
	fs.BoolVar(&opts.showVersion, "version", false, "Show version information and exit")
	fs.StringVar(&opts.source, "source", "", "Input source: serial, stdin, file, simulator or almanac")
	fs.StringVar(&opts.serialPort, "serial", "", "Serial port for NMEA input (e.g., /dev/ttyUSB0, COM1)")
	fs.IntVar(&opts.baudRate, "baud", 9600, "Serial port baud rate")
	fs.StringVar(&opts.file, "file", "", "NMEA capture file to read")
	fs.StringVar(&opts.almanac, "almanac", "", "Almanac JSON file for almanac and simulator sources")
	fs.IntVar(&opts.step, "step", 1, "Almanac propagation interval in seconds")
	fs.Float64Var(&opts.lat, "lat", 37.7749, "Observer latitude (decimal degrees)")
	fs.Float64Var(&opts.lon, "lon", -122.4194, "Observer longitude (decimal degrees)")
	fs.Float64Var(&opts.altitude, "altitude", 45.0, "Observer altitude in meters")
	fs.Float64Var(&opts.mask, "mask", 0.0, "Elevation mask in degrees")
	fs.StringVar(&opts.solver, "solver", "newton", "Kepler solver: newton or fixed-point")
	fs.BoolVar(&opts.serve, "serve", false, "Serve the HTTP API and websocket feed")
	fs.IntVar(&opts.port, "port", 8080, "HTTP port")
	fs.StringVar(&opts.storage, "storage", "", "SQLite database for track history (enables storage)")
	fs.BoolVar(&opts.gpx, "gpx", false, "Generate GPX track file with timestamp-based filename")
	fs.DurationVar(&opts.duration, "duration", 0, "How long to run (e.g., 30s, 5m, 1h). Default is indefinite")
	fs.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn or error")

	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: %s [options]\n", os.Args[0])
		fmt.Fprintf(fs.Output(), "\nGNSS sky view\n")
		fmt.Fprintf(fs.Output(), "Tracks satellites from a live NMEA stream or an almanac.\n\n")
		fmt.Fprintf(fs.Output(), "Options:\n")
		fs.PrintDefaults()
	}
	return fs
}

// applyFlags copies every explicitly set flag onto cfg
func applyFlags(cfg *config.Config, fs *flag.FlagSet, opts options, now time.Time) {
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "source":
			cfg.Input.Source = opts.source
		case "serial":
			cfg.Input.SerialPort = opts.serialPort
			if !isSet(fs, "source") {
				cfg.Input.Source = config.SourceSerial
			}
		case "baud":
			cfg.Input.BaudRate = opts.baudRate
		case "file":
			cfg.Input.File = opts.file
			if !isSet(fs, "source") {
				cfg.Input.Source = config.SourceFile
			}
		case "almanac":
			cfg.Almanac.Path = opts.almanac
		case "step":
			cfg.Almanac.StepSecs = opts.step
		case "lat", "lon", "altitude":
			// a file without an observer takes the flag defaults for the rest
			if cfg.Observer == (config.ObserverConfig{}) {
				cfg.Observer = config.ObserverConfig{Latitude: opts.lat, Longitude: opts.lon, Altitude: opts.altitude}
			}
			switch f.Name {
			case "lat":
				cfg.Observer.Latitude = opts.lat
			case "lon":
				cfg.Observer.Longitude = opts.lon
			default:
				cfg.Observer.Altitude = opts.altitude
			}
		case "mask":
			cfg.Tracking.ElevationMask = opts.mask
		case "solver":
			cfg.Tracking.Solver = opts.solver
		case "serve":
			cfg.Server.Enabled = opts.serve
		case "port":
			cfg.Server.Port = opts.port
		case "storage":
			cfg.Storage.Enabled = true
			cfg.Storage.SQLitePath = opts.storage
		case "gpx":
			if opts.gpx {
				cfg.Almanac.GPXPath = fmt.Sprintf("%s.gpx", now.Format("20060102_150405"))
			}
		case "log-level":
			cfg.Logging.Level = opts.logLevel
		}
	})
}

func isSet(fs *flag.FlagSet, name string) bool {
	set := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

// loadConfig reads the config file, or starts from defaults when none is
// given and none is found.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	cfg, err := config.LoadWithFallback("")
	if err != nil {
		return config.Default(), nil
	}
	return cfg, nil
}

func main() {
	var opts options
	fs := newFlagSet(&opts)
	if err := fs.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}

	// Handle version flag
	if opts.showVersion {
		if Version != "dev" {
			fmt.Printf("v%s\n", Version)
		} else {
			fmt.Printf("%s\n", Commit)
		}
		os.Exit(0)
	}

	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}
	applyFlags(cfg, fs, opts, time.Now())

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting GPS sky view",
		logger.String("version", Version),
		logger.String("commit", Commit),
		logger.String("source", cfg.Input.Source))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if opts.duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.duration)
		defer cancel()
	}

	if err := run(ctx, cfg, prometheus.NewRegistry(), log); err != nil {
		log.Error("Sky view stopped", logger.Error(err))
		log.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, reg *prometheus.Registry, log *logger.Logger) error {
	a, err := newApp(cfg, reg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Warn("Failed to close outputs", logger.Error(err))
		}
	}()

	a.logDeclination()
	a.serve(ctx)
	return a.run(ctx)
}
