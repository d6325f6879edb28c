package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/Bucknalla/go-gps-skyview/gps"
	"github.com/Bucknalla/go-gps-skyview/gps/orbit"
)

// Input sources
const (
	SourceSerial    = "serial"
	SourceStdin     = "stdin"
	SourceFile      = "file"
	SourceSimulator = "simulator"
	SourceAlmanac   = "almanac"
)

// Config is the application configuration
type Config struct {
	Input    InputConfig    `toml:"input"`
	Observer ObserverConfig `toml:"observer"`
	Tracking TrackingConfig `toml:"tracking"`
	Almanac  AlmanacConfig  `toml:"almanac"`
	Server   ServerConfig   `toml:"server"`
	Storage  StorageConfig  `toml:"storage"`
	Logging  LoggingConfig  `toml:"logging"`
}

// InputConfig selects where NMEA or almanac data comes from
type InputConfig struct {
	Source     string `toml:"source"`      // serial, stdin, file, simulator or almanac
	SerialPort string `toml:"serial_port"` // e.g. /dev/ttyUSB0
	BaudRate   int    `toml:"baud_rate"`
	File       string `toml:"file"`       // NMEA capture for source = "file"
	ChunkSize  int    `toml:"chunk_size"` // bytes per read
}

// ObserverConfig is the receiver position used for look angles
type ObserverConfig struct {
	Latitude  float64 `toml:"latitude"`
	Longitude float64 `toml:"longitude"`
	Altitude  float64 `toml:"altitude"` // metres above the ellipsoid
}

// TrackingConfig controls decoding and aggregation
type TrackingConfig struct {
	HistoryCapacity int     `toml:"history_capacity"`
	MaxLineLength   int     `toml:"max_line_length"`
	SignalCeiling   float64 `toml:"signal_ceiling"`
	ElevationMask   float64 `toml:"elevation_mask"`
	RequireChecksum bool    `toml:"require_checksum"`
	Solver          string  `toml:"solver"` // newton or fixed-point
	Tolerance       float64 `toml:"tolerance"`
	MaxIterations   int     `toml:"max_iterations"`
	Workers         int     `toml:"workers"`
}

// AlmanacConfig points at the element set used in almanac and simulator modes
type AlmanacConfig struct {
	Path     string `toml:"path"`
	StepSecs int    `toml:"step_seconds"` // propagation interval
	GPXPath  string `toml:"gpx_path"`     // optional fix trail export
}

// ServerConfig holds the HTTP listener settings
type ServerConfig struct {
	Enabled          bool   `toml:"enabled"`
	Host             string `toml:"host"`
	Port             int    `toml:"port"`
	ReadTimeoutSecs  int    `toml:"read_timeout_seconds"`
	WriteTimeoutSecs int    `toml:"write_timeout_seconds"`
	BroadcastSecs    int    `toml:"broadcast_seconds"` // websocket snapshot interval
}

// StorageConfig controls track persistence
type StorageConfig struct {
	Enabled    bool   `toml:"enabled"`
	SQLitePath string `toml:"sqlite_path"`
}

// LoggingConfig holds logger settings
type LoggingConfig struct {
	Level  string `toml:"level"`  // debug, info, warn or error
	Format string `toml:"format"` // json or console
}

// Default returns a configuration that reads NMEA from stdin
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// Load loads the configuration from the specified file path
func Load(path string) (*Config, error) {
	var config Config

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	if _, err := toml.DecodeFile(path, &config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	return &config, nil
}

// LoadWithFallback tries preferredPath and then the usual locations
func LoadWithFallback(preferredPath string) (*Config, error) {
	searchPaths := []string{
		preferredPath,
		"configs/config.toml",
		"config.toml",
	}

	uniquePaths := make([]string, 0, len(searchPaths))
	seen := make(map[string]bool)
	for _, path := range searchPaths {
		if path != "" && !seen[path] {
			uniquePaths = append(uniquePaths, path)
			seen[path] = true
		}
	}

	var lastErr error
	for _, path := range uniquePaths {
		if _, err := os.Stat(path); err == nil {
			config, err := Load(path)
			if err != nil {
				lastErr = fmt.Errorf("failed to load config from %s: %w", path, err)
				continue
			}
			return config, nil
		}
		lastErr = fmt.Errorf("config file not found: %s", path)
	}

	return nil, fmt.Errorf("config file not found in any of the expected locations: %v. Last error: %w", uniquePaths, lastErr)
}

func (c *Config) applyDefaults() {
	def := gps.DefaultConfig()

	if c.Input.Source == "" {
		c.Input.Source = SourceStdin
	}
	if c.Input.BaudRate == 0 {
		c.Input.BaudRate = 9600
	}
	if c.Input.ChunkSize == 0 {
		c.Input.ChunkSize = 512
	}
	// an all-zero observer section is treated as unset
	if c.Observer == (ObserverConfig{}) {
		c.Observer = ObserverConfig{
			Latitude:  def.Observer.Latitude,
			Longitude: def.Observer.Longitude,
			Altitude:  def.Observer.Altitude,
		}
	}
	if c.Tracking.HistoryCapacity == 0 {
		c.Tracking.HistoryCapacity = def.HistoryCapacity
	}
	if c.Tracking.MaxLineLength == 0 {
		c.Tracking.MaxLineLength = def.MaxLineLength
	}
	if c.Tracking.SignalCeiling == 0 {
		c.Tracking.SignalCeiling = def.SignalCeiling
	}
	if c.Tracking.Solver == "" {
		c.Tracking.Solver = def.Propagator.Solver.String()
	}
	if c.Tracking.Tolerance == 0 {
		c.Tracking.Tolerance = def.Propagator.Tolerance
	}
	if c.Tracking.MaxIterations == 0 {
		c.Tracking.MaxIterations = def.Propagator.MaxIterations
	}
	if c.Tracking.Workers == 0 {
		c.Tracking.Workers = def.Workers
	}
	if c.Almanac.StepSecs == 0 {
		c.Almanac.StepSecs = 1
	}
	if c.Server.Host == "" {
		c.Server.Host = "127.0.0.1"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeoutSecs == 0 {
		c.Server.ReadTimeoutSecs = 15
	}
	if c.Server.WriteTimeoutSecs == 0 {
		c.Server.WriteTimeoutSecs = 15
	}
	if c.Server.BroadcastSecs == 0 {
		c.Server.BroadcastSecs = 1
	}
	if c.Storage.SQLitePath == "" {
		c.Storage.SQLitePath = "data/skyview.db"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
}

// Validate fills unset fields with defaults and checks the result
func (c *Config) Validate() error {
	c.applyDefaults()

	switch c.Input.Source {
	case SourceSerial:
		if c.Input.SerialPort == "" {
			return fmt.Errorf("input source %q requires serial_port", c.Input.Source)
		}
	case SourceFile:
		if c.Input.File == "" {
			return fmt.Errorf("input source %q requires file", c.Input.Source)
		}
	case SourceSimulator, SourceAlmanac:
		if c.Almanac.Path == "" {
			return fmt.Errorf("input source %q requires almanac.path", c.Input.Source)
		}
	case SourceStdin:
	default:
		return fmt.Errorf("invalid input source: %s (must be 'serial', 'stdin', 'file', 'simulator' or 'almanac')", c.Input.Source)
	}

	if c.Input.BaudRate < 0 {
		return fmt.Errorf("invalid baud rate: %d", c.Input.BaudRate)
	}
	if c.Input.ChunkSize < 0 {
		return fmt.Errorf("invalid chunk size: %d", c.Input.ChunkSize)
	}
	if c.Almanac.StepSecs < 0 {
		return fmt.Errorf("invalid almanac step: %d", c.Almanac.StepSecs)
	}
	if c.Server.Enabled && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.BroadcastSecs < 0 {
		return fmt.Errorf("invalid broadcast interval: %d", c.Server.BroadcastSecs)
	}
	if _, err := orbit.ParseSolver(c.Tracking.Solver); err != nil {
		return err
	}

	gc, err := c.GPSConfig()
	if err != nil {
		return err
	}
	return gc.Validate()
}

// GPSConfig maps the file settings onto the core library config
func (c *Config) GPSConfig() (gps.Config, error) {
	solver, err := orbit.ParseSolver(c.Tracking.Solver)
	if err != nil {
		return gps.Config{}, err
	}

	gc := gps.DefaultConfig()
	gc.Observer = orbit.Observer{
		Latitude:  c.Observer.Latitude,
		Longitude: c.Observer.Longitude,
		Altitude:  c.Observer.Altitude,
	}
	gc.HistoryCapacity = c.Tracking.HistoryCapacity
	gc.MaxLineLength = c.Tracking.MaxLineLength
	gc.SignalCeiling = c.Tracking.SignalCeiling
	gc.ElevationMask = c.Tracking.ElevationMask
	gc.RequireChecksum = c.Tracking.RequireChecksum
	gc.Propagator.Solver = solver
	gc.Propagator.Tolerance = c.Tracking.Tolerance
	gc.Propagator.MaxIterations = c.Tracking.MaxIterations
	gc.Workers = c.Tracking.Workers
	if c.Almanac.StepSecs > 0 {
		gc.OutputRate = time.Duration(c.Almanac.StepSecs) * time.Second
	}
	return gc, nil
}

// Address returns host:port for the HTTP listener
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
