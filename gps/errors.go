package gps

import "errors"

// Decode errors. A failed line is dropped; the stream carries on.
var (
	ErrEmptySentence        = errors.New("empty sentence")
	ErrChecksum             = errors.New("checksum mismatch")
	ErrMalformedSentence    = errors.New("malformed sentence")
	ErrMalformedCoordinate  = errors.New("malformed coordinate")
	ErrUnsupportedSentence  = errors.New("unsupported sentence type")
	ErrUnknownConstellation = errors.New("unknown constellation")
)

// Configuration and lifecycle errors
var (
	ErrInvalidHistoryCapacity  = errors.New("history capacity must be positive")
	ErrInvalidLineLength       = errors.New("max line length must be positive")
	ErrInvalidSignalCeiling    = errors.New("signal ceiling must be positive")
	ErrInvalidLatitude         = errors.New("latitude must be between -90 and 90 degrees")
	ErrInvalidLongitude        = errors.New("longitude must be between -180 and 180 degrees")
	ErrInvalidElevationMask    = errors.New("elevation mask must be between -90 and 90 degrees")
	ErrInvalidOutputRate       = errors.New("output rate must be positive")
	ErrInvalidWorkers          = errors.New("worker count must be positive")
	ErrEmptyAlmanac            = errors.New("almanac has no usable entries")
	ErrNoOrbit                 = errors.New("almanac entry has neither elements nor TLE")
	ErrSimulatorNotRunning     = errors.New("simulator is not running")
	ErrSimulatorAlreadyRunning = errors.New("simulator is already running")
)
