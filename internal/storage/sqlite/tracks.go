package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Bucknalla/go-gps-skyview/gps"
	"github.com/Bucknalla/go-gps-skyview/pkg/logger"
)

// fixed width so timestamps sort as text
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// TrackStorage persists satellite track samples and receiver fixes
type TrackStorage struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewTrackStorage opens (or creates) the database at dbPath
func NewTrackStorage(dbPath string, log *logger.Logger) (*TrackStorage, error) {
	storageLogger := log.Named("sqlite")

	storageLogger.Info("Initializing SQLite storage",
		logger.String("path", dbPath))

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set %q: %w", pragma, err)
		}
	}

	if err := initDatabase(db, storageLogger); err != nil {
		db.Close()
		return nil, err
	}

	return &TrackStorage{db: db, logger: storageLogger}, nil
}

func initDatabase(db *sql.DB, log *logger.Logger) error {
	log.Info("Initializing database schema")

	statements := []string{
		`CREATE TABLE IF NOT EXISTS track_samples (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			constellation TEXT NOT NULL,
			sat_id INTEGER NOT NULL,
			azimuth REAL NOT NULL,
			elevation REAL NOT NULL,
			signal REAL,
			health TEXT,
			timestamp TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_track_samples_sat_timestamp
			ON track_samples(constellation, sat_id, timestamp DESC)`,
		`CREATE TABLE IF NOT EXISTS fixes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			latitude REAL NOT NULL,
			longitude REAL NOT NULL,
			altitude REAL NOT NULL,
			quality INTEGER NOT NULL,
			satellites INTEGER NOT NULL,
			hdop REAL NOT NULL,
			timestamp TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_fixes_timestamp ON fixes(timestamp DESC)`,
	}
	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
	}
	return nil
}

// Close closes the database connection
func (s *TrackStorage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SaveSamples stores one sample per record of a constellation table
func (s *TrackStorage) SaveSamples(c gps.Constellation, records []gps.SatelliteRecord, at time.Time) (err error) {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil {
				s.logger.Error("Failed to rollback transaction", logger.Error(rollbackErr))
			}
		}
	}()

	stmt, err := tx.Prepare(`
		INSERT INTO track_samples (constellation, sat_id, azimuth, elevation, signal, health, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	ts := at.UTC().Format(timeLayout)
	for _, rec := range records {
		var signal sql.NullFloat64
		if rec.Signal != nil {
			signal = sql.NullFloat64{Float64: *rec.Signal, Valid: true}
		}
		if _, err = stmt.Exec(c.String(), rec.ID, rec.Azimuth, rec.Elevation, signal, rec.Health.String(), ts); err != nil {
			return fmt.Errorf("failed to insert sample for satellite %d: %w", rec.ID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit samples: %w", err)
	}
	return nil
}

// SaveFix stores a receiver fix
func (s *TrackStorage) SaveFix(fix gps.FixRecord) error {
	at := fix.Time
	if at.IsZero() {
		at = time.Now()
	}
	_, err := s.db.Exec(`
		INSERT INTO fixes (latitude, longitude, altitude, quality, satellites, hdop, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, fix.Latitude, fix.Longitude, fix.Altitude, fix.Quality, fix.Satellites, fix.HDOP,
		at.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("failed to insert fix: %w", err)
	}
	return nil
}

// RecentSamples returns up to limit of the newest samples for a satellite,
// oldest first
func (s *TrackStorage) RecentSamples(c gps.Constellation, id, limit int) ([]gps.TrackSample, error) {
	rows, err := s.db.Query(`
		SELECT azimuth, elevation, timestamp
		FROM track_samples
		WHERE constellation = ? AND sat_id = ?
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, c.String(), id, limit)
	if err != nil {
		s.logger.Error("Error querying track samples", logger.Error(err), logger.Int("sat_id", id))
		return nil, err
	}
	defer rows.Close()

	samples := []gps.TrackSample{}
	for rows.Next() {
		var sample gps.TrackSample
		var timestamp string
		if err := rows.Scan(&sample.Azimuth, &sample.Elevation, &timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan sample: %w", err)
		}
		if sample.Time, err = time.Parse(timeLayout, timestamp); err != nil {
			return nil, fmt.Errorf("failed to parse timestamp %q: %w", timestamp, err)
		}
		samples = append(samples, sample)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// chronological order
	for i, j := 0, len(samples)-1; i < j; i, j = i+1, j-1 {
		samples[i], samples[j] = samples[j], samples[i]
	}
	return samples, nil
}

// LatestFix returns the most recently stored fix
func (s *TrackStorage) LatestFix() (gps.FixRecord, bool, error) {
	var fix gps.FixRecord
	var timestamp string
	err := s.db.QueryRow(`
		SELECT latitude, longitude, altitude, quality, satellites, hdop, timestamp
		FROM fixes
		ORDER BY timestamp DESC, id DESC
		LIMIT 1
	`).Scan(&fix.Latitude, &fix.Longitude, &fix.Altitude, &fix.Quality, &fix.Satellites, &fix.HDOP, &timestamp)
	if err == sql.ErrNoRows {
		return gps.FixRecord{}, false, nil
	}
	if err != nil {
		return gps.FixRecord{}, false, fmt.Errorf("failed to query fix: %w", err)
	}
	if fix.Time, err = time.Parse(timeLayout, timestamp); err != nil {
		return gps.FixRecord{}, false, fmt.Errorf("failed to parse timestamp %q: %w", timestamp, err)
	}
	return fix, true, nil
}
