// Package store persists client-side state between runs: the last
// search, the view-mode preference and an anonymized search log.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"math"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/tankfinder/tankfinder/pkg/api"
)

const (
	// Search-log coordinates are rounded to ~1km so the log never
	// stores a precise position.
	logPrecisionDecimals = 2

	busyTimeoutMs = 10000

	// ViewModeList and ViewModeMap are the persisted view-mode values.
	ViewModeList = "list"
	ViewModeMap  = "map"

	viewModeKey = "view_mode"
)

// Store wraps the sqlite database holding client state.
type Store struct {
	db  *sql.DB
	log *slog.Logger
}

// Open opens (and if needed initializes) the state database at path.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	db, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	if err := configurePragmas(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	if err := createTables(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("error creating tables: %w", err)
	}

	return &Store{db: db, log: logger}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func configurePragmas(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout = %d;", busyTimeoutMs)); err != nil {
		return fmt.Errorf("error setting busy timeout: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode = WAL;"); err != nil {
		return fmt.Errorf("error setting journal mode: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA synchronous = NORMAL;"); err != nil {
		return fmt.Errorf("error setting synchronous: %w", err)
	}
	return nil
}

func createTables(ctx context.Context, db *sql.DB) error {
	createTableSQL := `
	CREATE TABLE IF NOT EXISTS last_search (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		latitude REAL NOT NULL,
		longitude REAL NOT NULL,
		radius_km REAL NOT NULL,
		display_name TEXT NOT NULL DEFAULT '',
		searched_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS preferences (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS search_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		latitude REAL NOT NULL,
		longitude REAL NOT NULL,
		radius_km REAL NOT NULL,
		search_count INTEGER NOT NULL DEFAULT 1,
		last_search TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_search_log_coordinates ON search_log (latitude, longitude);
	`

	_, err := db.ExecContext(ctx, createTableSQL)
	if err != nil {
		return fmt.Errorf("error creating tables: %w", err)
	}
	return nil
}

// LastSearch is the persisted last-search record.
type LastSearch struct {
	Center      api.Coordinate
	RadiusKm    float64
	DisplayName string
	SearchedAt  time.Time
}

// SaveLastSearch upserts the single last-search row.
func (s *Store) SaveLastSearch(ctx context.Context, search LastSearch) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO last_search (id, latitude, longitude, radius_km, display_name, searched_at)
		VALUES (1, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			radius_km = excluded.radius_km,
			display_name = excluded.display_name,
			searched_at = excluded.searched_at
	`, search.Center.Lat, search.Center.Lng, search.RadiusKm,
		search.DisplayName, search.SearchedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("error saving last search: %w", err)
	}
	return nil
}

// LastSearch reads the persisted record. Missing or corrupt rows yield
// (zero, false) silently; callers fall back to defaults.
func (s *Store) LastSearch(ctx context.Context) (LastSearch, bool) {
	var (
		search LastSearch
		ts     string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT latitude, longitude, radius_km, display_name, searched_at
		FROM last_search WHERE id = 1
	`).Scan(&search.Center.Lat, &search.Center.Lng, &search.RadiusKm, &search.DisplayName, &ts)
	if err != nil {
		if err != sql.ErrNoRows {
			s.log.Debug("ignoring unreadable last search", "error", err)
		}
		return LastSearch{}, false
	}

	search.SearchedAt, err = time.Parse(time.RFC3339, ts)
	if err != nil || !search.Center.Valid() || search.RadiusKm <= 0 {
		s.log.Debug("ignoring corrupt last search", "error", err)
		return LastSearch{}, false
	}
	return search, true
}

// SaveViewMode persists the view-mode preference.
func (s *Store) SaveViewMode(ctx context.Context, mode string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO preferences (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, viewModeKey, mode)
	if err != nil {
		return fmt.Errorf("error saving view mode: %w", err)
	}
	return nil
}

// ViewMode reads the persisted preference, defaulting to the list view.
func (s *Store) ViewMode(ctx context.Context) string {
	var mode string
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM preferences WHERE key = ?", viewModeKey).Scan(&mode)
	if err != nil || (mode != ViewModeList && mode != ViewModeMap) {
		return ViewModeList
	}
	return mode
}

// LogSearch records a search at reduced coordinate precision,
// incrementing the counter for locations searched before.
func (s *Store) LogSearch(ctx context.Context, center api.Coordinate, radiusKm float64) error {
	lat, lng := reducePrecision(center.Lat, center.Lng, logPrecisionDecimals)

	var id int64
	err := s.db.QueryRowContext(ctx, `
		SELECT id FROM search_log WHERE latitude = ? AND longitude = ? LIMIT 1
	`, lat, lng).Scan(&id)

	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("error checking for existing location: %w", err)
	}

	if err == sql.ErrNoRows {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO search_log (latitude, longitude, radius_km) VALUES (?, ?, ?)
		`, lat, lng, radiusKm)
		if err != nil {
			return fmt.Errorf("error logging search location: %w", err)
		}
		return nil
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE search_log
		SET search_count = search_count + 1, last_search = CURRENT_TIMESTAMP, radius_km = ?
		WHERE id = ?
	`, radiusKm, id)
	if err != nil {
		return fmt.Errorf("error updating search location: %w", err)
	}
	return nil
}

// LogEntry is one row of the search log.
type LogEntry struct {
	Latitude    float64
	Longitude   float64
	RadiusKm    float64
	SearchCount int64
}

// PopularSearches returns logged locations ordered by search count.
func (s *Store) PopularSearches(ctx context.Context, limit int) ([]LogEntry, error) {
	query := `SELECT latitude, longitude, radius_km, search_count
			  FROM search_log ORDER BY search_count DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error retrieving search log: %w", err)
	}
	defer rows.Close()

	var entries []LogEntry
	for rows.Next() {
		var e LogEntry
		if err := rows.Scan(&e.Latitude, &e.Longitude, &e.RadiusKm, &e.SearchCount); err != nil {
			return nil, fmt.Errorf("error scanning search log: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return entries, nil
}

func reducePrecision(lat, lng float64, decimalPlaces int) (roundedLat, roundedLng float64) {
	factor := math.Pow(10, float64(decimalPlaces))
	roundedLat = math.Round(lat*factor) / factor
	roundedLng = math.Round(lng*factor) / factor
	return
}
