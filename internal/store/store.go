// Package store provides SQLite-backed persistence for scenarios, missions,
// simulation run checkpoints, scripted events, and space allocation state.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

var (
	// ErrRunNotFound indicates no checkpoint row exists for a scenario.
	ErrRunNotFound = errors.New("simulation run not found")
	// ErrScenarioNotFound indicates the referenced scenario does not exist.
	ErrScenarioNotFound = errors.New("scenario not found")
	// ErrAssetNotFound indicates a referenced space asset does not exist.
	ErrAssetNotFound = errors.New("space asset not found")
	// ErrMissionNotFound indicates a referenced mission does not exist.
	ErrMissionNotFound = errors.New("mission not found")
)

// DB wraps a SQLite connection for simulator state persistence.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path. ":memory:" is
// accepted for tests.
func Open(path string) (*DB, error) {
	dsn := path
	if path != ":memory:" {
		dsn = path + "?_journal_mode=WAL&_busy_timeout=5000"
	}
	conn, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS scenarios (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		start_time TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS missions (
		id TEXT PRIMARY KEY,
		scenario_id TEXT NOT NULL,
		callsign TEXT NOT NULL,
		domain TEXT NOT NULL,
		status TEXT NOT NULL,
		day_number INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS waypoints (
		mission_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		lat REAL NOT NULL,
		lon REAL NOT NULL,
		altitude_ft REAL NOT NULL,
		speed_kts REAL NOT NULL,
		PRIMARY KEY (mission_id, seq)
	);

	CREATE TABLE IF NOT EXISTS time_windows (
		id TEXT PRIMARY KEY,
		mission_id TEXT NOT NULL,
		window_type TEXT NOT NULL,
		start_time TEXT NOT NULL,
		end_time TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS targets (
		id TEXT PRIMARY KEY,
		mission_id TEXT NOT NULL,
		name TEXT NOT NULL,
		lat REAL NOT NULL,
		lon REAL NOT NULL
	);

	CREATE TABLE IF NOT EXISTS simulation_runs (
		scenario_id TEXT PRIMARY KEY,
		id TEXT NOT NULL,
		status TEXT NOT NULL,
		sim_time TEXT NOT NULL,
		real_start_time TEXT NOT NULL,
		compression_ratio REAL NOT NULL,
		current_day_number INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sim_events (
		id TEXT PRIMARY KEY,
		scenario_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		target_type TEXT NOT NULL,
		target_id TEXT NOT NULL,
		sim_time TEXT NOT NULL,
		description TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS space_assets (
		id TEXT PRIMARY KEY,
		scenario_id TEXT NOT NULL,
		name TEXT NOT NULL,
		status TEXT NOT NULL,
		capabilities_json TEXT NOT NULL,
		tle_line1 TEXT NOT NULL DEFAULT '',
		tle_line2 TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS coverage_windows (
		asset_id TEXT NOT NULL,
		capability_type TEXT NOT NULL,
		start_time TEXT NOT NULL,
		end_time TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS space_needs (
		id TEXT PRIMARY KEY,
		scenario_id TEXT NOT NULL,
		mission_id TEXT NOT NULL,
		day_number INTEGER NOT NULL,
		capability_type TEXT NOT NULL,
		priority INTEGER NOT NULL,
		start_time TEXT NOT NULL,
		end_time TEXT NOT NULL,
		mission_criticality TEXT NOT NULL,
		fallback_capability TEXT NOT NULL DEFAULT '',
		risk_if_denied TEXT NOT NULL DEFAULT '',
		traced_priority_rank INTEGER
	);

	CREATE TABLE IF NOT EXISTS space_allocations (
		id TEXT PRIMARY KEY,
		scenario_id TEXT NOT NULL,
		day_number INTEGER NOT NULL,
		space_need_id TEXT NOT NULL,
		status TEXT NOT NULL,
		allocated_capability TEXT NOT NULL DEFAULT '',
		allocated_asset_id TEXT NOT NULL DEFAULT '',
		rationale TEXT NOT NULL,
		risk_level TEXT NOT NULL,
		contention_group TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS contention_events (
		id TEXT PRIMARY KEY,
		scenario_id TEXT NOT NULL,
		day_number INTEGER NOT NULL,
		contention_group TEXT NOT NULL,
		capability_type TEXT NOT NULL,
		start_time TEXT NOT NULL,
		end_time TEXT NOT NULL,
		competitor_need_ids_json TEXT NOT NULL,
		rationale TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_missions_scenario ON missions(scenario_id);
	CREATE INDEX IF NOT EXISTS idx_events_scenario ON sim_events(scenario_id);
	CREATE INDEX IF NOT EXISTS idx_needs_scenario_day ON space_needs(scenario_id, day_number);
	CREATE INDEX IF NOT EXISTS idx_allocations_scenario_day ON space_allocations(scenario_id, day_number);
	CREATE INDEX IF NOT EXISTS idx_windows_asset ON coverage_windows(asset_id);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// InsertScenario registers a scenario. Seeding helper used by the scenario
// loader and tests.
func (db *DB) InsertScenario(ctx context.Context, id, name, startTime string) error {
	_, err := db.conn.ExecContext(ctx,
		"INSERT OR REPLACE INTO scenarios (id, name, start_time) VALUES (?, ?, ?)",
		id, name, startTime,
	)
	return err
}

// ScenarioExists reports whether a scenario row exists.
func (db *DB) ScenarioExists(ctx context.Context, scenarioID string) (bool, error) {
	var count int
	err := db.conn.GetContext(ctx, &count, "SELECT COUNT(1) FROM scenarios WHERE id = ?", scenarioID)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ScenarioStart returns a scenario's configured start instant, or
// ErrScenarioNotFound.
func (db *DB) ScenarioStart(ctx context.Context, scenarioID string) (time.Time, error) {
	var raw string
	err := db.conn.GetContext(ctx, &raw, "SELECT start_time FROM scenarios WHERE id = ?", scenarioID)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, fmt.Errorf("%w: %q", ErrScenarioNotFound, scenarioID)
	}
	if err != nil {
		return time.Time{}, err
	}
	return parseTime(raw)
}
