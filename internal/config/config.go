// Package config loads simulator daemon settings from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the runtime settings of the simulator daemon. Every field has
// an environment override; zero-config startup uses the defaults.
type Config struct {
	// ListenAddr is the bind address of the HTTP control surface.
	ListenAddr string `env:"SIM_LISTEN_ADDR" envDefault:":8080"`
	// DBPath is the SQLite database file, or ":memory:" for an ephemeral
	// store.
	DBPath string `env:"SIM_DB_PATH" envDefault:"simulator.db"`
	// ScenarioFile optionally names a YAML scenario to seed at startup.
	ScenarioFile string `env:"SIM_SCENARIO_FILE"`

	// TickInterval is the wall-clock period of the simulation loop.
	TickInterval time.Duration `env:"SIM_TICK_INTERVAL" envDefault:"1s"`
	// CompressionRatio is the default virtual-to-real time ratio applied
	// when a start request does not name one.
	CompressionRatio float64 `env:"SIM_COMPRESSION_RATIO" envDefault:"60"`

	// MinElevationDeg is the elevation mask for orbit-derived coverage
	// windows, in degrees.
	MinElevationDeg float64 `env:"SIM_MIN_ELEVATION_DEG" envDefault:"10"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`
}

// Load parses configuration from the environment and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the daemon cannot run with.
func (c Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen address must not be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("database path must not be empty")
	}
	if c.TickInterval <= 0 {
		return fmt.Errorf("tick interval must be positive, got %v", c.TickInterval)
	}
	if c.CompressionRatio <= 0 {
		return fmt.Errorf("compression ratio must be positive, got %v", c.CompressionRatio)
	}
	if c.MinElevationDeg < 0 || c.MinElevationDeg >= 90 {
		return fmt.Errorf("elevation mask must be in [0, 90), got %v", c.MinElevationDeg)
	}
	return nil
}
