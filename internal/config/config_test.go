package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != ":8080" {
		t.Errorf("ListenAddr = %q, want :8080", cfg.ListenAddr)
	}
	if cfg.DBPath != "simulator.db" {
		t.Errorf("DBPath = %q, want simulator.db", cfg.DBPath)
	}
	if cfg.TickInterval != time.Second {
		t.Errorf("TickInterval = %v, want 1s", cfg.TickInterval)
	}
	if cfg.CompressionRatio != 60 {
		t.Errorf("CompressionRatio = %v, want 60", cfg.CompressionRatio)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SIM_LISTEN_ADDR", "127.0.0.1:9999")
	t.Setenv("SIM_DB_PATH", ":memory:")
	t.Setenv("SIM_TICK_INTERVAL", "250ms")
	t.Setenv("SIM_COMPRESSION_RATIO", "3600")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != "127.0.0.1:9999" {
		t.Errorf("ListenAddr = %q", cfg.ListenAddr)
	}
	if cfg.DBPath != ":memory:" {
		t.Errorf("DBPath = %q", cfg.DBPath)
	}
	if cfg.TickInterval != 250*time.Millisecond {
		t.Errorf("TickInterval = %v", cfg.TickInterval)
	}
	if cfg.CompressionRatio != 3600 {
		t.Errorf("CompressionRatio = %v", cfg.CompressionRatio)
	}
}

func TestValidate_Rejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty listen addr", func(c *Config) { c.ListenAddr = "" }},
		{"empty db path", func(c *Config) { c.DBPath = "" }},
		{"zero tick interval", func(c *Config) { c.TickInterval = 0 }},
		{"negative ratio", func(c *Config) { c.CompressionRatio = -1 }},
		{"elevation mask out of range", func(c *Config) { c.MinElevationDeg = 90 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Config{
				ListenAddr:       ":8080",
				DBPath:           "simulator.db",
				TickInterval:     time.Second,
				CompressionRatio: 60,
				MinElevationDeg:  10,
			}
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("Validate accepted invalid config %+v", cfg)
			}
		})
	}
}
