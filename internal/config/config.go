// Package config loads the gateway daemon's own configuration: where
// the machine catalog lives, default sampling cadence, simulator host
// and port range, and log verbosity.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// GatewayConfig is the top-level YAML document read by cmd/gatewayd.
type GatewayConfig struct {
	CatalogPath string `yaml:"catalog_path"`

	DefaultSamplingIntervalMS int `yaml:"default_sampling_interval_ms"`

	Simulator SimulatorConfig `yaml:"simulator"`
	Log       LogConfig       `yaml:"log"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// SimulatorConfig holds the host in-process simulator instances bind
// to and a port range. Load checks that the range is not inverted, but
// nothing in this module reads PortRangeMin/PortRangeMax: cmd/gatewayd
// starts simulators on an OS-assigned port.
type SimulatorConfig struct {
	Host         string `yaml:"host"`
	PortRangeMin int    `yaml:"port_range_min"`
	PortRangeMax int    `yaml:"port_range_max"`
}

// LogConfig configures the ambient zap logger.
type LogConfig struct {
	Level string `yaml:"level"` // debug | info | warn | error
}

// TelemetryConfig points at the operational event/error log database.
type TelemetryConfig struct {
	DBPath string `yaml:"db_path"`
}

// Load reads and validates a GatewayConfig from path, filling in
// defaults for anything left unset.
func Load(path string) (GatewayConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return GatewayConfig{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg GatewayConfig
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return GatewayConfig{}, fmt.Errorf("config: parse %s: %w", path, err)
	}

	applyDefaults(&cfg)

	if cfg.CatalogPath == "" {
		return GatewayConfig{}, fmt.Errorf("config: catalog_path must be set")
	}
	if cfg.DefaultSamplingIntervalMS < 500 || cfg.DefaultSamplingIntervalMS > 10000 {
		return GatewayConfig{}, fmt.Errorf("config: default_sampling_interval_ms %d out of range [500,10000]", cfg.DefaultSamplingIntervalMS)
	}
	if cfg.Simulator.PortRangeMax < cfg.Simulator.PortRangeMin {
		return GatewayConfig{}, fmt.Errorf("config: simulator port_range_max < port_range_min")
	}
	switch strings.ToLower(cfg.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return GatewayConfig{}, fmt.Errorf("config: log.level %q must be debug, info, warn, or error", cfg.Log.Level)
	}

	return cfg, nil
}

func applyDefaults(cfg *GatewayConfig) {
	if cfg.DefaultSamplingIntervalMS == 0 {
		cfg.DefaultSamplingIntervalMS = 1000
	}
	if cfg.Simulator.Host == "" {
		cfg.Simulator.Host = "127.0.0.1"
	}
	if cfg.Simulator.PortRangeMin == 0 && cfg.Simulator.PortRangeMax == 0 {
		cfg.Simulator.PortRangeMin, cfg.Simulator.PortRangeMax = 0, 0 // 0 means auto-allocate, no fixed range
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Telemetry.DBPath == "" {
		cfg.Telemetry.DBPath = "roaster-gateway.db"
	}
}
