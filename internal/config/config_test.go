package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gatewayd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "catalog_path: catalog.json\n")
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "catalog.json", cfg.CatalogPath)
	assert.Equal(t, 1000, cfg.DefaultSamplingIntervalMS)
	assert.Equal(t, "127.0.0.1", cfg.Simulator.Host)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "roaster-gateway.db", cfg.Telemetry.DBPath)
}

func TestLoadHonorsExplicitValues(t *testing.T) {
	path := writeConfig(t, `
catalog_path: /etc/roaster/catalog.json
default_sampling_interval_ms: 2000
simulator:
  host: 0.0.0.0
  port_range_min: 20000
  port_range_max: 21000
log:
  level: debug
telemetry:
  db_path: /var/lib/roaster/telemetry.db
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 2000, cfg.DefaultSamplingIntervalMS)
	assert.Equal(t, "0.0.0.0", cfg.Simulator.Host)
	assert.Equal(t, 20000, cfg.Simulator.PortRangeMin)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "/var/lib/roaster/telemetry.db", cfg.Telemetry.DBPath)
}

func TestLoadRejectsMissingCatalogPath(t *testing.T) {
	path := writeConfig(t, "log:\n  level: info\n")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsSamplingIntervalOutOfRange(t *testing.T) {
	path := writeConfig(t, "catalog_path: c.json\ndefault_sampling_interval_ms: 100\n")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsInvertedPortRange(t *testing.T) {
	path := writeConfig(t, `
catalog_path: c.json
simulator:
  port_range_min: 5000
  port_range_max: 1000
`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsInvalidLogLevel(t *testing.T) {
	path := writeConfig(t, "catalog_path: c.json\nlog:\n  level: verbose\n")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadFailsOnMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
