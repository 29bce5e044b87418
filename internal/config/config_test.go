package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "exchange.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadValidConfig(t *testing.T) {
	path := writeTempConfig(t, `
stp:
  mode: CANCEL_BOTH
products:
  - AAPL
  - MSFT
audit:
  sinks: [file]
  file_path: ./audit.log
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "CANCEL_BOTH", cfg.STP.Mode)
	assert.Equal(t, []string{"AAPL", "MSFT"}, cfg.Products)
	assert.Equal(t, 10000, cfg.Latency.ReservoirSize)
	assert.Equal(t, ":9090", cfg.Server.MetricsAddr)
}

func TestLoadRejectsUnknownSTPMode(t *testing.T) {
	path := writeTempConfig(t, "stp:\n  mode: BOGUS\n")
	_, err := Load(path)
	assert.ErrorContains(t, err, "stp.mode")
}

func TestLoadRejectsMalformedInstrument(t *testing.T) {
	path := writeTempConfig(t, "products:\n  - TOOLONGNAME\n")
	_, err := Load(path)
	assert.ErrorContains(t, err, "instrument identifier pattern")
}

func TestLoadRejectsDuplicateProducts(t *testing.T) {
	path := writeTempConfig(t, "products:\n  - AAPL\n  - AAPL\n")
	_, err := Load(path)
	assert.ErrorContains(t, err, "more than once")
}

func TestLoadRejectsDatabaseSinkWithoutDSN(t *testing.T) {
	path := writeTempConfig(t, "audit:\n  sinks: [database]\n")
	_, err := Load(path)
	assert.ErrorContains(t, err, "database_dsn")
}
