package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 8085, cfg.Server.Port)
	assert.Equal(t, "/api/v1/orderflow", cfg.Server.BasePath)
}

func TestValidateRejectsBadWeights(t *testing.T) {
	cfg := Default()
	cfg.Scorer.LiquidityWeight = 0.9
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.FlowScorer.DeltaWeight = 0
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsBadPort(t *testing.T) {
	cfg := Default()
	cfg.Server.Port = 0
	assert.Error(t, cfg.Validate())

	cfg.Server.Enabled = false // disabled server skips the port check
	assert.NoError(t, cfg.Validate())
}

func TestLoadMissingExplicitPath(t *testing.T) {
	_, err := Load("/nonexistent/orderflow.yaml")
	assert.Error(t, err)
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFileOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "orderflow.yaml")
	data := []byte("log_level: debug\nlog_format: console\nserver:\n  enabled: true\n  port: 9090\n  base_path: /api/v1/orderflow\n")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "console", cfg.LogFormat)
	assert.Equal(t, 9090, cfg.Server.Port)
	// untouched sections keep their defaults
	assert.Equal(t, Default().Scorer, cfg.Scorer)
}
