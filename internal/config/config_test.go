package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 400, cfg.Thresholds.ErrorStatusFloor)
	assert.Equal(t, 5*time.Minute, cfg.Rollup.Interval)
	assert.Equal(t, 15*time.Minute, cfg.Rollup.FinalizeLag)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Graph.Enabled)
	assert.NoError(t, cfg.Validate())
}

func TestWithSettersReturnCopies(t *testing.T) {
	base := DefaultConfig()
	changed := base.WithErrorStatusFloor(500).WithRollupInterval(time.Minute).WithDatabasePath(":memory:")

	assert.Equal(t, 400, base.Thresholds.ErrorStatusFloor)
	assert.Equal(t, 500, changed.Thresholds.ErrorStatusFloor)
	assert.Equal(t, time.Minute, changed.Rollup.Interval)
	assert.Equal(t, ":memory:", changed.Database.Path)
	assert.Equal(t, "pulsecheck.db", base.Database.Path)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		cfg       Config
		wantField string
	}{
		{name: "valid default config", cfg: DefaultConfig()},
		{
			name:      "error floor out of range",
			cfg:       DefaultConfig().WithErrorStatusFloor(42),
			wantField: "Thresholds.ErrorStatusFloor",
		},
		{
			name:      "zero interval",
			cfg:       DefaultConfig().WithRollupInterval(0),
			wantField: "Rollup.Interval",
		},
		{
			name:      "negative backfill delay",
			cfg:       DefaultConfig().WithBackfillDelay(-time.Second),
			wantField: "Rollup.BackfillDelay",
		},
		{
			name: "inverted query levels",
			cfg: func() Config {
				c := DefaultConfig()
				th := c.Thresholds
				th.Query = Levels{Slow: 100, VerySlow: 50, Critical: 1000}
				return c.WithThresholds(th)
			}(),
			wantField: "Thresholds.Query.VerySlow",
		},
		{
			name: "graph without uri",
			cfg: func() Config {
				c := DefaultConfig().WithGraph(true)
				c.Graph.URI = ""
				return c
			}(),
			wantField: "Graph.URI",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			var cfgErr *ConfigError
			require.True(t, errors.As(err, &cfgErr), "expected *ConfigError, got %v", err)
			assert.Equal(t, tt.wantField, cfgErr.Field)
			assert.Contains(t, err.Error(), "config error: "+tt.wantField)
		})
	}
}

func TestLoadDefaultsOnly(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pulsecheck.yaml")
	content := `
database:
  path: /var/lib/pulsecheck/apm.db
  threads: 4
thresholds:
  query:
    slow: 50
    very_slow: 200
    critical: 800
rollup:
  interval: 1m
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	t.Setenv("PULSECHECK_THRESHOLDS_ERROR_STATUS_FLOOR", "500")
	t.Setenv("PULSECHECK_ROLLUP_BACKFILL_DELAY", "250ms")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/pulsecheck/apm.db", cfg.Database.Path)
	assert.Equal(t, 4, cfg.Database.Threads)
	assert.Equal(t, Levels{Slow: 50, VerySlow: 200, Critical: 800}, cfg.Thresholds.Query)
	assert.Equal(t, DefaultConfig().Thresholds.Route, cfg.Thresholds.Route)
	assert.Equal(t, time.Minute, cfg.Rollup.Interval)
	assert.Equal(t, 250*time.Millisecond, cfg.Rollup.BackfillDelay)
	assert.Equal(t, 500, cfg.Thresholds.ErrorStatusFloor)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"rollup": {"interval": "0s"}}`), 0o644))

	_, err := Load(path)
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "Rollup.Interval", cfgErr.Field)
}
