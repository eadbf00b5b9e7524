package logging

import (
	"os"
	"path/filepath"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pulsecheck/internal/config"
)

func TestInitWritesToRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "pulsecheck.log")
	cfg := config.DefaultConfig().Logging
	cfg.File = path
	cfg.Level = "debug"

	require.NoError(t, Init(cfg))
	t.Cleanup(func() { _ = Close() })

	assert.Equal(t, log.DebugLevel, log.GetLevel())
	log.WithField("period", "hour").Info("aggregated")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "aggregated")
	assert.Contains(t, string(data), "period=hour")
}

func TestInitRejectsUnknownLevel(t *testing.T) {
	cfg := config.DefaultConfig().Logging
	cfg.Level = "chatty"
	assert.Error(t, Init(cfg))
}
