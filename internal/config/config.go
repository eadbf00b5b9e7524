// Package config holds the immutable runtime configuration shared by every
// pulsecheck component. Use DefaultConfig() and override with the With*
// helpers, or Load a file.
package config

import (
	"time"
)

// Levels are the duration thresholds (milliseconds) for one kind of sample.
type Levels struct {
	Slow     float64 `mapstructure:"slow"`
	VerySlow float64 `mapstructure:"very_slow"`
	Critical float64 `mapstructure:"critical"`
}

// Thresholds drive status classification and error counting.
type Thresholds struct {
	Route   Levels `mapstructure:"route"`
	Request Levels `mapstructure:"request"`
	Query   Levels `mapstructure:"query"`

	// ErrorStatusFloor is the lowest status code counted as an error (default: 400).
	ErrorStatusFloor int `mapstructure:"error_status_floor"`
}

// DatabaseConfig locates the DuckDB file.
type DatabaseConfig struct {
	Path          string        `mapstructure:"path"`            // "" or ":memory:" for in-memory
	Threads       int           `mapstructure:"threads"`         // 0 = DuckDB default
	MemoryLimitGB int           `mapstructure:"memory_limit_gb"` // 0 = DuckDB default
	Timeout       time.Duration `mapstructure:"timeout"`
}

// RollupConfig tunes the background worker and backfill.
type RollupConfig struct {
	Interval      time.Duration `mapstructure:"interval"`       // worker tick (default: 5m)
	FinalizeLag   time.Duration `mapstructure:"finalize_lag"`   // wait after midnight before finalizing (default: 15m)
	BackfillDelay time.Duration `mapstructure:"backfill_delay"` // pause between backfill steps (default: 0)
}

type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"` // empty = stderr only
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
}

type MCPConfig struct {
	Name    string `mapstructure:"name"`
	Version string `mapstructure:"version"`
}

// GraphConfig enables the optional Neo4j mirror.
type GraphConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	URI      string `mapstructure:"uri"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
}

// Config is passed by value; nothing mutates it after Load.
type Config struct {
	Database   DatabaseConfig `mapstructure:"database"`
	Thresholds Thresholds     `mapstructure:"thresholds"`
	Rollup     RollupConfig   `mapstructure:"rollup"`
	Logging    LoggingConfig  `mapstructure:"logging"`
	MCP        MCPConfig      `mapstructure:"mcp"`
	Graph      GraphConfig    `mapstructure:"graph"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Database: DatabaseConfig{
			Path:    "pulsecheck.db",
			Timeout: 10 * time.Second,
		},
		Thresholds: Thresholds{
			Route:            Levels{Slow: 500, VerySlow: 1000, Critical: 3000},
			Request:          Levels{Slow: 500, VerySlow: 1000, Critical: 3000},
			Query:            Levels{Slow: 100, VerySlow: 500, Critical: 1000},
			ErrorStatusFloor: 400,
		},
		Rollup: RollupConfig{
			Interval:    5 * time.Minute,
			FinalizeLag: 15 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  100,
			MaxBackups: 5,
		},
		MCP: MCPConfig{
			Name:    "pulsecheck-mcp",
			Version: "1.0.0",
		},
		Graph: GraphConfig{
			URI:      "bolt://localhost:7687",
			User:     "neo4j",
			Database: "neo4j",
		},
	}
}

// WithDatabasePath returns a copy of the config with a different database file.
func (c Config) WithDatabasePath(path string) Config {
	c.Database.Path = path
	return c
}

// WithThresholds returns a copy of the config with modified thresholds.
func (c Config) WithThresholds(t Thresholds) Config {
	c.Thresholds = t
	return c
}

// WithErrorStatusFloor returns a copy of the config with a different error floor.
func (c Config) WithErrorStatusFloor(status int) Config {
	c.Thresholds.ErrorStatusFloor = status
	return c
}

// WithRollupInterval returns a copy of the config with a different worker tick.
func (c Config) WithRollupInterval(d time.Duration) Config {
	c.Rollup.Interval = d
	return c
}

// WithBackfillDelay returns a copy of the config with a pause between backfill steps.
func (c Config) WithBackfillDelay(d time.Duration) Config {
	c.Rollup.BackfillDelay = d
	return c
}

// WithLogLevel returns a copy of the config with a different log level.
func (c Config) WithLogLevel(level string) Config {
	c.Logging.Level = level
	return c
}

// WithGraph returns a copy of the config with the Neo4j mirror enabled/disabled.
func (c Config) WithGraph(enabled bool) Config {
	c.Graph.Enabled = enabled
	return c
}

// Validate checks if the configuration is valid and returns an error if not.
func (c Config) Validate() error {
	if c.Database.Threads < 0 {
		return &ConfigError{Field: "Database.Threads", Message: "must not be negative"}
	}
	if c.Database.MemoryLimitGB < 0 {
		return &ConfigError{Field: "Database.MemoryLimitGB", Message: "must not be negative"}
	}
	if err := c.Thresholds.Route.validate("Thresholds.Route"); err != nil {
		return err
	}
	if err := c.Thresholds.Request.validate("Thresholds.Request"); err != nil {
		return err
	}
	if err := c.Thresholds.Query.validate("Thresholds.Query"); err != nil {
		return err
	}
	if c.Thresholds.ErrorStatusFloor < 100 || c.Thresholds.ErrorStatusFloor > 599 {
		return &ConfigError{Field: "Thresholds.ErrorStatusFloor", Message: "must be an HTTP status between 100 and 599"}
	}
	if c.Rollup.Interval <= 0 {
		return &ConfigError{Field: "Rollup.Interval", Message: "must be positive"}
	}
	if c.Rollup.FinalizeLag < 0 {
		return &ConfigError{Field: "Rollup.FinalizeLag", Message: "must not be negative"}
	}
	if c.Rollup.BackfillDelay < 0 {
		return &ConfigError{Field: "Rollup.BackfillDelay", Message: "must not be negative"}
	}
	if c.Graph.Enabled && c.Graph.URI == "" {
		return &ConfigError{Field: "Graph.URI", Message: "must not be empty when graph is enabled"}
	}
	return nil
}

func (l Levels) validate(field string) error {
	if l.Slow <= 0 {
		return &ConfigError{Field: field + ".Slow", Message: "must be positive"}
	}
	if l.VerySlow < l.Slow {
		return &ConfigError{Field: field + ".VerySlow", Message: "must not be below Slow"}
	}
	if l.Critical < l.VerySlow {
		return &ConfigError{Field: field + ".Critical", Message: "must not be below VerySlow"}
	}
	return nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error: " + e.Field + " " + e.Message
}
