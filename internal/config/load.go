package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. PULSECHECK_DATABASE_PATH.
const EnvPrefix = "PULSECHECK"

// Load reads path (YAML, JSON or TOML, by extension) on top of DefaultConfig,
// applies PULSECHECK_* environment overrides and validates the result.
// An empty path loads defaults and environment only.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("failed to load config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// setDefaults registers every key so that AutomaticEnv can override it.
func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("database.path", d.Database.Path)
	v.SetDefault("database.threads", d.Database.Threads)
	v.SetDefault("database.memory_limit_gb", d.Database.MemoryLimitGB)
	v.SetDefault("database.timeout", d.Database.Timeout)

	for name, l := range map[string]Levels{
		"route":   d.Thresholds.Route,
		"request": d.Thresholds.Request,
		"query":   d.Thresholds.Query,
	} {
		v.SetDefault("thresholds."+name+".slow", l.Slow)
		v.SetDefault("thresholds."+name+".very_slow", l.VerySlow)
		v.SetDefault("thresholds."+name+".critical", l.Critical)
	}
	v.SetDefault("thresholds.error_status_floor", d.Thresholds.ErrorStatusFloor)

	v.SetDefault("rollup.interval", d.Rollup.Interval)
	v.SetDefault("rollup.finalize_lag", d.Rollup.FinalizeLag)
	v.SetDefault("rollup.backfill_delay", d.Rollup.BackfillDelay)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.file", d.Logging.File)
	v.SetDefault("logging.max_size_mb", d.Logging.MaxSizeMB)
	v.SetDefault("logging.max_backups", d.Logging.MaxBackups)

	v.SetDefault("mcp.name", d.MCP.Name)
	v.SetDefault("mcp.version", d.MCP.Version)

	v.SetDefault("graph.enabled", d.Graph.Enabled)
	v.SetDefault("graph.uri", d.Graph.URI)
	v.SetDefault("graph.user", d.Graph.User)
	v.SetDefault("graph.password", d.Graph.Password)
	v.SetDefault("graph.database", d.Graph.Database)
}
