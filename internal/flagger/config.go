package flagger

import "pulsecheck/internal/config"

// ErrorRateLevels are error percentages that escalate a summary's status.
type ErrorRateLevels struct {
	Warning  float64
	Critical float64
}

type Config struct {
	Latency   config.Thresholds
	ErrorRate ErrorRateLevels // percent
}

func DefaultConfig() Config {
	return Config{
		Latency:   config.DefaultConfig().Thresholds,
		ErrorRate: ErrorRateLevels{Warning: 5.0, Critical: 25.0},
	}
}

// FromThresholds keeps the default error-rate levels and takes latency levels from th.
func FromThresholds(th config.Thresholds) Config {
	cfg := DefaultConfig()
	cfg.Latency = th
	return cfg
}
