package flagger

import (
	"fmt"

	"pulsecheck/internal/config"
	"pulsecheck/internal/database/relational"
)

// Status is the performance class of a summary.
type Status string

const (
	StatusHealthy  Status = "healthy"
	StatusSlow     Status = "slow"
	StatusVerySlow Status = "very_slow"
	StatusCritical Status = "critical"
)

var severity = map[Status]int{StatusHealthy: 0, StatusSlow: 1, StatusVerySlow: 2, StatusCritical: 3}

// Severity orders statuses from healthy (0) to critical (3).
func (s Status) Severity() int { return severity[s] }

// Flags is the classification of one summary.
type Flags struct {
	Status        Status
	LatencyStatus Status
	ErrorRate     float64 // percent, 0 when the group carries no status
	Explanation   string
	RiskScore     int
}

// FlaggerService classifies summaries against configured thresholds.
type FlaggerService struct {
	cfg Config
}

func NewFlaggerService(cfg Config) *FlaggerService {
	return &FlaggerService{cfg: cfg}
}

// LevelsFor picks the latency levels of a group: routes and queries have
// their own, the overall group uses the request levels.
func (fs *FlaggerService) LevelsFor(key relational.GroupKey) config.Levels {
	switch key.Kind {
	case relational.KindRoute:
		return fs.cfg.Latency.Route
	case relational.KindQuery:
		return fs.cfg.Latency.Query
	default:
		return fs.cfg.Latency.Request
	}
}

// ClassifyDuration places avg (ms) on levels. Boundaries are inclusive.
func ClassifyDuration(avg float64, levels config.Levels) Status {
	switch {
	case avg >= levels.Critical:
		return StatusCritical
	case avg >= levels.VerySlow:
		return StatusVerySlow
	case avg >= levels.Slow:
		return StatusSlow
	default:
		return StatusHealthy
	}
}

func (fs *FlaggerService) Flag(s relational.Summary) Flags {
	f := Flags{LatencyStatus: ClassifyDuration(s.AvgDuration, fs.LevelsFor(s.Group))}
	f.Status = f.LatencyStatus
	var explanations []string

	// 1. Latency
	if f.LatencyStatus != StatusHealthy {
		explanations = append(explanations, fmt.Sprintf("avg %.1fms is %s", s.AvgDuration, f.LatencyStatus))
	}

	// 2. Errors
	if s.HasStatus {
		f.ErrorRate = s.ErrorRate()
		switch {
		case f.ErrorRate >= fs.cfg.ErrorRate.Critical:
			f.Status = StatusCritical
			explanations = append(explanations, fmt.Sprintf("error rate critical: %.1f%%", f.ErrorRate))
		case f.ErrorRate >= fs.cfg.ErrorRate.Warning:
			if f.Status.Severity() < StatusSlow.Severity() {
				f.Status = StatusSlow
			}
			explanations = append(explanations, fmt.Sprintf("error rate warning: %.1f%%", f.ErrorRate))
		}
	}

	if len(explanations) > 0 {
		f.Explanation = explanations[0]
		if len(explanations) > 1 {
			f.Explanation += fmt.Sprintf(" (+%d more)", len(explanations)-1)
		}
	}

	f.RiskScore = f.Status.Severity() * 10
	if f.Status == StatusCritical && f.LatencyStatus == StatusCritical {
		f.RiskScore = 100
	}
	return f
}
