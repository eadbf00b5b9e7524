package flagger

import (
	"testing"

	"pulsecheck/internal/config"
	"pulsecheck/internal/database/relational"
)

func TestClassifyDuration(t *testing.T) {
	levels := config.Levels{Slow: 100, VerySlow: 500, Critical: 1000}
	tests := []struct {
		avg  float64
		want Status
	}{
		{0, StatusHealthy},
		{99.9, StatusHealthy},
		{100, StatusSlow},
		{499, StatusSlow},
		{500, StatusVerySlow},
		{1000, StatusCritical},
		{5000, StatusCritical},
	}
	for _, tt := range tests {
		if got := ClassifyDuration(tt.avg, levels); got != tt.want {
			t.Errorf("ClassifyDuration(%v) = %s, want %s", tt.avg, got, tt.want)
		}
	}
}

func TestFlagUsesGroupLevels(t *testing.T) {
	fs := NewFlaggerService(DefaultConfig())

	// 600ms: slow for a route (500/1000/3000), very slow for a query (100/500/1000).
	route := fs.Flag(relational.Summary{Group: relational.RouteKey(1), AvgDuration: 600})
	query := fs.Flag(relational.Summary{Group: relational.QueryKey(1), AvgDuration: 600})
	overall := fs.Flag(relational.Summary{Group: relational.Overall, AvgDuration: 200})

	if route.Status != StatusSlow {
		t.Errorf("route status = %s, want slow", route.Status)
	}
	if query.Status != StatusVerySlow {
		t.Errorf("query status = %s, want very_slow", query.Status)
	}
	if overall.Status != StatusHealthy || overall.Explanation != "" {
		t.Errorf("overall = %+v, want healthy without explanation", overall)
	}
}

func TestFlagErrorRateEscalates(t *testing.T) {
	fs := NewFlaggerService(DefaultConfig())

	warn := fs.Flag(relational.Summary{
		Group: relational.RouteKey(1), AvgDuration: 10, Count: 10,
		HasStatus: true, ErrorCount: 1, SuccessCount: 9,
	})
	if warn.Status != StatusSlow || warn.LatencyStatus != StatusHealthy {
		t.Errorf("warn = %+v", warn)
	}
	if warn.ErrorRate != 10 {
		t.Errorf("error rate = %v, want 10", warn.ErrorRate)
	}

	crit := fs.Flag(relational.Summary{
		Group: relational.RouteKey(1), AvgDuration: 4000, Count: 4,
		HasStatus: true, ErrorCount: 2, SuccessCount: 2,
	})
	if crit.Status != StatusCritical || crit.RiskScore != 100 {
		t.Errorf("crit = %+v", crit)
	}
	if crit.Explanation != "avg 4000.0ms is critical (+1 more)" {
		t.Errorf("explanation = %q", crit.Explanation)
	}
}

func TestFlagIgnoresErrorsWithoutStatus(t *testing.T) {
	fs := NewFlaggerService(FromThresholds(config.DefaultConfig().Thresholds))
	f := fs.Flag(relational.Summary{Group: relational.QueryKey(3), AvgDuration: 1, Count: 5})
	if f.Status != StatusHealthy || f.ErrorRate != 0 {
		t.Errorf("got %+v", f)
	}
}
