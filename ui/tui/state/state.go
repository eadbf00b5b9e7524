package state

import (
	"time"

	"pulsecheck/internal/output"
	"pulsecheck/internal/period"
)

type Page int

const (
	PageMenu Page = iota
	PageDashboard
	PageConsole // "Rollup log"
	PageRoutes  // "Route latency"
	PageQueries // "Query latency"
	PageTrend   // "p95 trend"
)

// AppState holds the latest loaded period view.
type AppState struct {
	View        output.DashboardView
	Period      period.Type
	LastUpdate  time.Time
	Err         error
	P95History  []float64 // overall p95 per bucket, oldest first
	ConsoleLogs []string
	CurrentPage Page
}
