package relational

import (
	"context"
	"time"
)

// =============================================================================
// CORE INTERFACES
// =============================================================================

// SampleSource reads raw samples. Windows are half-open: [start, end).
type SampleSource interface {
	// SamplesInWindow returns every sample in the window grouped by group key,
	// including the Overall group. Groups without samples are absent.
	SamplesInWindow(ctx context.Context, start, end time.Time) (map[GroupKey][]Sample, error)
	// SamplesForEntity returns the samples of one group in the window.
	SamplesForEntity(ctx context.Context, key GroupKey, start, end time.Time) ([]Sample, error)
}

// SummaryStore persists summaries by natural key.
type SummaryStore interface {
	// UpsertSummaries writes all rows in one transaction; any failure rolls back every row.
	UpsertSummaries(ctx context.Context, summaries []Summary) error
}

// DailyStatStore persists the hour-by-hour daily records.
type DailyStatStore interface {
	// MergeHour find-or-creates the (date, key) record and overwrites one hour slice.
	MergeHour(ctx context.Context, key GroupKey, date time.Time, hour int, stat HourStat) (DailyStat, error)
	// FinalizeDailyStat overwrites the derived fields only; hourly data is kept.
	FinalizeDailyStat(ctx context.Context, key GroupKey, date time.Time, totals DailyTotals) error
	// GetDailyStat returns nil when no record exists.
	GetDailyStat(ctx context.Context, key GroupKey, date time.Time) (*DailyStat, error)
}

// EventStore records raw samples on behalf of producers.
type EventStore interface {
	FindOrCreateRoute(ctx context.Context, method, path string) (int64, error)
	FindOrCreateQuery(ctx context.Context, normalizedSQL string) (int64, error)
	InsertRequest(ctx context.Context, req Request) (int64, error)
	InsertOperation(ctx context.Context, op Operation) (int64, error)
}

// RollupWorkerService drives periodic aggregation.
type RollupWorkerService interface {
	// Start begins periodic aggregation.
	Start(ctx context.Context) error
	// Stop gracefully stops the worker.
	Stop()
	// PullOnce runs a single tick as if the clock read now.
	PullOnce(ctx context.Context, now time.Time) error
}
