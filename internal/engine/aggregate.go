// Package engine computes period summaries from raw samples and persists them.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"

	"pulsecheck/internal/config"
	"pulsecheck/internal/database/relational"
	"pulsecheck/internal/period"
	"pulsecheck/internal/stats"
)

// DefaultErrorStatusFloor is the lowest status counted as an error.
const DefaultErrorStatusFloor = 400

// Compute returns one Summary per group that has at least one sample, ordered
// by group key. It reads nothing but its arguments, so the same input always
// yields the same output.
func Compute(pt period.Type, periodStart time.Time, groups map[relational.GroupKey][]relational.Sample, errorFloor int) []relational.Summary {
	if errorFloor <= 0 {
		errorFloor = DefaultErrorStatusFloor
	}
	start := period.Start(pt, periodStart)
	end := period.End(pt, start)

	keys := lo.Keys(groups)
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })

	out := make([]relational.Summary, 0, len(keys))
	for _, key := range keys {
		samples := groups[key]
		d, ok := stats.Describe(lo.Map(samples, func(s relational.Sample, _ int) float64 { return s.Duration }))
		if !ok {
			continue
		}

		s := relational.Summary{
			Group:          key,
			PeriodType:     pt.String(),
			PeriodStart:    start,
			PeriodEnd:      end,
			Count:          int64(d.Count),
			AvgDuration:    d.Avg,
			MinDuration:    d.Min,
			MaxDuration:    d.Max,
			P50Duration:    d.P50,
			P95Duration:    d.P95,
			P99Duration:    d.P99,
			StdDevDuration: d.StdDev,
		}
		countStatuses(&s, samples, errorFloor)
		out = append(out, s)
	}
	return out
}

// countStatuses fills the status breakdown from samples that carry a status.
func countStatuses(s *relational.Summary, samples []relational.Sample, errorFloor int) {
	for _, sample := range samples {
		if sample.Status == nil {
			continue
		}
		s.HasStatus = true
		status := *sample.Status
		if status >= errorFloor {
			s.ErrorCount++
		} else {
			s.SuccessCount++
		}
		switch status / 100 {
		case 2:
			s.Status2xx++
		case 3:
			s.Status3xx++
		case 4:
			s.Status4xx++
		case 5:
			s.Status5xx++
		}
	}
}

// Engine fetches, computes and stores the summaries of one period at a time.
type Engine struct {
	source     relational.SampleSource
	store      relational.SummaryStore
	errorFloor int
}

// New creates an engine. Thresholds supply the error status floor.
func New(source relational.SampleSource, store relational.SummaryStore, th config.Thresholds) (*Engine, error) {
	if source == nil || store == nil {
		return nil, errors.New("sample source and summary store are required")
	}
	floor := th.ErrorStatusFloor
	if floor <= 0 {
		floor = DefaultErrorStatusFloor
	}
	return &Engine{source: source, store: store, errorFloor: floor}, nil
}

// Aggregate summarizes the bucket of type pt containing instant. All groups
// are written in a single transaction; on failure nothing is written and the
// error is returned for the caller to retry the whole period.
func (e *Engine) Aggregate(ctx context.Context, pt period.Type, instant time.Time) ([]relational.Summary, error) {
	start, next := period.Bounds(pt, instant)
	logger := log.WithFields(log.Fields{"period_type": pt, "period_start": start.Format(time.RFC3339)})

	groups, err := e.source.SamplesInWindow(ctx, start, next)
	if err != nil {
		logger.WithError(err).Error("fetch samples failed")
		return nil, fmt.Errorf("fetch samples for %s %s: %w", pt, start.Format(time.RFC3339), err)
	}

	summaries := Compute(pt, start, groups, e.errorFloor)
	if err := e.store.UpsertSummaries(ctx, summaries); err != nil {
		logger.WithError(err).Error("summary write rolled back")
		return nil, fmt.Errorf("write summaries for %s %s: %w", pt, start.Format(time.RFC3339), err)
	}

	logger.WithField("groups", len(summaries)).Debug("period aggregated")
	return summaries, nil
}
