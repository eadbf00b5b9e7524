// Package rollup builds per-day records hour by hour, finalizes them from raw
// samples, and replays historical ranges.
package rollup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"go.uber.org/multierr"

	"pulsecheck/internal/config"
	"pulsecheck/internal/database/relational"
	"pulsecheck/internal/engine"
	"pulsecheck/internal/period"
)

// Aggregator summarizes one period. *engine.Engine satisfies it.
type Aggregator interface {
	Aggregate(ctx context.Context, pt period.Type, instant time.Time) ([]relational.Summary, error)
}

// Coordinator drives the hour -> day rollup.
type Coordinator struct {
	agg        Aggregator
	source     relational.SampleSource
	store      relational.DailyStatStore
	errorFloor int
	delay      time.Duration

	locks keyedMutex
}

// New creates a coordinator. cfg supplies the error floor and the backfill step delay.
func New(agg Aggregator, source relational.SampleSource, store relational.DailyStatStore, cfg config.Config) (*Coordinator, error) {
	if agg == nil || source == nil || store == nil {
		return nil, errors.New("aggregator, sample source and daily stat store are required")
	}
	return &Coordinator{
		agg:        agg,
		source:     source,
		store:      store,
		errorFloor: cfg.Thresholds.ErrorStatusFloor,
		delay:      cfg.Rollup.BackfillDelay,
	}, nil
}

func lockKey(key relational.GroupKey, date time.Time) string {
	return period.Start(period.Day, date).Format(time.DateOnly) + "/" + key.String()
}

// RecordHour merges one hour slice into the (date, key) record, creating it
// unfinalized if needed. Calls for the same record never interleave.
func (c *Coordinator) RecordHour(ctx context.Context, key relational.GroupKey, date time.Time, hour int, stat relational.HourStat) (relational.DailyStat, error) {
	unlock := c.locks.Lock(lockKey(key, date))
	defer unlock()

	ds, err := c.store.MergeHour(ctx, key, period.Start(period.Day, date), hour, stat)
	if err != nil {
		return relational.DailyStat{}, fmt.Errorf("record hour %d for %s: %w", hour, key, err)
	}
	return ds, nil
}

// RecordHourSummaries feeds every hour summary into RecordHour.
func (c *Coordinator) RecordHourSummaries(ctx context.Context, summaries []relational.Summary) error {
	var errs error
	for _, s := range summaries {
		if s.PeriodType != period.Hour.String() {
			continue
		}
		_, err := c.RecordHour(ctx, s.Group, s.PeriodStart, relational.HourOf(s.PeriodStart), relational.HourStatFromSummary(s))
		errs = multierr.Append(errs, err)
	}
	return errs
}

// FinalizeDay recomputes the derived fields of the (date, key) record from
// raw samples of that day. Hourly data is left as is. It reports false, and
// writes nothing, when the day has no samples for key.
func (c *Coordinator) FinalizeDay(ctx context.Context, key relational.GroupKey, date time.Time) (bool, error) {
	unlock := c.locks.Lock(lockKey(key, date))
	defer unlock()

	start, next := period.Bounds(period.Day, date)
	samples, err := c.source.SamplesForEntity(ctx, key, start, next)
	if err != nil {
		return false, fmt.Errorf("fetch day samples for %s: %w", key, err)
	}
	if len(samples) == 0 {
		return false, nil
	}

	day := engine.Compute(period.Day, start, map[relational.GroupKey][]relational.Sample{key: samples}, c.errorFloor)
	if len(day) == 0 {
		return false, nil
	}
	if err := c.store.FinalizeDailyStat(ctx, key, start, relational.DailyTotalsFromSummary(day[0])); err != nil {
		return false, fmt.Errorf("finalize %s %s: %w", key, start.Format(time.DateOnly), err)
	}
	return true, nil
}

// BackfillReport describes one Backfill run.
type BackfillReport struct {
	RunID      string
	Steps      int // periods aggregated successfully
	Failed     int // periods with at least one error
	DaysClosed int // DailyStat records finalized
}

// Backfill replays every period of each requested type from the bucket
// containing start through the bucket containing end. Hour steps feed
// RecordHour and day steps feed FinalizeDay for every group with samples.
// A failing step does not stop the run; all errors are returned together at
// the end. Cancelling ctx stops before the next step.
func (c *Coordinator) Backfill(ctx context.Context, start, end time.Time, types []period.Type) (BackfillReport, error) {
	report := BackfillReport{RunID: uuid.NewString()}
	logger := log.WithFields(log.Fields{"run_id": report.RunID, "from": start.UTC().Format(time.RFC3339), "to": end.UTC().Format(time.RFC3339)})
	logger.Info("backfill started")

	var errs error
	first := true
	for _, pt := range types {
		for _, step := range period.Walk(pt, start, end) {
			if !first && c.delay > 0 {
				select {
				case <-ctx.Done():
				case <-time.After(c.delay):
				}
			}
			first = false
			if err := ctx.Err(); err != nil {
				errs = multierr.Append(errs, err)
				logger.WithError(err).Warn("backfill interrupted")
				return report, errs
			}

			if err := c.backfillStep(ctx, pt, step, &report); err != nil {
				report.Failed++
				errs = multierr.Append(errs, err)
				logger.WithError(err).WithFields(log.Fields{"period_type": pt, "period_start": step.Format(time.RFC3339)}).Warn("backfill step failed")
				continue
			}
			report.Steps++
		}
	}

	logger.WithFields(log.Fields{"steps": report.Steps, "failed": report.Failed, "days_closed": report.DaysClosed}).Info("backfill finished")
	return report, errs
}

func (c *Coordinator) backfillStep(ctx context.Context, pt period.Type, step time.Time, report *BackfillReport) error {
	summaries, err := c.agg.Aggregate(ctx, pt, step)
	if err != nil {
		return err
	}

	switch pt {
	case period.Hour:
		return c.RecordHourSummaries(ctx, summaries)
	case period.Day:
		var errs error
		for _, s := range summaries {
			closed, err := c.FinalizeDay(ctx, s.Group, step)
			if closed {
				report.DaysClosed++
			}
			errs = multierr.Append(errs, err)
		}
		return errs
	}
	return nil
}
