// Package database hosts the rollup worker that keeps summaries and daily
// stats current while samples keep arriving.
package database

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"go.uber.org/multierr"

	"pulsecheck/internal/config"
	"pulsecheck/internal/database/graph"
	"pulsecheck/internal/database/relational"
	"pulsecheck/internal/flagger"
	"pulsecheck/internal/period"
	"pulsecheck/internal/rollup"
)

const defaultPollInterval = 5 * time.Minute

// LabelLookup resolves display labels for group keys.
type LabelLookup interface {
	LookupLabels(ctx context.Context, keys []relational.GroupKey) (map[relational.GroupKey]string, error)
}

// RollupWorker orchestrates the periodic rollup: Aggregate -> RecordHour -> FinalizeDay -> Graph.
type RollupWorker struct {
	agg         rollup.Aggregator
	coord       *rollup.Coordinator
	labels      LabelLookup
	flagger     *flagger.FlaggerService
	graphClient graph.GraphClient
	interval    time.Duration
	finalizeLag time.Duration
	now         func() time.Time

	mu       sync.Mutex
	cancel   context.CancelFunc
	running  bool
	wg       sync.WaitGroup
	lastHour time.Time // start of the last hour rolled up
	lastDay  time.Time // start of the last day finalized
}

var _ relational.RollupWorkerService = (*RollupWorker)(nil)

// NewRollupWorker creates a new worker instance. labels, fl and g are optional.
func NewRollupWorker(
	agg rollup.Aggregator,
	coord *rollup.Coordinator,
	labels LabelLookup,
	fl *flagger.FlaggerService,
	g graph.GraphClient,
	cfg config.RollupConfig,
) (*RollupWorker, error) {
	if agg == nil || coord == nil {
		return nil, errors.New("aggregator and coordinator are required")
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &RollupWorker{
		agg:         agg,
		coord:       coord,
		labels:      labels,
		flagger:     fl,
		graphClient: g,
		interval:    interval,
		finalizeLag: cfg.FinalizeLag,
		now:         time.Now,
	}, nil
}

// Start begins the periodic rollup loop.
func (w *RollupWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return errors.New("worker already running")
	}
	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.running = true
	w.wg.Add(1)
	w.mu.Unlock()

	go w.loop(ctx)
	return nil
}

// Stop gracefully stops the worker and waits for pending graph pushes.
func (w *RollupWorker) Stop() {
	w.mu.Lock()
	cancel := w.cancel
	w.cancel = nil
	w.running = false
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	w.wg.Wait()

	if w.graphClient != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := w.graphClient.Close(ctx); err != nil {
			log.WithError(err).Warn("graph close failed")
		}
	}
}

// PullOnce runs a single tick as if the clock read now.
func (w *RollupWorker) PullOnce(ctx context.Context, now time.Time) error {
	return w.execute(ctx, now.UTC())
}

func (w *RollupWorker) loop(ctx context.Context) {
	defer w.wg.Done()
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.execute(ctx, w.now().UTC()); err != nil {
				log.WithError(err).Error("rollup tick failed")
			}
		}
	}
}

// execute rolls up the previous complete hour, and once the day boundary is
// more than finalizeLag behind, closes the previous day and refreshes the
// week and month containing it. Work already done for a bucket is skipped.
func (w *RollupWorker) execute(ctx context.Context, now time.Time) error {
	logger := log.WithFields(log.Fields{"tick": uuid.NewString(), "now": now.Format(time.RFC3339)})
	var errs error

	hour := period.Start(period.Hour, now).Add(-time.Hour)
	if w.markHour(hour) {
		if err := w.rollHour(ctx, hour); err != nil {
			w.unmarkHour(hour)
			errs = multierr.Append(errs, err)
		}
	}

	today := period.Start(period.Day, now)
	day := today.AddDate(0, 0, -1)
	if now.Sub(today) >= w.finalizeLag && w.markDay(day) {
		if err := w.closeDay(ctx, day); err != nil {
			w.unmarkDay(day)
			errs = multierr.Append(errs, err)
		}
	}

	if errs != nil {
		logger.WithError(errs).Warn("rollup tick incomplete")
		return errs
	}
	logger.Debug("rollup tick done")
	return nil
}

func (w *RollupWorker) rollHour(ctx context.Context, hour time.Time) error {
	summaries, err := w.agg.Aggregate(ctx, period.Hour, hour)
	if err != nil {
		return fmt.Errorf("aggregate hour: %w", err)
	}
	if err := w.coord.RecordHourSummaries(ctx, summaries); err != nil {
		return fmt.Errorf("record hour: %w", err)
	}
	w.pushGraph(ctx, summaries)
	return nil
}

func (w *RollupWorker) closeDay(ctx context.Context, day time.Time) error {
	summaries, err := w.agg.Aggregate(ctx, period.Day, day)
	if err != nil {
		return fmt.Errorf("aggregate day: %w", err)
	}
	w.pushGraph(ctx, summaries)

	var errs error
	for _, s := range summaries {
		if _, err := w.coord.FinalizeDay(ctx, s.Group, day); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	for _, pt := range []period.Type{period.Week, period.Month} {
		out, err := w.agg.Aggregate(ctx, pt, day)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("aggregate %s: %w", pt, err))
			continue
		}
		w.pushGraph(ctx, out)
	}
	return errs
}

// pushGraph mirrors summaries asynchronously. Failures are logged only.
func (w *RollupWorker) pushGraph(ctx context.Context, summaries []relational.Summary) {
	if w.graphClient == nil || len(summaries) == 0 {
		return
	}
	batch := &graph.PeriodBatch{Summaries: summaries, Statuses: make(map[relational.GroupKey]string)}
	if w.labels != nil {
		keys := make([]relational.GroupKey, 0, len(summaries))
		for _, s := range summaries {
			keys = append(keys, s.Group)
		}
		labels, err := w.labels.LookupLabels(ctx, keys)
		if err != nil {
			log.WithError(err).Warn("label lookup failed, pushing keys only")
		}
		batch.Labels = labels
	}
	if w.flagger != nil {
		for _, s := range summaries {
			batch.Statuses[s.Group] = string(w.flagger.Flag(s).Status)
		}
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		// Detached so a stopping worker still finishes the push.
		pushCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := w.graphClient.IngestPeriod(pushCtx, batch); err != nil {
			log.WithError(err).WithField("period_type", summaries[0].PeriodType).Warn("graph ingest failed")
		}
	}()
}

func (w *RollupWorker) markHour(t time.Time) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.lastHour.Equal(t) {
		return false
	}
	w.lastHour = t
	return true
}

func (w *RollupWorker) unmarkHour(t time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.lastHour.Equal(t) {
		w.lastHour = time.Time{}
	}
}

func (w *RollupWorker) markDay(t time.Time) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.lastDay.Equal(t) {
		return false
	}
	w.lastDay = t
	return true
}

func (w *RollupWorker) unmarkDay(t time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.lastDay.Equal(t) {
		w.lastDay = time.Time{}
	}
}
