// Package relational is the DuckDB persistence layer: raw request/operation
// samples written by producers, and the summaries and daily stats derived
// from them.
//
// Notes:
//   - All timestamps are stored as UTC TIMESTAMP. Sample windows are half-open [start, end).
//   - summaries and daily_stats are keyed by natural keys and written with
//     ON CONFLICT upserts, so re-running any aggregation converges.
//   - daily_stats.hourly_data is a JSON object keyed "0".."23".
//
// Driver: github.com/marcboeker/go-duckdb
package relational

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/samber/lo"

	"pulsecheck/internal/sqlnorm"
)

// =============================================================================
// SCHEMA SQL
// =============================================================================

const SchemaSQL = `
CREATE TABLE IF NOT EXISTS routes (
  route_id    BIGINT PRIMARY KEY,
  method      VARCHAR NOT NULL,
  path        VARCHAR NOT NULL,
  created_at  TIMESTAMP NOT NULL DEFAULT now(),
  UNIQUE(method, path)
);

CREATE TABLE IF NOT EXISTS queries (
  query_id        BIGINT PRIMARY KEY,
  normalized_sql  VARCHAR NOT NULL UNIQUE,
  created_at      TIMESTAMP NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS requests (
  request_id   BIGINT PRIMARY KEY,
  route_id     BIGINT NOT NULL,
  occurred_at  TIMESTAMP NOT NULL,
  duration_ms  DOUBLE NOT NULL,
  status       INTEGER,
  view_ms      DOUBLE,
  db_ms        DOUBLE
);

CREATE INDEX IF NOT EXISTS idx_requests_occurred_at ON requests(occurred_at);

CREATE TABLE IF NOT EXISTS operations (
  operation_id       BIGINT PRIMARY KEY,
  request_id         BIGINT,
  query_id           BIGINT,
  operation_type     VARCHAR NOT NULL,
  label              VARCHAR,
  codebase_location  VARCHAR,
  occurred_at        TIMESTAMP NOT NULL,
  duration_ms        DOUBLE NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_operations_occurred_at ON operations(occurred_at);

CREATE TABLE IF NOT EXISTS summaries (
  group_key          VARCHAR NOT NULL,
  summarizable_type  VARCHAR NOT NULL,
  summarizable_id    BIGINT,
  period_type        VARCHAR NOT NULL,
  period_start       TIMESTAMP NOT NULL,
  period_end         TIMESTAMP NOT NULL,

  sample_count       BIGINT NOT NULL,
  avg_duration       DOUBLE NOT NULL,
  min_duration       DOUBLE NOT NULL,
  max_duration       DOUBLE NOT NULL,
  p50_duration       DOUBLE NOT NULL,
  p95_duration       DOUBLE NOT NULL,
  p99_duration       DOUBLE NOT NULL,
  stddev_duration    DOUBLE,

  has_status         BOOLEAN NOT NULL,
  error_count        BIGINT NOT NULL,
  success_count      BIGINT NOT NULL,
  status_2xx         BIGINT NOT NULL,
  status_3xx         BIGINT NOT NULL,
  status_4xx         BIGINT NOT NULL,
  status_5xx         BIGINT NOT NULL,

  PRIMARY KEY(group_key, period_type, period_start)
);

CREATE TABLE IF NOT EXISTS daily_stats (
  stat_date       TIMESTAMP NOT NULL,
  entity_key      VARCHAR NOT NULL,
  entity_type     VARCHAR NOT NULL,
  entity_id       BIGINT,
  total_requests  BIGINT NOT NULL DEFAULT 0,
  avg_duration    DOUBLE,
  max_duration    DOUBLE,
  error_count     BIGINT NOT NULL DEFAULT 0,
  p95_duration    DOUBLE,
  hourly_data     VARCHAR NOT NULL DEFAULT '{}',
  updated_at      TIMESTAMP NOT NULL,
  PRIMARY KEY(stat_date, entity_key)
);
`

// =============================================================================
// REPO IMPLEMENTATION
// =============================================================================

type Repo struct {
	db *sql.DB
	mu sync.RWMutex
	// Dimension caches to skip the lookup on hot ingest paths
	routes  map[string]int64
	queries map[string]int64
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{
		db:      db,
		routes:  make(map[string]int64),
		queries: make(map[string]int64),
	}
}

func (r *Repo) Close() error {
	return r.db.Close()
}

func (r *Repo) Migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, SchemaSQL)
	return err
}

var lastID atomic.Int64

// NewID generates a unique, increasing ID (time-based).
func NewID() int64 {
	for {
		prev := lastID.Load()
		id := time.Now().UnixNano()
		if id <= prev {
			id = prev + 1
		}
		if lastID.CompareAndSwap(prev, id) {
			return id
		}
	}
}

// =============================================================================
// DIMENSIONS
// =============================================================================

// FindOrCreateRoute returns the ID of the (method, path) route, creating it on first sight.
func (r *Repo) FindOrCreateRoute(ctx context.Context, method, path string) (int64, error) {
	if method == "" || path == "" {
		return 0, errors.New("route method and path required")
	}
	return r.findOrCreateDim(ctx, r.routes, method+" "+path,
		func(id *int64) error {
			return r.db.QueryRowContext(ctx, `SELECT route_id FROM routes WHERE method = ? AND path = ?`, method, path).Scan(id)
		},
		func(id int64) error {
			_, err := r.db.ExecContext(ctx, `INSERT INTO routes(route_id, method, path) VALUES(?,?,?)`, id, method, path)
			return err
		},
	)
}

// FindOrCreateQuery returns the ID of a normalized SQL shape, creating it lazily.
// Text longer than MaxNormalizedSQLLength is truncated first.
func (r *Repo) FindOrCreateQuery(ctx context.Context, normalizedSQL string) (int64, error) {
	if normalizedSQL == "" {
		return 0, errors.New("normalizedSQL required")
	}
	text := sqlnorm.Truncate(normalizedSQL)
	return r.findOrCreateDim(ctx, r.queries, text,
		func(id *int64) error {
			return r.db.QueryRowContext(ctx, `SELECT query_id FROM queries WHERE normalized_sql = ?`, text).Scan(id)
		},
		func(id int64) error {
			_, err := r.db.ExecContext(ctx, `INSERT INTO queries(query_id, normalized_sql) VALUES(?,?)`, id, text)
			return err
		},
	)
}

func (r *Repo) findOrCreateDim(ctx context.Context, cache map[string]int64, key string, sel func(*int64) error, ins func(int64) error) (int64, error) {
	r.mu.RLock()
	if id, ok := cache[key]; ok {
		r.mu.RUnlock()
		return id, nil
	}
	r.mu.RUnlock()

	var id int64
	err := sel(&id)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}
	if err != nil {
		id = NewID()
		if err := ins(id); err != nil {
			// Race condition fallback
			if e2 := sel(&id); e2 != nil {
				return 0, err
			}
		}
	}

	r.mu.Lock()
	cache[key] = id
	r.mu.Unlock()
	return id, nil
}

// GetRoute returns nil when the route does not exist.
func (r *Repo) GetRoute(ctx context.Context, id int64) (*Route, error) {
	var rt Route
	err := r.db.QueryRowContext(ctx, `SELECT route_id, method, path, created_at FROM routes WHERE route_id = ?`, id).
		Scan(&rt.RouteID, &rt.Method, &rt.Path, &rt.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get route: %w", err)
	}
	return &rt, nil
}

// GetQuery returns nil when the query does not exist.
func (r *Repo) GetQuery(ctx context.Context, id int64) (*Query, error) {
	var q Query
	err := r.db.QueryRowContext(ctx, `SELECT query_id, normalized_sql, created_at FROM queries WHERE query_id = ?`, id).
		Scan(&q.QueryID, &q.NormalizedSQL, &q.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get query: %w", err)
	}
	return &q, nil
}

// =============================================================================
// SAMPLES
// =============================================================================

// InsertRequest appends a request sample and returns its ID.
func (r *Repo) InsertRequest(ctx context.Context, req Request) (int64, error) {
	if req.DurationMS < 0 {
		return 0, fmt.Errorf("negative duration %v", req.DurationMS)
	}
	id := NewID()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO requests(request_id, route_id, occurred_at, duration_ms, status, view_ms, db_ms)
		VALUES (?,?,?,?,?,?,?)
	`, id, req.RouteID, req.OccurredAt.UTC(), req.DurationMS, nullStatus(req.Status), nullPositive(req.ViewMS), nullPositive(req.DBMS))
	if err != nil {
		return 0, fmt.Errorf("insert request: %w", err)
	}
	return id, nil
}

// InsertOperation appends an operation sample and returns its ID.
func (r *Repo) InsertOperation(ctx context.Context, op Operation) (int64, error) {
	if op.DurationMS < 0 {
		return 0, fmt.Errorf("negative duration %v", op.DurationMS)
	}
	if op.OperationType == "" {
		op.OperationType = OpOther
	}
	id := NewID()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO operations(operation_id, request_id, query_id, operation_type, label, codebase_location, occurred_at, duration_ms)
		VALUES (?,?,?,?,?,?,?,?)
	`, id, nullID(op.RequestID), nullID(op.QueryID), string(op.OperationType),
		nullStr(op.Label), nullStr(op.CodebaseLocation), op.OccurredAt.UTC(), op.DurationMS)
	if err != nil {
		return 0, fmt.Errorf("insert operation: %w", err)
	}
	return id, nil
}

// SamplesInWindow implements SampleSource. Every request feeds both Overall
// and its route; every operation linked to a query feeds that query.
func (r *Repo) SamplesInWindow(ctx context.Context, start, end time.Time) (map[GroupKey][]Sample, error) {
	out := make(map[GroupKey][]Sample)

	reqs, err := r.requestSamples(ctx, `WHERE occurred_at >= ? AND occurred_at < ?`, start.UTC(), end.UTC())
	if err != nil {
		return nil, err
	}
	for _, s := range reqs {
		overall := s
		overall.Group = Overall
		out[Overall] = append(out[Overall], overall)
		out[s.Group] = append(out[s.Group], s)
	}

	ops, err := r.querySamples(ctx, `AND occurred_at >= ? AND occurred_at < ?`, start.UTC(), end.UTC())
	if err != nil {
		return nil, err
	}
	for key, group := range lo.GroupBy(ops, func(s Sample) GroupKey { return s.Group }) {
		out[key] = append(out[key], group...)
	}
	return out, nil
}

// SamplesForEntity implements SampleSource.
func (r *Repo) SamplesForEntity(ctx context.Context, key GroupKey, start, end time.Time) ([]Sample, error) {
	switch key.Kind {
	case KindOverall:
		samples, err := r.requestSamples(ctx, `WHERE occurred_at >= ? AND occurred_at < ?`, start.UTC(), end.UTC())
		if err != nil {
			return nil, err
		}
		return lo.Map(samples, func(s Sample, _ int) Sample {
			s.Group = Overall
			return s
		}), nil
	case KindRoute:
		return r.requestSamples(ctx, `WHERE route_id = ? AND occurred_at >= ? AND occurred_at < ?`, key.ID, start.UTC(), end.UTC())
	case KindQuery:
		return r.querySamples(ctx, `AND query_id = ? AND occurred_at >= ? AND occurred_at < ?`, key.ID, start.UTC(), end.UTC())
	}
	return nil, fmt.Errorf("unsupported group kind %q", key.Kind)
}

func (r *Repo) requestSamples(ctx context.Context, where string, args ...any) ([]Sample, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT route_id, occurred_at, duration_ms, status
		FROM requests `+where+`
		ORDER BY occurred_at, request_id
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("query request samples: %w", err)
	}
	defer rows.Close()

	var out []Sample
	for rows.Next() {
		var (
			routeID int64
			s       Sample
			status  sql.NullInt64
		)
		if err := rows.Scan(&routeID, &s.OccurredAt, &s.Duration, &status); err != nil {
			return nil, fmt.Errorf("scan request sample: %w", err)
		}
		if status.Valid {
			v := int(status.Int64)
			s.Status = &v
		}
		s.Group = RouteKey(routeID)
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *Repo) querySamples(ctx context.Context, where string, args ...any) ([]Sample, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT query_id, occurred_at, duration_ms
		FROM operations
		WHERE query_id IS NOT NULL `+where+`
		ORDER BY occurred_at, operation_id
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("query operation samples: %w", err)
	}
	defer rows.Close()

	var out []Sample
	for rows.Next() {
		var (
			queryID int64
			s       Sample
		)
		if err := rows.Scan(&queryID, &s.OccurredAt, &s.Duration); err != nil {
			return nil, fmt.Errorf("scan operation sample: %w", err)
		}
		s.Group = QueryKey(queryID)
		out = append(out, s)
	}
	return out, rows.Err()
}

// =============================================================================
// SUMMARIES
// =============================================================================

// UpsertSummaries writes every summary in one transaction, overwriting all
// non-key columns of existing rows.
func (r *Repo) UpsertSummaries(ctx context.Context, summaries []Summary) error {
	if len(summaries) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, s := range summaries {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO summaries(
			  group_key, summarizable_type, summarizable_id, period_type, period_start, period_end,
			  sample_count, avg_duration, min_duration, max_duration,
			  p50_duration, p95_duration, p99_duration, stddev_duration,
			  has_status, error_count, success_count, status_2xx, status_3xx, status_4xx, status_5xx
			) VALUES (?,?,?,?,?,?, ?,?,?,?, ?,?,?,?, ?,?,?,?,?,?,?)
			ON CONFLICT(group_key, period_type, period_start) DO UPDATE SET
			  summarizable_type = excluded.summarizable_type,
			  summarizable_id   = excluded.summarizable_id,
			  period_end        = excluded.period_end,
			  sample_count      = excluded.sample_count,
			  avg_duration      = excluded.avg_duration,
			  min_duration      = excluded.min_duration,
			  max_duration      = excluded.max_duration,
			  p50_duration      = excluded.p50_duration,
			  p95_duration      = excluded.p95_duration,
			  p99_duration      = excluded.p99_duration,
			  stddev_duration   = excluded.stddev_duration,
			  has_status        = excluded.has_status,
			  error_count       = excluded.error_count,
			  success_count     = excluded.success_count,
			  status_2xx        = excluded.status_2xx,
			  status_3xx        = excluded.status_3xx,
			  status_4xx        = excluded.status_4xx,
			  status_5xx        = excluded.status_5xx
		`,
			s.Group.String(), string(s.Group.Kind), nullID(s.Group.EntityID()), s.PeriodType, s.PeriodStart.UTC(), s.PeriodEnd.UTC(),
			s.Count, s.AvgDuration, s.MinDuration, s.MaxDuration,
			s.P50Duration, s.P95Duration, s.P99Duration, nullFloatPtr(s.StdDevDuration),
			s.HasStatus, s.ErrorCount, s.SuccessCount, s.Status2xx, s.Status3xx, s.Status4xx, s.Status5xx,
		)
		if err != nil {
			return fmt.Errorf("upsert summary %s/%s/%s: %w", s.Group, s.PeriodType, s.PeriodStart.Format(time.RFC3339), err)
		}
	}

	return tx.Commit()
}

// GetSummary returns nil when no summary exists for the natural key.
func (r *Repo) GetSummary(ctx context.Context, key GroupKey, periodType string, periodStart time.Time) (*Summary, error) {
	rows, err := r.db.QueryContext(ctx, summarySelect+`
		WHERE group_key = ? AND period_type = ? AND period_start = ?
	`, key.String(), periodType, periodStart.UTC())
	if err != nil {
		return nil, fmt.Errorf("get summary: %w", err)
	}
	defer rows.Close()

	out, err := scanSummaries(rows)
	if err != nil || len(out) == 0 {
		return nil, err
	}
	return &out[0], nil
}

// =============================================================================
// DAILY STATS
// =============================================================================

// MergeHour implements DailyStatStore. The read and write happen in one
// transaction so that sibling hours are never lost.
func (r *Repo) MergeHour(ctx context.Context, key GroupKey, date time.Time, hour int, stat HourStat) (DailyStat, error) {
	if hour < 0 || hour > 23 {
		return DailyStat{}, fmt.Errorf("hour %d out of range", hour)
	}
	day := truncateDay(date)
	now := time.Now().UTC()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return DailyStat{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var raw string
	err = tx.QueryRowContext(ctx, `SELECT hourly_data FROM daily_stats WHERE stat_date = ? AND entity_key = ?`, day, key.String()).Scan(&raw)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		encoded, encErr := EncodeHourlyData(map[string]HourStat{HourKey(hour): stat})
		if encErr != nil {
			return DailyStat{}, encErr
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO daily_stats(stat_date, entity_key, entity_type, entity_id, total_requests, error_count, hourly_data, updated_at)
			VALUES (?,?,?,?,0,0,?,?)
		`, day, key.String(), string(key.Kind), nullID(key.EntityID()), encoded, now)
		if err != nil {
			return DailyStat{}, fmt.Errorf("insert daily stat: %w", err)
		}
	case err != nil:
		return DailyStat{}, fmt.Errorf("read daily stat: %w", err)
	default:
		hourly, decErr := DecodeHourlyData(raw)
		if decErr != nil {
			return DailyStat{}, decErr
		}
		encoded, encErr := EncodeHourlyData(MergeHourlyData(hourly, hour, stat))
		if encErr != nil {
			return DailyStat{}, encErr
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE daily_stats SET hourly_data = ?, updated_at = ?
			WHERE stat_date = ? AND entity_key = ?
		`, encoded, now, day, key.String())
		if err != nil {
			return DailyStat{}, fmt.Errorf("update hourly data: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return DailyStat{}, err
	}

	ds, err := r.GetDailyStat(ctx, key, day)
	if err != nil {
		return DailyStat{}, err
	}
	if ds == nil {
		return DailyStat{}, fmt.Errorf("daily stat %s/%s vanished after merge", key, day.Format(time.DateOnly))
	}
	return *ds, nil
}

// FinalizeDailyStat implements DailyStatStore. A missing record is created
// with empty hourly data; an existing one keeps its hourly data.
func (r *Repo) FinalizeDailyStat(ctx context.Context, key GroupKey, date time.Time, t DailyTotals) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO daily_stats(
		  stat_date, entity_key, entity_type, entity_id,
		  total_requests, avg_duration, max_duration, error_count, p95_duration,
		  hourly_data, updated_at
		) VALUES (?,?,?,?, ?,?,?,?,?, '{}', ?)
		ON CONFLICT(stat_date, entity_key) DO UPDATE SET
		  total_requests = excluded.total_requests,
		  avg_duration   = excluded.avg_duration,
		  max_duration   = excluded.max_duration,
		  error_count    = excluded.error_count,
		  p95_duration   = excluded.p95_duration,
		  updated_at     = excluded.updated_at
	`,
		truncateDay(date), key.String(), string(key.Kind), nullID(key.EntityID()),
		t.TotalRequests, nullFloat(t.AvgDuration), nullFloat(t.MaxDuration), t.ErrorCount, nullFloat(t.P95Duration),
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("finalize daily stat: %w", err)
	}
	return nil
}

// GetDailyStat implements DailyStatStore.
func (r *Repo) GetDailyStat(ctx context.Context, key GroupKey, date time.Time) (*DailyStat, error) {
	rows, err := r.db.QueryContext(ctx, dailyStatSelect+`
		WHERE stat_date = ? AND entity_key = ?
	`, truncateDay(date), key.String())
	if err != nil {
		return nil, fmt.Errorf("get daily stat: %w", err)
	}
	defer rows.Close()

	out, err := scanDailyStats(rows)
	if err != nil || len(out) == 0 {
		return nil, err
	}
	return &out[0], nil
}

// =============================================================================
// HELPERS
// =============================================================================

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Null helpers
func nullStr(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullFloat(v float64) sql.NullFloat64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

func nullFloatPtr(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return nullFloat(*v)
}

func nullPositive(v float64) sql.NullFloat64 {
	if v <= 0 {
		return sql.NullFloat64{}
	}
	return nullFloat(v)
}

func nullID(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullStatus(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}
