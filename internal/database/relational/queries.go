package relational

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/samber/lo"
)

const summarySelect = `
	SELECT
		group_key, period_type, period_start, period_end,
		sample_count, avg_duration, min_duration, max_duration,
		p50_duration, p95_duration, p99_duration, stddev_duration,
		has_status, error_count, success_count, status_2xx, status_3xx, status_4xx, status_5xx
	FROM summaries
`

const dailyStatSelect = `
	SELECT
		stat_date, entity_key, total_requests, avg_duration, max_duration,
		error_count, p95_duration, hourly_data, updated_at
	FROM daily_stats
`

// SummaryFilter narrows ListSummaries. Zero fields match everything.
type SummaryFilter struct {
	Kind       GroupKind // "" = every kind
	Group      *GroupKey // exact group, overrides Kind
	PeriodType string
	From       time.Time // period_start >= From
	To         time.Time // period_start < To
	Limit      int       // clamped to 1..100, default 10
}

// ListSummaries returns matching summaries, newest period first.
func (r *Repo) ListSummaries(ctx context.Context, f SummaryFilter) ([]Summary, error) {
	if f.Limit <= 0 {
		f.Limit = 10
	}
	if f.Limit > 100 {
		f.Limit = 100 // Safety limit
	}

	query := summarySelect + " WHERE 1=1"
	args := []any{}
	if f.Group != nil {
		query += " AND group_key = ?"
		args = append(args, f.Group.String())
	} else if f.Kind != "" {
		query += " AND summarizable_type = ?"
		args = append(args, string(f.Kind))
	}
	if f.PeriodType != "" {
		query += " AND period_type = ?"
		args = append(args, f.PeriodType)
	}
	if !f.From.IsZero() {
		query += " AND period_start >= ?"
		args = append(args, f.From.UTC())
	}
	if !f.To.IsZero() {
		query += " AND period_start < ?"
		args = append(args, f.To.UTC())
	}
	query += " ORDER BY period_start DESC, group_key LIMIT ?"
	args = append(args, f.Limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query summaries failed: %w", err)
	}
	defer rows.Close()
	return scanSummaries(rows)
}

func scanSummaries(rows *sql.Rows) ([]Summary, error) {
	summaries := []Summary{} // Initialize as empty slice, not nil
	for rows.Next() {
		var (
			s      Summary
			key    string
			stddev sql.NullFloat64
		)
		err := rows.Scan(
			&key, &s.PeriodType, &s.PeriodStart, &s.PeriodEnd,
			&s.Count, &s.AvgDuration, &s.MinDuration, &s.MaxDuration,
			&s.P50Duration, &s.P95Duration, &s.P99Duration, &stddev,
			&s.HasStatus, &s.ErrorCount, &s.SuccessCount, &s.Status2xx, &s.Status3xx, &s.Status4xx, &s.Status5xx,
		)
		if err != nil {
			return nil, fmt.Errorf("scan summary failed: %w", err)
		}
		if s.Group, err = ParseGroupKey(key); err != nil {
			return nil, err
		}
		if stddev.Valid {
			v := stddev.Float64
			s.StdDevDuration = &v
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return summaries, nil
}

// ListDailyStats returns every record for one date, overall first.
func (r *Repo) ListDailyStats(ctx context.Context, date time.Time) ([]DailyStat, error) {
	rows, err := r.db.QueryContext(ctx, dailyStatSelect+`
		WHERE stat_date = ?
		ORDER BY CASE WHEN entity_type = 'overall' THEN 0 ELSE 1 END, entity_key
	`, truncateDay(date))
	if err != nil {
		return nil, fmt.Errorf("query daily stats failed: %w", err)
	}
	defer rows.Close()
	return scanDailyStats(rows)
}

func scanDailyStats(rows *sql.Rows) ([]DailyStat, error) {
	stats := []DailyStat{}
	for rows.Next() {
		var (
			d               DailyStat
			key, hourly     string
			avgD, maxD, p95 sql.NullFloat64
		)
		err := rows.Scan(&d.Date, &key, &d.TotalRequests, &avgD, &maxD, &d.ErrorCount, &p95, &hourly, &d.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan daily stat failed: %w", err)
		}
		if d.Group, err = ParseGroupKey(key); err != nil {
			return nil, err
		}
		if d.HourlyData, err = DecodeHourlyData(hourly); err != nil {
			return nil, err
		}
		d.AvgDuration, d.MaxDuration, d.P95Duration = avgD.Float64, maxD.Float64, p95.Float64
		stats = append(stats, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return stats, nil
}

// LookupLabels returns a display label per key: "GET /users" for routes, the
// normalized SQL for queries and "overall" for the whole application. Keys
// whose entity no longer exists are labeled by their natural key.
func (r *Repo) LookupLabels(ctx context.Context, keys []GroupKey) (map[GroupKey]string, error) {
	labels := make(map[GroupKey]string, len(keys))
	for _, k := range lo.Uniq(keys) {
		switch k.Kind {
		case KindRoute:
			rt, err := r.GetRoute(ctx, k.ID)
			if err != nil {
				return nil, err
			}
			if rt != nil {
				labels[k] = rt.Label()
				continue
			}
		case KindQuery:
			q, err := r.GetQuery(ctx, k.ID)
			if err != nil {
				return nil, err
			}
			if q != nil {
				labels[k] = q.NormalizedSQL
				continue
			}
		}
		labels[k] = k.String()
	}
	return labels, nil
}

// ListRoutes returns every known route ordered by path, then method.
func (r *Repo) ListRoutes(ctx context.Context) ([]Route, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT route_id, method, path, created_at FROM routes ORDER BY path, method`)
	if err != nil {
		return nil, fmt.Errorf("query routes failed: %w", err)
	}
	defer rows.Close()

	routes := []Route{}
	for rows.Next() {
		var rt Route
		if err := rows.Scan(&rt.RouteID, &rt.Method, &rt.Path, &rt.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan route failed: %w", err)
		}
		routes = append(routes, rt)
	}
	return routes, rows.Err()
}
