package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pulsecheck/internal/config"
	"pulsecheck/internal/database/relational"
	"pulsecheck/internal/period"
)

func status(v int) *int { return &v }

var hour10 = time.Date(2024, 6, 3, 10, 0, 0, 0, time.UTC)

func sample(key relational.GroupKey, minute int, d float64, st *int) relational.Sample {
	return relational.Sample{Group: key, OccurredAt: hour10.Add(time.Duration(minute) * time.Minute), Duration: d, Status: st}
}

func TestComputeRouteHour(t *testing.T) {
	route := relational.RouteKey(1)
	groups := map[relational.GroupKey][]relational.Sample{
		route: {
			sample(route, 1, 200, status(200)),
			sample(route, 2, 100, status(200)),
			sample(route, 3, 150, status(200)),
		},
	}

	out := Compute(period.Hour, hour10.Add(25*time.Minute), groups, 400)
	require.Len(t, out, 1)
	s := out[0]

	assert.Equal(t, route, s.Group)
	assert.Equal(t, "hour", s.PeriodType)
	assert.Equal(t, hour10, s.PeriodStart)
	assert.Equal(t, hour10.Add(time.Hour-time.Nanosecond), s.PeriodEnd)
	assert.Equal(t, int64(3), s.Count)
	assert.Equal(t, 150.0, s.AvgDuration)
	assert.Equal(t, 100.0, s.MinDuration)
	assert.Equal(t, 200.0, s.MaxDuration)
	assert.Equal(t, 150.0, s.P50Duration)
	require.NotNil(t, s.StdDevDuration)
	assert.InDelta(t, 50.0, *s.StdDevDuration, 1e-9)
	assert.True(t, s.HasStatus)
	assert.Equal(t, int64(3), s.SuccessCount)
	assert.Equal(t, int64(3), s.Status2xx)
}

func TestComputeStatusBreakdown(t *testing.T) {
	k := relational.Overall
	groups := map[relational.GroupKey][]relational.Sample{
		k: {
			sample(k, 0, 10, status(201)),
			sample(k, 0, 10, status(302)),
			sample(k, 0, 10, status(404)),
			sample(k, 0, 10, status(500)),
			sample(k, 0, 10, status(503)),
			sample(k, 0, 10, nil),
		},
	}

	s := Compute(period.Hour, hour10, groups, 400)[0]
	assert.Equal(t, int64(6), s.Count)
	assert.Equal(t, int64(3), s.ErrorCount)
	assert.Equal(t, int64(2), s.SuccessCount)
	assert.Equal(t, []int64{1, 1, 1, 2}, []int64{s.Status2xx, s.Status3xx, s.Status4xx, s.Status5xx})
	assert.InDelta(t, 50.0, s.ErrorRate(), 1e-9)

	strict := Compute(period.Hour, hour10, groups, 500)[0]
	assert.Equal(t, int64(2), strict.ErrorCount)
	assert.Equal(t, int64(3), strict.SuccessCount)
}

func TestComputeSkipsEmptyGroupsAndOrdersKeys(t *testing.T) {
	q := relational.QueryKey(9)
	r := relational.RouteKey(2)
	groups := map[relational.GroupKey][]relational.Sample{
		q:                      {sample(q, 5, 3, nil)},
		r:                      {sample(r, 5, 7, status(200))},
		relational.Overall:     {sample(relational.Overall, 5, 7, status(200))},
		relational.RouteKey(3): {},
	}

	out := Compute(period.Day, hour10, groups, 0)
	require.Len(t, out, 3)
	assert.Equal(t, []relational.GroupKey{relational.Overall, q, r}, []relational.GroupKey{out[0].Group, out[1].Group, out[2].Group})

	assert.False(t, out[1].HasStatus)
	assert.Nil(t, out[1].StdDevDuration)
	assert.Equal(t, time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC), out[0].PeriodStart)
}

type fakeSource struct {
	groups map[relational.GroupKey][]relational.Sample
	err    error
	start  time.Time
	end    time.Time
}

func (f *fakeSource) SamplesInWindow(_ context.Context, start, end time.Time) (map[relational.GroupKey][]relational.Sample, error) {
	f.start, f.end = start, end
	return f.groups, f.err
}

func (f *fakeSource) SamplesForEntity(context.Context, relational.GroupKey, time.Time, time.Time) ([]relational.Sample, error) {
	return nil, nil
}

type fakeStore struct {
	written []relational.Summary
	err     error
}

func (f *fakeStore) UpsertSummaries(_ context.Context, s []relational.Summary) error {
	if f.err != nil {
		return f.err
	}
	f.written = append(f.written, s...)
	return nil
}

func TestAggregateUsesHalfOpenWindow(t *testing.T) {
	src := &fakeSource{groups: map[relational.GroupKey][]relational.Sample{
		relational.Overall: {sample(relational.Overall, 1, 5, status(200))},
	}}
	store := &fakeStore{}
	e, err := New(src, store, config.DefaultConfig().Thresholds)
	require.NoError(t, err)

	out, err := e.Aggregate(context.Background(), period.Hour, hour10.Add(59*time.Minute))
	require.NoError(t, err)
	assert.Len(t, out, 1)
	assert.Equal(t, out, store.written)
	assert.Equal(t, hour10, src.start)
	assert.Equal(t, hour10.Add(time.Hour), src.end)
}

func TestAggregateReturnsStoreFailure(t *testing.T) {
	src := &fakeSource{groups: map[relational.GroupKey][]relational.Sample{
		relational.Overall: {sample(relational.Overall, 1, 5, nil)},
	}}
	store := &fakeStore{err: errors.New("conflict")}
	e, err := New(src, store, config.DefaultConfig().Thresholds)
	require.NoError(t, err)

	_, err = e.Aggregate(context.Background(), period.Hour, hour10)
	require.Error(t, err)
	assert.ErrorIs(t, err, store.err)
	assert.Empty(t, store.written)

	src.err = errors.New("store offline")
	_, err = e.Aggregate(context.Background(), period.Hour, hour10)
	assert.ErrorIs(t, err, src.err)
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(nil, &fakeStore{}, config.Thresholds{})
	assert.Error(t, err)
}

func TestAggregateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	client, err := relational.NewInMemoryDB()
	require.NoError(t, err)
	defer client.Close()
	repo := relational.NewRepo(client.DB())
	require.NoError(t, repo.Migrate(ctx))

	route, err := repo.FindOrCreateRoute(ctx, "GET", "/users")
	require.NoError(t, err)
	for i, d := range []float64{100, 150, 200} {
		_, err := repo.InsertRequest(ctx, relational.Request{
			RouteID: route, OccurredAt: hour10.Add(time.Duration(i) * time.Minute), DurationMS: d, Status: status(200),
		})
		require.NoError(t, err)
	}

	e, err := New(repo, repo, config.DefaultConfig().Thresholds)
	require.NoError(t, err)

	dump := func() [][]any {
		rows, err := client.DB().QueryContext(ctx, `
			SELECT group_key, period_type, period_start, period_end, sample_count, avg_duration,
			       min_duration, max_duration, p50_duration, p95_duration, p99_duration, stddev_duration,
			       has_status, error_count, success_count, status_2xx, status_3xx, status_4xx, status_5xx
			FROM summaries ORDER BY group_key`)
		require.NoError(t, err)
		defer rows.Close()
		cols, err := rows.Columns()
		require.NoError(t, err)
		var out [][]any
		for rows.Next() {
			vals := make([]any, len(cols))
			ptrs := make([]any, len(cols))
			for i := range vals {
				ptrs[i] = &vals[i]
			}
			require.NoError(t, rows.Scan(ptrs...))
			out = append(out, vals)
		}
		return out
	}

	_, err = e.Aggregate(ctx, period.Hour, hour10)
	require.NoError(t, err)
	first := dump()
	_, err = e.Aggregate(ctx, period.Hour, hour10)
	require.NoError(t, err)
	second := dump()

	require.Len(t, first, 2) // overall + route
	assert.Equal(t, first, second)

	s, err := repo.GetSummary(ctx, relational.RouteKey(route), "hour", hour10)
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, int64(3), s.Count)
	assert.Equal(t, 150.0, s.AvgDuration)
}
