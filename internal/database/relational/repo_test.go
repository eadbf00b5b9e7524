package relational

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) *Repo {
	t.Helper()
	client, err := NewInMemoryDB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	repo := NewRepo(client.DB())
	require.NoError(t, repo.Migrate(context.Background()))
	return repo
}

func intPtr(v int) *int { return &v }

func at(h, m, s int) time.Time {
	return time.Date(2024, 6, 3, h, m, s, 0, time.UTC)
}

func TestGroupKey(t *testing.T) {
	for _, k := range []GroupKey{Overall, RouteKey(0), RouteKey(42), QueryKey(7)} {
		parsed, err := ParseGroupKey(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, parsed)
	}

	assert.Equal(t, "overall", Overall.String())
	assert.Equal(t, "route:0", RouteKey(0).String())
	assert.NotEqual(t, Overall, RouteKey(0))
	assert.Nil(t, Overall.EntityID())
	require.NotNil(t, QueryKey(7).EntityID())
	assert.Equal(t, int64(7), *QueryKey(7).EntityID())

	for _, bad := range []string{"", "route", "route:x", "host:1"} {
		_, err := ParseGroupKey(bad)
		assert.Error(t, err, bad)
	}

	text, err := RouteKey(3).MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "route:3", string(text))
}

func TestFindOrCreateRoute(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	id1, err := repo.FindOrCreateRoute(ctx, "GET", "/users")
	require.NoError(t, err)
	id2, err := repo.FindOrCreateRoute(ctx, "GET", "/users")
	require.NoError(t, err)
	id3, err := repo.FindOrCreateRoute(ctx, "POST", "/users")
	require.NoError(t, err)

	assert.Equal(t, id1, id2)
	assert.NotEqual(t, id1, id3)

	rt, err := repo.GetRoute(ctx, id1)
	require.NoError(t, err)
	require.NotNil(t, rt)
	assert.Equal(t, "GET /users", rt.Label())

	_, err = repo.FindOrCreateRoute(ctx, "", "/x")
	assert.Error(t, err)
}

func TestFindOrCreateQueryTruncates(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	prefix := "SELECT " + strings.Repeat("a", MaxNormalizedSQLLength)
	id1, err := repo.FindOrCreateQuery(ctx, prefix+" FROM one")
	require.NoError(t, err)
	id2, err := repo.FindOrCreateQuery(ctx, prefix+" FROM two")
	require.NoError(t, err)
	assert.Equal(t, id1, id2)

	q, err := repo.GetQuery(ctx, id1)
	require.NoError(t, err)
	require.NotNil(t, q)
	assert.Len(t, []rune(q.NormalizedSQL), MaxNormalizedSQLLength)

	_, err = repo.FindOrCreateQuery(ctx, "")
	assert.Error(t, err)
}

func TestSamplesInWindowHalfOpen(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	route, err := repo.FindOrCreateRoute(ctx, "GET", "/users")
	require.NoError(t, err)
	query, err := repo.FindOrCreateQuery(ctx, "SELECT * FROM users WHERE id = ?")
	require.NoError(t, err)

	for _, r := range []Request{
		{RouteID: route, OccurredAt: at(9, 59, 59), DurationMS: 5, Status: intPtr(200)},
		{RouteID: route, OccurredAt: at(10, 0, 0), DurationMS: 100, Status: intPtr(200)},
		{RouteID: route, OccurredAt: at(10, 59, 59), DurationMS: 150, Status: intPtr(500)},
		{RouteID: route, OccurredAt: at(11, 0, 0), DurationMS: 999, Status: intPtr(200)},
	} {
		_, err := repo.InsertRequest(ctx, r)
		require.NoError(t, err)
	}
	_, err = repo.InsertOperation(ctx, Operation{QueryID: &query, OperationType: OpSQL, OccurredAt: at(10, 30, 0), DurationMS: 3})
	require.NoError(t, err)
	_, err = repo.InsertOperation(ctx, Operation{OperationType: OpTemplate, Label: "users/index", OccurredAt: at(10, 30, 0), DurationMS: 8})
	require.NoError(t, err)

	groups, err := repo.SamplesInWindow(ctx, at(10, 0, 0), at(11, 0, 0))
	require.NoError(t, err)

	require.Len(t, groups, 3)
	require.Len(t, groups[Overall], 2)
	require.Len(t, groups[RouteKey(route)], 2)
	require.Len(t, groups[QueryKey(query)], 1)

	assert.Equal(t, 100.0, groups[RouteKey(route)][0].Duration)
	assert.Equal(t, 500, *groups[RouteKey(route)][1].Status)
	assert.Equal(t, Overall, groups[Overall][0].Group)
	assert.Nil(t, groups[QueryKey(query)][0].Status)

	routeSamples, err := repo.SamplesForEntity(ctx, RouteKey(route), at(0, 0, 0), at(23, 0, 0))
	require.NoError(t, err)
	assert.Len(t, routeSamples, 4)

	querySamples, err := repo.SamplesForEntity(ctx, QueryKey(query), at(11, 0, 0), at(12, 0, 0))
	require.NoError(t, err)
	assert.Empty(t, querySamples)
}

func TestInsertRejectsNegativeDuration(t *testing.T) {
	repo := newTestRepo(t)
	_, err := repo.InsertRequest(context.Background(), Request{RouteID: 1, OccurredAt: at(1, 0, 0), DurationMS: -1})
	assert.Error(t, err)
}

func testSummary(key GroupKey, count int64) Summary {
	sd := 50.0
	return Summary{
		Group:          key,
		PeriodType:     "hour",
		PeriodStart:    at(10, 0, 0),
		PeriodEnd:      at(11, 0, 0).Add(-time.Microsecond),
		Count:          count,
		AvgDuration:    150,
		MinDuration:    100,
		MaxDuration:    200,
		P50Duration:    150,
		P95Duration:    195,
		P99Duration:    199,
		StdDevDuration: &sd,
		HasStatus:      true,
		SuccessCount:   count,
		Status2xx:      count,
	}
}

func TestUpsertSummariesOverwrites(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	require.NoError(t, repo.UpsertSummaries(ctx, []Summary{testSummary(Overall, 3), testSummary(RouteKey(1), 3)}))

	updated := testSummary(Overall, 5)
	updated.StdDevDuration = nil
	require.NoError(t, repo.UpsertSummaries(ctx, []Summary{updated}))

	got, err := repo.GetSummary(ctx, Overall, "hour", at(10, 0, 0))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.WithinDuration(t, updated.PeriodStart, got.PeriodStart, 0)
	assert.WithinDuration(t, updated.PeriodEnd, got.PeriodEnd, 0)
	got.PeriodStart, got.PeriodEnd = updated.PeriodStart, updated.PeriodEnd
	assert.Equal(t, updated, *got)

	all, err := repo.ListSummaries(ctx, SummaryFilter{PeriodType: "hour"})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	routes, err := repo.ListSummaries(ctx, SummaryFilter{Kind: KindRoute, Limit: 1000})
	require.NoError(t, err)
	require.Len(t, routes, 1)
	assert.Equal(t, RouteKey(1), routes[0].Group)

	missing, err := repo.GetSummary(ctx, QueryKey(9), "hour", at(10, 0, 0))
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestUpsertSummariesRollsBackOnFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	insert := regexp.QuoteMeta("INSERT INTO summaries")
	mock.ExpectBegin()
	mock.ExpectExec(insert).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(insert).WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	repo := NewRepo(db)
	err = repo.UpsertSummaries(context.Background(), []Summary{
		testSummary(Overall, 3),
		testSummary(RouteKey(1), 3),
		testSummary(RouteKey(2), 3),
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMergeHourPreservesSiblings(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	day := at(15, 30, 0)

	first, err := repo.MergeHour(ctx, RouteKey(4), day, 5, HourStat{Requests: 10, AvgDuration: 12.5, Errors: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(0), first.TotalRequests)
	assert.False(t, first.Finalized())
	assert.WithinDuration(t, at(0, 0, 0), first.Date, 0)

	_, err = repo.MergeHour(ctx, RouteKey(4), day, 6, HourStat{Requests: 4, AvgDuration: 20})
	require.NoError(t, err)
	got, err := repo.MergeHour(ctx, RouteKey(4), day, 5, HourStat{Requests: 11, AvgDuration: 12, Errors: 1})
	require.NoError(t, err)

	assert.Equal(t, map[string]HourStat{
		"5": {Requests: 11, AvgDuration: 12, Errors: 1},
		"6": {Requests: 4, AvgDuration: 20},
	}, got.HourlyData)

	_, err = repo.MergeHour(ctx, RouteKey(4), day, 24, HourStat{})
	assert.Error(t, err)
}

func TestFinalizeDailyStatKeepsHourlyData(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	day := at(0, 0, 0)

	before, err := repo.MergeHour(ctx, Overall, day, 9, HourStat{Requests: 3, AvgDuration: 150})
	require.NoError(t, err)

	totals := DailyTotals{TotalRequests: 3, AvgDuration: 150, MaxDuration: 200, ErrorCount: 1, P95Duration: 195}
	require.NoError(t, repo.FinalizeDailyStat(ctx, Overall, day, totals))

	after, err := repo.GetDailyStat(ctx, Overall, day)
	require.NoError(t, err)
	require.NotNil(t, after)
	assert.Equal(t, before.HourlyData, after.HourlyData)
	assert.Equal(t, int64(3), after.TotalRequests)
	assert.Equal(t, 200.0, after.MaxDuration)
	assert.True(t, after.Finalized())

	// Finalizing a day never recorded hourly creates the record.
	require.NoError(t, repo.FinalizeDailyStat(ctx, QueryKey(2), day, totals))
	fresh, err := repo.GetDailyStat(ctx, QueryKey(2), day)
	require.NoError(t, err)
	require.NotNil(t, fresh)
	assert.Empty(t, fresh.HourlyData)

	list, err := repo.ListDailyStats(ctx, day)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, Overall, list[0].Group)
}

func TestLookupLabels(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	route, err := repo.FindOrCreateRoute(ctx, "GET", "/orders")
	require.NoError(t, err)
	query, err := repo.FindOrCreateQuery(ctx, "SELECT * FROM orders")
	require.NoError(t, err)

	labels, err := repo.LookupLabels(ctx, []GroupKey{Overall, RouteKey(route), QueryKey(query), RouteKey(route), QueryKey(404)})
	require.NoError(t, err)
	assert.Equal(t, map[GroupKey]string{
		Overall:         "overall",
		RouteKey(route): "GET /orders",
		QueryKey(query): "SELECT * FROM orders",
		QueryKey(404):   "query:404",
	}, labels)
}

func TestHourlyDataCodec(t *testing.T) {
	in := map[string]HourStat{"0": {Requests: 1}, "23": {Requests: 2, AvgDuration: 1.5, Errors: 1}}
	raw, err := EncodeHourlyData(in)
	require.NoError(t, err)

	out, err := DecodeHourlyData(raw)
	require.NoError(t, err)
	assert.Equal(t, in, out)

	merged := MergeHourlyData(in, 0, HourStat{Requests: 9})
	assert.Equal(t, int64(1), in["0"].Requests)
	assert.Equal(t, int64(9), merged["0"].Requests)
	assert.Len(t, merged, 2)

	_, err = DecodeHourlyData("not json")
	assert.Error(t, err)
}

func TestNewIDIsIncreasing(t *testing.T) {
	prev := NewID()
	for i := 0; i < 1000; i++ {
		id := NewID()
		require.Greater(t, id, prev)
		prev = id
	}
}
