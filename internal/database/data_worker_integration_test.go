package database_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"pulsecheck/internal/config"
	"pulsecheck/internal/database"
	"pulsecheck/internal/database/graph"
	"pulsecheck/internal/database/relational"
	"pulsecheck/internal/engine"
	"pulsecheck/internal/flagger"
	"pulsecheck/internal/ingest"
	"pulsecheck/internal/rollup"
)

func intPtr(v int) *int { return &v }

// TestRollupWorkerEndToEnd tests: ingest -> RollupWorker ticks -> DuckDB summaries and daily stats
func TestRollupWorkerEndToEnd(t *testing.T) {
	ctx := context.Background()

	// 1. Create in-memory DuckDB
	client, err := relational.NewDuckDBClient("")
	if err != nil {
		t.Fatalf("failed to create duckdb client: %v", err)
	}
	defer client.Close()

	repo := relational.NewRepo(client.DB())

	// 2. Run migrations to create schema
	if err := repo.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}
	t.Log("✓ Schema migrated successfully")

	// 3. Ingest samples for 2024-06-03
	pipe, err := ingest.NewPipeline(repo)
	if err != nil {
		t.Fatalf("failed to create pipeline: %v", err)
	}
	day := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	events := []ingest.RequestEvent{
		{Method: "GET", Path: "/users", OccurredAt: day.Add(10*time.Hour + 5*time.Minute), DurationMS: 100, Status: intPtr(200)},
		{Method: "GET", Path: "/users", OccurredAt: day.Add(10*time.Hour + 20*time.Minute), DurationMS: 300, Status: intPtr(500)},
		{Method: "POST", Path: "/orders", OccurredAt: day.Add(11*time.Hour + 10*time.Minute), DurationMS: 200, Status: intPtr(201)},
	}
	for _, ev := range events {
		if _, err := pipe.RecordRequest(ctx, ev); err != nil {
			t.Fatalf("RecordRequest failed: %v", err)
		}
	}

	// 4. Create Components
	cfg := config.DefaultConfig()
	eng, err := engine.New(repo, repo, cfg.Thresholds)
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	coord, err := rollup.New(eng, repo, repo, cfg)
	if err != nil {
		t.Fatalf("failed to create coordinator: %v", err)
	}
	mockGraph := &MockGraphClient{}
	fl := flagger.NewFlaggerService(flagger.FromThresholds(cfg.Thresholds))
	worker, err := database.NewRollupWorker(eng, coord, repo, fl, mockGraph, cfg.Rollup)
	if err != nil {
		t.Fatalf("failed to create rollup worker: %v", err)
	}

	// 5. Tick through the day and past midnight
	ticks := []time.Time{
		day.Add(11*time.Hour + 30*time.Minute), // rolls hour 10
		day.Add(12*time.Hour + 5*time.Minute),  // rolls hour 11
		day.Add(24*time.Hour + 10*time.Minute), // inside the finalize lag, day stays open
	}
	for _, now := range ticks {
		if err := worker.PullOnce(ctx, now); err != nil {
			t.Fatalf("PullOnce(%s) failed: %v", now, err)
		}
	}

	open, err := repo.GetDailyStat(ctx, relational.Overall, day)
	if err != nil || open == nil {
		t.Fatalf("overall daily stat missing: %v", err)
	}
	if open.Finalized() {
		t.Errorf("day finalized before the lag elapsed: %+v", open)
	}
	if got := open.HourlyData["10"]; got.Requests != 2 || got.Errors != 1 || got.AvgDuration != 200 {
		t.Errorf("hour 10 = %+v", got)
	}
	t.Log("✓ Hourly slices recorded")

	if err := worker.PullOnce(ctx, day.Add(24*time.Hour+20*time.Minute)); err != nil {
		t.Fatalf("closing tick failed: %v", err)
	}
	worker.Stop()

	// 6. Verify the closed day
	closed, err := repo.GetDailyStat(ctx, relational.Overall, day)
	if err != nil || closed == nil {
		t.Fatalf("overall daily stat missing after close: %v", err)
	}
	if closed.TotalRequests != 3 || closed.ErrorCount != 1 || closed.MaxDuration != 300 {
		t.Errorf("closed day = %+v", closed)
	}
	if len(closed.HourlyData) != 2 {
		t.Errorf("hourly data changed on finalize: %+v", closed.HourlyData)
	}
	t.Log("✓ Day finalized with hourly data intact")

	for _, pt := range []string{"week", "month"} {
		s, err := repo.GetSummary(ctx, relational.Overall, pt, map[string]time.Time{
			"week":  day,
			"month": time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		}[pt])
		if err != nil || s == nil {
			t.Fatalf("%s summary missing: %v", pt, err)
		}
		if s.Count != 3 {
			t.Errorf("%s count = %d, want 3", pt, s.Count)
		}
	}
	t.Log("✓ Week and month refreshed")

	// 7. Graph mirror received labeled batches
	batches := mockGraph.Batches()
	if len(batches) == 0 {
		t.Fatal("no batches pushed to graph")
	}
	labeled := false
	for _, b := range batches {
		for key, label := range b.Labels {
			if key.Kind == relational.KindRoute && label == "GET /users" {
				labeled = true
			}
		}
	}
	if !labeled {
		t.Error("graph batches carry no route labels")
	}
	if !mockGraph.closed {
		t.Error("graph client not closed on Stop")
	}
}

func TestRollupWorkerStartStop(t *testing.T) {
	client, err := relational.NewInMemoryDB()
	if err != nil {
		t.Fatalf("failed to create duckdb client: %v", err)
	}
	defer client.Close()
	repo := relational.NewRepo(client.DB())
	if err := repo.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}

	cfg := config.DefaultConfig().WithRollupInterval(10 * time.Millisecond)
	eng, _ := engine.New(repo, repo, cfg.Thresholds)
	coord, _ := rollup.New(eng, repo, repo, cfg)
	worker, err := database.NewRollupWorker(eng, coord, nil, nil, nil, cfg.Rollup)
	if err != nil {
		t.Fatalf("failed to create rollup worker: %v", err)
	}

	if err := worker.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := worker.Start(context.Background()); err == nil {
		t.Error("second Start should fail while running")
	}
	time.Sleep(30 * time.Millisecond)
	worker.Stop()

	if _, err := database.NewRollupWorker(nil, coord, nil, nil, nil, cfg.Rollup); err == nil {
		t.Error("expected error without aggregator")
	}
}

// MockGraphClient
type MockGraphClient struct {
	mu      sync.Mutex
	batches []*graph.PeriodBatch
	closed  bool
}

func (m *MockGraphClient) Close(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *MockGraphClient) Reset(ctx context.Context) error { return nil }

func (m *MockGraphClient) IngestPeriod(ctx context.Context, batch *graph.PeriodBatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches = append(m.batches, batch)
	return nil
}

func (m *MockGraphClient) ExecuteCypher(ctx context.Context, query string) ([]map[string]any, error) {
	return nil, nil
}

func (m *MockGraphClient) Batches() []*graph.PeriodBatch {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*graph.PeriodBatch(nil), m.batches...)
}
