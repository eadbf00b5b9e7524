package tui

import (
	"context"
	"time"

	"pulsecheck/internal/database/relational"
	"pulsecheck/internal/flagger"
	"pulsecheck/internal/output"
	"pulsecheck/internal/period"
)

// historyLen is how many buckets the p95 trend shows.
const historyLen = 31

// Snapshot is one refresh of the dashboard.
type Snapshot struct {
	View       output.DashboardView
	P95History []float64
}

// SnapshotProvider loads the latest summaries of a period type.
type SnapshotProvider interface {
	Snapshot(ctx context.Context, pt period.Type) (Snapshot, error)
}

// RepoProvider reads snapshots from the summary store.
type RepoProvider struct {
	repo    *relational.Repo
	flagger *flagger.FlaggerService
}

func NewRepoProvider(repo *relational.Repo, fl *flagger.FlaggerService) *RepoProvider {
	return &RepoProvider{repo: repo, flagger: fl}
}

// Snapshot builds the view of the newest stored bucket of pt and the overall
// p95 of the buckets before it.
func (p *RepoProvider) Snapshot(ctx context.Context, pt period.Type) (Snapshot, error) {
	overall := relational.Overall
	trend, err := p.repo.ListSummaries(ctx, relational.SummaryFilter{Group: &overall, PeriodType: pt.String(), Limit: historyLen})
	if err != nil {
		return Snapshot{}, err
	}
	if len(trend) == 0 {
		return Snapshot{View: output.BuildDashboard(nil, nil, p.flagger)}, nil
	}

	latest := trend[0].PeriodStart
	summaries, err := p.repo.ListSummaries(ctx, relational.SummaryFilter{
		PeriodType: pt.String(),
		From:       latest,
		To:         latest.Add(time.Nanosecond),
		Limit:      100,
	})
	if err != nil {
		return Snapshot{}, err
	}

	keys := make([]relational.GroupKey, 0, len(summaries))
	for _, s := range summaries {
		keys = append(keys, s.Group)
	}
	labels, err := p.repo.LookupLabels(ctx, keys)
	if err != nil {
		return Snapshot{}, err
	}

	history := make([]float64, len(trend))
	for i, s := range trend {
		history[len(trend)-1-i] = s.P95Duration
	}
	return Snapshot{View: output.BuildDashboard(summaries, labels, p.flagger), P95History: history}, nil
}
