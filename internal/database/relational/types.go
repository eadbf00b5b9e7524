package relational

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// GroupKind tags what a Summary or DailyStat is computed for.
type GroupKind string

const (
	KindOverall GroupKind = "overall"
	KindRoute   GroupKind = "route"
	KindQuery   GroupKind = "query"
)

// GroupKey identifies a group of samples. Overall is its own variant and
// carries no ID, so a real entity with ID 0 never collides with it.
type GroupKey struct {
	Kind GroupKind
	ID   int64
}

// Overall is the whole-application group.
var Overall = GroupKey{Kind: KindOverall}

func RouteKey(id int64) GroupKey { return GroupKey{Kind: KindRoute, ID: id} }
func QueryKey(id int64) GroupKey { return GroupKey{Kind: KindQuery, ID: id} }

func (k GroupKey) IsOverall() bool { return k.Kind == KindOverall }

// String is the stored natural key: "overall", "route:<id>" or "query:<id>".
func (k GroupKey) String() string {
	if k.IsOverall() {
		return string(KindOverall)
	}
	return string(k.Kind) + ":" + strconv.FormatInt(k.ID, 10)
}

// EntityID is nil for Overall.
func (k GroupKey) EntityID() *int64 {
	if k.IsOverall() {
		return nil
	}
	id := k.ID
	return &id
}

func (k GroupKey) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *GroupKey) UnmarshalText(b []byte) error {
	parsed, err := ParseGroupKey(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParseGroupKey is the inverse of GroupKey.String.
func ParseGroupKey(s string) (GroupKey, error) {
	if s == string(KindOverall) {
		return Overall, nil
	}
	kind, id, ok := strings.Cut(s, ":")
	if !ok {
		return GroupKey{}, fmt.Errorf("invalid group key %q", s)
	}
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return GroupKey{}, fmt.Errorf("invalid group key %q: %w", s, err)
	}
	switch GroupKind(kind) {
	case KindRoute:
		return RouteKey(n), nil
	case KindQuery:
		return QueryKey(n), nil
	}
	return GroupKey{}, fmt.Errorf("invalid group key %q", s)
}

// Sample is one immutable measurement read back from requests or operations.
type Sample struct {
	OccurredAt time.Time
	Duration   float64 // ms, >= 0
	Status     *int    // nil for operations
	Group      GroupKey
}

// Summary is the statistic set for one (group, period type, period start).
type Summary struct {
	Group       GroupKey  `json:"group"`
	PeriodType  string    `json:"period_type"`
	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"` // inclusive

	Count          int64    `json:"count"`
	AvgDuration    float64  `json:"avg_duration"`
	MinDuration    float64  `json:"min_duration"`
	MaxDuration    float64  `json:"max_duration"`
	P50Duration    float64  `json:"p50_duration"`
	P95Duration    float64  `json:"p95_duration"`
	P99Duration    float64  `json:"p99_duration"`
	StdDevDuration *float64 `json:"stddev_duration,omitempty"`

	// Status breakdown; zero unless HasStatus.
	HasStatus    bool  `json:"has_status"`
	ErrorCount   int64 `json:"error_count"`
	SuccessCount int64 `json:"success_count"`
	Status2xx    int64 `json:"status_2xx"`
	Status3xx    int64 `json:"status_3xx"`
	Status4xx    int64 `json:"status_4xx"`
	Status5xx    int64 `json:"status_5xx"`
}

// ErrorRate is ErrorCount over Count in percent; zero without status data.
func (s Summary) ErrorRate() float64 {
	if !s.HasStatus || s.Count == 0 {
		return 0
	}
	return float64(s.ErrorCount) * 100 / float64(s.Count)
}

// HourStat is one hour slice inside DailyStat.HourlyData.
type HourStat struct {
	Requests    int64   `json:"requests"`
	AvgDuration float64 `json:"avg_duration"`
	Errors      int64   `json:"errors"`
}

// DailyStat is the mutable per-day record built hour by hour and finalized
// from raw samples. TotalRequests == 0 means not yet finalized.
type DailyStat struct {
	Date          time.Time           `json:"date"`
	Group         GroupKey            `json:"group"`
	TotalRequests int64               `json:"total_requests"`
	AvgDuration   float64             `json:"avg_duration"`
	MaxDuration   float64             `json:"max_duration"`
	ErrorCount    int64               `json:"error_count"`
	P95Duration   float64             `json:"p95_duration"`
	HourlyData    map[string]HourStat `json:"hourly_data"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

func (d DailyStat) Finalized() bool { return d.TotalRequests > 0 }

// DailyTotals are the derived DailyStat fields recomputed at finalization.
type DailyTotals struct {
	TotalRequests int64
	AvgDuration   float64
	MaxDuration   float64
	ErrorCount    int64
	P95Duration   float64
}
