// Package output turns stored summaries into UI-ready view models. Nothing here prints.
package output

import (
	"sort"
	"time"

	"github.com/samber/lo"

	"pulsecheck/internal/database/relational"
	"pulsecheck/internal/flagger"
)

// Section constants to avoid hardcoded strings
const (
	SectionOverall = "overall"
	SectionRoutes  = "routes"
	SectionQueries = "queries"
)

// UI/view-model types (no printing here)
type Item struct {
	Key       string // group key string form
	Label     string
	Count     int64
	Avg       float64 // ms
	P95       float64 // ms
	Max       float64 // ms
	ErrorRate float64 // percent
	HasStatus bool
	Status    string
	Note      string
}

type Section struct {
	ID    string // overall/routes/queries
	Title string
	Items []Item
}

type DashboardView struct {
	PeriodType  string
	PeriodStart time.Time
	Sections    []Section
	TotalCount  int64
	Worst       string // worst status across items
}

// BuildDashboard converts the summaries of one period into sections. Items
// within a section are ordered slowest p95 first; labels fall back to the key.
func BuildDashboard(summaries []relational.Summary, labels map[relational.GroupKey]string, fl *flagger.FlaggerService) DashboardView {
	sec := map[relational.GroupKind]*Section{
		relational.KindOverall: {ID: SectionOverall, Title: "Overall"},
		relational.KindRoute:   {ID: SectionRoutes, Title: "Routes"},
		relational.KindQuery:   {ID: SectionQueries, Title: "Queries"},
	}

	view := DashboardView{Worst: string(flagger.StatusHealthy)}
	worst := flagger.StatusHealthy
	for _, s := range summaries {
		if view.PeriodType == "" {
			view.PeriodType = s.PeriodType
			view.PeriodStart = s.PeriodStart
		}

		label, ok := labels[s.Group]
		if !ok || label == "" {
			label = s.Group.String()
		}
		it := Item{
			Key:       s.Group.String(),
			Label:     label,
			Count:     s.Count,
			Avg:       s.AvgDuration,
			P95:       s.P95Duration,
			Max:       s.MaxDuration,
			HasStatus: s.HasStatus,
			ErrorRate: s.ErrorRate(),
		}
		if fl != nil {
			f := fl.Flag(s)
			it.Status = string(f.Status)
			it.Note = f.Explanation
			if f.Status.Severity() > worst.Severity() {
				worst = f.Status
			}
		}

		target, ok := sec[s.Group.Kind]
		if !ok {
			continue
		}
		target.Items = append(target.Items, it)
		if s.Group.IsOverall() {
			view.TotalCount = s.Count
		}
	}
	view.Worst = string(worst)

	for _, s := range sec {
		sort.SliceStable(s.Items, func(i, j int) bool { return s.Items[i].P95 > s.Items[j].P95 })
	}

	view.Sections = []Section{*sec[relational.KindOverall], *sec[relational.KindRoute], *sec[relational.KindQuery]}
	return view
}

func (v DashboardView) SectionByID(id string) *Section {
	for i := range v.Sections {
		if v.Sections[i].ID == id {
			return &v.Sections[i]
		}
	}
	return nil
}

func (s Section) ItemByKey(key string) *Item {
	for i := range s.Items {
		if s.Items[i].Key == key {
			return &s.Items[i]
		}
	}
	return nil
}

// CountByStatus tallies items per status across all sections.
func (v DashboardView) CountByStatus() map[string]int {
	items := lo.FlatMap(v.Sections, func(s Section, _ int) []Item { return s.Items })
	return lo.CountValuesBy(items, func(it Item) string { return it.Status })
}
