// Package period maps instants to fixed hour, day, week and month buckets.
//
// Buckets are always computed in UTC so that every producer agrees on the
// bucket key. A bucket covers the half-open range [Start, Next).
package period

import (
	"fmt"
	"strings"
	"time"
)

// Type is a bucket granularity.
type Type string

const (
	Hour  Type = "hour"
	Day   Type = "day"
	Week  Type = "week"
	Month Type = "month"
)

// Types lists every granularity, finest first.
var Types = []Type{Hour, Day, Week, Month}

// ParseType accepts a granularity name in any case.
func ParseType(s string) (Type, error) {
	t := Type(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown period type %q", s)
	}
	return t, nil
}

// ParseTypes parses a list of names, defaulting to every type when names is empty.
func ParseTypes(names []string) ([]Type, error) {
	if len(names) == 0 {
		return append([]Type(nil), Types...), nil
	}
	out := make([]Type, 0, len(names))
	for _, n := range names {
		t, err := ParseType(n)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func (t Type) Valid() bool {
	switch t {
	case Hour, Day, Week, Month:
		return true
	}
	return false
}

func (t Type) String() string { return string(t) }

// Start truncates instant to the start of its enclosing bucket. Weeks start on Monday.
func Start(t Type, instant time.Time) time.Time {
	u := instant.UTC()
	y, m, d := u.Date()

	switch t {
	case Hour:
		return time.Date(y, m, d, u.Hour(), 0, 0, 0, time.UTC)
	case Day:
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	case Week:
		sinceMonday := (int(u.Weekday()) + 6) % 7
		return time.Date(y, m, d-sinceMonday, 0, 0, 0, 0, time.UTC)
	case Month:
		return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
	}
	panic(fmt.Sprintf("period: unknown type %q", t))
}

// Next returns the start of the bucket following the one containing start.
func Next(t Type, start time.Time) time.Time {
	s := Start(t, start)
	switch t {
	case Hour:
		return s.Add(time.Hour)
	case Day:
		return s.AddDate(0, 0, 1)
	case Week:
		return s.AddDate(0, 0, 7)
	default:
		return s.AddDate(0, 1, 0)
	}
}

// End returns the last instant still inside the bucket (Next minus one nanosecond).
// Stored as period_end; sample windows use Bounds instead.
func End(t Type, start time.Time) time.Time {
	return Next(t, start).Add(-time.Nanosecond)
}

// Bounds returns the half-open window [start, next) of the bucket containing instant.
func Bounds(t Type, instant time.Time) (start, next time.Time) {
	start = Start(t, instant)
	return start, Next(t, start)
}

// Walk returns every bucket start from the bucket containing from through the
// bucket containing to, inclusive. It returns nil when to precedes from.
func Walk(t Type, from, to time.Time) []time.Time {
	first, last := Start(t, from), Start(t, to)
	if last.Before(first) {
		return nil
	}
	var out []time.Time
	for s := first; !s.After(last); s = Next(t, s) {
		out = append(out, s)
	}
	return out
}
