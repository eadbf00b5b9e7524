package relational

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// =============================================================================
// ADAPTER FUNCTIONS
// =============================================================================

// HourKey is the hourly_data key for an hour of day: "0".."23".
func HourKey(hour int) string {
	return strconv.Itoa(hour)
}

// HourStatFromSummary converts an hour Summary into the slice stored in
// DailyStat.HourlyData.
func HourStatFromSummary(s Summary) HourStat {
	return HourStat{
		Requests:    s.Count,
		AvgDuration: s.AvgDuration,
		Errors:      s.ErrorCount,
	}
}

// DailyTotalsFromSummary converts a day Summary into the derived DailyStat fields.
func DailyTotalsFromSummary(s Summary) DailyTotals {
	return DailyTotals{
		TotalRequests: s.Count,
		AvgDuration:   s.AvgDuration,
		MaxDuration:   s.MaxDuration,
		ErrorCount:    s.ErrorCount,
		P95Duration:   s.P95Duration,
	}
}

// MergeHourlyData sets one hour slice and keeps every other hour. The input map is not modified.
func MergeHourlyData(hourly map[string]HourStat, hour int, stat HourStat) map[string]HourStat {
	out := make(map[string]HourStat, len(hourly)+1)
	for k, v := range hourly {
		out[k] = v
	}
	out[HourKey(hour)] = stat
	return out
}

// EncodeHourlyData serializes hourly data for the hourly_data column.
func EncodeHourlyData(hourly map[string]HourStat) (string, error) {
	if hourly == nil {
		return "{}", nil
	}
	b, err := json.Marshal(hourly)
	if err != nil {
		return "", fmt.Errorf("encode hourly data: %w", err)
	}
	return string(b), nil
}

// DecodeHourlyData parses the hourly_data column. Empty text decodes to an empty map.
func DecodeHourlyData(raw string) (map[string]HourStat, error) {
	out := make(map[string]HourStat)
	if raw == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("decode hourly data: %w", err)
	}
	return out, nil
}

// HourOf returns the UTC hour of day of t.
func HourOf(t time.Time) int {
	return t.UTC().Hour()
}
