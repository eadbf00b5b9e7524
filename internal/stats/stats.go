// Package stats holds the descriptive statistics used by the aggregation engine.
package stats

import (
	"math"
	"sort"

	"github.com/samber/lo"
)

// Percentile returns the p-th percentile (p in 0..1) of an ascending sequence,
// interpolating linearly between the two closest ranks. ok is false when
// sorted is empty.
func Percentile(sorted []float64, p float64) (value float64, ok bool) {
	n := len(sorted)
	if n == 0 {
		return 0, false
	}
	p = math.Min(math.Max(p, 0), 1)

	rank := p * float64(n-1)
	k := int(math.Floor(rank))
	f := rank - float64(k)
	if f == 0 || k+1 >= n {
		return sorted[k], true
	}
	return sorted[k] + (sorted[k+1]-sorted[k])*f, true
}

// StdDev returns the sample standard deviation of values around mean, using
// Bessel's correction. ok is false for fewer than two values.
func StdDev(values []float64, mean float64) (value float64, ok bool) {
	n := len(values)
	if n <= 1 {
		return 0, false
	}
	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	return math.Sqrt(sq / float64(n-1)), true
}

// Description is the full statistic set for one group of durations.
type Description struct {
	Count  int
	Sum    float64
	Avg    float64
	Min    float64
	Max    float64
	P50    float64
	P95    float64
	P99    float64
	StdDev *float64 // nil for a single value
}

// Describe sorts a copy of values once and computes every statistic from it.
// ok is false when values is empty; callers must not persist a zero Description.
func Describe(values []float64) (Description, bool) {
	if len(values) == 0 {
		return Description{}, false
	}

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	sum := lo.Sum(sorted)
	d := Description{
		Count: len(sorted),
		Sum:   sum,
		Avg:   sum / float64(len(sorted)),
		Min:   sorted[0],
		Max:   sorted[len(sorted)-1],
	}
	d.P50, _ = Percentile(sorted, 0.50)
	d.P95, _ = Percentile(sorted, 0.95)
	d.P99, _ = Percentile(sorted, 0.99)
	if sd, ok := StdDev(sorted, d.Avg); ok {
		d.StdDev = &sd
	}
	return d, true
}
