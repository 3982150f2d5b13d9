package analysis

import (
	"math"
	"sort"

	"github.com/KaramelBytes/seascope/internal/dataset"
	"github.com/KaramelBytes/seascope/internal/errs"
	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat"
)

// NumSummary is the compact per-column summary used for group metrics and
// temporal buckets.
type NumSummary struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Std    float64 `json:"std"`
	Median float64 `json:"median"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Sum    float64 `json:"sum"`
}

// GroupResult captures aggregated metrics per group key.
type GroupResult struct {
	Key        string                `json:"key"`
	Size       int                   `json:"size"`
	Percentage float64               `json:"percentage"`
	Metrics    map[string]NumSummary `json:"metrics"`
}

// SummarizeValues computes a NumSummary over the finite entries of vals.
// No finite entries yields Count 0 and NaN statistics.
func SummarizeValues(vals []float64) NumSummary {
	x := finite(vals)
	nan := math.NaN()
	s := NumSummary{Count: len(x), Mean: nan, Std: nan, Median: nan, Min: nan, Max: nan}
	if len(x) == 0 {
		return s
	}
	s.Mean, s.Std = stat.MeanStdDev(x, nil)
	if len(x) == 1 {
		s.Std = nan
	}
	s.Median = median(x)
	s.Min, s.Max = x[0], x[0]
	for _, v := range x {
		s.Min = math.Min(s.Min, v)
		s.Max = math.Max(s.Max, v)
		s.Sum += v
	}
	return s
}

// finite returns the non-NaN, non-Inf entries of vals in order.
func finite(vals []float64) []float64 {
	out := make([]float64, 0, len(vals))
	for _, v := range vals {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			out = append(out, v)
		}
	}
	return out
}

func isFinite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// numericColumn fetches col as floats, reporting an absent or non-numeric
// column as SchemaMismatch.
func numericColumn(d *dataset.Dataset, col string) ([]float64, error) {
	if d == nil {
		return nil, errs.New(errs.SchemaMismatch, errs.StageAnalysis, "no dataset")
	}
	return d.Float(col)
}

func median(x []float64) float64 {
	m, err := stats.Median(stats.Float64Data(x))
	if err != nil {
		return math.NaN()
	}
	return m
}

func sorted(x []float64) []float64 {
	cp := make([]float64, len(x))
	copy(cp, x)
	sort.Float64s(cp)
	return cp
}

// quantile interpolates linearly between the closest ranks of a sorted slice.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return math.NaN()
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	w := pos - float64(lo)
	return sorted[lo]*(1-w) + sorted[hi]*w
}
