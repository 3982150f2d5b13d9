package analysis

import (
	"math"

	"github.com/KaramelBytes/seascope/internal/dataset"
	"gonum.org/v1/gonum/stat"
)

// Summary is the distribution summary of one numeric column.
type Summary struct {
	Column       string  `json:"column"`
	Count        int     `json:"count"`
	Missing      int     `json:"missing"`
	Mean         float64 `json:"mean"`
	Std          float64 `json:"std"`
	Min          float64 `json:"min"`
	Q1           float64 `json:"q1"`
	Median       float64 `json:"median"`
	Q3           float64 `json:"q3"`
	Max          float64 `json:"max"`
	Skewness     float64 `json:"skewness"`
	Kurtosis     float64 `json:"kurtosis"`
	Completeness float64 `json:"completeness"`
}

// Describe summarizes each named column; with no columns it summarizes every
// numeric column. Columns with no values report Count 0 and NaN statistics
// rather than failing.
func Describe(d *dataset.Dataset, columns []string) ([]Summary, error) {
	if len(columns) == 0 && d != nil {
		columns = d.NumericColumns()
	}
	out := make([]Summary, 0, len(columns))
	for _, col := range columns {
		vals, err := numericColumn(d, col)
		if err != nil {
			return nil, err
		}
		out = append(out, describeColumn(col, vals))
	}
	return out, nil
}

func describeColumn(name string, vals []float64) Summary {
	x := finite(vals)
	nan := math.NaN()
	s := Summary{
		Column: name, Count: len(x), Missing: len(vals) - len(x),
		Mean: nan, Std: nan, Min: nan, Q1: nan, Median: nan, Q3: nan, Max: nan,
		Skewness: nan, Kurtosis: nan,
	}
	if len(vals) > 0 {
		s.Completeness = float64(len(x)) * 100 / float64(len(vals))
	}
	if len(x) == 0 {
		return s
	}
	sx := sorted(x)
	s.Min, s.Max = sx[0], sx[len(sx)-1]
	s.Q1 = quantile(sx, 0.25)
	s.Median = median(sx)
	s.Q3 = quantile(sx, 0.75)
	s.Mean, s.Std = stat.MeanStdDev(x, nil)
	if len(x) < 2 {
		s.Std = nan
	}
	if len(x) >= 3 && s.Std > 0 {
		s.Skewness = stat.Skew(x, nil)
	}
	if len(x) >= 4 && s.Std > 0 {
		s.Kurtosis = stat.ExKurtosis(x, nil)
	}
	return s
}
