package analysis

import (
	"math"
	"sort"
	"strings"

	"github.com/KaramelBytes/seascope/internal/dataset"
	"github.com/KaramelBytes/seascope/internal/errs"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Method selects the correlation coefficient.
type Method string

const (
	Pearson  Method = "pearson"
	Spearman Method = "spearman"
)

// ParseMethod validates a correlation method name.
func ParseMethod(s string) (Method, error) {
	switch m := Method(strings.ToLower(strings.TrimSpace(s))); m {
	case Pearson, Spearman:
		return m, nil
	default:
		return "", errs.Newf(errs.InvalidParameter, errs.StageAnalysis, "unknown correlation method %q (want pearson|spearman)", s)
	}
}

// DefaultMinPeriods is the minimum number of values a column needs to take
// part in a correlation matrix.
const DefaultMinPeriods = 30

// CorrOptions controls Correlate.
type CorrOptions struct {
	Method Method
	// MinPeriods drops columns (and pairs) with fewer non-missing values.
	MinPeriods int
}

// CorrMatrix holds a symmetric correlation matrix with two-sided p-values and
// the pairwise-complete sample size of every pair.
type CorrMatrix struct {
	Method  Method      `json:"method"`
	Columns []string    `json:"columns"`
	Values  [][]float64 `json:"values"` // row-major, Values[i][j]
	PValues [][]float64 `json:"p_values"`
	N       [][]int     `json:"n"`
	Dropped []string    `json:"dropped,omitempty"`
}

// PairCorr is a simple correlation pair summary.
type PairCorr struct {
	A, B string
	R    float64
	P    float64
	N    int
}

// Correlate computes pairwise-complete correlations between columns. The
// diagonal is exactly 1 and the matrix is symmetric. Pairs whose coefficient
// is undefined (fewer than two points, zero variance) are NaN.
func Correlate(d *dataset.Dataset, columns []string, opt CorrOptions) (*CorrMatrix, error) {
	method, err := ParseMethod(string(opt.Method))
	if err != nil {
		return nil, err
	}
	if opt.MinPeriods < 0 {
		return nil, errs.Newf(errs.InvalidParameter, errs.StageAnalysis, "min_periods must be >= 0, got %d", opt.MinPeriods)
	}
	if len(columns) == 0 && d != nil {
		columns = d.NumericColumns(dataset.ColYear, dataset.ColMonth)
	}
	minN := opt.MinPeriods
	if minN < 2 {
		minN = 2
	}

	m := &CorrMatrix{Method: method}
	var data [][]float64
	for _, col := range columns {
		vals, err := numericColumn(d, col)
		if err != nil {
			return nil, err
		}
		if len(finite(vals)) < minN {
			m.Dropped = append(m.Dropped, col)
			continue
		}
		m.Columns = append(m.Columns, col)
		data = append(data, vals)
	}

	n := len(m.Columns)
	m.Values = square[float64](n)
	m.PValues = square[float64](n)
	m.N = square[int](n)
	for a := 0; a < n; a++ {
		m.Values[a][a] = 1
		m.PValues[a][a] = 0
		m.N[a][a] = len(finite(data[a]))
		for b := 0; b < a; b++ {
			x, y := pairwiseComplete(data[a], data[b])
			r, p := math.NaN(), math.NaN()
			if len(x) >= minN {
				r = coefficient(method, x, y)
				p = pValue(r, len(x))
			}
			m.Values[a][b], m.Values[b][a] = r, r
			m.PValues[a][b], m.PValues[b][a] = p, p
			m.N[a][b], m.N[b][a] = len(x), len(x)
		}
	}
	return m, nil
}

// TopPairs lists the off-diagonal pairs ordered by |r|, skipping undefined
// coefficients.
func (m *CorrMatrix) TopPairs(limit int) []PairCorr {
	var pairs []PairCorr
	for i := range m.Columns {
		for j := i + 1; j < len(m.Columns); j++ {
			r := m.Values[i][j]
			if math.IsNaN(r) {
				continue
			}
			pairs = append(pairs, PairCorr{A: m.Columns[i], B: m.Columns[j], R: r, P: m.PValues[i][j], N: m.N[i][j]})
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		ai, aj := math.Abs(pairs[i].R), math.Abs(pairs[j].R)
		if ai == aj {
			return pairs[i].A+pairs[i].B < pairs[j].A+pairs[j].B
		}
		return ai > aj
	})
	if limit > 0 && len(pairs) > limit {
		pairs = pairs[:limit]
	}
	return pairs
}

func square[T any](n int) [][]T {
	out := make([][]T, n)
	for i := range out {
		out[i] = make([]T, n)
	}
	return out
}

func pairwiseComplete(a, b []float64) (x, y []float64) {
	for i := range a {
		if isFinite(a[i]) && isFinite(b[i]) {
			x = append(x, a[i])
			y = append(y, b[i])
		}
	}
	return x, y
}

func coefficient(method Method, x, y []float64) float64 {
	if method == Spearman {
		x, y = ranks(x), ranks(y)
	}
	r := stat.Correlation(x, y, nil)
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return math.NaN()
	}
	return math.Max(-1, math.Min(1, r))
}

// ranks assigns 1-based ranks, averaging ties.
func ranks(x []float64) []float64 {
	idx := make([]int, len(x))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return x[idx[a]] < x[idx[b]] })
	out := make([]float64, len(x))
	for i := 0; i < len(idx); {
		j := i
		for j+1 < len(idx) && x[idx[j+1]] == x[idx[i]] {
			j++
		}
		avg := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			out[idx[k]] = avg
		}
		i = j + 1
	}
	return out
}

// pValue is the two-sided significance of r under a Student t distribution
// with n-2 degrees of freedom.
func pValue(r float64, n int) float64 {
	if math.IsNaN(r) || n < 3 {
		return math.NaN()
	}
	if math.Abs(r) >= 1 {
		return 0
	}
	df := float64(n - 2)
	t := r * math.Sqrt(df/(1-r*r))
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	return 2 * (1 - dist.CDF(math.Abs(t)))
}
