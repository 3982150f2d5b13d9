package analysis

import (
	"fmt"
	"math"

	"github.com/KaramelBytes/seascope/internal/dataset"
	"github.com/KaramelBytes/seascope/internal/errs"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Trend is a least-squares line through the annual means of a column.
type Trend struct {
	Column      string    `json:"column"`
	Years       []int     `json:"years"`
	Means       []float64 `json:"means"`
	Slope       float64   `json:"slope"`
	Intercept   float64   `json:"intercept"`
	RSquared    float64   `json:"r_squared"`
	PValue      float64   `json:"p_value"`
	StdErr      float64   `json:"std_err"`
	Equation    string    `json:"equation"`
	Significant bool      `json:"significant"`
	Direction   string    `json:"direction"`
	TotalChange float64   `json:"total_change"`
}

// LinearTrend regresses the annual averages of col on the year. It needs at
// least two distinct years.
func LinearTrend(d *dataset.Dataset, col string) (*Trend, error) {
	annual, err := AnnualAverages(d, col)
	if err != nil {
		return nil, err
	}
	if len(annual) < 2 {
		return nil, errs.Newf(errs.InsufficientData, errs.StageAnalysis, "trend of %s needs at least 2 years of data, got %d", col, len(annual)).
			WithDetail("years", len(annual))
	}
	x := make([]float64, len(annual))
	y := make([]float64, len(annual))
	tr := &Trend{Column: col}
	for i, b := range annual {
		x[i], y[i] = float64(b.Year), b.Mean
		tr.Years = append(tr.Years, b.Year)
		tr.Means = append(tr.Means, b.Mean)
	}

	n := len(x)
	constant := flat(y)
	if constant {
		// constant means: no slope and nothing to explain
		tr.Intercept, tr.PValue = y[0], 1
	} else {
		tr.Intercept, tr.Slope = stat.LinearRegression(x, y, nil, false)
	}
	switch {
	case constant:
	case n > 2:
		tr.RSquared = stat.RSquared(x, y, nil, tr.Intercept, tr.Slope)
		var ssRes float64
		for i := range x {
			e := y[i] - (tr.Intercept + tr.Slope*x[i])
			ssRes += e * e
		}
		mx := stat.Mean(x, nil)
		var sxx float64
		for _, v := range x {
			sxx += (v - mx) * (v - mx)
		}
		tr.StdErr = math.Sqrt(ssRes/float64(n-2)) / math.Sqrt(sxx)
		if tr.StdErr > 0 {
			t := tr.Slope / tr.StdErr
			dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(n - 2)}
			tr.PValue = 2 * (1 - dist.CDF(math.Abs(t)))
		}
	default:
		// A line through two points fits exactly.
		tr.RSquared = 1
	}

	tr.Equation = equation(tr.Slope, tr.Intercept)
	tr.Significant = tr.PValue < 0.05
	switch {
	case tr.Slope > 0:
		tr.Direction = "increasing"
	case tr.Slope < 0:
		tr.Direction = "decreasing"
	default:
		tr.Direction = "stable"
	}
	tr.TotalChange = tr.Slope * (x[n-1] - x[0])
	return tr, nil
}

func flat(y []float64) bool {
	for _, v := range y[1:] {
		if v != y[0] {
			return false
		}
	}
	return true
}

func equation(slope, intercept float64) string {
	sign := "+"
	if intercept < 0 {
		sign = "-"
	}
	return fmt.Sprintf("y = %.4fx %s %.4f", slope, sign, math.Abs(intercept))
}
