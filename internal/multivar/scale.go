// Package multivar implements the multivariate analytics: standardization,
// principal components and k-means clustering over numeric columns.
package multivar

import (
	"math"

	"github.com/KaramelBytes/seascope/internal/dataset"
	"github.com/KaramelBytes/seascope/internal/errs"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Scaler holds the per-column location and scale used to standardize.
type Scaler struct {
	Columns []string  `json:"columns"`
	Mean    []float64 `json:"mean"`
	Scale   []float64 `json:"scale"`
}

// Standardize returns a copy of x with every column shifted to zero mean and
// divided by its population standard deviation. Columns with zero variance
// keep a scale of 1.
func Standardize(x *mat.Dense) (*mat.Dense, Scaler) {
	r, c := x.Dims()
	out := mat.NewDense(r, c, nil)
	sc := Scaler{Mean: make([]float64, c), Scale: make([]float64, c)}
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, x)
		mean, std := stat.PopMeanStdDev(col, nil)
		if std == 0 || math.IsNaN(std) {
			std = 1
		}
		sc.Mean[j], sc.Scale[j] = mean, std
		for i := 0; i < r; i++ {
			out.Set(i, j, (col[i]-mean)/std)
		}
	}
	return out, sc
}

// matrix returns the rows of d complete in every column, as a matrix, and
// their source row IDs.
func matrix(d *dataset.Dataset, cols []string) (*mat.Dense, []int, error) {
	if len(cols) == 0 {
		return nil, nil, errs.New(errs.InvalidParameter, errs.StageAnalysis, "at least one column is required")
	}
	for _, c := range cols {
		if k, ok := d.KindOf(c); !ok || k != dataset.KindNumeric {
			return nil, nil, errs.Newf(errs.SchemaMismatch, errs.StageFilter, "numeric column %q not found", c).WithDetail("column", c)
		}
	}
	valid := dataset.FilterValid(d, cols)
	n := valid.Len()
	if n == 0 {
		return nil, valid.RowIDs(), nil
	}
	x := mat.NewDense(n, len(cols), nil)
	for j, c := range cols {
		v, err := valid.Float(c)
		if err != nil {
			return nil, nil, err
		}
		x.SetCol(j, v)
	}
	return x, valid.RowIDs(), nil
}
