package multivar

import (
	"github.com/KaramelBytes/seascope/internal/dataset"
	"github.com/KaramelBytes/seascope/internal/errs"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Projection is the result of a principal component analysis. Scores has
// one row per observation, Loadings one row per input column; both have one
// column per component. Explained is the fraction of total variance carried
// by each component.
type Projection struct {
	Columns    []string    `json:"columns"`
	RowIDs     []int       `json:"row_ids"`
	Scaler     Scaler      `json:"scaler"`
	Scores     [][]float64 `json:"scores"`
	Loadings   [][]float64 `json:"loadings"`
	Explained  []float64   `json:"explained_variance_ratio"`
	Cumulative float64     `json:"cumulative_explained"`
}

// ReduceDimensions standardizes the complete rows of cols and projects them
// onto their first n principal components.
func ReduceDimensions(d *dataset.Dataset, cols []string, n int) (*Projection, error) {
	if n < 1 || n > len(cols) {
		return nil, errs.Newf(errs.InvalidParameter, errs.StageAnalysis,
			"components must be between 1 and %d, got %d", len(cols), n)
	}
	x, ids, err := matrix(d, cols)
	if err != nil {
		return nil, err
	}
	if len(ids) < 2 || len(ids) < n {
		return nil, errs.Newf(errs.InsufficientData, errs.StageAnalysis,
			"PCA needs at least %d complete rows, got %d", max(2, n), len(ids)).WithDetail("rows", len(ids))
	}
	z, sc := Standardize(x)
	sc.Columns = cols

	var pc stat.PC
	if ok := pc.PrincipalComponents(z, nil); !ok {
		return nil, errs.New(errs.InsufficientData, errs.StageAnalysis, "principal component decomposition failed")
	}
	var vecs mat.Dense
	pc.VectorsTo(&vecs)
	vars := pc.VarsTo(nil)

	var total float64
	for _, v := range vars {
		total += v
	}
	p := &Projection{Columns: cols, RowIDs: ids, Scaler: sc, Explained: make([]float64, n)}
	for i := 0; i < n; i++ {
		if total > 0 {
			p.Explained[i] = vars[i] / total
		}
		p.Cumulative += p.Explained[i]
	}

	basis := vecs.Slice(0, len(cols), 0, n)
	var scores mat.Dense
	scores.Mul(z, basis)
	p.Scores = rowsOf(&scores)
	p.Loadings = rowsOf(basis)
	return p, nil
}

func rowsOf(m mat.Matrix) [][]float64 {
	r, c := m.Dims()
	out := make([][]float64, r)
	for i := range out {
		out[i] = make([]float64, c)
		for j := range out[i] {
			out[i][j] = m.At(i, j)
		}
	}
	return out
}
