package analysis

import (
	"math"

	"github.com/KaramelBytes/seascope/internal/dataset"
	"github.com/KaramelBytes/seascope/internal/errs"
	"gonum.org/v1/gonum/stat"
)

// DefaultIQRMultiplier is the conventional Tukey fence multiplier.
const DefaultIQRMultiplier = 1.5

// Bounds are the IQR fences of a column.
type Bounds struct {
	Q1    float64 `json:"q1"`
	Q3    float64 `json:"q3"`
	IQR   float64 `json:"iqr"`
	K     float64 `json:"k"`
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
	N     int     `json:"n"`
}

// OutlierResult lists the rows whose value lies strictly outside the fences.
type OutlierResult struct {
	Column     string    `json:"column"`
	Bounds     Bounds    `json:"bounds"`
	RowIDs     []int     `json:"row_ids"`
	Values     []float64 `json:"values"`
	Count      int       `json:"count"`
	Percentage float64   `json:"percentage"`
}

// Flagged reports whether row id was flagged.
func (r *OutlierResult) Flagged(id int) bool {
	for _, x := range r.RowIDs {
		if x == id {
			return true
		}
	}
	return false
}

// DetectOutliers flags values outside [Q1-k*IQR, Q3+k*IQR]. Quartiles are
// linearly interpolated. With fewer than 4 values the flag set is empty and
// the bounds are NaN. A zero IQR collapses the fences onto the quartile, so
// any differing value is flagged.
func DetectOutliers(d *dataset.Dataset, col string, k float64) (*OutlierResult, error) {
	if !(k > 0) || math.IsInf(k, 0) {
		return nil, errs.Newf(errs.InvalidParameter, errs.StageAnalysis, "IQR multiplier must be positive, got %v", k)
	}
	vals, err := numericColumn(d, col)
	if err != nil {
		return nil, err
	}
	ids := d.RowIDs()
	x := finite(vals)
	res := &OutlierResult{Column: col, RowIDs: []int{}, Values: []float64{}}
	res.Bounds = Bounds{K: k, N: len(x), Q1: math.NaN(), Q3: math.NaN(), IQR: math.NaN(), Lower: math.NaN(), Upper: math.NaN()}
	if len(x) < 4 {
		return res, nil
	}
	sx := sorted(x)
	b := &res.Bounds
	b.Q1 = quantile(sx, 0.25)
	b.Q3 = quantile(sx, 0.75)
	b.IQR = b.Q3 - b.Q1
	b.Lower = b.Q1 - k*b.IQR
	b.Upper = b.Q3 + k*b.IQR
	for i, v := range vals {
		if !isFinite(v) {
			continue
		}
		if v < b.Lower || v > b.Upper {
			res.RowIDs = append(res.RowIDs, ids[i])
			res.Values = append(res.Values, v)
		}
	}
	res.Count = len(res.RowIDs)
	res.Percentage = float64(res.Count) * 100 / float64(len(x))
	return res, nil
}

// DefaultZThreshold is the usual |z| cut-off for anomalies.
const DefaultZThreshold = 3.0

// ZScoreResult lists rows whose population z-score exceeds the threshold.
type ZScoreResult struct {
	Column    string    `json:"column"`
	Threshold float64   `json:"threshold"`
	Mean      float64   `json:"mean"`
	Std       float64   `json:"std"`
	RowIDs    []int     `json:"row_ids"`
	Scores    []float64 `json:"scores"`
	Count     int       `json:"count"`
}

// ZScoreAnomalies flags values with |x-mean|/std > threshold, using the
// population standard deviation. A constant column has no anomalies.
func ZScoreAnomalies(d *dataset.Dataset, col string, threshold float64) (*ZScoreResult, error) {
	if !(threshold > 0) || math.IsInf(threshold, 0) {
		return nil, errs.Newf(errs.InvalidParameter, errs.StageAnalysis, "z-score threshold must be positive, got %v", threshold)
	}
	vals, err := numericColumn(d, col)
	if err != nil {
		return nil, err
	}
	res := &ZScoreResult{Column: col, Threshold: threshold, RowIDs: []int{}, Scores: []float64{}, Mean: math.NaN(), Std: math.NaN()}
	x := finite(vals)
	if len(x) < 2 {
		return res, nil
	}
	res.Mean, res.Std = stat.PopMeanStdDev(x, nil)
	if res.Std == 0 {
		return res, nil
	}
	ids := d.RowIDs()
	for i, v := range vals {
		if !isFinite(v) {
			continue
		}
		z := (v - res.Mean) / res.Std
		if math.Abs(z) > threshold {
			res.RowIDs = append(res.RowIDs, ids[i])
			res.Scores = append(res.Scores, z)
		}
	}
	res.Count = len(res.RowIDs)
	return res, nil
}
