package ocean

import (
	"math"

	"github.com/KaramelBytes/seascope/internal/dataset"
	"github.com/KaramelBytes/seascope/internal/errs"
)

// Ratio columns added by NutrientRatios.
const (
	ColNPRatio  = "N_P_RATIO"
	ColSiNRatio = "SI_N_RATIO"
	ColSiPRatio = "SI_P_RATIO"
)

// RedfieldNP is the canonical N:P ratio of marine plankton.
const RedfieldNP = 16.0

// NutrientColumns names the macronutrient columns.
type NutrientColumns struct {
	Nitrate   string
	Phosphate string
	Silicate  string
}

// NutrientRatios adds N:P, Si:N and Si:P ratio columns for every pair the
// dataset has. A zero denominator gives NaN. Pairs with a missing column are
// skipped; the names of the added columns are returned.
func NutrientRatios(d *dataset.Dataset, cols NutrientColumns) (*dataset.Dataset, []string, error) {
	pairs := []struct {
		name     string
		num, den string
	}{
		{ColNPRatio, cols.Nitrate, cols.Phosphate},
		{ColSiNRatio, cols.Silicate, cols.Nitrate},
		{ColSiPRatio, cols.Silicate, cols.Phosphate},
	}
	out := d
	var added []string
	for _, p := range pairs {
		if p.num == "" || p.den == "" || !isNumeric(d, p.num) || !isNumeric(d, p.den) {
			continue
		}
		num, _ := d.Float(p.num)
		den, _ := d.Float(p.den)
		ratio := make([]float64, len(num))
		for i := range num {
			if den[i] == 0 {
				ratio[i] = math.NaN()
				continue
			}
			ratio[i] = num[i] / den[i]
		}
		next, err := out.WithFloat(p.name, ratio)
		if err != nil {
			return nil, nil, err
		}
		out = next
		added = append(added, p.name)
	}
	return out, added, nil
}

func isNumeric(d *dataset.Dataset, col string) bool {
	k, ok := d.KindOf(col)
	return ok && k == dataset.KindNumeric
}

// ColHypoxic flags rows below the hypoxia threshold: 1, 0, or NaN when
// oxygen is missing.
const ColHypoxic = "IS_HYPOXIC"

// DefaultHypoxiaThreshold is in µmol/kg dissolved oxygen.
const DefaultHypoxiaThreshold = 60.0

// HypoxiaResult summarizes low-oxygen measurements.
type HypoxiaResult struct {
	Column     string  `json:"column"`
	Threshold  float64 `json:"threshold"`
	Measured   int     `json:"measured"`
	Count      int     `json:"hypoxic_count"`
	Percentage float64 `json:"hypoxic_percentage"`
	MeanOxygen float64 `json:"mean_oxygen"`
	MinOxygen  float64 `json:"min_oxygen"`
	RowIDs     []int   `json:"row_ids"`
}

// Hypoxia flags oxygen values strictly below threshold. The percentage is
// over rows that have an oxygen value.
func Hypoxia(d *dataset.Dataset, oxygenCol string, threshold float64) (*dataset.Dataset, *HypoxiaResult, error) {
	if !(threshold > 0) || math.IsInf(threshold, 0) {
		return nil, nil, errs.Newf(errs.InvalidParameter, errs.StageAnalysis, "hypoxia threshold must be positive, got %v", threshold)
	}
	ox, err := d.Float(oxygenCol)
	if err != nil {
		return nil, nil, err
	}
	ids := d.RowIDs()
	res := &HypoxiaResult{Column: oxygenCol, Threshold: threshold, RowIDs: []int{}, MeanOxygen: math.NaN(), MinOxygen: math.NaN()}
	flags := make([]float64, len(ox))
	var sum float64
	for i, v := range ox {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			flags[i] = math.NaN()
			continue
		}
		res.Measured++
		sum += v
		if math.IsNaN(res.MinOxygen) || v < res.MinOxygen {
			res.MinOxygen = v
		}
		if v < threshold {
			flags[i] = 1
			res.Count++
			res.RowIDs = append(res.RowIDs, ids[i])
		}
	}
	if res.Measured > 0 {
		res.MeanOxygen = sum / float64(res.Measured)
		res.Percentage = float64(res.Count) * 100 / float64(res.Measured)
	}
	out, err := d.WithFloat(ColHypoxic, flags)
	if err != nil {
		return nil, nil, err
	}
	return out, res, nil
}
