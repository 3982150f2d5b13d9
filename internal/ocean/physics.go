package ocean

import (
	"math"
	"sort"

	"github.com/KaramelBytes/seascope/internal/dataset"
	"github.com/KaramelBytes/seascope/internal/errs"
)

// ColDensity is the computed density column added by WithDensity.
const ColDensity = "DENSITY_CALC"

// UNESCO 1983 (EOS-80) one-atmosphere coefficients.
var (
	densA = [6]float64{999.842594, 6.793952e-2, -9.095290e-3, 1.001685e-4, -1.120083e-6, 6.536332e-9}
	densB = [5]float64{8.24493e-1, -4.0899e-3, 7.6438e-5, -8.2467e-7, 5.3875e-9}
	densC = [3]float64{-5.72466e-3, 1.0227e-4, -1.6546e-6}
	densD = 4.8314e-4
)

// Density returns seawater density in kg/m³ at surface pressure for
// temperature t (°C) and practical salinity s. Missing inputs give NaN.
func Density(t, s float64) float64 {
	if math.IsNaN(t) || math.IsNaN(s) || s < 0 {
		return math.NaN()
	}
	rhoW := poly(t, densA[:])
	return rhoW + poly(t, densB[:])*s + poly(t, densC[:])*s*math.Sqrt(s) + densD*s*s
}

// SigmaT is density minus 1000 kg/m³.
func SigmaT(t, s float64) float64 { return Density(t, s) - 1000 }

func poly(x float64, coef []float64) float64 {
	var acc float64
	for i := len(coef) - 1; i >= 0; i-- {
		acc = acc*x + coef[i]
	}
	return acc
}

// WithDensity adds DENSITY_CALC computed from the temperature and salinity
// columns.
func WithDensity(d *dataset.Dataset, tempCol, salCol string) (*dataset.Dataset, error) {
	t, err := d.Float(tempCol)
	if err != nil {
		return nil, err
	}
	s, err := d.Float(salCol)
	if err != nil {
		return nil, err
	}
	rho := make([]float64, len(t))
	for i := range t {
		rho[i] = Density(t[i], s[i])
	}
	return d.WithFloat(ColDensity, rho)
}

// GradientPoint is one sample of a vertical profile.
type GradientPoint struct {
	RowID    int     `json:"row_id"`
	Depth    float64 `json:"depth"`
	Value    float64 `json:"value"`
	Gradient float64 `json:"gradient"`
}

type profilePoint struct {
	id           int
	depth, value float64
}

func profile(d *dataset.Dataset, depthCol, varCol string) ([]profilePoint, error) {
	depth, err := d.Float(depthCol)
	if err != nil {
		return nil, err
	}
	vals, err := d.Float(varCol)
	if err != nil {
		return nil, err
	}
	ids := d.RowIDs()
	var pts []profilePoint
	for i := range depth {
		if isFinite(depth[i]) && isFinite(vals[i]) {
			pts = append(pts, profilePoint{id: ids[i], depth: depth[i], value: vals[i]})
		}
	}
	sort.SliceStable(pts, func(a, b int) bool { return pts[a].depth < pts[b].depth })
	if len(pts) < 2 {
		return pts, errs.Newf(errs.InsufficientData, errs.StageAnalysis,
			"vertical profile of %s needs at least 2 valid depths, got %d", varCol, len(pts))
	}
	return pts, nil
}

// VerticalGradient orders valid samples by depth and returns d(value)/d(depth)
// between consecutive samples. The first sample and samples at a repeated
// depth have a NaN gradient.
func VerticalGradient(d *dataset.Dataset, depthCol, varCol string) ([]GradientPoint, error) {
	pts, err := profile(d, depthCol, varCol)
	if err != nil {
		return []GradientPoint{}, err
	}
	out := make([]GradientPoint, len(pts))
	for i, p := range pts {
		out[i] = GradientPoint{RowID: p.id, Depth: p.depth, Value: p.value, Gradient: math.NaN()}
		if i == 0 {
			continue
		}
		if dz := p.depth - pts[i-1].depth; dz != 0 {
			out[i].Gradient = (p.value - pts[i-1].value) / dz
		}
	}
	return out, nil
}

// StratificationIndex is the density of the deepest sample minus that of
// the shallowest.
func StratificationIndex(d *dataset.Dataset, depthCol, densityCol string) (float64, error) {
	pts, err := profile(d, depthCol, densityCol)
	if err != nil {
		return math.NaN(), err
	}
	return pts[len(pts)-1].value - pts[0].value, nil
}

func isFinite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
