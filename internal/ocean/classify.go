// Package ocean holds the oceanographic derivations: water-mass
// classification, nutrient stoichiometry, hypoxia, density and vertical
// profiles.
package ocean

import (
	"math"

	"github.com/KaramelBytes/seascope/internal/dataset"
	"github.com/KaramelBytes/seascope/internal/errs"
)

// ColWaterMass is the label column added by Classify.
const ColWaterMass = "WATER_MASS"

// Water-mass labels for the Strait of Gibraltar.
const (
	AtlanticInflow       = "Atlantic Inflow"
	Interface            = "Atlantic-Mediterranean Interface"
	MediterraneanOutflow = "Mediterranean Outflow Water"
)

// Default salinity boundaries (PSS-78).
const (
	DefaultAtlanticMax      = 37.0
	DefaultMediterraneanMin = 37.5
)

// Rule labels the values its predicate accepts.
type Rule struct {
	Label string
	Match func(v float64) bool
}

// RuleTable is evaluated top to bottom; the first matching rule wins and
// Fallback labels everything else.
type RuleTable struct {
	Rules    []Rule
	Fallback string
}

// Label returns the label for v, or "" when v is missing.
func (t RuleTable) Label(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ""
	}
	for _, r := range t.Rules {
		if r.Match(v) {
			return r.Label
		}
	}
	return t.Fallback
}

// Labels lists every label the table can produce, rules first.
func (t RuleTable) Labels() []string {
	out := make([]string, 0, len(t.Rules)+1)
	for _, r := range t.Rules {
		out = append(out, r.Label)
	}
	return append(out, t.Fallback)
}

// WaterMassRules builds the salinity table. Values equal to either boundary
// belong to the interface.
func WaterMassRules(lower, upper float64) (RuleTable, error) {
	if math.IsNaN(lower) || math.IsNaN(upper) || lower > upper {
		return RuleTable{}, errs.Newf(errs.InvalidParameter, errs.StageAnalysis,
			"water-mass boundaries must satisfy lower <= upper, got %v and %v", lower, upper)
	}
	return RuleTable{
		Rules: []Rule{
			{Label: AtlanticInflow, Match: func(s float64) bool { return s < lower }},
			{Label: MediterraneanOutflow, Match: func(s float64) bool { return s > upper }},
		},
		Fallback: Interface,
	}, nil
}

// DefaultWaterMassRules uses the 37.0 / 37.5 boundaries.
func DefaultWaterMassRules() RuleTable {
	t, _ := WaterMassRules(DefaultAtlanticMax, DefaultMediterraneanMin)
	return t
}

// Classify returns a copy of d with a WATER_MASS label per row. Rows with a
// missing salinity get an empty label and are kept.
func Classify(d *dataset.Dataset, salinityCol string, table RuleTable) (*dataset.Dataset, error) {
	if table.Fallback == "" {
		return nil, errs.New(errs.InvalidParameter, errs.StageAnalysis, "rule table needs a fallback label")
	}
	sal, err := d.Float(salinityCol)
	if err != nil {
		return nil, err
	}
	labels := make([]string, len(sal))
	for i, s := range sal {
		labels[i] = table.Label(s)
	}
	return d.WithText(ColWaterMass, labels)
}

// TSPoints returns the rows usable for a temperature-salinity diagram: valid
// temperature and salinity plus any extra columns the dataset has.
func TSPoints(d *dataset.Dataset, tempCol, salCol string, extra ...string) (*dataset.Dataset, error) {
	for _, c := range []string{tempCol, salCol} {
		if !d.Has(c) {
			return nil, errs.Newf(errs.SchemaMismatch, errs.StageFilter, "column %q not in dataset", c)
		}
	}
	cols := []string{tempCol, salCol}
	for _, c := range extra {
		if d.Has(c) {
			cols = append(cols, c)
		}
	}
	return dataset.FilterValid(d, cols), nil
}
