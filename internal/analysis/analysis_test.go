package analysis

import (
	"math"
	"strings"
	"testing"

	"github.com/KaramelBytes/seascope/internal/dataset"
	"github.com/KaramelBytes/seascope/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescribe(t *testing.T) {
	nan := math.NaN()
	d := dataset.MustNew("t",
		dataset.Floats("T", 1, 2, 3, 4, nan),
		dataset.Floats("EMPTY", nan, nan, nan, nan, nan),
	)
	got, err := Describe(d, []string{"T", "EMPTY"})
	require.NoError(t, err)
	require.Len(t, got, 2)

	s := got[0]
	assert.Equal(t, 4, s.Count)
	assert.Equal(t, 1, s.Missing)
	assert.InDelta(t, 2.5, s.Mean, 1e-12)
	assert.InDelta(t, math.Sqrt(5.0/3.0), s.Std, 1e-12)
	assert.Equal(t, 1.0, s.Min)
	assert.InDelta(t, 1.75, s.Q1, 1e-12)
	assert.InDelta(t, 2.5, s.Median, 1e-12)
	assert.InDelta(t, 3.25, s.Q3, 1e-12)
	assert.Equal(t, 4.0, s.Max)
	assert.InDelta(t, 80.0, s.Completeness, 1e-12)
	assert.InDelta(t, 0, s.Skewness, 1e-12)

	e := got[1]
	assert.Equal(t, 0, e.Count)
	assert.Equal(t, 5, e.Missing)
	assert.True(t, math.IsNaN(e.Mean))
	assert.True(t, math.IsNaN(e.Median))
}

func TestDescribeAbsentColumn(t *testing.T) {
	d := dataset.MustNew("t", dataset.Floats("T", 1))
	_, err := Describe(d, []string{"S"})
	assert.True(t, errs.IsKind(err, errs.SchemaMismatch))
}

func TestCorrelateLinear(t *testing.T) {
	a := make([]float64, 40)
	b := make([]float64, 40)
	c := make([]float64, 40)
	for i := range a {
		a[i] = float64(i)
		b[i] = 2*a[i] + 1
		c[i] = math.Sin(float64(i))
	}
	b[3] = math.NaN()
	d := dataset.MustNew("t", dataset.Floats("A", a...), dataset.Floats("B", b...), dataset.Floats("C", c...))

	for _, m := range []Method{Pearson, Spearman} {
		t.Run(string(m), func(t *testing.T) {
			cm, err := Correlate(d, []string{"A", "B", "C"}, CorrOptions{Method: m, MinPeriods: 30})
			require.NoError(t, err)
			require.Equal(t, []string{"A", "B", "C"}, cm.Columns)
			assert.InDelta(t, 1.0, cm.Values[0][1], 1e-6)
			assert.Equal(t, 39, cm.N[0][1], "pairwise complete")
			assert.Equal(t, 40, cm.N[0][2])
			for i := range cm.Columns {
				assert.Equal(t, 1.0, cm.Values[i][i])
				for j := range cm.Columns {
					assert.Equal(t, cm.Values[i][j], cm.Values[j][i])
				}
			}
			assert.Less(t, cm.PValues[0][1], 1e-6)
		})
	}
}

func TestCorrelateDropsSparseColumnsAndUndefinedPairs(t *testing.T) {
	nan := math.NaN()
	d := dataset.MustNew("t",
		dataset.Floats("A", 1, 2, 3, 4, 5),
		dataset.Floats("K", 7, 7, 7, 7, 7),
		dataset.Floats("S", 1, nan, nan, nan, nan),
	)
	cm, err := Correlate(d, nil, CorrOptions{Method: Pearson, MinPeriods: 3})
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "K"}, cm.Columns)
	assert.Equal(t, []string{"S"}, cm.Dropped)
	assert.True(t, math.IsNaN(cm.Values[0][1]), "zero variance is undefined")
	assert.Equal(t, 1.0, cm.Values[1][1])
	assert.Empty(t, cm.TopPairs(5))
}

func TestCorrelateInvalidParameters(t *testing.T) {
	d := dataset.MustNew("t", dataset.Floats("A", 1, 2))
	_, err := Correlate(d, nil, CorrOptions{Method: "kendall"})
	assert.True(t, errs.IsKind(err, errs.InvalidParameter))
	_, err = Correlate(d, nil, CorrOptions{Method: Pearson, MinPeriods: -1})
	assert.True(t, errs.IsKind(err, errs.InvalidParameter))
}

func TestRanksAverageTies(t *testing.T) {
	assert.Equal(t, []float64{1, 2.5, 2.5, 4}, ranks([]float64{1, 5, 5, 9}))
	assert.Equal(t, []float64{3, 1, 2}, ranks([]float64{30, 10, 20}))
}

func TestDetectOutliers(t *testing.T) {
	d := dataset.MustNew("t", dataset.Floats("X", 1, 2, 3, 4, 5, 6, 7, 8, 100))
	res, err := DetectOutliers(d, "X", DefaultIQRMultiplier)
	require.NoError(t, err)
	assert.Equal(t, []int{8}, res.RowIDs)
	assert.Equal(t, []float64{100}, res.Values)
	assert.Equal(t, 3.0, res.Bounds.Q1)
	assert.Equal(t, 7.0, res.Bounds.Q3)
	assert.Equal(t, 13.0, res.Bounds.Upper)
	assert.Equal(t, -3.0, res.Bounds.Lower)
	assert.InDelta(t, 100.0/9, res.Percentage, 1e-9)
	assert.True(t, res.Flagged(8))
}

func TestDetectOutliersConstantColumn(t *testing.T) {
	flat := dataset.MustNew("t", dataset.Floats("X", 5, 5, 5, 5))
	res, err := DetectOutliers(flat, "X", 1.5)
	require.NoError(t, err)
	assert.Empty(t, res.RowIDs)
	assert.Equal(t, 5.0, res.Bounds.Lower)
	assert.Equal(t, 5.0, res.Bounds.Upper)

	bumped := dataset.MustNew("t", dataset.Floats("X", 5, 5, 5, 5, 6))
	res, err = DetectOutliers(bumped, "X", 1.5)
	require.NoError(t, err)
	assert.Equal(t, []int{4}, res.RowIDs)
}

func TestDetectOutliersTooFewValues(t *testing.T) {
	d := dataset.MustNew("t", dataset.Floats("X", 1, 2, math.NaN(), 300))
	res, err := DetectOutliers(d, "X", 1.5)
	require.NoError(t, err)
	assert.Empty(t, res.RowIDs)
	assert.Equal(t, 3, res.Bounds.N)
	assert.True(t, math.IsNaN(res.Bounds.Upper))

	_, err = DetectOutliers(d, "X", 0)
	assert.True(t, errs.IsKind(err, errs.InvalidParameter))
}

func TestDetectOutliersKeepsSourceRowIDs(t *testing.T) {
	d := dataset.MustNew("t", dataset.Floats("X", 1, 2, 3, 4, 5, 6, 7, 8, 100))
	sub := d.Take([]int{1, 2, 3, 4, 5, 6, 7, 8})
	res, err := DetectOutliers(sub, "X", 1.5)
	require.NoError(t, err)
	assert.Equal(t, []int{8}, res.RowIDs)
}

func TestZScoreAnomalies(t *testing.T) {
	vals := make([]float64, 20)
	for i := range vals {
		vals[i] = 10
	}
	vals[19] = 100
	d := dataset.MustNew("t", dataset.Floats("X", vals...))
	res, err := ZScoreAnomalies(d, "X", DefaultZThreshold)
	require.NoError(t, err)
	assert.Equal(t, []int{19}, res.RowIDs)
	assert.Greater(t, res.Scores[0], 3.0)

	flat := dataset.MustNew("t", dataset.Floats("X", 1, 1, 1))
	res, err = ZScoreAnomalies(flat, "X", 3)
	require.NoError(t, err)
	assert.Zero(t, res.Count)

	_, err = ZScoreAnomalies(d, "X", -1)
	assert.True(t, errs.IsKind(err, errs.InvalidParameter))
}

// twoYears has known monthly values: month m of 2019 holds m and m+2,
// month m of 2020 holds 10*m.
func twoYears() *dataset.Dataset {
	var years, months, vals []float64
	for _, y := range []float64{2020, 2019} {
		for m := 12.0; m >= 1; m-- {
			if y == 2019 {
				years = append(years, y, y)
				months = append(months, m, m)
				vals = append(vals, m, m+2)
			} else {
				years = append(years, y)
				months = append(months, m)
				vals = append(vals, 10*m)
			}
		}
	}
	years = append(years, math.NaN())
	months = append(months, math.NaN())
	vals = append(vals, 999)
	return dataset.MustNew("t",
		dataset.Floats(dataset.ColYear, years...),
		dataset.Floats(dataset.ColMonth, months...),
		dataset.Floats("V", vals...),
	)
}

func TestAggregateTemporalYearMonth(t *testing.T) {
	got, err := AggregateTemporal(twoYears(), "V", PeriodYearMonth, AggMean)
	require.NoError(t, err)
	require.Len(t, got, 24)
	assert.Equal(t, "2019-01", got[0].Key)
	assert.Equal(t, "2020-12", got[23].Key)
	for i := 1; i < len(got); i++ {
		assert.Less(t, got[i-1].Key, got[i].Key, "chronological")
	}
	for _, b := range got {
		m := float64(b.Month)
		if b.Year == 2019 {
			assert.InDelta(t, m+1, b.Value, 1e-12)
			assert.Equal(t, 2, b.Count)
		} else {
			assert.InDelta(t, 10*m, b.Value, 1e-12)
		}
	}
	assert.Equal(t, "Jan 2019", got[0].Label)
}

func TestAggregateTemporalMonthAndYear(t *testing.T) {
	d := twoYears()
	months, err := AggregateTemporal(d, "V", PeriodMonth, AggSum)
	require.NoError(t, err)
	require.Len(t, months, 12)
	assert.Equal(t, "January", months[0].Label)
	assert.InDelta(t, 1+3+10, months[0].Value, 1e-12)

	years, err := AnnualAverages(d, "V")
	require.NoError(t, err)
	require.Len(t, years, 2)
	assert.Equal(t, 2019, years[0].Year)
	assert.InDelta(t, 7.5, years[0].Value, 1e-12)
	assert.InDelta(t, 65, years[1].Value, 1e-12)

	med, err := AggregateTemporal(d, "V", PeriodYear, AggMedian)
	require.NoError(t, err)
	assert.InDelta(t, 7.5, med[0].Value, 1e-12)
}

func TestAggregateTemporalEdgeCases(t *testing.T) {
	_, err := AggregateTemporal(twoYears(), "V", "week", AggMean)
	assert.True(t, errs.IsKind(err, errs.InvalidParameter))
	_, err = AggregateTemporal(twoYears(), "V", PeriodYear, "mode")
	assert.True(t, errs.IsKind(err, errs.InvalidParameter))

	empty := dataset.FilterValid(twoYears(), []string{"NOPE"})
	got, err := AggregateTemporal(empty, "V", PeriodMonth, AggMean)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NotNil(t, got)
}

func TestLinearTrend(t *testing.T) {
	d := dataset.MustNew("t",
		dataset.Floats(dataset.ColYear, 2018, 2019, 2020, 2021, 2021),
		dataset.Floats(dataset.ColMonth, 1, 1, 1, 1, 2),
		dataset.Floats("T", 10, 10.5, 11, 11.4, 11.6),
	)
	tr, err := LinearTrend(d, "T")
	require.NoError(t, err)
	assert.InDelta(t, 0.5, tr.Slope, 1e-9)
	assert.InDelta(t, 10-0.5*2018, tr.Intercept, 1e-6)
	assert.InDelta(t, 1.0, tr.RSquared, 1e-9)
	assert.Equal(t, "increasing", tr.Direction)
	assert.InDelta(t, 1.5, tr.TotalChange, 1e-9)
	assert.True(t, tr.Significant)
	assert.Equal(t, "y = 0.5000x - 999.0000", tr.Equation)
	assert.Equal(t, []int{2018, 2019, 2020, 2021}, tr.Years)
}

func TestLinearTrendNeedsTwoYears(t *testing.T) {
	d := dataset.MustNew("t",
		dataset.Floats(dataset.ColYear, 2020, 2020),
		dataset.Floats(dataset.ColMonth, 1, 2),
		dataset.Floats("T", 1, 2),
	)
	_, err := LinearTrend(d, "T")
	assert.True(t, errs.IsKind(err, errs.InsufficientData))

	two := dataset.MustNew("t",
		dataset.Floats(dataset.ColYear, 2020, 2021),
		dataset.Floats(dataset.ColMonth, 1, 1),
		dataset.Floats("T", 1, 3),
	)
	tr, err := LinearTrend(two, "T")
	require.NoError(t, err)
	assert.Equal(t, 0.0, tr.PValue)
	assert.Equal(t, 0.0, tr.StdErr)
	assert.Equal(t, "y = 2.0000x - 4039.0000", tr.Equation)
}

func TestLinearTrendFlatSeriesIsNotSignificant(t *testing.T) {
	four := dataset.MustNew("t",
		dataset.Floats(dataset.ColYear, 2018, 2019, 2020, 2021),
		dataset.Floats(dataset.ColMonth, 1, 1, 1, 1),
		dataset.Floats("T", 12, 12, 12, 12),
	)
	two := dataset.MustNew("t",
		dataset.Floats(dataset.ColYear, 2020, 2021),
		dataset.Floats(dataset.ColMonth, 6, 6),
		dataset.Floats("T", 5, 5),
	)
	for name, d := range map[string]*dataset.Dataset{"four years": four, "two years": two} {
		tr, err := LinearTrend(d, "T")
		require.NoError(t, err, name)
		assert.Equal(t, 0.0, tr.Slope, name)
		assert.Equal(t, 1.0, tr.PValue, name)
		assert.Equal(t, 0.0, tr.RSquared, name)
		assert.False(t, tr.Significant, name)
		assert.Equal(t, "stable", tr.Direction, name)
		assert.Equal(t, 0.0, tr.TotalChange, name)
	}
}

func TestEquationSign(t *testing.T) {
	assert.Equal(t, "y = -0.2500x + 3.0000", equation(-0.25, 3))
}

func TestReportMarkdown(t *testing.T) {
	n := 40
	a := make([]float64, n)
	b := make([]float64, n)
	for i := range a {
		a[i] = float64(i)
		b[i] = float64(n - i)
	}
	a[0] = 500
	d := dataset.MustNew("survey.csv",
		dataset.Floats("TEMP", a...),
		dataset.Floats("SAL", b...),
	)
	rep, err := BuildReport(d, ReportOptions{
		Columns:    []string{"TEMP", "SAL"},
		Corr:       CorrOptions{Method: Pearson, MinPeriods: 30},
		GroupLabel: "WATER_MASS",
		Groups: []GroupResult{{Key: "Atlantic Inflow", Size: 40, Percentage: 100,
			Metrics: map[string]NumSummary{"TEMP": SummarizeValues(a)}}},
	})
	require.NoError(t, err)
	md := rep.Markdown()
	for _, want := range []string{
		"[DATASET SUMMARY]", "Source: survey.csv", "Observations: 40",
		"[SCHEMA]", "- TEMP: n=40",
		"[WATER_MASS]", "- Atlantic Inflow (n=40, 100.0%)",
		"[CORRELATIONS] (pearson)", "TEMP ~ SAL",
		"[OUTLIERS]", "- TEMP: 1 (2.5%)",
	} {
		if !strings.Contains(md, want) {
			t.Fatalf("markdown missing %q:\n%s", want, md)
		}
	}

	_, err = BuildReport(d, ReportOptions{Corr: CorrOptions{Method: "tau"}})
	assert.True(t, errs.IsKind(err, errs.InvalidParameter))
}

func TestSummarizeValues(t *testing.T) {
	s := SummarizeValues([]float64{2, math.NaN(), 4, 6})
	assert.Equal(t, 3, s.Count)
	assert.Equal(t, 4.0, s.Mean)
	assert.Equal(t, 4.0, s.Median)
	assert.Equal(t, 12.0, s.Sum)
	assert.Equal(t, 2.0, s.Min)
	assert.Equal(t, 6.0, s.Max)

	none := SummarizeValues(nil)
	assert.Zero(t, none.Count)
	assert.True(t, math.IsNaN(none.Mean))
}
