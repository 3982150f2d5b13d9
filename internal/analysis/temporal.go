package analysis

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/KaramelBytes/seascope/internal/dataset"
	"github.com/KaramelBytes/seascope/internal/errs"
)

// Period is the temporal bucket granularity.
type Period string

const (
	PeriodYear      Period = "year"
	PeriodMonth     Period = "month"
	PeriodYearMonth Period = "year-month"
)

// ParsePeriod validates a period name.
func ParsePeriod(s string) (Period, error) {
	switch p := Period(strings.ToLower(strings.TrimSpace(s))); p {
	case PeriodYear, PeriodMonth, PeriodYearMonth:
		return p, nil
	case "year_month", "yearmonth":
		return PeriodYearMonth, nil
	default:
		return "", errs.Newf(errs.InvalidParameter, errs.StageAnalysis, "unknown aggregation period %q (want year|month|year-month)", s)
	}
}

// Agg is the statistic reported as a bucket's Value.
type Agg string

const (
	AggMean   Agg = "mean"
	AggMedian Agg = "median"
	AggSum    Agg = "sum"
)

// ParseAgg validates an aggregation name.
func ParseAgg(s string) (Agg, error) {
	switch a := Agg(strings.ToLower(strings.TrimSpace(s))); a {
	case AggMean, AggMedian, AggSum:
		return a, nil
	default:
		return "", errs.Newf(errs.InvalidParameter, errs.StageAnalysis, "unknown aggregation %q (want mean|median|sum)", s)
	}
}

// Bucket is one period of a temporal aggregation.
type Bucket struct {
	Key   string `json:"key"`
	Year  int    `json:"year,omitempty"`
	Month int    `json:"month,omitempty"`
	Label string `json:"label"`
	// Value is the requested aggregate of the bucket.
	Value float64 `json:"value"`
	NumSummary
}

type bucketKey struct{ year, month int }

// AggregateTemporal groups col by the derived YEAR/MONTH columns and returns
// buckets in chronological order. Rows with a missing date or value are
// skipped. An empty dataset yields an empty slice.
func AggregateTemporal(d *dataset.Dataset, col string, period Period, agg Agg) ([]Bucket, error) {
	period, err := ParsePeriod(string(period))
	if err != nil {
		return nil, err
	}
	agg, err = ParseAgg(string(agg))
	if err != nil {
		return nil, err
	}
	if d.IsEmpty() {
		return []Bucket{}, nil
	}
	vals, err := numericColumn(d, col)
	if err != nil {
		return nil, err
	}
	years, err := d.Float(dataset.ColYear)
	if err != nil {
		return nil, err
	}
	months, err := d.Float(dataset.ColMonth)
	if err != nil {
		return nil, err
	}

	groups := map[bucketKey][]float64{}
	for i, v := range vals {
		if !isFinite(v) || math.IsNaN(years[i]) || math.IsNaN(months[i]) {
			continue
		}
		k := bucketKey{year: int(years[i]), month: int(months[i])}
		switch period {
		case PeriodYear:
			k.month = 0
		case PeriodMonth:
			k.year = 0
		}
		groups[k] = append(groups[k], v)
	}

	keys := make([]bucketKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].year != keys[j].year {
			return keys[i].year < keys[j].year
		}
		return keys[i].month < keys[j].month
	})

	out := make([]Bucket, 0, len(keys))
	for _, k := range keys {
		s := SummarizeValues(groups[k])
		b := Bucket{Year: k.year, Month: k.month, NumSummary: s}
		switch period {
		case PeriodYear:
			b.Key = fmt.Sprintf("%04d", k.year)
			b.Label = b.Key
		case PeriodMonth:
			b.Key = fmt.Sprintf("%02d", k.month)
			b.Label = monthName(k.month)
		default:
			b.Key = fmt.Sprintf("%04d-%02d", k.year, k.month)
			b.Label = fmt.Sprintf("%s %d", monthName(k.month)[:3], k.year)
		}
		switch agg {
		case AggMedian:
			b.Value = s.Median
		case AggSum:
			b.Value = s.Sum
		default:
			b.Value = s.Mean
		}
		out = append(out, b)
	}
	return out, nil
}

func monthName(m int) string {
	if m < 1 || m > 12 {
		return fmt.Sprintf("month %d", m)
	}
	return time.Month(m).String()
}

// SeasonalStats pools col by calendar month across years.
func SeasonalStats(d *dataset.Dataset, col string) ([]Bucket, error) {
	return AggregateTemporal(d, col, PeriodMonth, AggMean)
}

// AnnualAverages returns the yearly mean of col.
func AnnualAverages(d *dataset.Dataset, col string) ([]Bucket, error) {
	return AggregateTemporal(d, col, PeriodYear, AggMean)
}
