package dataset

import (
	"sort"
	"time"
)

// Identity names the date and identifier columns used by Summarize.
type Identity struct {
	Date    string
	Vessel  string
	Cruise  string
	Station string
}

// Summary is the headline description of a dataset.
type Summary struct {
	Observations     int        `json:"observations"`
	Variables        int        `json:"variables"`
	NumericVariables int        `json:"numeric_variables"`
	Start            *time.Time `json:"start,omitempty"`
	End              *time.Time `json:"end,omitempty"`
	Vessels          int        `json:"vessels"`
	Campaigns        int        `json:"campaigns"`
	Stations         int        `json:"stations"`
}

// Summarize counts rows, columns, the date range and distinct identifiers.
// Absent identifier columns count as zero.
func Summarize(d *Dataset, id Identity) Summary {
	s := Summary{
		Observations:     d.Len(),
		Variables:        len(d.cols),
		NumericVariables: len(d.NumericColumns()),
		Vessels:          d.distinct(id.Vessel),
		Campaigns:        d.distinct(id.Cruise),
		Stations:         d.distinct(id.Station),
	}
	if ts, err := d.Times(id.Date); err == nil {
		for _, t := range ts {
			if t.IsZero() {
				continue
			}
			if s.Start == nil || t.Before(*s.Start) {
				tt := t
				s.Start = &tt
			}
			if s.End == nil || t.After(*s.End) {
				tt := t
				s.End = &tt
			}
		}
	}
	return s
}

func (d *Dataset) distinct(col string) int {
	if !d.Has(col) {
		return 0
	}
	seen := map[string]struct{}{}
	for i := 0; i < d.Len(); i++ {
		if d.Valid(col, i) {
			seen[d.Cell(col, i)] = struct{}{}
		}
	}
	return len(seen)
}

// ColumnCompleteness is the share of non-missing values in a column.
type ColumnCompleteness struct {
	Column  string  `json:"column"`
	Present int     `json:"present"`
	Percent float64 `json:"percent"`
}

// Completeness returns the percentage of non-missing values per column,
// most complete first. An empty dataset reports 0 for every column.
func Completeness(d *Dataset) []ColumnCompleteness {
	out := make([]ColumnCompleteness, 0, len(d.cols))
	for _, c := range d.cols {
		n := 0
		for i := 0; i < d.Len(); i++ {
			if d.Valid(c, i) {
				n++
			}
		}
		pct := 0.0
		if d.Len() > 0 {
			pct = float64(n) * 100 / float64(d.Len())
		}
		out = append(out, ColumnCompleteness{Column: c, Present: n, Percent: pct})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Percent > out[j].Percent })
	return out
}
