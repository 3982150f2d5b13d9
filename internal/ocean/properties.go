package ocean

import (
	"sort"

	"github.com/KaramelBytes/seascope/internal/analysis"
	"github.com/KaramelBytes/seascope/internal/dataset"
)

// Properties summarizes each label of labelCol: row count, share of the
// labeled rows, and per-column statistics. Unlabeled rows are excluded, so
// percentages sum to 100. Groups follow the table's label order; labels the
// table does not know come after, alphabetically. With no numeric columns
// given every numeric column except YEAR and MONTH is summarized.
func Properties(d *dataset.Dataset, labelCol string, table RuleTable, numericCols []string) ([]analysis.GroupResult, error) {
	labels, err := d.Text(labelCol)
	if err != nil {
		return nil, err
	}
	if len(numericCols) == 0 {
		numericCols = d.NumericColumns(dataset.ColYear, dataset.ColMonth)
	}
	cols := make(map[string][]float64, len(numericCols))
	for _, c := range numericCols {
		v, err := d.Float(c)
		if err != nil {
			return nil, err
		}
		cols[c] = v
	}

	rows := map[string][]int{}
	labeled := 0
	for i, l := range labels {
		if l == "" {
			continue
		}
		rows[l] = append(rows[l], i)
		labeled++
	}

	order := []string{}
	known := map[string]bool{}
	for _, l := range table.Labels() {
		if !known[l] {
			known[l] = true
			order = append(order, l)
		}
	}
	var extra []string
	for l := range rows {
		if !known[l] {
			extra = append(extra, l)
		}
	}
	sort.Strings(extra)
	order = append(order, extra...)

	out := make([]analysis.GroupResult, 0, len(rows))
	for _, l := range order {
		idx := rows[l]
		if len(idx) == 0 {
			continue
		}
		g := analysis.GroupResult{
			Key:        l,
			Size:       len(idx),
			Percentage: float64(len(idx)) * 100 / float64(labeled),
			Metrics:    make(map[string]analysis.NumSummary, len(numericCols)),
		}
		for _, c := range numericCols {
			vals := make([]float64, len(idx))
			for j, i := range idx {
				vals[j] = cols[c][i]
			}
			g.Metrics[c] = analysis.SummarizeValues(vals)
		}
		out = append(out, g)
	}
	return out, nil
}
