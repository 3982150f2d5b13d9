package analysis

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/KaramelBytes/seascope/internal/dataset"
	"github.com/KaramelBytes/seascope/internal/errs"
)

// ReportOptions controls BuildReport.
type ReportOptions struct {
	Identity dataset.Identity
	// Columns restricts the schema statistics; empty means every numeric column.
	Columns []string
	// OutlierK is the IQR multiplier; 0 means DefaultIQRMultiplier.
	OutlierK float64
	Corr     CorrOptions
	// GroupLabel names the grouping used for Groups (for example WATER_MASS).
	GroupLabel string
	Groups     []GroupResult
	// TopPairs limits the listed correlation pairs.
	TopPairs int
}

// Report is a markdown-friendly overview of a survey dataset.
type Report struct {
	Name         string                       `json:"name"`
	Summary      dataset.Summary              `json:"summary"`
	Completeness []dataset.ColumnCompleteness `json:"completeness"`
	Stats        []Summary                    `json:"stats"`
	GroupLabel   string                       `json:"group_label,omitempty"`
	Groups       []GroupResult                `json:"groups,omitempty"`
	Corr         *CorrMatrix                  `json:"correlations,omitempty"`
	Outliers     []OutlierResult              `json:"outliers,omitempty"`
	Warnings     []string                     `json:"warnings,omitempty"`

	topPairs int
}

// BuildReport assembles the overview. Analyses that cannot run on the data
// (too few values, nothing to correlate) become warnings instead of errors;
// invalid parameters still fail.
func BuildReport(d *dataset.Dataset, opt ReportOptions) (*Report, error) {
	k := opt.OutlierK
	if k == 0 {
		k = DefaultIQRMultiplier
	}
	if k < 0 {
		return nil, errs.Newf(errs.InvalidParameter, errs.StageAnalysis, "IQR multiplier must be positive, got %v", k)
	}
	if opt.Corr.Method == "" {
		opt.Corr.Method = Spearman
	}
	if _, err := ParseMethod(string(opt.Corr.Method)); err != nil {
		return nil, err
	}
	cols := opt.Columns
	if len(cols) == 0 {
		cols = d.NumericColumns(dataset.ColYear, dataset.ColMonth)
	}

	r := &Report{
		Name:         d.Source,
		Summary:      dataset.Summarize(d, opt.Identity),
		Completeness: dataset.Completeness(d),
		GroupLabel:   opt.GroupLabel,
		Groups:       opt.Groups,
		topPairs:     opt.TopPairs,
	}
	if r.topPairs <= 0 {
		r.topPairs = 10
	}
	stats, err := Describe(d, cols)
	if err != nil {
		return nil, err
	}
	r.Stats = stats

	for _, c := range cols {
		o, err := DetectOutliers(d, c, k)
		if err != nil {
			return nil, err
		}
		if o.Bounds.N < 4 {
			r.Warnings = append(r.Warnings, fmt.Sprintf("%s: too few values for outlier bounds (%d)", c, o.Bounds.N))
			continue
		}
		if o.Count > 0 {
			r.Outliers = append(r.Outliers, *o)
		}
	}

	corr, err := Correlate(d, cols, opt.Corr)
	if err != nil {
		return nil, err
	}
	if len(corr.Dropped) > 0 {
		r.Warnings = append(r.Warnings, fmt.Sprintf("correlation skipped %d column(s) below %d values: %s",
			len(corr.Dropped), opt.Corr.MinPeriods, strings.Join(corr.Dropped, ", ")))
	}
	if len(corr.Columns) >= 2 {
		r.Corr = corr
	}
	if d.IsEmpty() {
		r.Warnings = append(r.Warnings, "dataset has no rows")
	}
	return r, nil
}

// Markdown renders the report as a compact standalone document.
func (r *Report) Markdown() string {
	var b strings.Builder
	b.WriteString("# Survey overview\n\n")
	b.WriteString("[DATASET SUMMARY]\n")
	if r.Name != "" {
		b.WriteString(fmt.Sprintf("Source: %s\n", r.Name))
	}
	s := r.Summary
	b.WriteString(fmt.Sprintf("Observations: %d\n", s.Observations))
	b.WriteString(fmt.Sprintf("Variables: %d (%d numeric)\n", s.Variables, s.NumericVariables))
	if s.Start != nil && s.End != nil {
		b.WriteString(fmt.Sprintf("Period: %s to %s\n", s.Start.Format("2006-01-02"), s.End.Format("2006-01-02")))
	}
	b.WriteString(fmt.Sprintf("Vessels: %d, campaigns: %d, stations: %d\n\n", s.Vessels, s.Campaigns, s.Stations))

	b.WriteString("[SCHEMA]\n")
	for _, c := range r.Stats {
		b.WriteString(fmt.Sprintf("- %s: n=%d, missing %.1f%%", safeName(c.Column), c.Count, 100-c.Completeness))
		if c.Count > 0 {
			b.WriteString(fmt.Sprintf(" | min %s, median %s, max %s, mean %s, std %s",
				num(c.Min), num(c.Median), num(c.Max), num(c.Mean), num(c.Std)))
		}
		b.WriteString("\n")
	}

	if len(r.Groups) > 0 {
		label := r.GroupLabel
		if label == "" {
			label = "GROUP"
		}
		b.WriteString(fmt.Sprintf("\n[%s]\n", strings.ToUpper(label)))
		for _, g := range r.Groups {
			b.WriteString(fmt.Sprintf("- %s (n=%d, %.1f%%)\n", safeVal(g.Key), g.Size, g.Percentage))
			keys := make([]string, 0, len(g.Metrics))
			for k := range g.Metrics {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				m := g.Metrics[k]
				b.WriteString(fmt.Sprintf("  • %s: mean %s (min %s, max %s)\n", k, num(m.Mean), num(m.Min), num(m.Max)))
			}
		}
	}

	if r.Corr != nil {
		b.WriteString(fmt.Sprintf("\n[CORRELATIONS] (%s)\n", r.Corr.Method))
		for _, p := range r.Corr.TopPairs(r.topPairs) {
			b.WriteString(fmt.Sprintf("- %s ~ %s: r=%.3f (p=%s, n=%d)\n", p.A, p.B, p.R, pval(p.P), p.N))
		}
	}

	if len(r.Outliers) > 0 {
		b.WriteString("\n[OUTLIERS]\n")
		for _, o := range r.Outliers {
			b.WriteString(fmt.Sprintf("- %s: %d (%.1f%%) outside [%s, %s]\n",
				o.Column, o.Count, o.Percentage, num(o.Bounds.Lower), num(o.Bounds.Upper)))
		}
	}

	if len(r.Warnings) > 0 {
		b.WriteString("\n[NOTES]\n")
		for _, w := range r.Warnings {
			b.WriteString("- ")
			b.WriteString(w)
			b.WriteString("\n")
		}
	}
	return b.String()
}

func num(v float64) string {
	if math.IsNaN(v) {
		return "n/a"
	}
	return fmt.Sprintf("%.4g", v)
}

func pval(p float64) string {
	switch {
	case math.IsNaN(p):
		return "n/a"
	case p < 0.001:
		return "<0.001"
	default:
		return fmt.Sprintf("%.3f", p)
	}
}

func safeName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "(unnamed)"
	}
	return s
}

func safeVal(s string) string { return strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "|", "/") }
