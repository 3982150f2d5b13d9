package cmd

import (
	"fmt"

	"github.com/KaramelBytes/seascope/internal/render"
	"github.com/spf13/cobra"
)

var (
	descColumns []string

	corrColumns    []string
	corrMethod     string
	corrMinPeriods int
	corrTop        int
)

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show dataset size, date range, effort and column completeness",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		ov, err := a.Overview(cmd.Context())
		if err != nil {
			return err
		}
		s := ov.Summary
		start, end := "", ""
		if s.Start != nil {
			start = s.Start.Format("2006-01-02")
		}
		if s.End != nil {
			end = s.End.Format("2006-01-02")
		}
		overview := kv("Dataset",
			"Location", ov.Location,
			"Observations", s.Observations,
			"Variables", s.Variables,
			"Numeric variables", s.NumericVariables,
			"Start", start,
			"End", end,
			"Vessels", s.Vessels,
			"Campaigns", s.Campaigns,
			"Stations", s.Stations,
		)
		comp := &render.Table{Title: "Completeness", Header: []string{"Column", "Present", "Percent"}, Precision: 1}
		for _, c := range ov.Completeness {
			comp.Append(c.Column, c.Present, c.Percent)
		}
		return emit(cmd, ov, overview, comp)
	},
}

var describeCmd = &cobra.Command{
	Use:   "describe [columns...]",
	Short: "Descriptive statistics per variable",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		cols := append(append([]string(nil), descColumns...), args...)
		stats, err := a.Describe(cmd.Context(), cols)
		if err != nil {
			return err
		}
		t := &render.Table{
			Title:  "Descriptive statistics",
			Header: []string{"Column", "Count", "Missing", "Mean", "Std", "Min", "Q1", "Median", "Q3", "Max", "Skew", "Kurtosis", "Complete %"},
		}
		for _, s := range stats {
			t.Append(s.Column, s.Count, s.Missing, s.Mean, s.Std, s.Min, s.Q1, s.Median, s.Q3, s.Max, s.Skewness, s.Kurtosis, s.Completeness)
		}
		return emit(cmd, stats, t)
	},
}

var correlateCmd = &cobra.Command{
	Use:   "correlate",
	Short: "Pairwise correlation matrix with p-values",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		method, minPeriods := cfg.Analysis.CorrelationMethod, cfg.Analysis.MinPeriods
		if cmd.Flags().Changed("method") {
			method = corrMethod
		}
		if cmd.Flags().Changed("min-periods") {
			minPeriods = corrMinPeriods
		}
		m, err := a.Correlate(cmd.Context(), corrColumns, method, minPeriods)
		if err != nil {
			return err
		}
		matrix := &render.Table{Title: fmt.Sprintf("%s correlation", m.Method), Header: append([]string{""}, m.Columns...)}
		for i, c := range m.Columns {
			row := []any{c}
			for j := range m.Columns {
				row = append(row, m.Values[i][j])
			}
			matrix.Append(row...)
		}
		pairs := &render.Table{Title: "Strongest pairs", Header: []string{"A", "B", "r", "p", "n"}, Precision: 4}
		for _, p := range m.TopPairs(corrTop) {
			pairs.Append(p.A, p.B, p.R, p.P, p.N)
		}
		tables := []*render.Table{matrix, pairs}
		if len(m.Dropped) > 0 {
			dropped := &render.Table{Title: fmt.Sprintf("Dropped (fewer than %d values)", minPeriods), Header: []string{"Column"}}
			for _, c := range m.Dropped {
				dropped.Append(c)
			}
			tables = append(tables, dropped)
		}
		return emit(cmd, m, tables...)
	},
}

func init() {
	rootCmd.AddCommand(summaryCmd)
	rootCmd.AddCommand(describeCmd)
	rootCmd.AddCommand(correlateCmd)
	describeCmd.Flags().StringSliceVar(&descColumns, "columns", nil, "comma-separated variables (default: all numeric)")
	correlateCmd.Flags().StringSliceVar(&corrColumns, "columns", nil, "comma-separated variables (default: all numeric)")
	correlateCmd.Flags().StringVar(&corrMethod, "method", "spearman", "pearson | spearman (default from config)")
	correlateCmd.Flags().IntVar(&corrMinPeriods, "min-periods", 30, "minimum non-missing values per column (default from config)")
	correlateCmd.Flags().IntVar(&corrTop, "top", 10, "number of strongest pairs to list")
}
