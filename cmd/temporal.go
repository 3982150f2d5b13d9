package cmd

import (
	"fmt"

	"github.com/KaramelBytes/seascope/internal/analysis"
	"github.com/KaramelBytes/seascope/internal/render"
	"github.com/spf13/cobra"
)

var (
	tmpColumn   string
	tmpPeriod   string
	tmpAgg      string
	tmpSeasonal bool

	trendColumn string
)

var temporalCmd = &cobra.Command{
	Use:   "temporal",
	Short: "Aggregate a variable by year, month or year-month",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		col := tmpColumn
		if col == "" {
			col = cfg.Columns.Temperature
		}
		period, agg := cfg.Analysis.Period, cfg.Analysis.Aggregation
		if cmd.Flags().Changed("period") {
			period = tmpPeriod
		}
		if cmd.Flags().Changed("agg") {
			agg = tmpAgg
		}
		var buckets []analysis.Bucket
		if tmpSeasonal {
			period, agg = "month", "mean"
			buckets, err = a.Seasonal(cmd.Context(), col)
		} else {
			buckets, err = a.Temporal(cmd.Context(), col, period, agg)
		}
		if err != nil {
			return err
		}
		t := &render.Table{
			Title:  fmt.Sprintf("%s by %s (%s)", col, period, agg),
			Header: []string{"Period", agg, "Count", "Mean", "Median", "Std", "Min", "Max"},
		}
		for _, b := range buckets {
			t.Append(b.Label, b.Value, b.Count, b.Mean, b.Median, b.Std, b.Min, b.Max)
		}
		return emit(cmd, buckets, t)
	},
}

var trendCmd = &cobra.Command{
	Use:   "trend",
	Short: "Fit a linear trend to the annual means of a variable",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		col := trendColumn
		if col == "" {
			col = cfg.Columns.Temperature
		}
		tr, err := a.Trend(cmd.Context(), col)
		if err != nil {
			return err
		}
		fit := kv(fmt.Sprintf("Trend: %s", col),
			"Equation", tr.Equation,
			"Slope (per year)", tr.Slope,
			"Intercept", tr.Intercept,
			"R²", tr.RSquared,
			"p-value", tr.PValue,
			"Std error", tr.StdErr,
			"Significant (p<0.05)", fmt.Sprint(tr.Significant),
			"Direction", tr.Direction,
			"Total change", tr.TotalChange,
		)
		annual := &render.Table{Title: "Annual means", Header: []string{"Year", "Mean"}}
		for i, y := range tr.Years {
			annual.Append(y, tr.Means[i])
		}
		return emit(cmd, tr, fit, annual)
	},
}

func init() {
	rootCmd.AddCommand(temporalCmd)
	rootCmd.AddCommand(trendCmd)
	temporalCmd.Flags().StringVarP(&tmpColumn, "column", "c", "", "variable to aggregate (default: temperature column)")
	temporalCmd.Flags().StringVar(&tmpPeriod, "period", "month", "year | month | year-month (default from config)")
	temporalCmd.Flags().StringVar(&tmpAgg, "agg", "mean", "mean | median | sum (default from config)")
	temporalCmd.Flags().BoolVar(&tmpSeasonal, "seasonal", false, "monthly climatology: mean per calendar month across years")
	trendCmd.Flags().StringVarP(&trendColumn, "column", "c", "", "variable to fit (default: temperature column)")
}
