package cmd

import (
	"fmt"

	"github.com/KaramelBytes/seascope/internal/render"
	"github.com/spf13/cobra"
)

var (
	outColumn string
	outK      float64
	outZScore float64
)

var outliersCmd = &cobra.Command{
	Use:   "outliers",
	Short: "Flag values outside the IQR fences (or beyond a z-score with --zscore)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		col := outColumn
		if col == "" {
			col = cfg.Columns.Temperature
		}

		if cmd.Flags().Changed("zscore") {
			res, err := a.Anomalies(cmd.Context(), col, outZScore)
			if err != nil {
				return err
			}
			summary := kv(fmt.Sprintf("Z-score anomalies: %s", col),
				"Threshold", res.Threshold,
				"Mean", res.Mean,
				"Std", res.Std,
				"Flagged", res.Count,
			)
			rows := &render.Table{Title: "Flagged rows", Header: []string{"Row", "Z"}}
			for i, id := range res.RowIDs {
				rows.Append(id, res.Scores[i])
			}
			return emit(cmd, res, summary, rows)
		}

		k := cfg.Thresholds.OutlierIQR
		if cmd.Flags().Changed("k") {
			k = outK
		}
		res, err := a.Outliers(cmd.Context(), col, k)
		if err != nil {
			return err
		}
		b := res.Bounds
		summary := kv(fmt.Sprintf("IQR outliers: %s", col),
			"Values", b.N,
			"Q1", b.Q1,
			"Q3", b.Q3,
			"IQR", b.IQR,
			"k", b.K,
			"Lower fence", b.Lower,
			"Upper fence", b.Upper,
			"Flagged", res.Count,
			"Flagged %", res.Percentage,
		)
		rows := &render.Table{Title: "Flagged rows", Header: []string{"Row", "Value"}}
		for i, id := range res.RowIDs {
			rows.Append(id, res.Values[i])
		}
		return emit(cmd, res, summary, rows)
	},
}

func init() {
	rootCmd.AddCommand(outliersCmd)
	outliersCmd.Flags().StringVarP(&outColumn, "column", "c", "", "variable to scan (default: temperature column)")
	outliersCmd.Flags().Float64Var(&outK, "k", 1.5, "IQR multiplier (default from config)")
	outliersCmd.Flags().Float64Var(&outZScore, "zscore", 3.0, "use z-score detection with this threshold")
}
