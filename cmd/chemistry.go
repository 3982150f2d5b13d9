package cmd

import (
	"fmt"

	"github.com/KaramelBytes/seascope/internal/render"
	"github.com/spf13/cobra"
)

var (
	hypThreshold float64
	hypRows      bool

	profVariable string
)

var nutrientsCmd = &cobra.Command{
	Use:   "nutrients",
	Short: "Nutrient stoichiometry (N:P, Si:N, Si:P) against the Redfield ratio",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		n, err := a.Nutrients(cmd.Context())
		if err != nil {
			return err
		}
		t := &render.Table{
			Title:  fmt.Sprintf("Nutrient ratios (Redfield N:P %.0f, deviation %s)", n.RedfieldNP, render.Cell(n.NPDeviation, 2)),
			Header: []string{"Ratio", "Count", "Mean", "Median", "Std", "Min", "Max"},
		}
		for _, r := range n.Ratios {
			t.Append(r.Name, r.Count, r.Mean, r.Median, r.Std, r.Min, r.Max)
		}
		return emit(cmd, n, t)
	},
}

var hypoxiaCmd = &cobra.Command{
	Use:   "hypoxia",
	Short: "Flag measurements with dissolved oxygen below a threshold",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		th := cfg.Thresholds.Hypoxia
		if cmd.Flags().Changed("threshold") {
			th = hypThreshold
		}
		h, err := a.Hypoxia(cmd.Context(), th)
		if err != nil {
			return err
		}
		tables := []*render.Table{kv(fmt.Sprintf("Hypoxia: %s", h.Column),
			"Threshold", h.Threshold,
			"Measured", h.Measured,
			"Hypoxic", h.Count,
			"Hypoxic %", h.Percentage,
			"Mean oxygen", h.MeanOxygen,
			"Min oxygen", h.MinOxygen,
		)}
		if hypRows {
			rows := &render.Table{Title: "Hypoxic rows", Header: []string{"Row"}}
			for _, id := range h.RowIDs {
				rows.Append(id)
			}
			tables = append(tables, rows)
		}
		return emit(cmd, h, tables...)
	},
}

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Vertical gradient of a variable and water-column stratification",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		p, err := a.Profile(cmd.Context(), profVariable)
		if err != nil {
			return err
		}
		t := &render.Table{
			Title: fmt.Sprintf("Profile of %s (stratification %s from %s)",
				p.Variable, render.Cell(p.Stratification, 4), p.DensityColumn),
			Header:    []string{"Row", "Depth", "Value", "Gradient"},
			Precision: 4,
		}
		for _, pt := range p.Points {
			t.Append(pt.RowID, pt.Depth, pt.Value, pt.Gradient)
		}
		return emit(cmd, p, t)
	},
}

func init() {
	rootCmd.AddCommand(nutrientsCmd)
	rootCmd.AddCommand(hypoxiaCmd)
	rootCmd.AddCommand(profileCmd)
	hypoxiaCmd.Flags().Float64Var(&hypThreshold, "threshold", 60, "oxygen threshold (default from config)")
	hypoxiaCmd.Flags().BoolVar(&hypRows, "rows", false, "list the flagged row IDs")
	profileCmd.Flags().StringVarP(&profVariable, "variable", "v", "", "variable to profile (default: temperature column)")
}
