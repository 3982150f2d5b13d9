package cmd

import (
	"fmt"
	"sort"

	"github.com/KaramelBytes/seascope/internal/analysis"
	"github.com/KaramelBytes/seascope/internal/render"
	"github.com/spf13/cobra"
)

var (
	wmLower float64
	wmUpper float64
	wmStat  string
)

var watermassCmd = &cobra.Command{
	Use:   "watermass",
	Short: "Classify rows into water masses by salinity and summarize each mass",
	Long: `Watermass labels every row by salinity: below --lower is Atlantic Inflow, above
--upper is Mediterranean Outflow Water, anything in between (bounds included) is the
Atlantic-Mediterranean Interface. Rows without salinity stay unlabeled.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		lower, upper := cfg.Thresholds.AtlanticMax, cfg.Thresholds.MediterraneanMin
		if cmd.Flags().Changed("lower") {
			lower = wmLower
		}
		if cmd.Flags().Changed("upper") {
			upper = wmUpper
		}
		pick, err := statPicker(wmStat)
		if err != nil {
			return err
		}
		wm, err := a.WaterMasses(cmd.Context(), lower, upper)
		if err != nil {
			return err
		}
		cols := metricColumns(wm.Groups, cfg.Display.DefaultVars)
		t := &render.Table{
			Title:  fmt.Sprintf("Water masses (%s; %d labeled, %d unlabeled)", wmStat, wm.Labeled, wm.Unlabeled),
			Header: append([]string{"Water mass", "Rows", "%"}, cols...),
		}
		for _, g := range wm.Groups {
			row := []any{g.Key, g.Size, g.Percentage}
			for _, c := range cols {
				s, ok := g.Metrics[c]
				if !ok {
					row = append(row, "")
					continue
				}
				row = append(row, pick(s))
			}
			t.Append(row...)
		}
		return emit(cmd, wm, t)
	},
}

// statPicker selects one field of a group summary for display.
func statPicker(name string) (func(analysis.NumSummary) float64, error) {
	switch name {
	case "mean":
		return func(s analysis.NumSummary) float64 { return s.Mean }, nil
	case "median":
		return func(s analysis.NumSummary) float64 { return s.Median }, nil
	case "std":
		return func(s analysis.NumSummary) float64 { return s.Std }, nil
	case "min":
		return func(s analysis.NumSummary) float64 { return s.Min }, nil
	case "max":
		return func(s analysis.NumSummary) float64 { return s.Max }, nil
	}
	return nil, fmt.Errorf("unsupported --stat: %s (use mean|median|std|min|max)", name)
}

// metricColumns orders the summarized columns: preferred ones first, then the
// rest alphabetically.
func metricColumns(groups []analysis.GroupResult, preferred []string) []string {
	seen := map[string]bool{}
	for _, g := range groups {
		for c := range g.Metrics {
			seen[c] = true
		}
	}
	var out []string
	for _, c := range preferred {
		if seen[c] {
			out = append(out, c)
			delete(seen, c)
		}
	}
	rest := make([]string, 0, len(seen))
	for c := range seen {
		rest = append(rest, c)
	}
	sort.Strings(rest)
	return append(out, rest...)
}

func init() {
	rootCmd.AddCommand(watermassCmd)
	watermassCmd.Flags().Float64Var(&wmLower, "lower", 37.0, "salinity below which water is Atlantic Inflow (default from config)")
	watermassCmd.Flags().Float64Var(&wmUpper, "upper", 37.5, "salinity above which water is Mediterranean Outflow (default from config)")
	watermassCmd.Flags().StringVar(&wmStat, "stat", "mean", "statistic shown per property: mean|median|std|min|max")
}
