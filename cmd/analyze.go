package cmd

import (
	"github.com/KaramelBytes/seascope/internal/render"
	"github.com/spf13/cobra"
)

var anaColumns []string

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Produce a Markdown overview report of the dataset",
	Long: `Analyze loads the dataset and writes an overview: dataset summary, per-variable
statistics, water-mass groups, correlations and outliers. The report is Markdown
unless --format json is given.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := outputFormat()
		if err != nil {
			return err
		}
		a, err := newApp()
		if err != nil {
			return err
		}
		rep, err := a.Report(cmd.Context(), anaColumns)
		if err != nil {
			return err
		}
		if f == render.FormatJSON {
			return emit(cmd, rep)
		}
		return writeOut(cmd, []byte(rep.Markdown()), "analysis")
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().StringSliceVar(&anaColumns, "columns", nil, "comma-separated variables to describe (default: all numeric)")
}
