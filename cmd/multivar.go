package cmd

import (
	"fmt"

	"github.com/KaramelBytes/seascope/internal/render"
	"github.com/spf13/cobra"
)

var (
	pcaColumns    []string
	pcaComponents int

	clColumns []string
	clK       int
)

var pcaCmd = &cobra.Command{
	Use:   "pca",
	Short: "Principal component analysis on standardized variables",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		n := cfg.Analysis.Components
		if cmd.Flags().Changed("components") {
			n = pcaComponents
		}
		p, err := a.PCA(cmd.Context(), pcaColumns, n)
		if err != nil {
			return err
		}
		explained := &render.Table{
			Title:     fmt.Sprintf("Explained variance (%d rows)", len(p.RowIDs)),
			Header:    []string{"Component", "Ratio", "Cumulative"},
			Precision: 4,
		}
		var cum float64
		for i, r := range p.Explained {
			cum += r
			explained.Append(fmt.Sprintf("PC%d", i+1), r, cum)
		}
		header := []string{"Variable"}
		for i := range p.Explained {
			header = append(header, fmt.Sprintf("PC%d", i+1))
		}
		loadings := &render.Table{Title: "Loadings", Header: header, Precision: 4}
		for i, c := range p.Columns {
			row := []any{c}
			for _, l := range p.Loadings[i] {
				row = append(row, l)
			}
			loadings.Append(row...)
		}
		return emit(cmd, p, explained, loadings)
	},
}

var clusterCmd = &cobra.Command{
	Use:   "cluster",
	Short: "K-means clustering (k-means++, best of several restarts) on standardized variables",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		k := cfg.Analysis.Clusters
		if cmd.Flags().Changed("k") {
			k = clK
		}
		c, err := a.Cluster(cmd.Context(), clColumns, k)
		if err != nil {
			return err
		}
		summary := kv(fmt.Sprintf("K-means (k=%d)", c.K),
			"Rows", len(c.RowIDs),
			"Inertia", c.Inertia,
			"Silhouette", c.Silhouette,
			"Iterations", c.Iterations,
		)
		centroids := &render.Table{Title: "Centroids (standardized)", Header: append([]string{"Cluster", "Size"}, c.Columns...)}
		for i, cen := range c.Centroids {
			row := []any{i, c.Sizes[i]}
			for _, v := range cen {
				row = append(row, v)
			}
			centroids.Append(row...)
		}
		return emit(cmd, c, summary, centroids)
	},
}

func init() {
	rootCmd.AddCommand(pcaCmd)
	rootCmd.AddCommand(clusterCmd)
	pcaCmd.Flags().StringSliceVar(&pcaColumns, "columns", nil, "comma-separated variables (default: display.default_vars present in the data)")
	pcaCmd.Flags().IntVarP(&pcaComponents, "components", "n", 3, "number of components (default from config)")
	clusterCmd.Flags().StringSliceVar(&clColumns, "columns", nil, "comma-separated variables (default: display.default_vars present in the data)")
	clusterCmd.Flags().IntVar(&clK, "k", 3, "number of clusters (default from config)")
}
