package cmd

import (
	"fmt"

	"github.com/KaramelBytes/seascope/internal/render"
	"github.com/spf13/cobra"
)

var campaignsCmd = &cobra.Command{
	Use:   "campaigns",
	Short: "Campaign effort, vessel usage and activity timeline",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		c, err := a.Campaigns(cmd.Context())
		if err != nil {
			return err
		}
		s, u := c.Summary, c.Usage
		overview := kv("Campaigns",
			"Campaigns", s.TotalCampaigns,
			"Measurements", s.TotalMeasurements,
			"Avg measurements per campaign", s.AvgPerCampaign,
			"Vessels", u.TotalVessels,
			"Dominant vessel", u.Dominant,
			"Dominant vessel %", u.DominantShare,
		)
		overview.Precision = 1
		top := &render.Table{Title: "Top campaigns", Header: []string{"Campaign", "Measurements", "%"}, Precision: 1}
		for _, t := range s.Top {
			top.Append(t.Name, t.Count, t.Percentage)
		}
		vessels := &render.Table{Title: "Vessel usage", Header: []string{"Vessel", "Measurements", "%"}, Precision: 1}
		for _, v := range u.Vessels {
			vessels.Append(v.Name, v.Count, v.Percentage)
		}
		tables := []*render.Table{overview, top, vessels}
		if tl := c.Timeline; tl != nil {
			years := &render.Table{
				Title: fmt.Sprintf("Timeline %s to %s (%d years active, most active %d with %d campaigns)",
					tl.Start.Format("2006-01-02"), tl.End.Format("2006-01-02"), tl.YearsActive, tl.MostActiveYear, tl.MostActiveYearCruises),
				Header: []string{"Year", "Campaigns", "Measurements"},
			}
			for _, y := range tl.Years {
				years.Append(y.Year, y.Campaigns, y.Measurements)
			}
			tables = append(tables, years)
		}
		return emit(cmd, c, tables...)
	},
}

var vesselsCmd = &cobra.Command{
	Use:   "vessels",
	Short: "Per-vessel campaigns and the vessel by year campaign matrix",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		v, err := a.Vessels(cmd.Context())
		if err != nil {
			return err
		}
		stats := &render.Table{
			Title:     "Vessels",
			Header:    []string{"Vessel", "Campaigns", "Measurements", "Avg per campaign", "Years active", "First", "Last"},
			Precision: 1,
		}
		for _, s := range v.Vessels {
			stats.Append(s.Vessel, s.Campaigns, s.Measurements, s.AvgPerCampaign, s.YearsActive, s.FirstYear, s.LastYear)
		}
		m := v.Matrix
		header := []string{"Vessel"}
		for _, y := range m.Years {
			header = append(header, fmt.Sprint(y))
		}
		matrix := &render.Table{Title: "Campaigns per vessel and year", Header: header}
		for i, name := range m.Vessels {
			row := []any{name}
			for _, n := range m.Counts[i] {
				row = append(row, n)
			}
			matrix.Append(row...)
		}
		return emit(cmd, v, stats, matrix)
	},
}

func init() {
	rootCmd.AddCommand(campaignsCmd)
	rootCmd.AddCommand(vesselsCmd)
}
