// Package campaign reports how survey effort is spread over cruises,
// vessels and years.
package campaign

import (
	"math"
	"sort"
	"time"

	"github.com/KaramelBytes/seascope/internal/dataset"
	"github.com/KaramelBytes/seascope/internal/errs"
)

// Columns names the fields campaign analytics read.
type Columns struct {
	Vessel string
	Cruise string
	Date   string
}

// DefaultColumns matches the survey export headers.
func DefaultColumns() Columns {
	return Columns{Vessel: "VESSEL", Cruise: "CRUISE-CODE", Date: "DATE"}
}

// Count is one entry of a frequency table.
type Count struct {
	Name       string  `json:"name"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// Summary describes measurements per cruise.
type Summary struct {
	TotalCampaigns    int     `json:"total_campaigns"`
	TotalMeasurements int     `json:"total_measurements"`
	AvgPerCampaign    float64 `json:"avg_measurements_per_campaign"`
	Distribution      []Count `json:"campaign_distribution"`
	Top               []Count `json:"top_campaigns"`
}

// TopCampaigns bounds Summary.Top.
const TopCampaigns = 10

// Summarize counts measurements per cruise code. Rows without a cruise code
// still count toward TotalMeasurements.
func Summarize(d *dataset.Dataset, cols Columns) (*Summary, error) {
	cruise, err := text(d, cols.Cruise)
	if err != nil {
		return nil, err
	}
	dist := frequencies(cruise, d.Len())
	if len(dist) == 0 {
		return nil, errs.Newf(errs.InsufficientData, errs.StageAnalysis, "no %s values", cols.Cruise)
	}
	s := &Summary{
		TotalCampaigns:    len(dist),
		TotalMeasurements: d.Len(),
		AvgPerCampaign:    float64(d.Len()) / float64(len(dist)),
		Distribution:      dist,
		Top:               dist[:min(TopCampaigns, len(dist))],
	}
	return s, nil
}

// Usage describes how measurements split across vessels.
type Usage struct {
	TotalVessels  int     `json:"total_vessels"`
	Vessels       []Count `json:"vessels"`
	Dominant      string  `json:"dominant_vessel"`
	DominantShare float64 `json:"dominant_vessel_pct"`
}

// VesselUsage counts measurements per vessel. Percentages are over every
// row of d, rounded to one decimal.
func VesselUsage(d *dataset.Dataset, cols Columns) (*Usage, error) {
	vessel, err := text(d, cols.Vessel)
	if err != nil {
		return nil, err
	}
	counts := frequencies(vessel, d.Len())
	if len(counts) == 0 {
		return nil, errs.Newf(errs.InsufficientData, errs.StageAnalysis, "no %s values", cols.Vessel)
	}
	return &Usage{
		TotalVessels:  len(counts),
		Vessels:       counts,
		Dominant:      counts[0].Name,
		DominantShare: counts[0].Percentage,
	}, nil
}

// YearCount is the effort of one calendar year.
type YearCount struct {
	Year         int `json:"year"`
	Campaigns    int `json:"campaigns"`
	Measurements int `json:"measurements"`
}

// Timeline describes campaign activity through time.
type Timeline struct {
	Start                 time.Time   `json:"start"`
	End                   time.Time   `json:"end"`
	YearsActive           int         `json:"years_active"`
	Years                 []YearCount `json:"years"`
	AvgCampaignsPerYear   float64     `json:"avg_campaigns_per_year"`
	MostActiveYear        int         `json:"most_active_year"`
	MostActiveYearCruises int         `json:"campaigns_in_most_active_year"`
}

// BuildTimeline groups dated rows by year. YearsActive spans first to last
// year inclusive, gaps included; the average is over years with data.
func BuildTimeline(d *dataset.Dataset, cols Columns) (*Timeline, error) {
	cruise, err := text(d, cols.Cruise)
	if err != nil {
		return nil, err
	}
	dates, err := d.Times(cols.Date)
	if err != nil {
		return nil, err
	}
	cruises := map[int]map[string]bool{}
	rows := map[int]int{}
	tl := &Timeline{}
	for i, t := range dates {
		if t.IsZero() {
			continue
		}
		if tl.Start.IsZero() || t.Before(tl.Start) {
			tl.Start = t
		}
		if t.After(tl.End) {
			tl.End = t
		}
		y := t.Year()
		rows[y]++
		if cruises[y] == nil {
			cruises[y] = map[string]bool{}
		}
		if cruise[i] != "" {
			cruises[y][cruise[i]] = true
		}
	}
	if len(rows) == 0 {
		return nil, errs.Newf(errs.InsufficientData, errs.StageAnalysis, "no valid %s values", cols.Date)
	}
	years := make([]int, 0, len(rows))
	for y := range rows {
		years = append(years, y)
	}
	sort.Ints(years)
	var total int
	for _, y := range years {
		yc := YearCount{Year: y, Campaigns: len(cruises[y]), Measurements: rows[y]}
		tl.Years = append(tl.Years, yc)
		total += yc.Campaigns
		if yc.Campaigns > tl.MostActiveYearCruises || tl.MostActiveYear == 0 {
			tl.MostActiveYear, tl.MostActiveYearCruises = y, yc.Campaigns
		}
	}
	tl.YearsActive = years[len(years)-1] - years[0] + 1
	tl.AvgCampaignsPerYear = float64(total) / float64(len(years))
	return tl, nil
}

// VesselStats is the per-vessel cross tabulation.
type VesselStats struct {
	Vessel         string  `json:"vessel"`
	Campaigns      int     `json:"campaigns"`
	Measurements   int     `json:"measurements"`
	AvgPerCampaign float64 `json:"avg_measurements_per_campaign"`
	YearsActive    int     `json:"years_active,omitempty"`
	FirstYear      int     `json:"first_year,omitempty"`
	LastYear       int     `json:"last_year,omitempty"`
}

// VesselCampaigns tabulates cruises and measurements per vessel, busiest
// vessel first. Year fields are filled when d carries a YEAR column.
func VesselCampaigns(d *dataset.Dataset, cols Columns) ([]VesselStats, error) {
	vessel, err := text(d, cols.Vessel)
	if err != nil {
		return nil, err
	}
	cruise, err := text(d, cols.Cruise)
	if err != nil {
		return nil, err
	}
	years, _ := d.Float(dataset.ColYear)

	type acc struct {
		rows    int
		cruises map[string]bool
		years   map[int]bool
	}
	by := map[string]*acc{}
	for i, v := range vessel {
		if v == "" {
			continue
		}
		a := by[v]
		if a == nil {
			a = &acc{cruises: map[string]bool{}, years: map[int]bool{}}
			by[v] = a
		}
		a.rows++
		if cruise[i] != "" {
			a.cruises[cruise[i]] = true
		}
		if years != nil && !math.IsNaN(years[i]) {
			a.years[int(years[i])] = true
		}
	}
	out := make([]VesselStats, 0, len(by))
	for v, a := range by {
		s := VesselStats{Vessel: v, Campaigns: len(a.cruises), Measurements: a.rows, AvgPerCampaign: math.NaN()}
		if s.Campaigns > 0 {
			s.AvgPerCampaign = float64(a.rows) / float64(s.Campaigns)
		}
		for y := range a.years {
			if s.FirstYear == 0 || y < s.FirstYear {
				s.FirstYear = y
			}
			if y > s.LastYear {
				s.LastYear = y
			}
		}
		s.YearsActive = len(a.years)
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Measurements != out[j].Measurements {
			return out[i].Measurements > out[j].Measurements
		}
		return out[i].Vessel < out[j].Vessel
	})
	return out, nil
}

// Matrix holds distinct campaign counts per vessel (rows) and year
// (columns); absent combinations are 0.
type Matrix struct {
	Vessels []string `json:"vessels"`
	Years   []int    `json:"years"`
	Counts  [][]int  `json:"counts"`
}

// VesselYearMatrix counts distinct cruises per vessel and year.
func VesselYearMatrix(d *dataset.Dataset, cols Columns) (*Matrix, error) {
	vessel, err := text(d, cols.Vessel)
	if err != nil {
		return nil, err
	}
	cruise, err := text(d, cols.Cruise)
	if err != nil {
		return nil, err
	}
	years, err := d.Float(dataset.ColYear)
	if err != nil {
		return nil, err
	}
	type cell struct {
		vessel string
		year   int
	}
	seen := map[cell]map[string]bool{}
	vset := map[string]bool{}
	yset := map[int]bool{}
	for i := range vessel {
		if vessel[i] == "" || cruise[i] == "" || math.IsNaN(years[i]) {
			continue
		}
		c := cell{vessel[i], int(years[i])}
		if seen[c] == nil {
			seen[c] = map[string]bool{}
		}
		seen[c][cruise[i]] = true
		vset[c.vessel] = true
		yset[c.year] = true
	}
	m := &Matrix{Vessels: keys(vset), Years: make([]int, 0, len(yset))}
	for y := range yset {
		m.Years = append(m.Years, y)
	}
	sort.Ints(m.Years)
	m.Counts = make([][]int, len(m.Vessels))
	for i, v := range m.Vessels {
		m.Counts[i] = make([]int, len(m.Years))
		for j, y := range m.Years {
			m.Counts[i][j] = len(seen[cell{v, y}])
		}
	}
	return m, nil
}

func text(d *dataset.Dataset, col string) ([]string, error) {
	if !d.Has(col) {
		return nil, errs.Newf(errs.SchemaMismatch, errs.StageAnalysis, "column %q not found", col).WithDetail("column", col)
	}
	return d.Text(col)
}

// frequencies counts non-empty values, most frequent first and ties by name.
// Percentages are over total and rounded to one decimal.
func frequencies(vals []string, total int) []Count {
	n := map[string]int{}
	for _, v := range vals {
		if v != "" {
			n[v]++
		}
	}
	out := make([]Count, 0, len(n))
	for name, c := range n {
		out = append(out, Count{Name: name, Count: c, Percentage: math.Round(float64(c)*1000/float64(total)) / 10})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func keys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
