// Package app wires configuration, the dataset loader and the analyses
// together for the CLI and the HTTP server.
package app

import (
	"context"
	"math"
	"time"

	"github.com/KaramelBytes/seascope/internal/analysis"
	"github.com/KaramelBytes/seascope/internal/campaign"
	"github.com/KaramelBytes/seascope/internal/config"
	"github.com/KaramelBytes/seascope/internal/dataset"
	"github.com/KaramelBytes/seascope/internal/errs"
	"github.com/KaramelBytes/seascope/internal/metrics"
	"github.com/KaramelBytes/seascope/internal/multivar"
	"github.com/KaramelBytes/seascope/internal/ocean"
	"go.uber.org/zap"
)

// App serves analyses over the configured dataset.
type App struct {
	Cfg     *config.Config
	Loader  *dataset.Loader
	Metrics *metrics.Metrics
	Log     *zap.Logger

	location string
	sheet    string
	sources  *dataset.Registry
}

// Option customizes New.
type Option func(*App)

// WithRegistry replaces the default source registry.
func WithRegistry(r *dataset.Registry) Option { return func(a *App) { a.sources = r } }

// WithSheet selects the worksheet of spreadsheet sources.
func WithSheet(sheet string) Option { return func(a *App) { a.sheet = sheet } }

// WithLocation overrides the configured dataset location.
func WithLocation(loc string) Option {
	return func(a *App) {
		if loc != "" {
			a.location = loc
		}
	}
}

// New builds an App reading cfg.Data.Location(). m may be nil.
func New(cfg *config.Config, m *metrics.Metrics, log *zap.Logger, options ...Option) *App {
	if log == nil {
		log = zap.NewNop()
	}
	a := &App{Cfg: cfg, Metrics: m, Log: log, location: cfg.Data.Location()}
	for _, o := range options {
		o(a)
	}
	if a.sources == nil {
		a.sources = dataset.DefaultRegistry(SourceOptions(cfg))
	}
	opts := DatasetOptions(cfg)
	opts.Sheet = a.sheet
	var rec dataset.Recorder
	if m != nil {
		rec = m
	}
	a.Loader = dataset.NewLoader(opts, a.sources, dataset.NewCache(rec), dataset.WithRecorder(rec), dataset.WithLogger(log))
	return a
}

// DatasetOptions derives parsing options from the column mapping.
func DatasetOptions(cfg *config.Config) dataset.Options {
	return dataset.Options{
		Delimiter:       dataset.ParseDelimiter(cfg.Data.Delimiter),
		DateColumn:      cfg.Columns.Date,
		NumericColumns:  cfg.Columns.Numeric(),
		TextColumns:     cfg.Columns.Categorical(),
		RequiredColumns: cfg.Data.RequiredColumns,
	}
}

// SourceOptions derives source settings from the data section.
func SourceOptions(cfg *config.Config) dataset.SourceOptions {
	return dataset.SourceOptions{
		HTTPTimeout: time.Duration(cfg.Data.HTTPTimeoutSec) * time.Second,
		S3Region:    cfg.Data.S3Region,
		GCSEndpoint: cfg.Data.GCSEndpoint,
	}
}

// Location is the dataset location in use.
func (a *App) Location() string { return a.location }

// Dataset loads (or returns the cached) dataset.
func (a *App) Dataset(ctx context.Context) (*dataset.Dataset, error) {
	d, err := a.Loader.Load(ctx, a.location)
	if err == nil && a.Metrics != nil {
		a.Metrics.SetRows(d.Len())
	}
	return d, err
}

// Reload drops the cached dataset and reads it again.
func (a *App) Reload(ctx context.Context) (*dataset.Dataset, error) {
	d, err := a.Loader.Reload(ctx, a.location)
	if err == nil && a.Metrics != nil {
		a.Metrics.SetRows(d.Len())
	}
	return d, err
}

// Invalidate drops the cached dataset without reloading.
func (a *App) Invalidate() bool {
	if c := a.Loader.Cache(); c != nil {
		return c.Invalidate(a.location)
	}
	return false
}

func (a *App) identity() dataset.Identity {
	c := a.Cfg.Columns
	return dataset.Identity{Date: c.Date, Vessel: c.Vessel, Cruise: c.Cruise, Station: c.Station}
}

func (a *App) campaignColumns() campaign.Columns {
	c := a.Cfg.Columns
	return campaign.Columns{Vessel: c.Vessel, Cruise: c.Cruise, Date: c.Date}
}

// run loads the dataset and times fn under name.
func run[T any](ctx context.Context, a *App, name string, fn func(*dataset.Dataset) (T, error)) (T, error) {
	var zero T
	d, err := a.Dataset(ctx)
	if err != nil {
		return zero, err
	}
	start := time.Now()
	out, err := fn(d)
	if a.Metrics != nil {
		a.Metrics.ObserveAnalysis(name, time.Since(start), err)
	}
	if err != nil {
		a.Log.Debug("analysis failed", zap.String("analysis", name), zap.Error(err))
		return zero, err
	}
	return out, nil
}

// Overview is the dataset summary with per-column completeness.
type Overview struct {
	Location     string                       `json:"location"`
	DatasetID    string                       `json:"dataset_id"`
	Summary      dataset.Summary              `json:"summary"`
	Completeness []dataset.ColumnCompleteness `json:"completeness"`
}

// Overview summarizes the loaded dataset.
func (a *App) Overview(ctx context.Context) (*Overview, error) {
	return run(ctx, a, "summary", func(d *dataset.Dataset) (*Overview, error) {
		return &Overview{
			Location:     a.location,
			DatasetID:    d.ID,
			Summary:      dataset.Summarize(d, a.identity()),
			Completeness: dataset.Completeness(d),
		}, nil
	})
}

// Describe returns descriptive statistics; no columns means every numeric
// column except YEAR and MONTH.
func (a *App) Describe(ctx context.Context, cols []string) ([]analysis.Summary, error) {
	return run(ctx, a, "describe", func(d *dataset.Dataset) ([]analysis.Summary, error) {
		if len(cols) == 0 {
			cols = a.variables(d)
		}
		return analysis.Describe(d, cols)
	})
}

// variables lists numeric columns minus the configured exclusions.
func (a *App) variables(d *dataset.Dataset) []string {
	exclude := append([]string{dataset.ColYear, dataset.ColMonth}, a.Cfg.Display.ExcludeVars...)
	return d.NumericColumns(exclude...)
}

// Correlate computes the correlation matrix.
func (a *App) Correlate(ctx context.Context, cols []string, method string, minPeriods int) (*analysis.CorrMatrix, error) {
	m, err := analysis.ParseMethod(method)
	if err != nil {
		return nil, err
	}
	return run(ctx, a, "correlate", func(d *dataset.Dataset) (*analysis.CorrMatrix, error) {
		return analysis.Correlate(d, cols, analysis.CorrOptions{Method: m, MinPeriods: minPeriods})
	})
}

// WaterMasses is the classification outcome.
type WaterMasses struct {
	Lower     float64                `json:"lower"`
	Upper     float64                `json:"upper"`
	Labeled   int                    `json:"labeled"`
	Unlabeled int                    `json:"unlabeled"`
	Groups    []analysis.GroupResult `json:"groups"`
}

// WaterMasses classifies every row by salinity and summarizes each mass.
func (a *App) WaterMasses(ctx context.Context, lower, upper float64) (*WaterMasses, error) {
	table, err := ocean.WaterMassRules(lower, upper)
	if err != nil {
		return nil, err
	}
	return run(ctx, a, "watermass", func(d *dataset.Dataset) (*WaterMasses, error) {
		labeled, err := ocean.Classify(d, a.Cfg.Columns.Salinity, table)
		if err != nil {
			return nil, err
		}
		groups, err := ocean.Properties(labeled, ocean.ColWaterMass, table, a.propertyColumns(labeled))
		if err != nil {
			return nil, err
		}
		wm := &WaterMasses{Lower: lower, Upper: upper, Groups: groups}
		for _, g := range groups {
			wm.Labeled += g.Size
		}
		wm.Unlabeled = labeled.Len() - wm.Labeled
		return wm, nil
	})
}

// propertyColumns are the configured default variables present in d, or
// every variable when none are.
func (a *App) propertyColumns(d *dataset.Dataset) []string {
	var cols []string
	for _, c := range a.Cfg.Display.DefaultVars {
		if k, ok := d.KindOf(c); ok && k == dataset.KindNumeric {
			cols = append(cols, c)
		}
	}
	if len(cols) == 0 {
		return a.variables(d)
	}
	return cols
}

// Outliers runs IQR detection on col.
func (a *App) Outliers(ctx context.Context, col string, k float64) (*analysis.OutlierResult, error) {
	if err := positive("IQR multiplier", k); err != nil {
		return nil, err
	}
	return run(ctx, a, "outliers", func(d *dataset.Dataset) (*analysis.OutlierResult, error) {
		return analysis.DetectOutliers(d, col, k)
	})
}

// Anomalies runs z-score detection on col.
func (a *App) Anomalies(ctx context.Context, col string, threshold float64) (*analysis.ZScoreResult, error) {
	if err := positive("z-score threshold", threshold); err != nil {
		return nil, err
	}
	return run(ctx, a, "zscore", func(d *dataset.Dataset) (*analysis.ZScoreResult, error) {
		return analysis.ZScoreAnomalies(d, col, threshold)
	})
}

// Temporal aggregates col by period.
func (a *App) Temporal(ctx context.Context, col, period, agg string) ([]analysis.Bucket, error) {
	p, err := analysis.ParsePeriod(period)
	if err != nil {
		return nil, err
	}
	g, err := analysis.ParseAgg(agg)
	if err != nil {
		return nil, err
	}
	return run(ctx, a, "temporal", func(d *dataset.Dataset) ([]analysis.Bucket, error) {
		return analysis.AggregateTemporal(d, col, p, g)
	})
}

// Seasonal pools col by calendar month across years.
func (a *App) Seasonal(ctx context.Context, col string) ([]analysis.Bucket, error) {
	return run(ctx, a, "seasonal", func(d *dataset.Dataset) ([]analysis.Bucket, error) {
		return analysis.SeasonalStats(d, col)
	})
}

// Trend fits a linear trend to the annual means of col.
func (a *App) Trend(ctx context.Context, col string) (*analysis.Trend, error) {
	return run(ctx, a, "trend", func(d *dataset.Dataset) (*analysis.Trend, error) {
		return analysis.LinearTrend(d, col)
	})
}

// PCA projects cols onto n principal components. The upper bound on n is
// checked once the column list is known.
func (a *App) PCA(ctx context.Context, cols []string, n int) (*multivar.Projection, error) {
	if n < 1 || (len(cols) > 0 && n > len(cols)) {
		return nil, errs.Newf(errs.InvalidParameter, errs.StageAnalysis,
			"components must be between 1 and the number of columns, got %d", n)
	}
	return run(ctx, a, "pca", func(d *dataset.Dataset) (*multivar.Projection, error) {
		if len(cols) == 0 {
			cols = a.propertyColumns(d)
		}
		return multivar.ReduceDimensions(d, cols, n)
	})
}

// Cluster runs k-means on cols.
func (a *App) Cluster(ctx context.Context, cols []string, k int) (*multivar.Clustering, error) {
	if k < 2 {
		return nil, errs.Newf(errs.InvalidParameter, errs.StageAnalysis, "k must be at least 2, got %d", k)
	}
	return run(ctx, a, "cluster", func(d *dataset.Dataset) (*multivar.Clustering, error) {
		if len(cols) == 0 {
			cols = a.propertyColumns(d)
		}
		return multivar.Cluster(d, cols, multivar.KMeansOptions{K: k, Seed: a.Cfg.Analysis.Seed, Restarts: a.Cfg.Analysis.Restarts})
	})
}

// positive rejects zero, negative, NaN and infinite parameters before any
// data is loaded.
func positive(name string, v float64) error {
	if !(v > 0) || math.IsInf(v, 0) {
		return errs.Newf(errs.InvalidParameter, errs.StageAnalysis, "%s must be positive, got %v", name, v)
	}
	return nil
}

// Campaigns bundles the cruise-level analytics.
type Campaigns struct {
	Summary  *campaign.Summary  `json:"summary"`
	Usage    *campaign.Usage    `json:"vessel_usage"`
	Timeline *campaign.Timeline `json:"timeline,omitempty"`
}

// Campaigns reports cruise and vessel effort. The timeline is omitted when
// no row carries a date.
func (a *App) Campaigns(ctx context.Context) (*Campaigns, error) {
	return run(ctx, a, "campaigns", func(d *dataset.Dataset) (*Campaigns, error) {
		cols := a.campaignColumns()
		s, err := campaign.Summarize(d, cols)
		if err != nil {
			return nil, err
		}
		u, err := campaign.VesselUsage(d, cols)
		if err != nil {
			return nil, err
		}
		out := &Campaigns{Summary: s, Usage: u}
		tl, err := campaign.BuildTimeline(d, cols)
		switch {
		case err == nil:
			out.Timeline = tl
		case errs.IsKind(err, errs.InsufficientData):
		default:
			return nil, err
		}
		return out, nil
	})
}

// Vessels is the vessel cross tabulation.
type Vessels struct {
	Vessels []campaign.VesselStats `json:"vessels"`
	Matrix  *campaign.Matrix       `json:"vessel_year"`
}

// Vessels reports per-vessel campaigns and the vessel by year matrix.
func (a *App) Vessels(ctx context.Context) (*Vessels, error) {
	return run(ctx, a, "vessels", func(d *dataset.Dataset) (*Vessels, error) {
		cols := a.campaignColumns()
		stats, err := campaign.VesselCampaigns(d, cols)
		if err != nil {
			return nil, err
		}
		m, err := campaign.VesselYearMatrix(d, cols)
		if err != nil {
			return nil, err
		}
		return &Vessels{Vessels: stats, Matrix: m}, nil
	})
}

// Ratio summarizes one nutrient ratio column.
type Ratio struct {
	Name string `json:"name"`
	analysis.NumSummary
}

// Nutrients holds the stoichiometry summary.
type Nutrients struct {
	Ratios     []Ratio `json:"ratios"`
	RedfieldNP float64 `json:"redfield_np"`
	// NPDeviation is the mean N:P minus the Redfield ratio.
	NPDeviation float64 `json:"np_deviation"`
}

// Nutrients computes the nutrient ratios present in the data.
func (a *App) Nutrients(ctx context.Context) (*Nutrients, error) {
	return run(ctx, a, "nutrients", func(d *dataset.Dataset) (*Nutrients, error) {
		c := a.Cfg.Columns
		out, added, err := ocean.NutrientRatios(d, ocean.NutrientColumns{Nitrate: c.Nitrate, Phosphate: c.Phosphate, Silicate: c.Silicate})
		if err != nil {
			return nil, err
		}
		if len(added) == 0 {
			return nil, errs.New(errs.SchemaMismatch, errs.StageAnalysis, "no nutrient pair available for ratios").
				WithDetail("columns", []string{c.Nitrate, c.Phosphate, c.Silicate})
		}
		n := &Nutrients{RedfieldNP: ocean.RedfieldNP, NPDeviation: math.NaN()}
		for _, name := range added {
			vals, _ := out.Float(name)
			r := Ratio{Name: name, NumSummary: analysis.SummarizeValues(vals)}
			if name == ocean.ColNPRatio {
				n.NPDeviation = r.Mean - ocean.RedfieldNP
			}
			n.Ratios = append(n.Ratios, r)
		}
		return n, nil
	})
}

// Hypoxia flags low-oxygen measurements.
func (a *App) Hypoxia(ctx context.Context, threshold float64) (*ocean.HypoxiaResult, error) {
	if err := positive("hypoxia threshold", threshold); err != nil {
		return nil, err
	}
	return run(ctx, a, "hypoxia", func(d *dataset.Dataset) (*ocean.HypoxiaResult, error) {
		_, res, err := ocean.Hypoxia(d, a.Cfg.Columns.Oxygen, threshold)
		return res, err
	})
}

// Profile is a vertical profile of one variable plus the water-column
// stratification.
type Profile struct {
	Variable       string                `json:"variable"`
	Points         []ocean.GradientPoint `json:"points"`
	DensityColumn  string                `json:"density_column"`
	Stratification float64               `json:"stratification"`
}

// Profile computes the vertical gradient of variable (temperature when
// empty). Density comes from the configured column, or is computed from
// temperature and salinity when the dataset lacks it.
func (a *App) Profile(ctx context.Context, variable string) (*Profile, error) {
	c := a.Cfg.Columns
	if variable == "" {
		variable = c.Temperature
	}
	return run(ctx, a, "profile", func(d *dataset.Dataset) (*Profile, error) {
		pts, err := ocean.VerticalGradient(d, c.Depth, variable)
		if err != nil {
			return nil, err
		}
		p := &Profile{Variable: variable, Points: pts, DensityColumn: c.Density, Stratification: math.NaN()}
		if k, ok := d.KindOf(c.Density); !ok || k != dataset.KindNumeric {
			if d, err = ocean.WithDensity(d, c.Temperature, c.Salinity); err != nil {
				return nil, err
			}
			p.DensityColumn = ocean.ColDensity
		}
		strat, err := ocean.StratificationIndex(d, c.Depth, p.DensityColumn)
		switch {
		case err == nil:
			p.Stratification = strat
		case errs.IsKind(err, errs.InsufficientData):
		default:
			return nil, err
		}
		return p, nil
	})
}

// Report builds the Markdown overview with water-mass groups.
func (a *App) Report(ctx context.Context, cols []string) (*analysis.Report, error) {
	method, err := analysis.ParseMethod(a.Cfg.Analysis.CorrelationMethod)
	if err != nil {
		return nil, err
	}
	return run(ctx, a, "report", func(d *dataset.Dataset) (*analysis.Report, error) {
		opt := analysis.ReportOptions{
			Identity: a.identity(),
			Columns:  cols,
			OutlierK: a.Cfg.Thresholds.OutlierIQR,
			Corr:     analysis.CorrOptions{Method: method, MinPeriods: a.Cfg.Analysis.MinPeriods},
		}
		if len(opt.Columns) == 0 {
			opt.Columns = a.variables(d)
		}
		if d.Has(a.Cfg.Columns.Salinity) {
			table, err := ocean.WaterMassRules(a.Cfg.Thresholds.AtlanticMax, a.Cfg.Thresholds.MediterraneanMin)
			if err != nil {
				return nil, err
			}
			labeled, err := ocean.Classify(d, a.Cfg.Columns.Salinity, table)
			if err != nil {
				return nil, err
			}
			groups, err := ocean.Properties(labeled, ocean.ColWaterMass, table, a.propertyColumns(d))
			if err != nil {
				return nil, err
			}
			opt.GroupLabel, opt.Groups = "WATER MASSES", groups
		}
		return analysis.BuildReport(d, opt)
	})
}

// Columns lists the dataset's columns and their kinds.
func (a *App) Columns(ctx context.Context) ([][2]string, error) {
	d, err := a.Dataset(ctx)
	if err != nil {
		return nil, err
	}
	cols := d.Columns()
	out := make([][2]string, len(cols))
	for i, c := range cols {
		k, _ := d.KindOf(c)
		out[i] = [2]string{c, k.String()}
	}
	return out, nil
}
