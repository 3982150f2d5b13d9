package app

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/KaramelBytes/seascope/internal/config"
	"github.com/KaramelBytes/seascope/internal/errs"
	"github.com/KaramelBytes/seascope/internal/metrics"
	"github.com/KaramelBytes/seascope/internal/ocean"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const header = "DATE,VESSEL,CRUISE-CODE,STATION-ID,SAMPLING DEPTH,CTD TEMPERATURE (ITS-90),CTD SALINITY (PSS-78),DISSOLVED OXYGEN,NITRATE,PHOSPHATE,SILICATE"

// writeSurvey writes 48 monthly casts over 2018-2021 with a warming trend
// of 0.1 degrees per year and salinity rising with depth.
func writeSurvey(t *testing.T) string {
	t.Helper()
	var b strings.Builder
	b.WriteString(header + "\n")
	for i := 0; i < 48; i++ {
		year := 2018 + i/12
		month := i%12 + 1
		vessel := "Sarmiento de Gamboa"
		if i%3 == 0 {
			vessel = "Ramon Margalef"
		}
		depth := float64(10 + (i%6)*60)
		temp := 18 - depth/40 + 0.1*float64(year-2018)
		sal := 36.2 + depth/300
		oxygen := 220 - depth/2
		nitrate := 1 + depth/40
		fmt.Fprintf(&b, "%d-%02d-15,%s,GIFT%d%02d,ST%d,%.0f,%.3f,%.3f,%.1f,%.2f,%.3f,%.2f\n",
			year, month, vessel, year, (month+2)/3, i%4, depth, temp, sal, oxygen, nitrate, nitrate/16, nitrate*1.2)
	}
	path := filepath.Join(t.TempDir(), "survey.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return path
}

func newApp(t *testing.T) *App {
	t.Helper()
	cfg := config.Default()
	cfg.Data.Path = writeSurvey(t)
	return New(cfg, metrics.New(), nil)
}

func TestOverview(t *testing.T) {
	a := newApp(t)
	ov, err := a.Overview(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 48, ov.Summary.Observations)
	assert.Equal(t, 2, ov.Summary.Vessels)
	assert.Equal(t, 16, ov.Summary.Campaigns)
	assert.NotEmpty(t, ov.DatasetID)
	assert.Equal(t, 1, a.Loader.Cache().Len())
}

func TestWaterMasses(t *testing.T) {
	a := newApp(t)
	wm, err := a.WaterMasses(context.Background(), ocean.DefaultAtlanticMax, ocean.DefaultMediterraneanMin)
	require.NoError(t, err)
	assert.Equal(t, 48, wm.Labeled)
	assert.Equal(t, 0, wm.Unlabeled)
	var pct float64
	for _, g := range wm.Groups {
		pct += g.Percentage
	}
	assert.InDelta(t, 100, pct, 1e-9)

	_, err = a.WaterMasses(context.Background(), 38, 37)
	assert.True(t, errs.IsKind(err, errs.InvalidParameter))
}

func TestTrendAndTemporal(t *testing.T) {
	a := newApp(t)
	ctx := context.Background()
	tr, err := a.Trend(ctx, "CTD TEMPERATURE (ITS-90)")
	require.NoError(t, err)
	assert.InDelta(t, 0.1, tr.Slope, 1e-9)
	assert.Equal(t, "increasing", tr.Direction)

	buckets, err := a.Temporal(ctx, "CTD TEMPERATURE (ITS-90)", "year", "mean")
	require.NoError(t, err)
	assert.Len(t, buckets, 4)

	_, err = a.Temporal(ctx, "CTD TEMPERATURE (ITS-90)", "decade", "mean")
	assert.True(t, errs.IsKind(err, errs.InvalidParameter))
}

func TestNutrientsAndHypoxia(t *testing.T) {
	a := newApp(t)
	ctx := context.Background()
	n, err := a.Nutrients(ctx)
	require.NoError(t, err)
	require.Len(t, n.Ratios, 3)
	assert.InDelta(t, 0, n.NPDeviation, 0.05)

	h, err := a.Hypoxia(ctx, 60)
	require.NoError(t, err)
	assert.Equal(t, 48, h.Measured)
	assert.Equal(t, 0, h.Count)
}

func TestProfileComputesDensity(t *testing.T) {
	a := newApp(t)
	p, err := a.Profile(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, ocean.ColDensity, p.DensityColumn)
	assert.Greater(t, p.Stratification, 0.0)
	assert.True(t, math.IsNaN(p.Points[0].Gradient))
}

func TestMultivariate(t *testing.T) {
	a := newApp(t)
	ctx := context.Background()
	p, err := a.PCA(ctx, nil, 2)
	require.NoError(t, err)
	assert.Len(t, p.Explained, 2)

	c, err := a.Cluster(ctx, nil, 3)
	require.NoError(t, err)
	assert.Len(t, c.Labels, 48)

	_, err = a.Cluster(ctx, nil, 1)
	assert.True(t, errs.IsKind(err, errs.InvalidParameter))
}

func TestCampaignsAndVessels(t *testing.T) {
	a := newApp(t)
	ctx := context.Background()
	c, err := a.Campaigns(ctx)
	require.NoError(t, err)
	assert.Equal(t, 16, c.Summary.TotalCampaigns)
	assert.Equal(t, "Sarmiento de Gamboa", c.Usage.Dominant)
	require.NotNil(t, c.Timeline)
	assert.Equal(t, 4, c.Timeline.YearsActive)

	v, err := a.Vessels(ctx)
	require.NoError(t, err)
	assert.Len(t, v.Vessels, 2)
	assert.Equal(t, []int{2018, 2019, 2020, 2021}, v.Matrix.Years)
}

func TestReportMarkdown(t *testing.T) {
	a := newApp(t)
	r, err := a.Report(context.Background(), nil)
	require.NoError(t, err)
	md := r.Markdown()
	assert.Contains(t, md, "[WATER MASSES]")
	assert.Contains(t, md, "Observations: 48")
}

func TestMissingSourceIsUnavailable(t *testing.T) {
	cfg := config.Default()
	cfg.Data.Path = filepath.Join(t.TempDir(), "absent.csv")
	_, err := New(cfg, nil, nil).Overview(context.Background())
	assert.True(t, errs.IsKind(err, errs.SourceUnavailable))
}

func TestInvalidParametersFailBeforeLoad(t *testing.T) {
	cfg := config.Default()
	cfg.Data.Path = filepath.Join(t.TempDir(), "absent.csv")
	a := New(cfg, nil, nil)
	ctx := context.Background()

	_, err := a.PCA(ctx, nil, 0)
	assert.True(t, errs.IsKind(err, errs.InvalidParameter), "pca: %v", err)
	_, err = a.PCA(ctx, []string{"temperature", "salinity"}, 3)
	assert.True(t, errs.IsKind(err, errs.InvalidParameter), "pca: %v", err)
	_, err = a.Hypoxia(ctx, 0)
	assert.True(t, errs.IsKind(err, errs.InvalidParameter), "hypoxia: %v", err)
	_, err = a.Anomalies(ctx, "temperature", math.NaN())
	assert.True(t, errs.IsKind(err, errs.InvalidParameter), "anomalies: %v", err)
	_, err = a.Outliers(ctx, "temperature", -1)
	assert.True(t, errs.IsKind(err, errs.InvalidParameter), "outliers: %v", err)

	_, err = a.Hypoxia(ctx, 60)
	assert.True(t, errs.IsKind(err, errs.SourceUnavailable), "hypoxia: %v", err)
}
