package cmd

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/KaramelBytes/seascope/internal/errs"
	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// resetFlags restores every flag to its default so bound variables do not
// leak between invocations of the shared rootCmd.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func runCmd(t *testing.T, args ...string) string {
	t.Helper()
	out, err := execute(t, args...)
	require.NoError(t, err, "command %v failed", args)
	return out
}

// setupHome isolates config under a temp HOME and writes a 48-row survey.
func setupHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)

	var b strings.Builder
	b.WriteString("DATE,VESSEL,CRUISE-CODE,STATION-ID,SAMPLING DEPTH,CTD TEMPERATURE (ITS-90),CTD SALINITY (PSS-78),DISSOLVED OXYGEN,NITRATE,PHOSPHATE,SILICATE\n")
	for i := 0; i < 48; i++ {
		year, month := 2018+i/12, i%12+1
		vessel := "Sarmiento de Gamboa"
		if i%3 == 0 {
			vessel = "Ramon Margalef"
		}
		depth := float64(10 + (i%6)*60)
		nitrate := 1 + depth/40
		fmt.Fprintf(&b, "%d-%02d-15,%s,GIFT%d%02d,ST%d,%.0f,%.3f,%.3f,%.1f,%.2f,%.3f,%.2f\n",
			year, month, vessel, year, (month+2)/3, i%4, depth,
			18-depth/40+0.1*float64(year-2018), 36.2+depth/300, 220-depth/2, nitrate, nitrate/16, nitrate*1.2)
	}
	data := filepath.Join(home, "survey.csv")
	require.NoError(t, os.WriteFile(data, []byte(b.String()), 0o644))

	runCmd(t, "config", "init")
	runCmd(t, "config", "set", "data.path", data)
	return home
}

func TestCLI_ConfigInitSetShow(t *testing.T) {
	home := setupHome(t)
	assert.FileExists(t, filepath.Join(home, ".seascope", "config.yaml"))

	_, err := execute(t, "config", "init")
	assert.Error(t, err)

	out := runCmd(t, "config", "show")
	assert.Contains(t, out, "survey.csv")
	assert.Contains(t, out, "hypoxia: 60")

	_, err = execute(t, "config", "set", "analysis.clusters", "1")
	assert.True(t, errs.IsKind(err, errs.InvalidParameter), "got %v", err)
	_, err = execute(t, "config", "set", "analysis.nope", "1")
	assert.ErrorContains(t, err, "unknown key")
	_, err = execute(t, "config", "set", "analysis.clusters", "many")
	assert.Error(t, err)
}

func TestCLI_ConfigShowMasksShareKey(t *testing.T) {
	home := setupHome(t)
	runCmd(t, "config", "set", "data.share_key", "abcdef123456")

	out := runCmd(t, "config", "show")
	assert.Contains(t, out, "abc****456")
	assert.NotContains(t, out, "abcdef123456")

	saved, err := os.ReadFile(filepath.Join(home, ".seascope", "config.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(saved), "abcdef123456")
}

func TestCLI_SummaryJSON(t *testing.T) {
	setupHome(t)
	out := runCmd(t, "summary", "--format", "json")
	var ov struct {
		Summary struct {
			Observations int `json:"observations"`
			Vessels      int `json:"vessels"`
		} `json:"summary"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &ov), out)
	assert.Equal(t, 48, ov.Summary.Observations)
	assert.Equal(t, 2, ov.Summary.Vessels)
}

func TestCLI_TablesAndFormats(t *testing.T) {
	setupHome(t)

	out := runCmd(t, "watermass")
	assert.Contains(t, out, "Atlantic Inflow")
	assert.Contains(t, out, "48 labeled")

	out = runCmd(t, "describe", "NITRATE", "--format", "csv")
	assert.True(t, strings.HasPrefix(out, "Column,Count"), out)
	assert.Contains(t, out, "NITRATE,48")

	out = runCmd(t, "trend", "--format", "markdown")
	assert.Contains(t, out, "### Trend: CTD TEMPERATURE (ITS-90)")
	assert.Contains(t, out, "increasing")

	out = runCmd(t, "campaigns")
	assert.Contains(t, out, "Sarmiento de Gamboa")

	_, err := execute(t, "summary", "--format", "xml")
	assert.True(t, errs.IsKind(err, errs.InvalidParameter))
}

func TestCLI_AnalyzeWritesReport(t *testing.T) {
	home := setupHome(t)
	report := filepath.Join(home, "report.md")
	out := runCmd(t, "analyze", "-o", report)
	assert.Contains(t, out, "✓ Wrote analysis to")

	b, err := os.ReadFile(report)
	require.NoError(t, err)
	assert.Contains(t, string(b), "Observations: 48")
	assert.Contains(t, string(b), "[WATER MASSES]")
}

func TestCLI_ConfigDrivesDefaults(t *testing.T) {
	setupHome(t)
	runCmd(t, "config", "set", "thresholds.hypoxia", "250")

	out := runCmd(t, "hypoxia", "--format", "json")
	var h struct {
		Threshold float64 `json:"threshold"`
		Count     int     `json:"hypoxic_count"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &h), out)
	assert.Equal(t, 250.0, h.Threshold)
	assert.Equal(t, 48, h.Count)

	out = runCmd(t, "hypoxia", "--threshold", "60", "--format", "json")
	require.NoError(t, json.Unmarshal([]byte(out), &h), out)
	assert.Equal(t, 0, h.Count)
}

func TestCLI_Errors(t *testing.T) {
	home := setupHome(t)

	_, err := execute(t, "cluster", "--k", "1")
	assert.True(t, errs.IsKind(err, errs.InvalidParameter), "got %v", err)

	_, err = execute(t, "outliers", "--column", "PH")
	assert.True(t, errs.IsKind(err, errs.SchemaMismatch), "got %v", err)

	_, err = execute(t, "summary", "--data", filepath.Join(home, "missing.csv"))
	assert.True(t, errs.IsKind(err, errs.SourceUnavailable), "got %v", err)
}
