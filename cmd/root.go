package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/KaramelBytes/seascope/internal/app"
	cfgpkg "github.com/KaramelBytes/seascope/internal/config"
	"github.com/KaramelBytes/seascope/internal/logging"
	"github.com/KaramelBytes/seascope/internal/render"
	"github.com/KaramelBytes/seascope/internal/utils"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Global flags
	cfgFile    string
	debug      bool
	flagData   string
	flagSheet  string
	flagFormat string
	flagOutput string

	// Loaded configuration
	cfg *cfgpkg.Config
)

var rootCmd = &cobra.Command{
	Use:   "seascope",
	Short: "Seascope: explore oceanographic survey data from the terminal",
	Long: `Seascope loads CTD and bottle survey data (CSV, TSV or XLSX; local, HTTP, S3 or GCS),
classifies water masses, and computes statistics, trends, outliers, campaign effort,
PCA and clustering. Results render as tables, Markdown, CSV or JSON, or are served over HTTP.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute is the entry point called by main.main()
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		os.Exit(1)
	}
	_ = logging.Sync()
}

func init() {
	cobra.OnInitialize(loadConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.seascope/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&flagData, "data", "", "dataset location: path, http(s)://, s3:// or gs:// (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flagSheet, "sheet", "", "XLSX: worksheet name (default first sheet)")
	rootCmd.PersistentFlags().StringVarP(&flagFormat, "format", "f", "table", "output format: table | markdown | csv | json")
	rootCmd.PersistentFlags().StringVarP(&flagOutput, "output", "o", "", "write output to this file instead of stdout")
}

func loadConfig() {
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		// Non-fatal: config commands must still run
		fmt.Fprintf(os.Stderr, "⚠ Warning: failed to load config: %v\n", err)
		cfg = nil
	} else {
		cfg = c
	}

	lc := logging.Config{Level: "info"}
	if cfg != nil {
		lc = cfg.Log
	}
	if debug {
		lc.Level = "debug"
	}
	if err := logging.Init(lc); err != nil {
		fmt.Fprintf(os.Stderr, "⚠ Warning: logging disabled: %v\n", err)
	}
}

// newApp builds the application from the loaded config and global flags.
func newApp(options ...app.Option) (*app.App, error) {
	if cfg == nil {
		return nil, errors.New("no configuration loaded (see `seascope config init`)")
	}
	options = append([]app.Option{app.WithLocation(flagData), app.WithSheet(flagSheet)}, options...)
	a := app.New(cfg, nil, logging.Named("app"), options...)
	logging.Debug("dataset location", zap.String("data", a.Location()))
	return a, nil
}

func outputFormat() (render.Format, error) {
	return render.ParseFormat(flagFormat)
}

// emit writes v as JSON, or the tables in the selected text format, to
// --output or stdout.
func emit(cmd *cobra.Command, v any, tables ...*render.Table) error {
	f, err := outputFormat()
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if f == render.FormatJSON {
		if err := render.JSON(&buf, v); err != nil {
			return err
		}
	} else {
		for i, t := range tables {
			if i > 0 {
				buf.WriteString("\n")
			}
			if err := t.Write(&buf, f); err != nil {
				return err
			}
		}
	}
	return writeOut(cmd, buf.Bytes(), "results")
}

func writeOut(cmd *cobra.Command, b []byte, what string) error {
	if flagOutput == "" {
		_, err := cmd.OutOrStdout().Write(b)
		return err
	}
	if err := utils.WriteOutput(flagOutput, b); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote %s to %s\n", what, flagOutput)
	return nil
}

// kv renders a two-column property table.
func kv(title string, pairs ...any) *render.Table {
	t := &render.Table{Title: title, Header: []string{"Metric", "Value"}}
	for i := 0; i+1 < len(pairs); i += 2 {
		t.Append(pairs[i], pairs[i+1])
	}
	return t
}
