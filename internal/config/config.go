package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/KaramelBytes/seascope/internal/errs"
	"github.com/KaramelBytes/seascope/internal/logging"
	"github.com/KaramelBytes/seascope/internal/utils"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config is the full seascope configuration.
type Config struct {
	Data       Data           `mapstructure:"data" yaml:"data"`
	Columns    Columns        `mapstructure:"columns" yaml:"columns"`
	Thresholds Thresholds     `mapstructure:"thresholds" yaml:"thresholds"`
	Analysis   Analysis       `mapstructure:"analysis" yaml:"analysis"`
	Display    Display        `mapstructure:"display" yaml:"display"`
	Log        logging.Config `mapstructure:"log" yaml:"log"`
	Server     Server         `mapstructure:"server" yaml:"server"`
}

// Data describes where the dataset lives and how to read it.
type Data struct {
	// Path is a local file, http(s) URL, s3://bucket/key or gs://bucket/object.
	Path string `mapstructure:"path" yaml:"path"`
	// ShareBase and ShareKey build a share link of the form base?rlkey=key&dl=1.
	ShareBase       string   `mapstructure:"share_base" yaml:"share_base"`
	ShareKey        string   `mapstructure:"share_key" yaml:"share_key"`
	HTTPTimeoutSec  int      `mapstructure:"http_timeout_sec" yaml:"http_timeout_sec"`
	Delimiter       string   `mapstructure:"delimiter" yaml:"delimiter"`
	RequiredColumns []string `mapstructure:"required_columns" yaml:"required_columns"`
	GCSEndpoint     string   `mapstructure:"gcs_endpoint" yaml:"gcs_endpoint"`
	S3Region        string   `mapstructure:"s3_region" yaml:"s3_region"`
}

// Columns maps logical fields to dataset header names.
type Columns struct {
	Temperature string `mapstructure:"temperature" yaml:"temperature"`
	Salinity    string `mapstructure:"salinity" yaml:"salinity"`
	Depth       string `mapstructure:"depth" yaml:"depth"`
	Pressure    string `mapstructure:"pressure" yaml:"pressure"`
	Oxygen      string `mapstructure:"oxygen" yaml:"oxygen"`
	Density     string `mapstructure:"density" yaml:"density"`
	Nitrate     string `mapstructure:"nitrate" yaml:"nitrate"`
	Phosphate   string `mapstructure:"phosphate" yaml:"phosphate"`
	Silicate    string `mapstructure:"silicate" yaml:"silicate"`
	Date        string `mapstructure:"date" yaml:"date"`
	Vessel      string `mapstructure:"vessel" yaml:"vessel"`
	Cruise      string `mapstructure:"cruise" yaml:"cruise"`
	Station     string `mapstructure:"station" yaml:"station"`
	Latitude    string `mapstructure:"latitude" yaml:"latitude"`
	Longitude   string `mapstructure:"longitude" yaml:"longitude"`
}

// Thresholds holds classification and detection limits.
type Thresholds struct {
	AtlanticMax      float64 `mapstructure:"atlantic_max" yaml:"atlantic_max"`
	MediterraneanMin float64 `mapstructure:"mediterranean_min" yaml:"mediterranean_min"`
	OutlierIQR       float64 `mapstructure:"outlier_iqr" yaml:"outlier_iqr"`
	ZScore           float64 `mapstructure:"zscore" yaml:"zscore"`
	Hypoxia          float64 `mapstructure:"hypoxia" yaml:"hypoxia"`
}

// Analysis holds defaults for the statistical routines.
type Analysis struct {
	Clusters          int    `mapstructure:"clusters" yaml:"clusters"`
	Components        int    `mapstructure:"components" yaml:"components"`
	CorrelationMethod string `mapstructure:"correlation_method" yaml:"correlation_method"`
	MinPeriods        int    `mapstructure:"min_periods" yaml:"min_periods"`
	Seed              int64  `mapstructure:"seed" yaml:"seed"`
	Restarts          int    `mapstructure:"restarts" yaml:"restarts"`
	Period            string `mapstructure:"period" yaml:"period"`
	Aggregation       string `mapstructure:"aggregation" yaml:"aggregation"`
}

// Display holds presentation preferences passed through to renderers.
type Display struct {
	Palette     []string `mapstructure:"palette" yaml:"palette"`
	Colorscales []string `mapstructure:"colorscales" yaml:"colorscales"`
	DefaultVars []string `mapstructure:"default_vars" yaml:"default_vars"`
	ExcludeVars []string `mapstructure:"exclude_vars" yaml:"exclude_vars"`
}

// Server configures `seascope serve`.
type Server struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// Numeric returns the configured columns that are always coerced to numbers.
func (c Columns) Numeric() []string {
	return nonEmpty(c.Temperature, c.Salinity, c.Depth, c.Pressure, c.Oxygen, c.Density,
		c.Nitrate, c.Phosphate, c.Silicate, c.Latitude, c.Longitude)
}

// Categorical returns the identifier columns that stay as text.
func (c Columns) Categorical() []string {
	return nonEmpty(c.Vessel, c.Cruise, c.Station)
}

func nonEmpty(vals ...string) []string {
	out := make([]string, 0, len(vals))
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return out
}

// Location resolves the dataset location, preferring a configured share link.
func (d Data) Location() string {
	if d.ShareBase != "" && d.ShareKey != "" {
		return fmt.Sprintf("%s?rlkey=%s&dl=1", d.ShareBase, d.ShareKey)
	}
	return d.Path
}

// Validate checks every enumerated or bounded field.
func (c *Config) Validate() error {
	bad := func(format string, args ...any) error {
		return errs.Newf(errs.InvalidParameter, errs.StageConfig, format, args...)
	}
	t := c.Thresholds
	if t.AtlanticMax > t.MediterraneanMin {
		return bad("thresholds.atlantic_max (%g) exceeds thresholds.mediterranean_min (%g)", t.AtlanticMax, t.MediterraneanMin)
	}
	if t.OutlierIQR <= 0 {
		return bad("thresholds.outlier_iqr must be > 0, got %g", t.OutlierIQR)
	}
	if t.ZScore <= 0 {
		return bad("thresholds.zscore must be > 0, got %g", t.ZScore)
	}
	if t.Hypoxia <= 0 {
		return bad("thresholds.hypoxia must be > 0, got %g", t.Hypoxia)
	}
	a := c.Analysis
	if a.Clusters < 2 {
		return bad("analysis.clusters must be >= 2, got %d", a.Clusters)
	}
	if a.Components < 1 {
		return bad("analysis.components must be >= 1, got %d", a.Components)
	}
	if a.MinPeriods < 0 {
		return bad("analysis.min_periods must be >= 0, got %d", a.MinPeriods)
	}
	if a.Restarts < 1 {
		return bad("analysis.restarts must be >= 1, got %d", a.Restarts)
	}
	switch a.CorrelationMethod {
	case "pearson", "spearman":
	default:
		return bad("analysis.correlation_method must be pearson or spearman, got %q", a.CorrelationMethod)
	}
	switch a.Period {
	case "year", "month", "year-month":
	default:
		return bad("analysis.period must be year, month or year-month, got %q", a.Period)
	}
	switch a.Aggregation {
	case "mean", "median", "sum":
	default:
		return bad("analysis.aggregation must be mean, median or sum, got %q", a.Aggregation)
	}
	if c.Data.HTTPTimeoutSec <= 0 {
		return bad("data.http_timeout_sec must be > 0, got %d", c.Data.HTTPTimeoutSec)
	}
	switch c.Data.Delimiter {
	case "", ",", ";", "tab", "\t", "|":
	default:
		return bad("data.delimiter must be ',', ';', '|' or 'tab', got %q", c.Data.Delimiter)
	}
	return nil
}

// Dir returns ~/.seascope.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".seascope"), nil
}

// Save writes c as YAML to cfgFile, or ~/.seascope/config.yaml when cfgFile is empty.
func Save(c *Config, cfgFile string) error {
	path := cfgFile
	if path == "" {
		dir, err := Dir()
		if err != nil {
			return err
		}
		if err := utils.EnsureDir(dir); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
		path = filepath.Join(dir, "config.yaml")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := utils.SafeWriteFile(path, b); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data.path", "data/ocean_survey.csv")
	v.SetDefault("data.http_timeout_sec", 30)
	v.SetDefault("data.delimiter", "")
	v.SetDefault("data.share_base", "")
	v.SetDefault("data.share_key", "")
	v.SetDefault("data.gcs_endpoint", "")
	v.SetDefault("data.s3_region", "")
	v.SetDefault("data.required_columns", []string{
		"CTD TEMPERATURE (ITS-90)", "CTD SALINITY (PSS-78)", "SAMPLING DEPTH", "DATE",
	})

	v.SetDefault("columns.temperature", "CTD TEMPERATURE (ITS-90)")
	v.SetDefault("columns.salinity", "CTD SALINITY (PSS-78)")
	v.SetDefault("columns.depth", "SAMPLING DEPTH")
	v.SetDefault("columns.pressure", "PRESSURE")
	v.SetDefault("columns.oxygen", "DISSOLVED OXYGEN")
	v.SetDefault("columns.density", "DENSITY (sq) (sigma-theta)")
	v.SetDefault("columns.nitrate", "NITRATE")
	v.SetDefault("columns.phosphate", "PHOSPHATE")
	v.SetDefault("columns.silicate", "SILICATE")
	v.SetDefault("columns.date", "DATE")
	v.SetDefault("columns.vessel", "VESSEL")
	v.SetDefault("columns.cruise", "CRUISE-CODE")
	v.SetDefault("columns.station", "STATION-ID")
	v.SetDefault("columns.latitude", "LATITUDE")
	v.SetDefault("columns.longitude", "LONGITUDE")

	v.SetDefault("thresholds.atlantic_max", 37.0)
	v.SetDefault("thresholds.mediterranean_min", 37.5)
	v.SetDefault("thresholds.outlier_iqr", 1.5)
	v.SetDefault("thresholds.zscore", 3.0)
	v.SetDefault("thresholds.hypoxia", 60.0)

	v.SetDefault("analysis.clusters", 3)
	v.SetDefault("analysis.components", 3)
	v.SetDefault("analysis.correlation_method", "spearman")
	v.SetDefault("analysis.min_periods", 30)
	v.SetDefault("analysis.seed", 42)
	v.SetDefault("analysis.restarts", 10)
	v.SetDefault("analysis.period", "month")
	v.SetDefault("analysis.aggregation", "mean")

	v.SetDefault("display.palette", []string{"#0d3b66", "#faf0ca", "#f4d35e", "#ee964b", "#f95738", "#8c1c13"})
	v.SetDefault("display.colorscales", []string{"Viridis", "Plasma", "Inferno"})
	v.SetDefault("display.default_vars", []string{
		"CTD TEMPERATURE (ITS-90)", "CTD SALINITY (PSS-78)", "DISSOLVED OXYGEN", "NITRATE", "PHOSPHATE", "SILICATE",
	})
	v.SetDefault("display.exclude_vars", []string{"YEAR", "MONTH"})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("server.addr", ":8080")
}

// Default returns the built-in configuration without reading files or env.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var c Config
	_ = v.Unmarshal(&c)
	return &c
}

// Load loads configuration from defaults, the config file, and SEASCOPE_* env vars.
// Precedence: env > config file > defaults.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SEASCOPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, errs.Wrap(err, errs.InvalidParameter, errs.StageConfig, "read config "+cfgFile)
		}
	} else {
		dir, err := Dir()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		// optional
		_ = v.ReadInConfig()
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}
