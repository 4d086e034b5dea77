package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Census    CensusConfig    `yaml:"census" mapstructure:"census"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Incidents IncidentsConfig `yaml:"incidents" mapstructure:"incidents"`
	Tracts    TractsConfig    `yaml:"tracts" mapstructure:"tracts"`
	Export    ExportConfig    `yaml:"export" mapstructure:"export"`
	Fetch     FetchConfig     `yaml:"fetch" mapstructure:"fetch"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// CensusConfig scopes the ACS fetch: one state, a set of counties, one vintage.
type CensusConfig struct {
	APIKey   string   `yaml:"api_key" mapstructure:"api_key"`
	Year     int      `yaml:"year" mapstructure:"year"`
	State    string   `yaml:"state" mapstructure:"state"`
	Counties []string `yaml:"counties" mapstructure:"counties"`
	BaseURL  string   `yaml:"base_url" mapstructure:"base_url"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// IncidentsConfig locates the shooting-incident extract.
type IncidentsConfig struct {
	CSVPath string `yaml:"csv_path" mapstructure:"csv_path"`
	URL     string `yaml:"url" mapstructure:"url"`
}

// TractsConfig locates the TIGER/Line tract boundary shapefile.
type TractsConfig struct {
	ShapefilePath string `yaml:"shapefile_path" mapstructure:"shapefile_path"`
}

// ExportConfig configures the GIS export.
type ExportConfig struct {
	CSVPath     string `yaml:"csv_path" mapstructure:"csv_path"`
	XLSXPath    string `yaml:"xlsx_path" mapstructure:"xlsx_path"`
	BracketYAML string `yaml:"bracket_yaml" mapstructure:"bracket_yaml"`
}

// FetchConfig configures the HTTP transport.
type FetchConfig struct {
	UserAgent      string  `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs    int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries     int     `yaml:"max_retries" mapstructure:"max_retries"`
	RatePerSec     float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	MaxConcurrency int     `yaml:"max_concurrency" mapstructure:"max_concurrency"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// nycCounties is the default county scope: the five boroughs.
// 005 Bronx, 047 Kings, 061 New York, 081 Queens, 085 Richmond.
var nycCounties = []string{"005", "047", "061", "081", "085"}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("ICEMAPPER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("census.year", 2018)
	v.SetDefault("census.state", "36")
	v.SetDefault("census.counties", nycCounties)
	v.SetDefault("census.base_url", "https://api.census.gov/data")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "icemapper.db")
	v.SetDefault("export.csv_path", "out/tract_indices.csv")
	v.SetDefault("fetch.user_agent", "icemapper/1.0")
	v.SetDefault("fetch.timeout_secs", 30)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.rate_per_sec", 5)
	v.SetDefault("fetch.max_concurrency", 3)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
