// Package config handles configuration loading for panelstudy.
// It supports YAML config files with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of every environment override.
const EnvPrefix = "PANELSTUDY"

// Config represents the complete application configuration.
type Config struct {
	Data      DataConfig      `mapstructure:"data"      yaml:"data"`
	Sources   SourcesConfig   `mapstructure:"sources"   yaml:"sources"`
	Retry     RetryConfig     `mapstructure:"retry"     yaml:"retry"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"  yaml:"pipeline"`
	Thin      ThinConfig      `mapstructure:"thin"      yaml:"thin"`
	Dashboard DashboardConfig `mapstructure:"dashboard" yaml:"dashboard"`
	API       APIConfig       `mapstructure:"api"       yaml:"api"`
	Logging   LoggingConfig   `mapstructure:"logging"   yaml:"logging"`
}

// DataConfig describes the on-disk layout. Relative file names resolve
// against Dir.
type DataConfig struct {
	Dir          string `mapstructure:"dir"           yaml:"dir"`
	RawDir       string `mapstructure:"raw_dir"       yaml:"raw_dir"`       // cached source responses
	PanelFile    string `mapstructure:"panel_file"    yaml:"panel_file"`    // assembled panel
	ThinFile     string `mapstructure:"thin_file"     yaml:"thin_file"`     // serving artifact
	TickersFile  string `mapstructure:"tickers_file"  yaml:"tickers_file"`  // dashboard ticker universe
	FormsFile    string `mapstructure:"forms_file"    yaml:"forms_file"`    // SEC form descriptions
	ETFsFile     string `mapstructure:"etfs_file"     yaml:"etfs_file"`     // top ETF list
	ManifestFile string `mapstructure:"manifest_file" yaml:"manifest_file"` // pipeline run manifest
}

// Path resolves name against the data directory.
func (d DataConfig) Path(name string) string {
	if name == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(d.Dir, name)
}

// SourcesConfig holds settings for the external data sources.
type SourcesConfig struct {
	YahooBaseURL     string `mapstructure:"yahoo_base_url"     yaml:"yahoo_base_url"`
	SECDataURL       string `mapstructure:"sec_data_url"       yaml:"sec_data_url"`
	SECWWWURL        string `mapstructure:"sec_www_url"        yaml:"sec_www_url"`
	SECUserAgent     string `mapstructure:"sec_user_agent"     yaml:"sec_user_agent"`
	ETFListURL       string `mapstructure:"etf_list_url"       yaml:"etf_list_url"`
	YahooRatePerSec  int    `mapstructure:"yahoo_rate_per_sec" yaml:"yahoo_rate_per_sec"`
	SECRatePerSec    int    `mapstructure:"sec_rate_per_sec"   yaml:"sec_rate_per_sec"`
	TimeoutSec       int    `mapstructure:"timeout_sec"        yaml:"timeout_sec"`
}

// Timeout returns the HTTP timeout as a duration.
func (s SourcesConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutSec) * time.Second
}

// RetryConfig controls backoff around rate-limited sources.
type RetryConfig struct {
	MaxRetries  int `mapstructure:"max_retries"   yaml:"max_retries"`
	BaseDelayMS int `mapstructure:"base_delay_ms" yaml:"base_delay_ms"`
	MaxDelayMS  int `mapstructure:"max_delay_ms"  yaml:"max_delay_ms"`
}

// BaseDelay returns the first backoff delay.
func (r RetryConfig) BaseDelay() time.Duration {
	return time.Duration(r.BaseDelayMS) * time.Millisecond
}

// MaxDelay returns the backoff cap.
func (r RetryConfig) MaxDelay() time.Duration {
	return time.Duration(r.MaxDelayMS) * time.Millisecond
}

// PipelineConfig holds dataset build settings.
type PipelineConfig struct {
	HistoryYears int      `mapstructure:"history_years" yaml:"history_years"`
	End          string   `mapstructure:"end"           yaml:"end"` // YYYY-MM-DD, empty = today
	Exchanges    []string `mapstructure:"exchanges"     yaml:"exchanges"`
	MaxTickers   int      `mapstructure:"max_tickers"   yaml:"max_tickers"` // 0 = no limit
	Stages       []string `mapstructure:"stages"        yaml:"stages"`      // empty = all
}

// ThinConfig holds settings for the thin projection.
type ThinConfig struct {
	Years int    `mapstructure:"years" yaml:"years"`
	End   string `mapstructure:"end"   yaml:"end"` // empty = panel's last date
}

// DashboardConfig holds the dashboard query limits and defaults.
type DashboardConfig struct {
	MaxTickers      int     `mapstructure:"max_tickers"       yaml:"max_tickers" json:"max_tickers"`
	DefaultCash     float64 `mapstructure:"default_cash"      yaml:"default_cash" json:"default_cash"`
	DefaultWindow   int     `mapstructure:"default_window"    yaml:"default_window" json:"default_window"`
	MaxWindow       int     `mapstructure:"max_window"        yaml:"max_window" json:"max_window"`
	SearchMinLength int     `mapstructure:"search_min_length" yaml:"search_min_length" json:"search_min_length"`
	SearchLimit     int     `mapstructure:"search_limit"      yaml:"search_limit" json:"search_limit"`
	LookbackDays    int     `mapstructure:"lookback_days"     yaml:"lookback_days" json:"lookback_days"`
}

// APIConfig holds HTTP server settings.
type APIConfig struct {
	Host        string   `mapstructure:"host"         yaml:"host"`
	Port        int      `mapstructure:"port"         yaml:"port"`
	CORSOrigins []string `mapstructure:"cors_origins" yaml:"cors_origins"`
	Watch       bool     `mapstructure:"watch"        yaml:"watch"` // reload the thin file on change
}

// Addr returns host:port.
func (a APIConfig) Addr() string {
	return fmt.Sprintf("%s:%d", a.Host, a.Port)
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `mapstructure:"format" yaml:"format"` // "text" or "json"
}

// Load reads the configuration from file and environment variables.
// Config file search order:
//  1. ./config/config.yaml
//  2. ~/.panelstudy/config.yaml
//  3. /etc/panelstudy/config.yaml
//
// Environment variables override config file values.
// Format: PANELSTUDY_<SECTION>_<KEY>, e.g. PANELSTUDY_SOURCES_SEC_USER_AGENT
func Load() (*Config, error) {
	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(filepath.Join(homeDir(), ".panelstudy"))
	v.AddConfigPath("/etc/panelstudy")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}
	return decode(v)
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}
	return decode(v)
}

// Save writes cfg as YAML to path.
func Save(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	overrideFromEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that would otherwise fail deep inside a run.
func (c *Config) Validate() error {
	if c.Dashboard.MaxWindow < 1 {
		return fmt.Errorf("dashboard.max_window must be >= 1, got %d", c.Dashboard.MaxWindow)
	}
	if c.Dashboard.DefaultWindow < 1 || c.Dashboard.DefaultWindow > c.Dashboard.MaxWindow {
		return fmt.Errorf("dashboard.default_window must be within [1, %d], got %d",
			c.Dashboard.MaxWindow, c.Dashboard.DefaultWindow)
	}
	if c.Thin.Years < 1 {
		return fmt.Errorf("thin.years must be >= 1, got %d", c.Thin.Years)
	}
	return nil
}

// setDefaults sets defaults for all config values.
func setDefaults(v *viper.Viper) {
	// Data layout
	v.SetDefault("data.dir", "./data")
	v.SetDefault("data.raw_dir", "raw")
	v.SetDefault("data.panel_file", "panel_v1.parquet")
	v.SetDefault("data.thin_file", "panel_thin.parquet")
	v.SetDefault("data.tickers_file", "tickers.csv")
	v.SetDefault("data.forms_file", "sec_filing_descriptions.csv")
	v.SetDefault("data.etfs_file", "top_100_etfs.csv")
	v.SetDefault("data.manifest_file", "manifest.yaml")

	// Sources
	v.SetDefault("sources.yahoo_base_url", "https://query1.finance.yahoo.com")
	v.SetDefault("sources.sec_data_url", "https://data.sec.gov")
	v.SetDefault("sources.sec_www_url", "https://www.sec.gov")
	v.SetDefault("sources.sec_user_agent", "panelstudy research contact@example.com")
	v.SetDefault("sources.etf_list_url", "https://etfdb.com/compare/market-cap/")
	v.SetDefault("sources.yahoo_rate_per_sec", 2)
	v.SetDefault("sources.sec_rate_per_sec", 10)
	v.SetDefault("sources.timeout_sec", 30)

	// Retry
	v.SetDefault("retry.max_retries", 4)
	v.SetDefault("retry.base_delay_ms", 2000)
	v.SetDefault("retry.max_delay_ms", 60000)

	// Pipeline
	v.SetDefault("pipeline.history_years", 3)
	v.SetDefault("pipeline.exchanges", []string{"Nasdaq", "NYSE"})
	v.SetDefault("pipeline.max_tickers", 0)

	// Thin projection
	v.SetDefault("thin.years", 3)

	// Dashboard
	v.SetDefault("dashboard.max_tickers", 10)
	v.SetDefault("dashboard.default_cash", 10000.0)
	v.SetDefault("dashboard.default_window", 5)
	v.SetDefault("dashboard.max_window", 20)
	v.SetDefault("dashboard.search_min_length", 2)
	v.SetDefault("dashboard.search_limit", 25)
	v.SetDefault("dashboard.lookback_days", 756)

	// API
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.cors_origins", []string{"*"})
	v.SetDefault("api.watch", true)

	// Logging
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// overrideFromEnv reads values that are commonly kept in a .env file under
// shorter names than the PANELSTUDY_ scheme.
func overrideFromEnv(cfg *Config) {
	if ua := os.Getenv("SEC_USER_AGENT"); ua != "" && os.Getenv(EnvPrefix+"_SOURCES_SEC_USER_AGENT") == "" {
		cfg.Sources.SECUserAgent = ua
	}
	if dir := os.Getenv("PANEL_DATA_DIR"); dir != "" && os.Getenv(EnvPrefix+"_DATA_DIR") == "" {
		cfg.Data.Dir = dir
	}
}

// homeDir returns the user's home directory.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
