package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"covid-dashboard/internal/engine"
)

// Config holds all service settings.
type Config struct {
	HTTPAddr        string        `mapstructure:"http_addr" yaml:"http_addr"`
	DataDir         string        `mapstructure:"data_dir" yaml:"data_dir"`
	Files           engine.Files  `mapstructure:"files" yaml:"files"`
	LogLevel        string        `mapstructure:"log_level" yaml:"log_level"`
	LogEncoding     string        `mapstructure:"log_encoding" yaml:"log_encoding"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	ChartWidth      int           `mapstructure:"chart_width" yaml:"chart_width"`
	ChartHeight     int           `mapstructure:"chart_height" yaml:"chart_height"`
}

// Load reads configuration from defaults, an optional YAML file and
// DASHBOARD_* environment variables.
// Precedence: env > config file > defaults.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("DASHBOARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	files := engine.DefaultFiles()
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("data_dir", DefaultDataDir())
	v.SetDefault("files.covid_clean", files.CovidClean)
	v.SetDefault("files.day_wise", files.DayWise)
	v.SetDefault("files.country_latest", files.CountryLatest)
	v.SetDefault("files.usa_county", files.USACounty)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_encoding", "json")
	v.SetDefault("shutdown_timeout", "10s")
	v.SetDefault("chart_width", 1024)
	v.SetDefault("chart_height", 480)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) validate() error {
	if c.HTTPAddr == "" {
		return errors.New("http_addr is required")
	}
	if c.DataDir == "" {
		return errors.New("data_dir is required")
	}
	if c.Files.CovidClean == "" || c.Files.DayWise == "" || c.Files.CountryLatest == "" || c.Files.USACounty == "" {
		return errors.New("files: all four dataset file names are required")
	}
	if c.ShutdownTimeout <= 0 {
		return errors.New("shutdown_timeout must be positive")
	}
	if c.ChartWidth <= 0 || c.ChartHeight <= 0 {
		return fmt.Errorf("chart_width and chart_height must be positive, got %dx%d", c.ChartWidth, c.ChartHeight)
	}
	return nil
}

// DefaultDataDir is the "data" directory next to the running executable.
func DefaultDataDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "data"
	}
	return filepath.Join(filepath.Dir(exe), "data")
}
