package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Data   DataConfig   `yaml:"data"`
	Web    WebConfig    `yaml:"web"`
	Health HealthConfig `yaml:"health"`
	State  StateConfig  `yaml:"state"`
	Charts ChartsConfig `yaml:"charts"`
	Log    LogConfig    `yaml:"log,omitempty"`
}

// Data source kinds
const (
	SourceDir = "dir"
	SourceS3  = "s3"
)

// DataConfig describes where the four result tables are read from
type DataConfig struct {
	Source string      `yaml:"source"` // dir or s3
	Dir    string      `yaml:"dir"`
	Files  FilesConfig `yaml:"files"`
	S3     S3Config    `yaml:"s3"`
}

// FilesConfig names the object holding each table
type FilesConfig struct {
	Trials       string `yaml:"trials"`
	SubjectLevel string `yaml:"subject_level"`
	GroupLevel   string `yaml:"group_level"`
	Participants string `yaml:"participants"`
}

// S3Config contains S3 (or MinIO) source settings
type S3Config struct {
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	PathStyle       bool   `yaml:"path_style"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"` // never logged or served
}

// WebConfig contains web server configuration
type WebConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

// HealthConfig contains the health probe listener configuration
type HealthConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// StateConfig contains the SQLite state database location
type StateConfig struct {
	DBPath string `yaml:"db_path"`
}

// ChartsConfig contains static rendering and binning defaults
type ChartsConfig struct {
	Width       int `yaml:"width"`
	Height      int `yaml:"height"`
	HeatmapBins int `yaml:"heatmap_bins"`
}

// LogConfig contains logging configuration
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := newBase()
	cfg.setDefaults()
	return cfg
}

// newBase returns the zero configuration with boolean defaults that
// setDefaults cannot tell apart from an explicit false.
func newBase() *Config {
	cfg := &Config{}
	cfg.Web.Enabled = true
	cfg.Health.Enabled = true
	return cfg
}

// Load reads and parses the configuration file
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = getDefaultConfigPath()
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s", configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML configuration and applies defaults.
// Omitted enabled flags for web and health default to true.
func Parse(data []byte) (*Config, error) {
	cfg := newBase()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}
	cfg.setDefaults()
	return cfg, nil
}

// getDefaultConfigPath returns the default configuration file path
func getDefaultConfigPath() string {
	paths := []string{
		"./config/config.dev.yaml",
		"./config/config.yaml",
		"../config/config.yaml",
		"/etc/icfdash/config.yaml",
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return paths[0]
}

// setDefaults sets default values for configuration
func (c *Config) setDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Log.Output == "" {
		c.Log.Output = "stdout"
	}

	if c.Data.Source == "" {
		c.Data.Source = SourceDir
	}
	if c.Data.Dir == "" {
		c.Data.Dir = "./data"
	}
	if c.Data.Files.Trials == "" {
		c.Data.Files.Trials = "formatted_data.csv"
	}
	if c.Data.Files.SubjectLevel == "" {
		c.Data.Files.SubjectLevel = "analysis_subject_level.csv"
	}
	if c.Data.Files.GroupLevel == "" {
		c.Data.Files.GroupLevel = "analysis_group_level.csv"
	}
	if c.Data.Files.Participants == "" {
		c.Data.Files.Participants = "ParticipantsInfo.csv"
	}
	if c.Data.S3.Region == "" {
		c.Data.S3.Region = "us-east-1"
	}

	if c.Web.Host == "" {
		c.Web.Host = "0.0.0.0"
	}
	if c.Web.Port == 0 {
		c.Web.Port = 8501
	}
	if c.Health.Port == 0 {
		c.Health.Port = 8081
	}

	if c.State.DBPath == "" {
		c.State.DBPath = filepath.Join(c.Data.Dir, "db", "icfdash.db")
	}

	if c.Charts.Width == 0 {
		c.Charts.Width = 1024
	}
	if c.Charts.Height == 0 {
		c.Charts.Height = 600
	}
	if c.Charts.HeatmapBins == 0 {
		c.Charts.HeatmapBins = 20
	}
}

// Redacted returns a copy safe to log or serve: credentials are masked.
func (c *Config) Redacted() Config {
	out := *c
	if out.Data.S3.AccessKeyID != "" {
		out.Data.S3.AccessKeyID = "***"
	}
	if out.Data.S3.SecretAccessKey != "" {
		out.Data.S3.SecretAccessKey = "***"
	}
	return out
}
