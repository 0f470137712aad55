package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/slopezpereyra/icf-visualization-app/internal/logger"
)

// Service provides configuration management with environment variable support
type Service struct {
	config     *Config
	configPath string
	logger     *logger.Logger
	mu         sync.RWMutex
	watchers   []ConfigWatcher
}

// ConfigWatcher is called when configuration changes
type ConfigWatcher func(ctx context.Context, oldConfig, newConfig *Config) error

// NewService creates a new configuration service
func NewService(configPath string, log *logger.Logger) (*Service, error) {
	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load initial configuration: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &Service{
		config:     cfg,
		configPath: configPath,
		logger:     log,
		watchers:   make([]ConfigWatcher, 0),
	}, nil
}

// SetLogger replaces the logger used for reload messages. The service is
// usually created before the logger, which is configured from it.
func (s *Service) SetLogger(log *logger.Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger = log
}

// Get returns the current configuration (thread-safe)
func (s *Service) Get() *Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config
}

// Path returns the file the configuration was loaded from
func (s *Service) Path() string {
	return s.configPath
}

// Reload reloads the configuration from file. Data source settings are
// read once at startup; a reload only affects settings consulted per request
// (log level, chart sizes).
func (s *Service) Reload(ctx context.Context) error {
	newConfig, err := Load(s.configPath)
	if err != nil {
		return fmt.Errorf("failed to reload configuration: %w", err)
	}

	applyEnvOverrides(newConfig)

	if err := newConfig.Validate(); err != nil {
		return fmt.Errorf("invalid reloaded configuration: %w", err)
	}

	s.mu.Lock()
	oldConfig := s.config
	s.config = newConfig
	watchers := append([]ConfigWatcher(nil), s.watchers...)
	log := s.logger
	s.mu.Unlock()

	for _, watcher := range watchers {
		if err := watcher(ctx, oldConfig, newConfig); err != nil {
			log.Error("Config watcher error", "error", err)
		}
	}

	log.Info("Configuration reloaded", "path", s.configPath)
	return nil
}

// Watch registers a configuration change watcher
func (s *Service) Watch(watcher ConfigWatcher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watchers = append(s.watchers, watcher)
}

// applyEnvOverrides applies ICF_* environment variable overrides to configuration
func applyEnvOverrides(cfg *Config) {
	if val := os.Getenv("ICF_DATA_SOURCE"); val != "" {
		cfg.Data.Source = val
	}
	if val := os.Getenv("ICF_DATA_DIR"); val != "" {
		cfg.Data.Dir = val
	}
	if val := os.Getenv("ICF_S3_BUCKET"); val != "" {
		cfg.Data.S3.Bucket = val
	}
	if val := os.Getenv("ICF_S3_PREFIX"); val != "" {
		cfg.Data.S3.Prefix = val
	}
	if val := os.Getenv("ICF_S3_REGION"); val != "" {
		cfg.Data.S3.Region = val
	}
	if val := os.Getenv("ICF_S3_ENDPOINT"); val != "" {
		cfg.Data.S3.Endpoint = val
	}
	cfg.Data.S3.PathStyle = GetEnvBool("ICF_S3_PATH_STYLE", cfg.Data.S3.PathStyle)

	cfg.Web.Enabled = GetEnvBool("ICF_WEB_ENABLED", cfg.Web.Enabled)
	if val := os.Getenv("ICF_WEB_HOST"); val != "" {
		cfg.Web.Host = val
	}
	cfg.Web.Port = GetEnvInt("ICF_WEB_PORT", cfg.Web.Port)
	cfg.Health.Port = GetEnvInt("ICF_HEALTH_PORT", cfg.Health.Port)

	if val := os.Getenv("ICF_STATE_DB_PATH"); val != "" {
		cfg.State.DBPath = val
	}

	if val := os.Getenv("LOG_LEVEL"); val != "" {
		cfg.Log.Level = val
	}
	if val := os.Getenv("LOG_FORMAT"); val != "" {
		cfg.Log.Format = val
	}
	if val := os.Getenv("LOG_OUTPUT"); val != "" {
		cfg.Log.Output = val
	}
}

// GetEnvBool gets a boolean environment variable
func GetEnvBool(key string, defaultValue bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	val = strings.ToLower(val)
	return val == "true" || val == "1" || val == "yes" || val == "on"
}

// GetEnvInt gets an integer environment variable
func GetEnvInt(key string, defaultValue int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	result, err := strconv.Atoi(strings.TrimSpace(val))
	if err != nil {
		return defaultValue
	}
	return result
}
