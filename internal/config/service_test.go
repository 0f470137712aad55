package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/slopezpereyra/icf-visualization-app/internal/logger"
	"gopkg.in/yaml.v3"
)

func createTestConfig(t *testing.T, configPath string, cfg *Config) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		t.Fatalf("Failed to marshal config: %v", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
}

func testConfig(tmpDir string) *Config {
	cfg := Default()
	cfg.Data.Dir = tmpDir
	cfg.State.DBPath = filepath.Join(tmpDir, "state.db")
	return cfg
}

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte("data:\n  dir: /srv/icf\n"))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if cfg.Data.Source != SourceDir {
		t.Errorf("Expected source %q, got %q", SourceDir, cfg.Data.Source)
	}
	if cfg.Data.Files.Trials != "formatted_data.csv" {
		t.Errorf("Expected default trials file, got %q", cfg.Data.Files.Trials)
	}
	if cfg.Data.Files.Participants != "ParticipantsInfo.csv" {
		t.Errorf("Expected default participants file, got %q", cfg.Data.Files.Participants)
	}
	if !cfg.Web.Enabled || !cfg.Health.Enabled {
		t.Error("Web and health should be enabled when omitted")
	}
	if cfg.State.DBPath != filepath.Join("/srv/icf", "db", "icfdash.db") {
		t.Errorf("Expected state db under data dir, got %q", cfg.State.DBPath)
	}
	if cfg.Charts.HeatmapBins != 20 {
		t.Errorf("Expected 20 heatmap bins, got %d", cfg.Charts.HeatmapBins)
	}
}

func TestParse_ExplicitDisable(t *testing.T) {
	cfg, err := Parse([]byte("web:\n  enabled: false\n"))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if cfg.Web.Enabled {
		t.Error("Explicit web.enabled=false should be honoured")
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default config should be valid: %v", err)
	}

	cfg.Data.Source = "ftp"
	cfg.Log.Format = "xml"
	cfg.Charts.HeatmapBins = 0
	err := cfg.Validate()
	if err == nil {
		t.Fatal("Expected validation error")
	}
	for _, want := range []string{"data.source", "log.format", "heatmap_bins"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Expected error to mention %q, got: %v", want, err)
		}
	}
}

func TestValidate_S3(t *testing.T) {
	cfg := Default()
	cfg.Data.Source = SourceS3
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "bucket") {
		t.Fatalf("Expected bucket error, got %v", err)
	}

	cfg.Data.S3.Bucket = "icf-results"
	cfg.Data.S3.AccessKeyID = "AKIA"
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "set together") {
		t.Fatalf("Expected credential pairing error, got %v", err)
	}

	cfg.Data.S3.SecretAccessKey = "secret"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Expected valid s3 config, got %v", err)
	}
}

func TestRedacted(t *testing.T) {
	cfg := Default()
	cfg.Data.S3.AccessKeyID = "AKIA"
	cfg.Data.S3.SecretAccessKey = "secret"

	red := cfg.Redacted()
	if red.Data.S3.SecretAccessKey != "***" || red.Data.S3.AccessKeyID != "***" {
		t.Error("Credentials should be masked")
	}
	if cfg.Data.S3.SecretAccessKey != "secret" {
		t.Error("Redacted must not modify the original")
	}
}

func TestNewService(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	createTestConfig(t, configPath, testConfig(tmpDir))

	log, _ := logger.New(logger.LogConfig{Level: "info", Format: "text"})
	svc, err := NewService(configPath, log)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}

	if svc.Get() == nil {
		t.Fatal("Get() returned nil")
	}
	if svc.Get().Data.Dir != tmpDir {
		t.Errorf("Expected data dir %s, got %s", tmpDir, svc.Get().Data.Dir)
	}
	if svc.Path() != configPath {
		t.Errorf("Expected path %s, got %s", configPath, svc.Path())
	}
}

func TestNewService_MissingFile(t *testing.T) {
	log := logger.NewNopLogger()
	if _, err := NewService(filepath.Join(t.TempDir(), "nope.yaml"), log); err == nil {
		t.Fatal("Expected error for missing configuration file")
	}
}

func TestService_ReloadAndWatch(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	cfg := testConfig(tmpDir)
	createTestConfig(t, configPath, cfg)

	log := logger.NewNopLogger()
	svc, err := NewService(configPath, log)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}

	var seenOld, seenNew string
	svc.Watch(func(ctx context.Context, oldConfig, newConfig *Config) error {
		seenOld = oldConfig.Log.Level
		seenNew = newConfig.Log.Level
		// Get must not deadlock inside a watcher
		_ = svc.Get()
		return nil
	})

	cfg.Log.Level = "debug"
	createTestConfig(t, configPath, cfg)

	if err := svc.Reload(context.Background()); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}

	if svc.Get().Log.Level != "debug" {
		t.Errorf("Expected log level 'debug', got %s", svc.Get().Log.Level)
	}
	if seenOld != "info" || seenNew != "debug" {
		t.Errorf("Watcher saw %q -> %q", seenOld, seenNew)
	}
}

func TestService_ReloadRejectsInvalid(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	cfg := testConfig(tmpDir)
	createTestConfig(t, configPath, cfg)

	svc, err := NewService(configPath, logger.NewNopLogger())
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}

	cfg.Log.Format = "xml"
	createTestConfig(t, configPath, cfg)
	if err := svc.Reload(context.Background()); err == nil {
		t.Fatal("Expected reload to fail validation")
	}
	if svc.Get().Log.Format != "text" {
		t.Error("Previous configuration should be kept after a failed reload")
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	createTestConfig(t, configPath, testConfig(tmpDir))

	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("ICF_DATA_DIR", "/custom/data")
	t.Setenv("ICF_WEB_PORT", "9000")
	t.Setenv("ICF_S3_PATH_STYLE", "yes")

	svc, err := NewService(configPath, logger.NewNopLogger())
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}

	retrieved := svc.Get()
	if retrieved.Log.Level != "debug" {
		t.Errorf("Expected log level 'debug' from env, got %s", retrieved.Log.Level)
	}
	if retrieved.Data.Dir != "/custom/data" {
		t.Errorf("Expected data dir '/custom/data' from env, got %s", retrieved.Data.Dir)
	}
	if retrieved.Web.Port != 9000 {
		t.Errorf("Expected web port 9000 from env, got %d", retrieved.Web.Port)
	}
	if !retrieved.Data.S3.PathStyle {
		t.Error("Expected path style from env")
	}
}

func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		envValue    string
		defaultVal  bool
		expected    bool
		description string
	}{
		{"", false, false, "empty env with false default"},
		{"", true, true, "empty env with true default"},
		{"true", false, true, "true string"},
		{"1", false, true, "1 string"},
		{"on", false, true, "on string"},
		{"false", true, false, "false string"},
		{"off", true, false, "off string"},
	}

	for _, tt := range tests {
		t.Run(tt.description, func(t *testing.T) {
			t.Setenv("TEST_BOOL", tt.envValue)
			result := GetEnvBool("TEST_BOOL", tt.defaultVal)
			if result != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, result)
			}
		})
	}
}

func TestGetEnvInt(t *testing.T) {
	t.Setenv("TEST_INT", "")
	if got := GetEnvInt("TEST_INT", 42); got != 42 {
		t.Errorf("Expected 42, got %d", got)
	}

	t.Setenv("TEST_INT", "100")
	if got := GetEnvInt("TEST_INT", 42); got != 100 {
		t.Errorf("Expected 100, got %d", got)
	}

	t.Setenv("TEST_INT", "invalid")
	if got := GetEnvInt("TEST_INT", 42); got != 42 {
		t.Errorf("Expected 42 for invalid value, got %d", got)
	}
}
