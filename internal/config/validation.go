package config

import (
	"fmt"
	"strings"
)

// Validate validates the configuration with detailed error messages
func (c *Config) Validate() error {
	var errors []string

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true,
	}
	if !validLogLevels[strings.ToLower(c.Log.Level)] {
		errors = append(errors, fmt.Sprintf("invalid log.level: %s (must be: debug, info, warn, error, fatal)", c.Log.Level))
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errors = append(errors, fmt.Sprintf("invalid log.format: %s (must be: text or json)", c.Log.Format))
	}

	switch c.Data.Source {
	case SourceDir:
		if c.Data.Dir == "" {
			errors = append(errors, "data.dir is required for the dir source")
		}
	case SourceS3:
		if c.Data.S3.Bucket == "" {
			errors = append(errors, "data.s3.bucket is required for the s3 source")
		}
		if (c.Data.S3.AccessKeyID == "") != (c.Data.S3.SecretAccessKey == "") {
			errors = append(errors, "data.s3.access_key_id and data.s3.secret_access_key must be set together")
		}
	default:
		errors = append(errors, fmt.Sprintf("invalid data.source: %s (must be: dir or s3)", c.Data.Source))
	}

	files := map[string]string{
		"data.files.trials":        c.Data.Files.Trials,
		"data.files.subject_level": c.Data.Files.SubjectLevel,
		"data.files.group_level":   c.Data.Files.GroupLevel,
		"data.files.participants":  c.Data.Files.Participants,
	}
	for _, key := range []string{"data.files.trials", "data.files.subject_level", "data.files.group_level", "data.files.participants"} {
		if strings.TrimSpace(files[key]) == "" {
			errors = append(errors, key+" is required")
		}
	}

	if c.Web.Port < 0 || c.Web.Port > 65535 {
		errors = append(errors, fmt.Sprintf("web.port must be between 0 and 65535, got: %d", c.Web.Port))
	}
	if c.Health.Port < 0 || c.Health.Port > 65535 {
		errors = append(errors, fmt.Sprintf("health.port must be between 0 and 65535, got: %d", c.Health.Port))
	}
	if c.Web.Enabled && c.Health.Enabled && c.Web.Port != 0 && c.Web.Port == c.Health.Port {
		errors = append(errors, fmt.Sprintf("web.port and health.port must differ, both are %d", c.Web.Port))
	}

	if c.State.DBPath == "" {
		errors = append(errors, "state.db_path is required")
	}

	if c.Charts.Width < 100 || c.Charts.Height < 100 {
		errors = append(errors, fmt.Sprintf("charts.width and charts.height must be >= 100, got: %dx%d", c.Charts.Width, c.Charts.Height))
	}
	if c.Charts.HeatmapBins < 1 || c.Charts.HeatmapBins > 500 {
		errors = append(errors, fmt.Sprintf("charts.heatmap_bins must be between 1 and 500, got: %d", c.Charts.HeatmapBins))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errors, "\n  - "))
	}

	return nil
}
