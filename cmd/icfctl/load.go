package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/slopezpereyra/icf-visualization-app/internal/aggregate"
	"github.com/slopezpereyra/icf-visualization-app/internal/config"
	"github.com/slopezpereyra/icf-visualization-app/internal/dashboard"
	"github.com/slopezpereyra/icf-visualization-app/internal/dataset"
)

// loadConfig reads --config, or the defaults when it is not given, and
// applies --data-dir.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	dataDir, _ := cmd.Flags().GetString("data-dir")

	cfg := config.Default()
	if path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return nil, err
		}
	}
	if dataDir != "" {
		cfg.Data.Source = config.SourceDir
		cfg.Data.Dir = dataDir
	}
	return cfg, nil
}

func loadStore(ctx context.Context, cmd *cobra.Command) (*config.Config, *dataset.Store, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	src, err := dataset.NewSource(ctx, cfg.Data)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create data source: %w", err)
	}
	store, err := dataset.Load(ctx, src, dataset.FilesFromConfig(cfg.Data.Files))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load %s: %w", src.Describe(), err)
	}
	return cfg, store, nil
}

func loadDashboard(ctx context.Context, cmd *cobra.Command) (*config.Config, *dashboard.Dashboard, error) {
	cfg, store, err := loadStore(ctx, cmd)
	if err != nil {
		return nil, nil, err
	}
	dash := dashboard.New(aggregate.New(store), dashboard.Options{HeatmapBins: cfg.Charts.HeatmapBins})
	return cfg, dash, nil
}

func writeJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
