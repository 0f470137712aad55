package state

import (
	"path/filepath"
	"testing"

	"github.com/slopezpereyra/icf-visualization-app/internal/config"
	"github.com/slopezpereyra/icf-visualization-app/internal/logger"
)

func setupTestManager(t *testing.T) *Manager {
	t.Helper()

	cfg := config.Default()
	cfg.State.DBPath = filepath.Join(t.TempDir(), "db", "icfdash.db")

	mgr, err := NewManager(cfg, logger.NewNopLogger())
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	return mgr
}
