// Package state persists saved dashboard selections and the history of
// dataset loads in SQLite.
package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/slopezpereyra/icf-visualization-app/internal/config"
	"github.com/slopezpereyra/icf-visualization-app/internal/dataset"
	"github.com/slopezpereyra/icf-visualization-app/internal/logger"
	"github.com/slopezpereyra/icf-visualization-app/internal/service"
)

// ServiceName is the name the state manager registers under.
const ServiceName = "state"

// System state keys
const (
	KeyLastChecksum = "last_loaded_checksum"
	KeyLastSource   = "last_loaded_source"
)

// Manager manages state persistence. It runs as a service that records
// dataset.loaded events.
type Manager struct {
	*service.ServiceBase

	db     *Database
	logger *logger.Logger
	mu     sync.RWMutex
	cancel context.CancelFunc
	now    func() time.Time
}

// NewManager opens the state database named by cfg.State.DBPath.
func NewManager(cfg *config.Config, log *logger.Logger) (*Manager, error) {
	return Open(cfg.State.DBPath, log)
}

// Open opens the state database at dbPath.
func Open(dbPath string, log *logger.Logger) (*Manager, error) {
	db, err := NewDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create database: %w", err)
	}

	return &Manager{
		ServiceBase: service.NewServiceBase(ServiceName, log),
		db:          db,
		logger:      log,
		now:         func() time.Time { return time.Now().UTC() },
	}, nil
}

// Start subscribes to dataset loads.
func (m *Manager) Start(ctx context.Context) error {
	bus := m.GetEventBus()
	if bus == nil {
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	bus.SubscribeWithHandler(ctx, service.EventTypeDatasetLoaded, m.handleDatasetLoaded)
	m.LogDebug("Recording dataset loads")
	return nil
}

// Stop ends the subscription and closes the database.
func (m *Manager) Stop(ctx context.Context) error {
	if m.cancel != nil {
		m.cancel()
	}
	return m.Close()
}

// Close closes the state manager and database
func (m *Manager) Close() error {
	return m.db.Close()
}

// GetDB returns the database connection
func (m *Manager) GetDB() *sql.DB {
	return m.db.GetDB()
}

// Ping checks that the database answers.
func (m *Manager) Ping(ctx context.Context) error {
	return m.db.GetDB().PingContext(ctx)
}

// SaveSystemState saves a system state value
func (m *Manager) SaveSystemState(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveSystemState(ctx, m.db.GetDB(), key, value)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func (m *Manager) saveSystemState(ctx context.Context, db execer, key, value string) error {
	query := `
		INSERT INTO system_state (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`

	if _, err := db.ExecContext(ctx, query, key, value, m.now()); err != nil {
		return fmt.Errorf("failed to save system state: %w", err)
	}
	return nil
}

// GetSystemState retrieves a system state value. A missing key yields "".
func (m *Manager) GetSystemState(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var value string
	query := `SELECT value FROM system_state WHERE key = ?`
	err := m.db.GetDB().QueryRowContext(ctx, query, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get system state: %w", err)
	}

	return value, nil
}

func (m *Manager) handleDatasetLoaded(ctx context.Context, event service.Event) error {
	info, ok := event.Data["info"].(dataset.LoadInfo)
	if !ok {
		return fmt.Errorf("dataset.loaded event from %s carries no load info", event.Source)
	}
	rec, changed, err := m.RecordLoad(ctx, info)
	if err != nil {
		return err
	}
	if changed {
		m.LogInfo("Dataset changed since last load",
			"load_id", rec.ID,
			"source", rec.Source,
			"checksum", rec.Checksum,
		)
	}
	return nil
}
