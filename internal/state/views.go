package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/slopezpereyra/icf-visualization-app/internal/dashboard"
	"github.com/slopezpereyra/icf-visualization-app/internal/service"
)

var (
	// ErrViewNotFound is returned when no saved view has the requested id.
	ErrViewNotFound = errors.New("saved view not found")
	// ErrViewName is returned when a view is saved without a name.
	ErrViewName = errors.New("saved view name is required")
)

// maxViewName bounds the length of a saved view name.
const maxViewName = 100

// SavedView is a named dashboard selection.
type SavedView struct {
	ID        string              `json:"id"`
	Name      string              `json:"name"`
	Selection dashboard.Selection `json:"selection"`
	CreatedAt time.Time           `json:"created_at"`
	UpdatedAt time.Time           `json:"updated_at"`
}

// SaveView stores sel under name. Saving an existing name replaces its
// selection and keeps its id.
func (m *Manager) SaveView(ctx context.Context, name string, sel dashboard.Selection) (SavedView, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return SavedView{}, ErrViewName
	}
	if len(name) > maxViewName {
		return SavedView{}, fmt.Errorf("%w: at most %d characters", ErrViewName, maxViewName)
	}

	payload, err := json.Marshal(sel)
	if err != nil {
		return SavedView{}, fmt.Errorf("failed to encode selection: %w", err)
	}

	m.mu.Lock()
	now := m.now()
	query := `
		INSERT INTO saved_views (id, name, selection, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			selection = excluded.selection,
			updated_at = excluded.updated_at
	`
	_, err = m.db.GetDB().ExecContext(ctx, query, uuid.New().String(), name, string(payload), now, now)
	m.mu.Unlock()
	if err != nil {
		return SavedView{}, fmt.Errorf("failed to save view: %w", err)
	}

	view, err := m.viewByName(ctx, name)
	if err != nil {
		return SavedView{}, err
	}

	m.PublishEvent(service.EventTypeViewSaved, map[string]interface{}{
		"id":   view.ID,
		"name": view.Name,
	})
	return view, nil
}

// GetView returns the saved view with id.
func (m *Manager) GetView(ctx context.Context, id string) (SavedView, error) {
	return m.queryView(ctx, `WHERE id = ?`, id)
}

func (m *Manager) viewByName(ctx context.Context, name string) (SavedView, error) {
	return m.queryView(ctx, `WHERE name = ?`, name)
}

func (m *Manager) queryView(ctx context.Context, where string, arg string) (SavedView, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	row := m.db.GetDB().QueryRowContext(ctx,
		`SELECT id, name, selection, created_at, updated_at FROM saved_views `+where, arg)
	view, err := scanView(row)
	if errors.Is(err, sql.ErrNoRows) {
		return SavedView{}, fmt.Errorf("%w: %s", ErrViewNotFound, arg)
	}
	if err != nil {
		return SavedView{}, fmt.Errorf("failed to get view: %w", err)
	}
	return view, nil
}

// ListViews returns every saved view ordered by name.
func (m *Manager) ListViews(ctx context.Context) ([]SavedView, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rows, err := m.db.GetDB().QueryContext(ctx,
		`SELECT id, name, selection, created_at, updated_at FROM saved_views ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list views: %w", err)
	}
	defer rows.Close()

	views := make([]SavedView, 0)
	for rows.Next() {
		view, err := scanView(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to list views: %w", err)
		}
		views = append(views, view)
	}
	return views, rows.Err()
}

// DeleteView removes the saved view with id.
func (m *Manager) DeleteView(ctx context.Context, id string) error {
	m.mu.Lock()
	res, err := m.db.GetDB().ExecContext(ctx, `DELETE FROM saved_views WHERE id = ?`, id)
	m.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to delete view: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete view: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrViewNotFound, id)
	}

	m.PublishEvent(service.EventTypeViewDeleted, map[string]interface{}{"id": id})
	return nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanView(s scanner) (SavedView, error) {
	var view SavedView
	var payload string
	if err := s.Scan(&view.ID, &view.Name, &payload, &view.CreatedAt, &view.UpdatedAt); err != nil {
		return SavedView{}, err
	}
	if err := json.Unmarshal([]byte(payload), &view.Selection); err != nil {
		return SavedView{}, fmt.Errorf("corrupt selection for view %s: %w", view.ID, err)
	}
	return view, nil
}
