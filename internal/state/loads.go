package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/slopezpereyra/icf-visualization-app/internal/dataset"
)

// DefaultLoadsLimit caps ListLoads when no positive limit is given.
const DefaultLoadsLimit = 50

// LoadRecord is one row of the dataset load history.
type LoadRecord struct {
	ID            int64     `json:"id"`
	Source        string    `json:"source"`
	Checksum      string    `json:"checksum"`
	Trials        int       `json:"trials"`
	SubjectLevel  int       `json:"subject_level"`
	GroupLevel    int       `json:"group_level"`
	Participants  int       `json:"participants"`
	TrialsDropped int       `json:"trials_dropped"`
	LoadedAt      time.Time `json:"loaded_at"`
}

// RecordLoad appends info to the load history and remembers its checksum.
// changed reports whether the checksum differs from the previous load; the
// first load ever counts as changed.
func (m *Manager) RecordLoad(ctx context.Context, info dataset.LoadInfo) (rec LoadRecord, changed bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx, err := m.db.GetDB().BeginTx(ctx, nil)
	if err != nil {
		return LoadRecord{}, false, fmt.Errorf("failed to record load: %w", err)
	}
	defer tx.Rollback()

	var previous string
	err = tx.QueryRowContext(ctx, `SELECT value FROM system_state WHERE key = ?`, KeyLastChecksum).Scan(&previous)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return LoadRecord{}, false, fmt.Errorf("failed to read last checksum: %w", err)
	}

	loadedAt := info.LoadedAt
	if loadedAt.IsZero() {
		loadedAt = m.now()
	}
	rec = LoadRecord{
		Source:        info.Source,
		Checksum:      info.Checksum,
		Trials:        info.Rows[dataset.TableTrials],
		SubjectLevel:  info.Rows[dataset.TableSubjectLevel],
		GroupLevel:    info.Rows[dataset.TableGroupLevel],
		Participants:  info.Rows[dataset.TableParticipants],
		TrialsDropped: info.TrialsDropped,
		LoadedAt:      loadedAt,
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO dataset_loads
			(source, checksum, trials, subject_level, group_level, participants, trials_dropped, loaded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Source, rec.Checksum, rec.Trials, rec.SubjectLevel, rec.GroupLevel,
		rec.Participants, rec.TrialsDropped, rec.LoadedAt,
	)
	if err != nil {
		return LoadRecord{}, false, fmt.Errorf("failed to record load: %w", err)
	}
	if rec.ID, err = res.LastInsertId(); err != nil {
		return LoadRecord{}, false, fmt.Errorf("failed to record load: %w", err)
	}

	if err := m.saveSystemState(ctx, tx, KeyLastChecksum, rec.Checksum); err != nil {
		return LoadRecord{}, false, err
	}
	if err := m.saveSystemState(ctx, tx, KeyLastSource, rec.Source); err != nil {
		return LoadRecord{}, false, err
	}

	if err := tx.Commit(); err != nil {
		return LoadRecord{}, false, fmt.Errorf("failed to record load: %w", err)
	}
	return rec, previous != rec.Checksum, nil
}

// ListLoads returns up to limit loads, newest first.
func (m *Manager) ListLoads(ctx context.Context, limit int) ([]LoadRecord, error) {
	if limit <= 0 {
		limit = DefaultLoadsLimit
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	rows, err := m.db.GetDB().QueryContext(ctx, `
		SELECT id, source, checksum, trials, subject_level, group_level, participants, trials_dropped, loaded_at
		FROM dataset_loads
		ORDER BY id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list loads: %w", err)
	}
	defer rows.Close()

	loads := make([]LoadRecord, 0)
	for rows.Next() {
		var rec LoadRecord
		if err := rows.Scan(&rec.ID, &rec.Source, &rec.Checksum, &rec.Trials, &rec.SubjectLevel,
			&rec.GroupLevel, &rec.Participants, &rec.TrialsDropped, &rec.LoadedAt); err != nil {
			return nil, fmt.Errorf("failed to list loads: %w", err)
		}
		loads = append(loads, rec)
	}
	return loads, rows.Err()
}
