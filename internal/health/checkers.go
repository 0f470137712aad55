package health

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"runtime"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/slopezpereyra/icf-visualization-app/internal/dataset"
)

// maxGoroutines marks the process degraded when exceeded.
const maxGoroutines = 10000

// SystemChecker reports Go runtime figures.
type SystemChecker struct{}

func (c *SystemChecker) Name() string {
	return "system"
}

func (c *SystemChecker) Check(ctx context.Context) Check {
	check := newCheck(c.Name())

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	goroutines := runtime.NumGoroutine()

	check.Details["goroutines"] = goroutines
	check.Details["heap_alloc_bytes"] = mem.HeapAlloc
	check.Details["go_version"] = runtime.Version()

	if goroutines > maxGoroutines {
		check.Status = StatusDegraded
		check.Message = fmt.Sprintf("%d goroutines running", goroutines)
		return check
	}

	check.Status = StatusHealthy
	check.Message = "System resources OK"
	return check
}

// DatabaseChecker checks the state database with its own read-only
// connection, so a wedged writer does not hide a readable file.
type DatabaseChecker struct {
	dbPath string
}

func NewDatabaseChecker(dbPath string) *DatabaseChecker {
	return &DatabaseChecker{dbPath: dbPath}
}

func (c *DatabaseChecker) Name() string {
	return "database"
}

func (c *DatabaseChecker) Check(ctx context.Context) Check {
	check := newCheck(c.Name())

	if c.dbPath == "" {
		check.Status = StatusDegraded
		check.Message = "Database path not configured"
		return check
	}

	if _, err := os.Stat(c.dbPath); errors.Is(err, os.ErrNotExist) {
		check.Status = StatusDegraded
		check.Message = "Database file does not exist"
		check.Details["file_exists"] = false
		return check
	}
	check.Details["file_exists"] = true

	db, err := sql.Open("sqlite3", "file:"+c.dbPath+"?mode=ro&_busy_timeout=2000")
	if err != nil {
		check.Status = StatusUnhealthy
		check.Message = fmt.Sprintf("Failed to open database: %v", err)
		return check
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		check.Status = StatusUnhealthy
		check.Message = fmt.Sprintf("Database ping failed: %v", err)
		return check
	}

	var views, loads int
	err = db.QueryRowContext(ctx,
		`SELECT (SELECT COUNT(*) FROM saved_views), (SELECT COUNT(*) FROM dataset_loads)`,
	).Scan(&views, &loads)
	if err != nil {
		check.Status = StatusDegraded
		check.Message = fmt.Sprintf("Database schema not ready: %v", err)
		return check
	}
	check.Details["saved_views"] = views
	check.Details["dataset_loads"] = loads

	check.Status = StatusHealthy
	check.Message = "Database connection OK"
	return check
}

// DatasetChecker reports on the loaded tables.
type DatasetChecker struct {
	store *dataset.Store
}

func NewDatasetChecker(store *dataset.Store) *DatasetChecker {
	return &DatasetChecker{store: store}
}

func (c *DatasetChecker) Name() string {
	return "dataset"
}

func (c *DatasetChecker) Check(ctx context.Context) Check {
	check := newCheck(c.Name())

	if c.store == nil {
		check.Status = StatusUnhealthy
		check.Message = "No dataset loaded"
		return check
	}

	info := c.store.Info()
	check.Details["source"] = info.Source
	check.Details["checksum"] = info.Checksum
	check.Details["loaded_at"] = info.LoadedAt
	check.Details["rows"] = info.Rows
	check.Details["subjects"] = len(c.store.Subjects())

	var empty []string
	for _, table := range []string{dataset.TableTrials, dataset.TableSubjectLevel, dataset.TableGroupLevel} {
		if info.Rows[table] == 0 {
			empty = append(empty, table)
		}
	}
	if len(empty) > 0 {
		check.Status = StatusDegraded
		check.Message = fmt.Sprintf("Empty tables: %v", empty)
		return check
	}

	check.Status = StatusHealthy
	check.Message = "Dataset loaded"
	return check
}

func newCheck(name string) Check {
	return Check{
		Name:      name,
		Timestamp: time.Now(),
		Details:   make(map[string]interface{}),
	}
}
